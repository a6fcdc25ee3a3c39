// Package connpager compiles keyset (cursor) paginated connection queries.
//
// Overview
//
// A Query describes the relation, its filters and orderings. Compiler applies
// a PaginationRequest (first/last, offset, after/before cursors) on top of it
// and produces a single statement that returns, in one round trip:
//   - data: the page rows as a JSON array, every row carrying its cursor;
//   - hasNextPage / hasPreviousPage: computed with the cheapest sufficient
//     EXISTS check for the request;
//   - totalCount: the number of rows matching the filters.
//
// Key concepts
//   - Orderings: multi-column ordering with explicit directions. Boundary
//     predicates compare rows lexicographically over the orderings. Without
//     orderings a row number is used.
//   - Cursor: prefix values followed by the order key values of a row, sent to
//     clients as an opaque token. A cursor of a different shape matches
//     nothing instead of failing.
//   - Dialect: PostgreSQL, MySQL and SQLite renderings of the JSON and
//     LIMIT/OFFSET parts. Identifiers and values go through gorm clauses.
//
// ConnectionArgs parses Relay connection arguments, Definition describes a
// connection declaratively and DefinitionLoader caches validated definitions.
package connpager
