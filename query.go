package connpager

import (
	"slices"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// Field is a selected expression of a connection node. Alias becomes the key
// of the node object.
type Field struct {
	Expression clause.Expression
	Alias      string
}

// Query describes the shape of one connection query: the relation, its
// filters, ordering, limit/offset and cursor bounds that were already
// applied. Compiler never modifies a Query, so one Query can be compiled for
// many requests.
type Query struct {
	from   clause.Expression
	alias  string
	fields []Field
	where  []clause.Expression
	sort   Orderings

	limit  *int
	offset int
	// flip means the limit counts from the end, "last N" instead of "first N".
	flip bool

	lowerBound []clause.Expression
	upperBound []clause.Expression
}

// NewQuery creates a Query over an arbitrary relation expression, e.g.
// TableExpr("users") or a parenthesized subquery.
func NewQuery(from clause.Expression, alias string) *Query {
	return &Query{
		from:  from,
		alias: alias,
	}
}

// NewTableQuery creates a Query over a table.
func NewTableQuery(table, alias string) *Query {
	return NewQuery(TableExpr(table), alias)
}

// WithFields appends selected fields.
func (q *Query) WithFields(fields ...Field) *Query {
	if q == nil {
		q = new(Query)
	}

	q.fields = append(q.fields, fields...)

	return q
}

// WithColumns appends columns of the relation as fields aliased by their names.
func (q *Query) WithColumns(columns ...string) *Query {
	if q == nil {
		q = new(Query)
	}

	return q.WithFields(lo.Map(columns, func(column string, _ int) Field {
		return Field{Expression: ColumnExpr(q.alias, column), Alias: column}
	})...)
}

// WithWhere appends filter conditions. Conditions are joined with AND.
func (q *Query) WithWhere(conditions ...clause.Expression) *Query {
	if q == nil {
		q = new(Query)
	}

	q.where = append(q.where, conditions...)

	return q
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (q *Query) WithSubstitutedSort(orderBy ...OrderBy) *Query {
	if q == nil {
		q = new(Query)
	}

	q.sort = nil

	return q.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones.
// Order is preserved as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (q *Query) WithSort(orderBy ...OrderBy) *Query {
	if q == nil {
		q = new(Query)
	}

	q.sort = append(q.sort, orderBy...)

	return q
}

// WithFirst limits the query to the first n rows.
func (q *Query) WithFirst(n int) *Query {
	if q == nil {
		q = new(Query)
	}

	q.limit = lo.ToPtr(n)
	q.flip = false

	return q
}

// WithLast limits the query to the last n rows.
func (q *Query) WithLast(n int) *Query {
	if q == nil {
		q = new(Query)
	}

	q.limit = lo.ToPtr(n)
	q.flip = true

	return q
}

// WithOffset skips n rows from the side the limit counts from.
func (q *Query) WithOffset(n int) *Query {
	if q == nil {
		q = new(Query)
	}

	q.offset = n

	return q
}

// WithLowerBound appends conditions restricting rows to those after a
// position. They count as an explicit "after" bound of the query.
func (q *Query) WithLowerBound(conditions ...clause.Expression) *Query {
	if q == nil {
		q = new(Query)
	}

	q.lowerBound = append(q.lowerBound, conditions...)

	return q
}

// WithUpperBound is the "before" counterpart of WithLowerBound.
func (q *Query) WithUpperBound(conditions ...clause.Expression) *Query {
	if q == nil {
		q = new(Query)
	}

	q.upperBound = append(q.upperBound, conditions...)

	return q
}

func (q *Query) GetAlias() string {
	if q == nil {
		return ""
	}

	return q.alias
}

func (q *Query) GetFields() []Field {
	if q == nil {
		return nil
	}

	return q.fields
}

// GetSort returns orderings that will be applied to the dataset.
func (q *Query) GetSort() Orderings {
	if q == nil {
		return nil
	}

	return q.sort
}

// GetLimit returns the limit, nil when the query is unlimited.
func (q *Query) GetLimit() *int {
	if q == nil {
		return nil
	}

	return q.limit
}

func (q *Query) GetOffset() int {
	if q == nil {
		return 0
	}

	return q.offset
}

// IsFlipped reports whether the limit counts from the end of the dataset.
func (q *Query) IsFlipped() bool {
	if q == nil {
		return false
	}

	return q.flip
}

func (q *Query) clone() *Query {
	ret := *q
	ret.fields = slices.Clone(q.fields)
	ret.where = slices.Clone(q.where)
	ret.sort = slices.Clone(q.sort)
	ret.lowerBound = slices.Clone(q.lowerBound)
	ret.upperBound = slices.Clone(q.upperBound)
	if q.limit != nil {
		ret.limit = lo.ToPtr(*q.limit)
	}

	return &ret
}
