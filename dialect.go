package connpager

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// ErrUnsupportedDialect is returned for gorm dialectors without a Dialect.
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// JSONField is a key/value pair of a JSON object built in SQL.
type JSONField struct {
	Key   string
	Value clause.Expression
}

// Dialect renders the engine specific parts of a connection query. Everything
// else (boundary predicates, EXISTS checks, CTE layout) is shared.
type Dialect interface {
	// Name matches gorm.Dialector.Name() of the engine.
	Name() string
	// StringLiteral renders s as an escaped SQL string literal.
	StringLiteral(s string) clause.Expression
	// JSONArray builds a JSON array of the items.
	JSONArray(items ...clause.Expression) clause.Expression
	// JSONObject builds a JSON object of the fields.
	JSONObject(fields ...JSONField) clause.Expression
	// JSONValue marks a JSON document read back from a CTE column as JSON.
	JSONValue(value clause.Expression) clause.Expression
	// JSONBool converts an SQL condition into a JSON boolean.
	JSONBool(condition clause.Expression) clause.Expression
	// AggregateRows aggregates object over every row of source ordered by
	// position into a JSON array, empty array when there are no rows.
	AggregateRows(object, position, source clause.Expression) clause.Expression
	// Text casts value to text.
	Text(value clause.Expression) clause.Expression
	// LimitOffset renders LIMIT/OFFSET. A nil limit means no limit. Returns
	// nil when there is nothing to render.
	LimitOffset(limit *int, offset int) clause.Expression
	// SkipExists reports whether the query yields more than skip rows.
	SkipExists(query, skip clause.Expression) clause.Expression
}

var _dialects = map[string]Dialect{
	postgresDialect{}.Name(): postgresDialect{},
	mysqlDialect{}.Name():    mysqlDialect{},
	sqliteDialect{}.Name():   sqliteDialect{},
}

// DialectFor returns the Dialect registered for a gorm dialector name.
func DialectFor(name string) (Dialect, error) {
	d, ok := _dialects[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedDialect, "'%s'", name)
	}

	return d, nil
}

// Dialects lists the names of the supported dialects.
func Dialects() []string {
	names := lo.Keys(_dialects)
	slices.Sort(names)

	return names
}

// literal renders a cursor prefix value as SQL literal text. Variadic JSON
// builders cannot infer types of bound parameters, so prefix values are
// inlined instead of bound.
func literal(d Dialect, v any) (clause.Expression, error) {
	switch vt := v.(type) {
	case nil:
		return sqlNull, nil
	case string:
		return d.StringLiteral(vt), nil
	case int:
		return clause.Expr{SQL: strconv.FormatInt(int64(vt), 10)}, nil
	case int8:
		return clause.Expr{SQL: strconv.FormatInt(int64(vt), 10)}, nil
	case int16:
		return clause.Expr{SQL: strconv.FormatInt(int64(vt), 10)}, nil
	case int32:
		return clause.Expr{SQL: strconv.FormatInt(int64(vt), 10)}, nil
	case int64:
		return clause.Expr{SQL: strconv.FormatInt(vt, 10)}, nil
	case uint:
		return clause.Expr{SQL: strconv.FormatUint(uint64(vt), 10)}, nil
	case uint8:
		return clause.Expr{SQL: strconv.FormatUint(uint64(vt), 10)}, nil
	case uint16:
		return clause.Expr{SQL: strconv.FormatUint(uint64(vt), 10)}, nil
	case uint32:
		return clause.Expr{SQL: strconv.FormatUint(uint64(vt), 10)}, nil
	case uint64:
		return clause.Expr{SQL: strconv.FormatUint(vt, 10)}, nil
	case float32:
		return floatLiteral(float64(vt))
	case float64:
		return floatLiteral(vt)
	default:
		return nil, errors.Errorf("unsupported cursor prefix value of type %T", v)
	}
}

func floatLiteral(f float64) (clause.Expression, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Errorf("unsupported cursor prefix value %v", f)
	}

	return clause.Expr{SQL: strconv.FormatFloat(f, 'g', -1, 64)}, nil
}

func quoteString(s string, escapeBackslash bool) string {
	if escapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}

	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// call renders "name(item_1, item_2, ...)".
func call(name string, items ...clause.Expression) clause.Expression {
	return clause.Expr{SQL: name + "(?)", Vars: []any{join(", ", items)}}
}

func jsonFieldItems(d Dialect, fields []JSONField) []clause.Expression {
	items := make([]clause.Expression, 0, 2*len(fields))
	for _, field := range fields {
		items = append(items, d.StringLiteral(field.Key), field.Value)
	}

	return items
}

func limitOffset(limit *int, offset int, noLimit string) clause.Expression {
	var parts []string
	switch {
	case limit != nil:
		parts = append(parts, "LIMIT "+strconv.Itoa(*limit))
	case offset > 0 && noLimit != "":
		parts = append(parts, "LIMIT "+noLimit)
	}

	if offset > 0 {
		parts = append(parts, "OFFSET "+strconv.Itoa(offset))
	}

	if len(parts) == 0 {
		return nil
	}

	return clause.Expr{SQL: strings.Join(parts, " ")}
}

// postgresDialect renders for PostgreSQL (gorm.io/driver/postgres).
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

// StringLiteral assumes standard_conforming_strings=on, the default since 9.1.
func (postgresDialect) StringLiteral(s string) clause.Expression {
	return clause.Expr{SQL: quoteString(s, false)}
}

func (postgresDialect) JSONArray(items ...clause.Expression) clause.Expression {
	return call("json_build_array", items...)
}

func (d postgresDialect) JSONObject(fields ...JSONField) clause.Expression {
	return call("json_build_object", jsonFieldItems(d, fields)...)
}

func (postgresDialect) JSONValue(value clause.Expression) clause.Expression {
	return value
}

func (postgresDialect) JSONBool(condition clause.Expression) clause.Expression {
	return condition
}

func (postgresDialect) AggregateRows(object, position, source clause.Expression) clause.Expression {
	return clause.Expr{
		SQL:  "coalesce((SELECT json_agg(? ORDER BY ?) FROM ?), '[]'::json)",
		Vars: []any{object, position, source},
	}
}

func (postgresDialect) Text(value clause.Expression) clause.Expression {
	return clause.Expr{SQL: "(?)::text", Vars: []any{value}}
}

func (postgresDialect) LimitOffset(limit *int, offset int) clause.Expression {
	return limitOffset(limit, offset, "")
}

func (postgresDialect) SkipExists(query, skip clause.Expression) clause.Expression {
	return clause.Expr{SQL: "EXISTS(? OFFSET ?)", Vars: []any{query, skip}}
}

// mysqlDialect renders for MySQL 8 (gorm.io/driver/mysql).
type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

// StringLiteral assumes backslash escapes are enabled, i.e. sql_mode without
// NO_BACKSLASH_ESCAPES, the server default.
func (mysqlDialect) StringLiteral(s string) clause.Expression {
	return clause.Expr{SQL: quoteString(s, true)}
}

func (mysqlDialect) JSONArray(items ...clause.Expression) clause.Expression {
	return call("JSON_ARRAY", items...)
}

func (d mysqlDialect) JSONObject(fields ...JSONField) clause.Expression {
	return call("JSON_OBJECT", jsonFieldItems(d, fields)...)
}

func (mysqlDialect) JSONValue(value clause.Expression) clause.Expression {
	return value
}

// JSONBool works around MySQL conditions being integers.
func (mysqlDialect) JSONBool(condition clause.Expression) clause.Expression {
	return clause.Expr{SQL: "JSON_EXTRACT(IF(?, 'true', 'false'), '$')", Vars: []any{condition}}
}

// AggregateRows uses the window form of JSON_ARRAYAGG, the only form honouring an order.
func (mysqlDialect) AggregateRows(object, position, source clause.Expression) clause.Expression {
	return clause.Expr{
		SQL: "COALESCE((SELECT JSON_ARRAYAGG(?) OVER (ORDER BY ? ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) " +
			"FROM ? LIMIT 1), JSON_ARRAY())",
		Vars: []any{object, position, source},
	}
}

func (mysqlDialect) Text(value clause.Expression) clause.Expression {
	return clause.Expr{SQL: "CAST(? AS CHAR)", Vars: []any{value}}
}

func (mysqlDialect) LimitOffset(limit *int, offset int) clause.Expression {
	return limitOffset(limit, offset, "18446744073709551615")
}

// SkipExists counts instead of offsetting, MySQL accepts only constants in OFFSET.
func (mysqlDialect) SkipExists(query, skip clause.Expression) clause.Expression {
	return clause.Expr{SQL: "((SELECT COUNT(*) FROM (?) AS __skipped) > ?)", Vars: []any{query, skip}}
}

// sqliteDialect renders for SQLite 3.44+ (gorm.io/driver/sqlite).
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) StringLiteral(s string) clause.Expression {
	return clause.Expr{SQL: quoteString(s, false)}
}

func (sqliteDialect) JSONArray(items ...clause.Expression) clause.Expression {
	return call("json_array", items...)
}

func (d sqliteDialect) JSONObject(fields ...JSONField) clause.Expression {
	return call("json_object", jsonFieldItems(d, fields)...)
}

// JSONValue re-tags text as JSON, SQLite drops the JSON subtype at CTE and
// subquery boundaries.
func (sqliteDialect) JSONValue(value clause.Expression) clause.Expression {
	return clause.Expr{SQL: "json(?)", Vars: []any{value}}
}

func (sqliteDialect) JSONBool(condition clause.Expression) clause.Expression {
	return clause.Expr{SQL: "json(CASE WHEN ? THEN 'true' ELSE 'false' END)", Vars: []any{condition}}
}

func (sqliteDialect) AggregateRows(object, position, source clause.Expression) clause.Expression {
	return clause.Expr{
		SQL:  "COALESCE((SELECT json_group_array(? ORDER BY ?) FROM ?), json_array())",
		Vars: []any{object, position, source},
	}
}

func (sqliteDialect) Text(value clause.Expression) clause.Expression {
	return clause.Expr{SQL: "CAST(? AS TEXT)", Vars: []any{value}}
}

func (sqliteDialect) LimitOffset(limit *int, offset int) clause.Expression {
	return limitOffset(limit, offset, "-1")
}

func (sqliteDialect) SkipExists(query, skip clause.Expression) clause.Expression {
	return clause.Expr{SQL: "EXISTS(? LIMIT -1 OFFSET ?)", Vars: []any{query, skip}}
}
