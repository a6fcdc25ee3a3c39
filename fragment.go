package connpager

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Every fragment produced by this package is a clause.Expression. Values are
// carried as clause.Expr vars and bound by the dialector, identifiers are
// carried as clause.Column/clause.Table and quoted by the dialector. Plain SQL
// text written by the package never contains user input.

var (
	sqlTrue  clause.Expression = clause.Expr{SQL: "TRUE"}
	sqlFalse clause.Expression = clause.Expr{SQL: "FALSE"}
	sqlNull  clause.Expression = clause.Expr{SQL: "NULL"}
)

// TableExpr returns the quoted table name as an expression usable as Query source.
func TableExpr(name string) clause.Expression {
	return clause.Expr{SQL: "?", Vars: []any{clause.Table{Name: name}}}
}

// ColumnExpr returns the quoted, optionally table-qualified column as an expression.
func ColumnExpr(table, name string) clause.Expression {
	return clause.Expr{SQL: "?", Vars: []any{clause.Column{Table: table, Name: name}}}
}

// Raw wraps trusted SQL text and its bound values into an expression.
//
// IMPORTANT: the text itself is not escaped, only the values are.
func Raw(sql string, vars ...any) clause.Expression {
	return clause.Expr{SQL: sql, Vars: vars}
}

// join concatenates expressions with the separator.
func join(sep string, exprs []clause.Expression) clause.Expression {
	if len(exprs) == 0 {
		return clause.Expr{}
	}

	return clause.Expr{
		SQL: strings.Join(lo.Times(len(exprs), func(int) string { return "?" }), sep),
		Vars: lo.Map(exprs, func(e clause.Expression, _ int) any {
			return e
		}),
	}
}

// and joins conditions as "(A) AND (B) ...". No conditions means TRUE.
func and(conditions ...clause.Expression) clause.Expression {
	if len(conditions) == 0 {
		return sqlTrue
	}

	return join(" AND ", lo.Map(conditions, func(c clause.Expression, _ int) clause.Expression {
		return clause.Expr{SQL: "(?)", Vars: []any{c}}
	}))
}

// Render builds the expression against the dialector of db and returns the SQL
// text with dialect placeholders and the bound values.
func Render(db *gorm.DB, expr clause.Expression) (string, []any) {
	stmt := &gorm.Statement{
		DB:      db,
		Context: context.Background(),
		Clauses: map[string]clause.Clause{},
	}
	expr.Build(stmt)

	return stmt.SQL.String(), stmt.Vars
}

// columnOf returns the column name of an expression built by ColumnExpr.
func columnOf(expr clause.Expression) (string, bool) {
	e, ok := expr.(clause.Expr)
	if !ok || e.SQL != "?" || len(e.Vars) != 1 {
		return "", false
	}

	column, ok := e.Vars[0].(clause.Column)

	return column.Name, ok
}

// withSuffix appends "<space><suffix>" when suffix is not nil.
func withSuffix(expr, suffix clause.Expression) clause.Expression {
	if suffix == nil {
		return expr
	}

	return clause.Expr{SQL: "? ?", Vars: []any{expr, suffix}}
}
