package connpager

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

const (
	cursorColumn    = "__cursor"
	positionColumn  = "__position"
	rowNumberColumn = "__row_number"
)

// cursorComparator turns cursors into boundary predicates and builds the
// expression computing the cursor of every row. Without orderings it falls
// back to the synthesized row number of the relation.
type cursorComparator struct {
	orderings Orderings
	rowNumber clause.Expression
	prefix    []any
}

func newCursorComparator(orderings Orderings, alias string, prefix []any) cursorComparator {
	return cursorComparator{
		orderings: orderings,
		rowNumber: ColumnExpr(alias, rowNumberColumn),
		prefix:    prefix,
	}
}

// compare returns a predicate selecting the rows strictly after (isAfter) or
// strictly before the cursor. A cursor that does not belong to this shape
// selects nothing.
//
// For orderings [(e1, d1), (e2, d2), ... (en, dn)] and cursor values
// [v1, v2, ... vn] the predicate is built inside out:
//
//	(e1 op1 v1) OR (e1 = v1 AND ((e2 op2 v2) OR (e2 = v2 AND ... (en opn vn))))
func (c cursorComparator) compare(cursor Cursor, isAfter bool) clause.Expression {
	if !c.prefixMatches(cursor) {
		return sqlFalse
	}
	tail := cursor[len(c.prefix)]

	if len(c.orderings) == 0 {
		rowNumber, ok := asRowNumber(tail)
		if !ok {
			return sqlFalse
		}

		return comparison(c.rowNumber, lo.Ternary(isAfter, OperatorGT, OperatorLT), rowNumber)
	}

	values, ok := tail.([]any)
	if !ok || len(values) != len(c.orderings) || !lo.EveryBy(values, isScalar) {
		return sqlFalse
	}

	last := len(c.orderings) - 1
	predicate := comparison(c.orderings[last].Expression, c.orderings[last].Direction.ForCursor(isAfter), values[last])
	for i := last - 1; i >= 0; i-- {
		ordering := c.orderings[i]
		predicate = clause.Expr{
			SQL: "(?) OR (? AND (?))",
			Vars: []any{
				comparison(ordering.Expression, ordering.Direction.ForCursor(isAfter), values[i]),
				comparison(ordering.Expression, operatorEq, values[i]),
				predicate,
			},
		}
	}

	return predicate
}

func (c cursorComparator) prefixMatches(cursor Cursor) bool {
	if len(cursor) != len(c.prefix)+1 {
		return false
	}

	for i, p := range c.prefix {
		if canonicalJSON(cursor[i]) != canonicalJSON(p) {
			return false
		}
	}

	return true
}

// selection returns the expression of the "__cursor" column:
//
//	[P1, ... Pk, [e1, ... en]]  - ordered relation
//	[P1, ... Pk, __row_number]  - unordered relation
func (c cursorComparator) selection(d Dialect) (clause.Expression, error) {
	items := make([]clause.Expression, 0, len(c.prefix)+1)
	for i, p := range c.prefix {
		item, err := literal(d, p)
		if err != nil {
			return nil, errors.Wrapf(err, "cursor prefix %d", i)
		}
		items = append(items, item)
	}

	if len(c.orderings) == 0 {
		return d.JSONArray(append(items, c.rowNumber)...), nil
	}

	return d.JSONArray(append(items, d.JSONArray(c.orderings.Expressions()...))...), nil
}

func comparison(expr clause.Expression, op Operator, value any) clause.Expression {
	return clause.Expr{SQL: "? " + string(op) + " ?", Vars: []any{expr, value}}
}
