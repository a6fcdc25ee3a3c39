package connpager

import (
	"strconv"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// pageCheck is the way hasNextPage/hasPreviousPage is computed.
type pageCheck int

const (
	// pageCheckNone - there is no limit or bound on that side, nothing can be left.
	pageCheckNone pageCheck = iota
	// pageCheckBoundary - look for rows on the far side of the explicit bound.
	pageCheckBoundary
	// pageCheckExclusion - look for rows whose cursor is not in the fetched page.
	pageCheckExclusion
	// pageCheckSkip - skip as many rows as were fetched and look for more.
	pageCheckSkip
	// pageCheckAssumed - offset into a "last N" page, a previous page is assumed.
	pageCheckAssumed
)

func (p pageCheck) String() string {
	switch p {
	case pageCheckNone:
		return "none"
	case pageCheckBoundary:
		return "boundary"
	case pageCheckExclusion:
		return "exclusion"
	case pageCheckSkip:
		return "skip"
	case pageCheckAssumed:
		return "assumed"
	default:
		return "pageCheck(" + strconv.Itoa(int(p)) + ")"
	}
}

// choosePageCheck picks the cheapest sufficient check for one side of the
// page. For hasNextPage hasBound/hasLimit refer to "before"/"first", for
// hasPreviousPage (inverted) to "after"/"last".
//
// An offset into an inverted page makes the exact answer require a second
// correlated count, so a previous page is assumed instead.
func choosePageCheck(hasBound, hasLimit, canTieBreak bool, offset int, inverted bool) pageCheck {
	exact := !inverted || offset == 0

	switch {
	case !hasBound && !hasLimit && exact:
		return pageCheckNone
	case hasBound && exact:
		return pageCheckBoundary
	case canTieBreak && exact:
		return pageCheckExclusion
	case !inverted:
		return pageCheckSkip
	case offset > 0:
		return pageCheckAssumed
	default:
		return pageCheckNone
	}
}

// pageCheckSQL renders the chosen check as a boolean SQL expression. It is
// evaluated next to the page CTE and may reference it.
func (b *connectionBuilder) pageCheckSQL(check pageCheck, inverted bool) clause.Expression {
	side := lo.Ternary(inverted, b.query.upperBound, b.query.lowerBound)
	bound := lo.Ternary(inverted, b.query.lowerBound, b.query.upperBound)
	conditions := append(append([]clause.Expression{}, b.query.where...), side...)

	switch check {
	case pageCheckBoundary:
		conditions = append(conditions, clause.Expr{SQL: "NOT (?)", Vars: []any{and(bound...)}})

		return clause.Expr{SQL: "EXISTS(?)", Vars: []any{b.selectOne(conditions)}}
	case pageCheckExclusion:
		conditions = append(conditions, clause.Expr{
			SQL: "? NOT IN (SELECT ? FROM ?)",
			Vars: []any{
				b.dialect.Text(b.cursorSelection),
				b.dialect.Text(ColumnExpr(pageTable, cursorColumn)),
				TableExpr(pageTable),
			},
		})

		return clause.Expr{SQL: "EXISTS(?)", Vars: []any{withSuffix(b.selectOne(conditions), b.dialect.LimitOffset(nil, b.query.offset))}}
	case pageCheckSkip:
		skip := clause.Expr{
			SQL:  "((SELECT COUNT(*) FROM ?) + " + strconv.Itoa(b.query.offset) + ")",
			Vars: []any{TableExpr(pageTable)},
		}

		return b.dialect.SkipExists(b.selectOne(conditions), skip)
	case pageCheckAssumed:
		return sqlTrue
	default:
		return sqlFalse
	}
}

func (b *connectionBuilder) selectOne(conditions []clause.Expression) clause.Expression {
	return clause.Expr{
		SQL:  "SELECT 1 FROM ? AS ? WHERE ?",
		Vars: []any{b.from, clause.Table{Name: b.query.alias}, and(conditions...)},
	}
}
