package connpager

import (
	"fmt"
	"math"
	"strings"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

// Reverse returns the opposite direction.
func (o Direction) Reverse() Direction {
	return lo.Ternary(o == DirectionASC, DirectionDESC, DirectionASC)
}

func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGT
	case DirectionDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

// ForCursor returns the strict comparison that selects rows lying after
// (isAfter) or before the cursor value in this direction:
//
//	ASC  + after  -> >
//	ASC  + before -> <
//	DESC + after  -> <
//	DESC + before -> >
func (o Direction) ForCursor(isAfter bool) Operator {
	op := o.ForOperator()
	if !isAfter {
		return op.Inverse()
	}

	return op
}

type (
	Orderings []OrderBy

	// OrderBy is a single sort key. Expression is any SQL expression of the
	// current row, usually a column produced by ColumnExpr.
	OrderBy struct {
		Expression clause.Expression
		Direction  Direction
	}

	ColumnAlias = string

	// ColumnMapping maps external column aliases to column names of the
	// queried relation. Key is an external alias, value is an internal column name.
	ColumnMapping = map[ColumnAlias]string
)

// OrderByColumn orders by a table-qualified column.
func OrderByColumn(table, column string, direction Direction) OrderBy {
	return OrderBy{
		Expression: ColumnExpr(table, column),
		Direction:  direction,
	}
}

func (o OrderBy) validate() error {
	if o.Expression == nil {
		return errors.New("ordering has no expression")
	}

	if !o.Direction.Valid() {
		return errors.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	return nil
}

// Reverse returns the orderings with every direction flipped.
func (o Orderings) Reverse() Orderings {
	return lo.Map(o, func(ordering OrderBy, _ int) OrderBy {
		return OrderBy{Expression: ordering.Expression, Direction: ordering.Direction.Reverse()}
	})
}

// Expressions returns the sort key expressions in precedence order.
func (o Orderings) Expressions() []clause.Expression {
	return lo.Map(o, func(ordering OrderBy, _ int) clause.Expression {
		return ordering.Expression
	})
}

// ToExpression converts Orderings to an ORDER BY list expression:
//
//	"<expr_1> <direction_1>, <expr_2> <direction_2>"
func (o Orderings) ToExpression() clause.Expression {
	return join(", ", lo.Map(o, func(ordering OrderBy, _ int) clause.Expression {
		return clause.Expr{
			SQL:  "? " + string(ordering.Direction),
			Vars: []any{ordering.Expression},
		}
	}))
}

// validate checks every entry. An empty list is valid and means the row
// number fallback ordering.
func (o Orderings) validate() error {
	for i, ordering := range o {
		if err := ordering.validate(); err != nil {
			return errors.Wrapf(err, "order entry %d", i)
		}
	}

	return nil
}

var _identifierSymbols = append([]rune("_"), lo.AlphanumericCharset...)

// validIdentifier guards names that end up in SQL literals or quoted
// identifiers against anything besides [A-Za-z0-9_].
func validIdentifier(name string) bool {
	return name != "" && lo.Every(_identifierSymbols, []rune(name))
}

// ParseSort builds Orderings from a list of strings in the format
// "column asc|desc". Column aliases are resolved via ColumnMapping and
// qualified with the relation alias. Returns an error if an alias is not
// found in the mapping.
func ParseSort(stringsOrderings []string, alias string, columnMapping ColumnMapping) (Orderings, error) {
	ret := make(Orderings, 0, len(stringsOrderings))
	aliases := lo.Keys(columnMapping)

	for _, stringOrdering := range stringsOrderings {
		cutStringOrdering := strings.Fields(stringOrdering)
		if len(cutStringOrdering) != 2 {
			return nil, errors.Errorf("invalid ordering string format '%s'", stringOrdering)
		}

		columnAlias := cutStringOrdering[0]
		direction := Direction(strings.ToUpper(cutStringOrdering[1]))
		if !direction.Valid() {
			return nil, errors.Errorf("invalid ordering direction '%s'", cutStringOrdering[1])
		}

		columnName := columnMapping[columnAlias]
		if columnName == "" {
			return nil, errors.Errorf("invalid column alias '%s'. closest: '%s'", columnAlias, closestAlias(columnAlias, aliases))
		}

		ret = append(ret, OrderByColumn(alias, columnName, direction))
	}

	return ret, nil
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein.Distance(dataSetAlias, input)
		if dist < minDist || (dist == minDist && dataSetAlias < closest) {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}
