package connpager

// Operator defines a comparison operator used in cursor boundary predicates.
type Operator string

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq is the equality operator. It is private because we use it
	// ONLY for tie-breaking while building boundary predicates.
	operatorEq Operator = "="
)

// Inverse swaps strict comparisons. Equality is its own inverse.
func (o Operator) Inverse() Operator {
	switch o {
	case OperatorGT:
		return OperatorLT
	case OperatorLT:
		return OperatorGT
	default:
		return o
	}
}
