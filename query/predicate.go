package query

// Op is a comparison operator key as it appears inside an operator object.
type Op string

// Standard operators, always accepted.
const (
	OpNe  Op = "$ne"
	OpIn  Op = "$in"
	OpNin Op = "$nin"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
)

// Extended operators, accepted only when whitelisted.
const (
	OpEq           Op = "$eq"
	OpNeq          Op = "$neq"
	OpLike         Op = "$like"
	OpNotLike      Op = "$notLike"
	OpBetween      Op = "$btw"
	OpNotBetween   Op = "$notBtw"
	OpIsNull       Op = "$isNull"
	OpIsNotNull    Op = "$isNotNull"
	OpIsMissing    Op = "$isMissing"
	OpIsNotMissing Op = "$isNotMissing"
	OpIsValued     Op = "$isValued"
	OpIsNotValued  Op = "$isNotValued"
)

// Reserved keys that are not operators on a field.
const (
	KeyAnd        = "$and"
	KeyOr         = "$or"
	KeySelect     = "$select"
	KeySort       = "$sort"
	KeyLimit      = "$limit"
	KeySkip       = "$skip"
	KeyIgnoreCase = "$ignoreCase"
)

var standardOps = map[Op]bool{
	OpNe: true, OpIn: true, OpNin: true,
	OpLt: true, OpLte: true, OpGt: true, OpGte: true,
}

var extendedOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpLike: true, OpNotLike: true,
	OpBetween: true, OpNotBetween: true,
	OpIsNull: true, OpIsNotNull: true,
	OpIsMissing: true, OpIsNotMissing: true,
	OpIsValued: true, OpIsNotValued: true,
}

// presenceInverse pairs each presence check with its opposite.
var presenceInverse = map[Op]Op{
	OpIsNull:       OpIsNotNull,
	OpIsNotNull:    OpIsNull,
	OpIsMissing:    OpIsNotMissing,
	OpIsNotMissing: OpIsMissing,
	OpIsValued:     OpIsNotValued,
	OpIsNotValued:  OpIsValued,
}

// Node is a single clause of a Predicate.
//
// This is a sealed interface; the variants are Literal, Operator, Membership,
// Negation, Conjunction and Disjunction.
type Node interface {
	predicateNode()
}

// Literal matches records whose field equals Value.
type Literal struct {
	Field string
	Value any
}

func (Literal) predicateNode() {}

// Operator applies a comparison operator to a field.
// IgnoreCase requests case-insensitive string comparison for this clause only.
type Operator struct {
	Field      string
	Op         Op
	Value      any
	IgnoreCase bool
}

func (Operator) predicateNode() {}

// Membership is the native membership test: the value of Field must be one of Values.
type Membership struct {
	Field  string
	Values []any
}

func (Membership) predicateNode() {}

// Negation inverts the wrapped node.
type Negation struct {
	Node Node
}

func (Negation) predicateNode() {}

// Conjunction matches when every branch matches ($and).
type Conjunction struct {
	Branches []Predicate
}

func (Conjunction) predicateNode() {}

// Disjunction matches when at least one branch matches ($or).
type Disjunction struct {
	Branches []Predicate
}

func (Disjunction) predicateNode() {}

// Predicate is an ordered conjunction of nodes. An empty predicate matches every record.
type Predicate []Node

// Empty reports whether the predicate carries no constraint.
func (p Predicate) Empty() bool {
	return len(p) == 0
}

// Constrains reports whether a top-level clause targets field.
func (p Predicate) Constrains(field string) bool {
	for _, n := range p {
		if FieldOf(n) == field {
			return true
		}
	}
	return false
}

// Partition splits the predicate into the top-level clauses that target field and the rest.
// Both results are fresh slices.
func (p Predicate) Partition(field string) (own, rest Predicate) {
	for _, n := range p {
		if FieldOf(n) == field {
			own = append(own, n)
		} else {
			rest = append(rest, n)
		}
	}
	return own, rest
}

// FieldOf returns the field a node constrains, or "" for combinators.
func FieldOf(n Node) string {
	switch node := n.(type) {
	case Literal:
		return node.Field
	case Operator:
		return node.Field
	case Membership:
		return node.Field
	case Negation:
		return FieldOf(node.Node)
	default:
		return ""
	}
}
