package query

// MapOperators rewrites generic operators into their native forms:
//
//	Operator{$ne}  → Operator{$neq}
//	Operator{$in}  → Membership{Field, Values}
//	Operator{$nin} → Negation{Membership{Field, Values}}
//
// Every other node passes through unchanged. Conjunction and disjunction branches are
// mapped recursively. The input predicate is not modified.
func MapOperators(p Predicate) Predicate {
	if p == nil {
		return nil
	}
	out := make(Predicate, len(p))
	for i, n := range p {
		out[i] = mapNode(n)
	}
	return out
}

func mapNode(n Node) Node {
	switch node := n.(type) {
	case Operator:
		switch node.Op {
		case OpNe:
			node.Op = OpNeq
			return node
		case OpIn:
			return Membership{Field: node.Field, Values: values(node.Value)}
		case OpNin:
			return Negation{Node: Membership{Field: node.Field, Values: values(node.Value)}}
		}
		return node
	case Conjunction:
		return Conjunction{Branches: mapBranches(node.Branches)}
	case Disjunction:
		return Disjunction{Branches: mapBranches(node.Branches)}
	case Negation:
		return Negation{Node: mapNode(node.Node)}
	default:
		return n
	}
}

func mapBranches(branches []Predicate) []Predicate {
	out := make([]Predicate, len(branches))
	for i, b := range branches {
		out[i] = MapOperators(b)
	}
	return out
}

func values(v any) []any {
	list, ok := toSlice(v)
	if !ok {
		return []any{v}
	}
	return append([]any(nil), list...)
}
