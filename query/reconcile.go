package query

import (
	"fmt"

	"github.com/spf13/cast"
)

// ID normalizes a caller-supplied identifier to the string form used for store lookups.
func ID(raw any) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: identifier is required", ErrInvalidQuery)
	}
	id, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("%w: identifier: %v", ErrInvalidQuery, err)
	}
	return id, nil
}

// Reconcile merges an explicit identifier into p.
//
// When p does not constrain field, the equality {field = id} is appended. When it does,
// the existing clauses are kept and conjoined with the equality instead of being
// overwritten, so {id: X} with {id: {$ne: Y}} narrows rather than replaces. Mutually
// exclusive clauses legitimately match nothing.
func Reconcile(id, field string, p Predicate) Predicate {
	own, rest := p.Partition(field)
	eq := Literal{Field: field, Value: id}
	if len(own) == 0 {
		return append(rest, eq)
	}
	return append(rest, Conjunction{Branches: []Predicate{{eq}, own}})
}
