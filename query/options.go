package query

import (
	"fmt"
	"slices"
)

// Consistency controls how fresh a read must be relative to prior writes.
type Consistency string

const (
	ConsistencyNone   Consistency = "none"
	ConsistencyLocal  Consistency = "local"
	ConsistencyGlobal Consistency = "global"
)

// Strong reports whether reads must observe every acknowledged write.
func (c Consistency) Strong() bool {
	return c == ConsistencyLocal || c == ConsistencyGlobal
}

// Direction is the store-native sort token.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Order is a translated sort key.
type Order struct {
	Field     string
	Direction Direction
}

// StaticOptions are the per-adapter defaults merged into every call.
type StaticOptions struct {
	// Lean asks the store for plain data rather than bound model instances.
	Lean bool

	// Consistency is passed through to the store unchanged.
	Consistency Consistency
}

// DefaultStaticOptions returns lean reads without a consistency requirement.
func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		Lean:        true,
		Consistency: ConsistencyNone,
	}
}

// CallOptions is the options object handed to a store call.
type CallOptions struct {
	Lean        bool
	Consistency Consistency
	Select      []string
	Sort        []Order
	Limit       *int
	Skip        *int
	IgnoreCase  bool
}

// DefaultOptions assembles the options for single-record calls: static defaults plus
// the selection list.
func DefaultOptions(d Directives, static StaticOptions, idField string) CallOptions {
	return CallOptions{
		Lean:        static.Lean,
		Consistency: static.Consistency,
		Select:      selection(d.Select, idField),
	}
}

// FindOptions assembles the options for multi-record lookups. Sort directions other
// than 1 and -1 fail with ErrInvalidQuery.
func FindOptions(d Directives, static StaticOptions, idField string) (CallOptions, error) {
	opts := DefaultOptions(d, static, idField)

	if len(d.Sort) > 0 {
		opts.Sort = make([]Order, 0, len(d.Sort))
		for _, key := range d.Sort {
			dir, err := direction(key.Direction)
			if err != nil {
				return CallOptions{}, fmt.Errorf("%w: sort %s: %v", ErrInvalidQuery, key.Field, err)
			}
			opts.Sort = append(opts.Sort, Order{Field: key.Field, Direction: dir})
		}
	}
	if d.Limit != nil {
		limit := *d.Limit
		opts.Limit = &limit
	}
	if d.Skip != nil {
		skip := *d.Skip
		opts.Skip = &skip
	}
	opts.IgnoreCase = d.IgnoreCase

	return opts, nil
}

// selection copies fields and appends idField when it is missing.
func selection(fields []string, idField string) []string {
	if fields == nil {
		return nil
	}
	out := slices.Clone(fields)
	if !slices.Contains(out, idField) {
		out = append(out, idField)
	}
	return out
}

func direction(n int) (Direction, error) {
	switch n {
	case 1:
		return Ascending, nil
	case -1:
		return Descending, nil
	default:
		return "", fmt.Errorf("unknown direction %d", n)
	}
}
