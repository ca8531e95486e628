package query

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// SortKey is one entry of a $sort directive. Direction is 1 (ascending) or -1 (descending);
// other values are rejected when the call options are assembled.
type SortKey struct {
	Field     string
	Direction int
}

// Paginate configures default pagination. It is enabled when Default or Max is positive.
type Paginate struct {
	Default int `json:"default,omitempty"`
	Max     int `json:"max,omitempty"`
}

// Enabled reports whether pagination is requested.
func (p Paginate) Enabled() bool {
	return p.Default > 0 || p.Max > 0
}

// Directives holds the result-shaping keys pulled out of a query object.
type Directives struct {
	Select     []string
	Sort       []SortKey
	Limit      *int
	Skip       *int
	IgnoreCase bool
}

// NormalizeOptions carries the adapter-level settings that influence normalization.
type NormalizeOptions struct {
	// Whitelist enables extended operators (e.g. "$like", "$btw", "$ignoreCase").
	Whitelist []string

	// Paginate resolves $limit against a default and a maximum.
	Paginate Paginate
}

// Normalized is a query object split into its predicate and directives.
type Normalized struct {
	Predicate  Predicate
	Directives Directives

	// Paginate reports whether the caller expects a paginated envelope.
	Paginate bool
}

// Normalize splits raw into a predicate and its directives.
// A nil or empty raw query yields an empty predicate.
func Normalize(raw map[string]any, opts NormalizeOptions) (Normalized, error) {
	n := Normalized{Paginate: opts.Paginate.Enabled()}
	clauses := make(map[string]any, len(raw))

	for _, key := range sortedKeys(raw) {
		val := raw[key]
		switch key {
		case KeySelect, KeySort, KeyLimit, KeySkip, KeyIgnoreCase:
			if val == nil {
				continue
			}
			if err := n.Directives.set(key, val); err != nil {
				return Normalized{}, err
			}
		default:
			clauses[key] = val
		}
	}

	pred, err := parsePredicate(clauses, allowedOps(opts.Whitelist))
	if err != nil {
		return Normalized{}, err
	}
	n.Predicate = pred
	n.Directives.Limit = resolveLimit(n.Directives.Limit, opts.Paginate)

	return n, nil
}

func (d *Directives) set(key string, val any) error {
	switch key {
	case KeySelect:
		fields, err := cast.ToStringSliceE(val)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
		}
		d.Select = fields
	case KeySort:
		sort, err := parseSort(val)
		if err != nil {
			return err
		}
		d.Sort = sort
	case KeyLimit:
		limit, err := nonNegative(key, val)
		if err != nil {
			return err
		}
		d.Limit = &limit
	case KeySkip:
		skip, err := nonNegative(key, val)
		if err != nil {
			return err
		}
		d.Skip = &skip
	case KeyIgnoreCase:
		b, err := cast.ToBoolE(val)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
		}
		d.IgnoreCase = b
	}
	return nil
}

func nonNegative(key string, val any) (int, error) {
	n, err := integer(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidQuery, key)
	}
	return n, nil
}

// integer coerces val to an int. Fractional numbers are rejected rather than truncated.
func integer(val any) (int, error) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return cast.ToIntE(val)
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", val)
	}
	return int(f), nil
}

func parseSort(val any) ([]SortKey, error) {
	if keys, ok := val.([]SortKey); ok {
		return slices.Clone(keys), nil
	}
	m, ok := asStringMap(val)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidQuery, KeySort)
	}
	sort := make([]SortKey, 0, len(m))
	for _, field := range sortedKeys(m) {
		dir, err := integer(m[field])
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidQuery, KeySort, field, err)
		}
		sort = append(sort, SortKey{Field: field, Direction: dir})
	}
	return sort, nil
}

// resolveLimit applies pagination defaults: an absent limit takes Default (or Max when
// no default is configured) and the result is capped at Max.
func resolveLimit(limit *int, p Paginate) *int {
	if !p.Enabled() {
		return limit
	}
	n := p.Default
	if n == 0 {
		n = p.Max
	}
	if limit != nil {
		n = *limit
	}
	if p.Max > 0 && n > p.Max {
		n = p.Max
	}
	return &n
}

func allowedOps(whitelist []string) map[Op]bool {
	allowed := make(map[Op]bool, len(standardOps)+len(whitelist))
	for op := range standardOps {
		allowed[op] = true
	}
	for _, w := range whitelist {
		allowed[Op(w)] = true
	}
	return allowed
}

func parsePredicate(m map[string]any, allowed map[Op]bool) (Predicate, error) {
	p := Predicate{}
	for _, key := range sortedKeys(m) {
		val := m[key]
		switch {
		case key == KeyAnd || key == KeyOr:
			branches, err := parseBranches(key, val, allowed)
			if err != nil {
				return nil, err
			}
			if key == KeyAnd {
				p = append(p, Conjunction{Branches: branches})
			} else {
				p = append(p, Disjunction{Branches: branches})
			}
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: invalid query parameter %s", ErrInvalidQuery, key)
		default:
			nodes, err := parseField(key, val, allowed)
			if err != nil {
				return nil, err
			}
			p = append(p, nodes...)
		}
	}
	return p, nil
}

func parseBranches(key string, val any, allowed map[Op]bool) ([]Predicate, error) {
	list, ok := toSlice(val)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidQuery, key)
	}
	branches := make([]Predicate, 0, len(list))
	for _, item := range list {
		m, ok := asStringMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: element of %s must be an object", ErrInvalidQuery, key)
		}
		branch, err := parsePredicate(m, allowed)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	return branches, nil
}

func parseField(field string, val any, allowed map[Op]bool) ([]Node, error) {
	obj, ok := asStringMap(val)
	if !ok || !hasOperatorKey(obj) {
		return []Node{Literal{Field: field, Value: val}}, nil
	}

	var ignoreCase bool
	if v, ok := obj[KeyIgnoreCase]; ok {
		if !allowed[Op(KeyIgnoreCase)] {
			return nil, fmt.Errorf("%w: invalid query parameter %s", ErrInvalidQuery, KeyIgnoreCase)
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidQuery, field, KeyIgnoreCase, err)
		}
		ignoreCase = b
	}

	var nodes []Node
	for _, key := range sortedKeys(obj) {
		if key == KeyIgnoreCase {
			continue
		}
		op := Op(key)
		switch {
		case !strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: %s mixes operators and fields", ErrInvalidQuery, field)
		case !standardOps[op] && !extendedOps[op]:
			return nil, fmt.Errorf("%w: unsupported operator %s", ErrInvalidQuery, key)
		case !allowed[op]:
			return nil, fmt.Errorf("%w: invalid query parameter %s", ErrInvalidQuery, key)
		}
		node, err := operatorNode(field, op, obj[key], ignoreCase)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s has no operator", ErrInvalidQuery, field)
	}
	return nodes, nil
}

func operatorNode(field string, op Op, val any, ignoreCase bool) (Node, error) {
	switch op {
	case OpIn, OpNin:
		list, ok := toSlice(val)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s expects a list", ErrInvalidQuery, field, op)
		}
		val = list
	case OpBetween, OpNotBetween:
		list, ok := toSlice(val)
		if !ok || len(list) != 2 {
			return nil, fmt.Errorf("%w: %s.%s expects [low, high]", ErrInvalidQuery, field, op)
		}
		val = list
	case OpIsNull, OpIsNotNull, OpIsMissing, OpIsNotMissing, OpIsValued, OpIsNotValued:
		b, err := cast.ToBoolE(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidQuery, field, op, err)
		}
		if !b {
			op = presenceInverse[op]
		}
		val = true
	}
	return Operator{Field: field, Op: op, Value: val, IgnoreCase: ignoreCase}, nil
}

func hasOperatorKey(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// asStringMap accepts map[string]any and any other map type keyed by strings.
func asStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// toSlice converts any slice or array into []any.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	s := make([]any, rv.Len())
	for i := range s {
		s[i] = rv.Index(i).Interface()
	}
	return s, true
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
