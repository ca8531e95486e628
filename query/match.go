package query

import (
	"cmp"
	"encoding/json"
	"reflect"
	"regexp"
	"slices"
	"strings"
)

// Matches reports whether rec satisfies p. When ignoreCase is set every string
// comparison is case-insensitive; Operator.IgnoreCase enables it for a single clause.
//
// Negative operators ($ne, $neq, $nin, $notLike, $notBtw) match records where the
// field is missing.
func Matches(p Predicate, rec map[string]any, ignoreCase bool) bool {
	for _, n := range p {
		if !matchNode(n, rec, ignoreCase) {
			return false
		}
	}
	return true
}

func matchNode(n Node, rec map[string]any, ignoreCase bool) bool {
	switch node := n.(type) {
	case Literal:
		v, ok := Lookup(rec, node.Field)
		return ok && Equal(v, node.Value, ignoreCase)
	case Operator:
		return matchOperator(node, rec, ignoreCase || node.IgnoreCase)
	case Membership:
		v, ok := Lookup(rec, node.Field)
		return ok && contains(node.Values, v, ignoreCase)
	case Negation:
		return !matchNode(node.Node, rec, ignoreCase)
	case Conjunction:
		for _, b := range node.Branches {
			if !Matches(b, rec, ignoreCase) {
				return false
			}
		}
		return true
	case Disjunction:
		for _, b := range node.Branches {
			if Matches(b, rec, ignoreCase) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchOperator(op Operator, rec map[string]any, ic bool) bool {
	v, ok := Lookup(rec, op.Field)

	switch op.Op {
	case OpEq:
		return ok && Equal(v, op.Value, ic)
	case OpNe, OpNeq:
		return !ok || !Equal(v, op.Value, ic)
	case OpLt:
		return ok && ordered(v, op.Value) && compareValues(v, op.Value, ic) < 0
	case OpLte:
		return ok && ordered(v, op.Value) && compareValues(v, op.Value, ic) <= 0
	case OpGt:
		return ok && ordered(v, op.Value) && compareValues(v, op.Value, ic) > 0
	case OpGte:
		return ok && ordered(v, op.Value) && compareValues(v, op.Value, ic) >= 0
	case OpIn:
		return ok && contains(values(op.Value), v, ic)
	case OpNin:
		return !ok || !contains(values(op.Value), v, ic)
	case OpLike:
		return ok && like(v, op.Value, ic)
	case OpNotLike:
		return !ok || !like(v, op.Value, ic)
	case OpBetween:
		return ok && between(v, op.Value, ic)
	case OpNotBetween:
		return !ok || !between(v, op.Value, ic)
	case OpIsNull:
		return ok && v == nil
	case OpIsNotNull, OpIsValued:
		return ok && v != nil
	case OpIsMissing:
		return !ok
	case OpIsNotMissing:
		return ok
	case OpIsNotValued:
		return !ok || v == nil
	default:
		return false
	}
}

// Lookup resolves a field in rec. Dotted paths descend into nested objects unless rec
// holds the dotted name as a key of its own.
func Lookup(rec map[string]any, field string) (any, bool) {
	if v, ok := rec[field]; ok {
		return v, true
	}
	parts := strings.Split(field, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = rec
	for _, part := range parts {
		m, ok := asStringMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Equal compares two decoded values. Numbers compare by value regardless of their Go
// type; strings optionally ignore case; lists and objects compare element-wise.
func Equal(a, b any, ignoreCase bool) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return false
		}
		if ignoreCase {
			return strings.EqualFold(sa, sb)
		}
		return sa == sb
	}
	if la, ok := toSlice(a); ok {
		lb, ok := toSlice(b)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i], ignoreCase) {
				return false
			}
		}
		return true
	}
	if ma, ok := asStringMap(a); ok {
		mb, ok := asStringMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !Equal(va, vb, ignoreCase) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues orders two decoded values: missing/null first, then booleans, numbers,
// strings, lists and objects. Values of the same kind compare naturally.
func CompareValues(a, b any) int {
	return compareValues(a, b, false)
}

func compareValues(a, b any, ignoreCase bool) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case rankNumber:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmp.Compare(fa, fb)
	case rankString:
		sa, sb := a.(string), b.(string)
		if ignoreCase {
			sa, sb = strings.ToLower(sa), strings.ToLower(sb)
		}
		return strings.Compare(sa, sb)
	case rankList:
		la, _ := toSlice(a)
		lb, _ := toSlice(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := compareValues(la[i], lb[i], ignoreCase); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(la), len(lb))
	default:
		return 0
	}
}

// SortRecords stable-sorts records by the given orders. Missing fields sort first in
// ascending order.
func SortRecords[R ~map[string]any](recs []R, orders []Order) {
	if len(orders) == 0 {
		return
	}
	slices.SortStableFunc(recs, func(a, b R) int {
		for _, o := range orders {
			va, _ := Lookup(a, o.Field)
			vb, _ := Lookup(b, o.Field)
			c := CompareValues(va, vb)
			if o.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// Window applies skip and limit to an ordered result set.
func Window[R any](recs []R, skip, limit *int) []R {
	if skip != nil {
		if *skip >= len(recs) {
			return recs[:0]
		}
		recs = recs[*skip:]
	}
	if limit != nil && *limit < len(recs) {
		recs = recs[:*limit]
	}
	return recs
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankList
	rankObject
)

func rank(v any) int {
	if v == nil {
		return rankNull
	}
	if _, ok := v.(bool); ok {
		return rankBool
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	if _, ok := v.(string); ok {
		return rankString
	}
	if _, ok := toSlice(v); ok {
		return rankList
	}
	return rankObject
}

// ordered reports whether two values can be compared with <, <=, > and >=.
func ordered(a, b any) bool {
	r := rank(a)
	return r == rank(b) && (r == rankNumber || r == rankString)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool, string, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func contains(list []any, v any, ignoreCase bool) bool {
	for _, item := range list {
		if Equal(v, item, ignoreCase) {
			return true
		}
	}
	return false
}

func between(v, bounds any, ignoreCase bool) bool {
	b, ok := toSlice(bounds)
	if !ok || len(b) != 2 {
		return false
	}
	return ordered(v, b[0]) && ordered(v, b[1]) &&
		compareValues(v, b[0], ignoreCase) >= 0 && compareValues(v, b[1], ignoreCase) <= 0
}

// like matches v against a SQL LIKE pattern: % is any run of characters, _ is one.
func like(v, pattern any, ignoreCase bool) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(LikeRegexp(p, ignoreCase))
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// LikeRegexp converts a LIKE pattern into an anchored regular expression.
func LikeRegexp(pattern string, ignoreCase bool) string {
	var b strings.Builder
	if ignoreCase {
		b.WriteString("(?i)")
	}
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
