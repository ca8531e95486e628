package store

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/jacentio/docservice/query"
)

// maxInOperands is the DynamoDB limit on the right-hand side of IN.
const maxInOperands = 100

// compile splits p into a filter condition DynamoDB can evaluate and a residual
// predicate that must be matched in memory. ok is false when nothing was pushed down.
//
// Only top-level clauses are split. A combinator is pushed down whole or not at all.
func compile(p query.Predicate, ignoreCase bool) (cond expression.ConditionBuilder, ok bool, residual query.Predicate) {
	var conds []expression.ConditionBuilder
	for _, n := range p {
		c, ok := compileNode(n, ignoreCase)
		if !ok {
			residual = append(residual, n)
			continue
		}
		conds = append(conds, c)
	}
	if len(conds) == 0 {
		return expression.ConditionBuilder{}, false, residual
	}
	return and(conds), true, residual
}

func compileNode(n query.Node, ic bool) (expression.ConditionBuilder, bool) {
	switch node := n.(type) {
	case query.Literal:
		name, ok := attr(node.Field)
		if !ok {
			break
		}
		v, ok := scalar(node.Value, ic)
		if !ok {
			break
		}
		return name.Equal(expression.Value(v)), true
	case query.Operator:
		return compileOperator(node, ic || node.IgnoreCase)
	case query.Membership:
		return membership(node.Field, node.Values, ic)
	case query.Negation:
		c, ok := compileNode(node.Node, ic)
		if !ok {
			break
		}
		return expression.Not(c), true
	case query.Conjunction:
		conds, ok := compileBranches(node.Branches, ic)
		if !ok {
			break
		}
		return and(conds), true
	case query.Disjunction:
		conds, ok := compileBranches(node.Branches, ic)
		if !ok {
			break
		}
		return or(conds), true
	}
	return expression.ConditionBuilder{}, false
}

func compileBranches(branches []query.Predicate, ic bool) ([]expression.ConditionBuilder, bool) {
	if len(branches) == 0 {
		return nil, false
	}
	conds := make([]expression.ConditionBuilder, 0, len(branches))
	for _, b := range branches {
		c, ok, residual := compile(b, ic)
		if !ok || len(residual) > 0 {
			return nil, false
		}
		conds = append(conds, c)
	}
	return conds, true
}

func compileOperator(op query.Operator, ic bool) (expression.ConditionBuilder, bool) {
	name, ok := attr(op.Field)
	if !ok {
		return expression.ConditionBuilder{}, false
	}

	switch op.Op {
	case query.OpIsNull:
		return name.AttributeType(expression.Null), true
	case query.OpIsNotNull, query.OpIsValued:
		return expression.And(name.AttributeExists(), expression.Not(name.AttributeType(expression.Null))), true
	case query.OpIsMissing:
		return name.AttributeNotExists(), true
	case query.OpIsNotMissing:
		return name.AttributeExists(), true
	case query.OpIsNotValued:
		return expression.Or(name.AttributeNotExists(), name.AttributeType(expression.Null)), true
	case query.OpIn:
		return membership(op.Field, listOf(op.Value), ic)
	case query.OpNin:
		c, ok := membership(op.Field, listOf(op.Value), ic)
		if !ok {
			break
		}
		return expression.Not(c), true
	case query.OpLike:
		return likeCondition(name, op.Value, ic)
	case query.OpNotLike:
		c, ok := likeCondition(name, op.Value, ic)
		if !ok {
			break
		}
		return absentOr(name, expression.Not(c)), true
	case query.OpBetween:
		return betweenCondition(name, op.Value, ic)
	case query.OpNotBetween:
		c, ok := betweenCondition(name, op.Value, ic)
		if !ok {
			break
		}
		return absentOr(name, expression.Not(c)), true
	case query.OpEq, query.OpNe, query.OpNeq:
		v, ok := scalar(op.Value, ic)
		if !ok {
			break
		}
		if op.Op == query.OpEq {
			return name.Equal(expression.Value(v)), true
		}
		return absentOr(name, name.NotEqual(expression.Value(v))), true
	case query.OpLt, query.OpLte, query.OpGt, query.OpGte:
		v, ok := orderable(op.Value, ic)
		if !ok {
			break
		}
		operand := expression.Value(v)
		switch op.Op {
		case query.OpLt:
			return name.LessThan(operand), true
		case query.OpLte:
			return name.LessThanEqual(operand), true
		case query.OpGt:
			return name.GreaterThan(operand), true
		default:
			return name.GreaterThanEqual(operand), true
		}
	}
	return expression.ConditionBuilder{}, false
}

func membership(field string, values []any, ic bool) (expression.ConditionBuilder, bool) {
	name, ok := attr(field)
	if !ok || len(values) == 0 || len(values) > maxInOperands {
		return expression.ConditionBuilder{}, false
	}
	operands := make([]expression.OperandBuilder, 0, len(values))
	for _, raw := range values {
		v, ok := scalar(raw, ic)
		if !ok {
			return expression.ConditionBuilder{}, false
		}
		operands = append(operands, expression.Value(v))
	}
	return name.In(operands[0], operands[1:]...), true
}

// likeCondition pushes down the LIKE shapes DynamoDB has a function for:
// "abc" (equality), "abc%" (begins_with), "%abc%" (contains) and "%".
func likeCondition(name expression.NameBuilder, pattern any, ic bool) (expression.ConditionBuilder, bool) {
	p, ok := pattern.(string)
	if !ok || ic || strings.Contains(p, "_") {
		return expression.ConditionBuilder{}, false
	}
	isString := name.AttributeType(expression.String)

	inner := strings.Trim(p, "%")
	if strings.Contains(inner, "%") {
		return expression.ConditionBuilder{}, false
	}
	switch {
	case inner == "":
		if p == "" {
			return name.Equal(expression.Value("")), true
		}
		return isString, true
	case p == inner:
		return name.Equal(expression.Value(p)), true
	case p == inner+"%":
		return expression.And(isString, name.BeginsWith(inner)), true
	case p == "%"+inner+"%":
		return expression.And(isString, name.Contains(inner)), true
	default:
		return expression.ConditionBuilder{}, false
	}
}

func betweenCondition(name expression.NameBuilder, bounds any, ic bool) (expression.ConditionBuilder, bool) {
	list := listOf(bounds)
	if len(list) != 2 {
		return expression.ConditionBuilder{}, false
	}
	lo, ok := orderable(list[0], ic)
	if !ok {
		return expression.ConditionBuilder{}, false
	}
	hi, ok := orderable(list[1], ic)
	if !ok {
		return expression.ConditionBuilder{}, false
	}
	// DynamoDB rejects mixed-type or inverted bounds.
	_, loStr := lo.(string)
	_, hiStr := hi.(string)
	if loStr != hiStr || query.CompareValues(lo, hi) > 0 {
		return expression.ConditionBuilder{}, false
	}
	return name.Between(expression.Value(lo), expression.Value(hi)), true
}

// absentOr widens c to records missing the attribute, which negative operators match.
func absentOr(name expression.NameBuilder, c expression.ConditionBuilder) expression.ConditionBuilder {
	return expression.Or(name.AttributeNotExists(), c)
}

// attr returns the attribute name for a top-level field. Dotted fields are evaluated in
// memory because a record may hold the dotted name as a key of its own.
func attr(field string) (expression.NameBuilder, bool) {
	if field == "" || strings.Contains(field, ".") {
		return expression.NameBuilder{}, false
	}
	return expression.Name(field), true
}

// scalar normalizes a comparison value DynamoDB compares the same way query.Matches does:
// strings (unless case is ignored), booleans and numbers.
func scalar(v any, ic bool) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, !ic
	case bool:
		return x, true
	}
	return numeric(v)
}

// orderable is scalar without booleans.
func orderable(v any, ic bool) (any, bool) {
	if _, ok := v.(bool); ok {
		return nil, false
	}
	return scalar(v, ic)
}

func numeric(v any) (any, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return f, err == nil
	}
	if v == nil {
		return nil, false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, true
	default:
		return nil, false
	}
}

func listOf(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func and(conds []expression.ConditionBuilder) expression.ConditionBuilder {
	if len(conds) == 1 {
		return conds[0]
	}
	return expression.And(conds[0], conds[1], conds[2:]...)
}

func or(conds []expression.ConditionBuilder) expression.ConditionBuilder {
	if len(conds) == 1 {
		return conds[0]
	}
	return expression.Or(conds[0], conds[1], conds[2:]...)
}
