package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsExpired reports whether item carries a numeric TTL at or before now (Unix seconds).
func IsExpired(item map[string]types.AttributeValue, attr string, now int64) bool {
	ttlAttr, exists := item[attr]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseFloat(ttlNum.Value, 64)
	if err != nil {
		return false
	}
	return int64(ttl) <= now
}

// liveCondition matches items that have no TTL or whose TTL is still in the future.
func liveCondition(attr string, now int64) expression.ConditionBuilder {
	ttl := expression.NameNoDotSplit(attr)
	return expression.Or(
		ttl.AttributeNotExists(),
		ttl.GreaterThan(expression.Value(now)),
	)
}

// existsCondition matches a live item holding the identifier attribute.
func existsCondition(idField, ttlAttr string, now int64) expression.ConditionBuilder {
	return expression.And(
		expression.NameNoDotSplit(idField).AttributeExists(),
		liveCondition(ttlAttr, now),
	)
}

// vacantCondition matches a missing or expired item, so an expired identifier can be reused.
func vacantCondition(idField, ttlAttr string, now int64) expression.ConditionBuilder {
	return expression.Or(
		expression.NameNoDotSplit(idField).AttributeNotExists(),
		expression.NameNoDotSplit(ttlAttr).LessThanEqual(expression.Value(now)),
	)
}
