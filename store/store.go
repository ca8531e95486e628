package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/docservice/internal/projection"
	"github.com/jacentio/docservice/internal/shard"
	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
)

// API is the subset of *dynamodb.Client used by the Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var (
	_ API         = (*dynamodb.Client)(nil)
	_ model.Model = (*Store)(nil)
)

// Store implements model.Model over a single DynamoDB table.
type Store struct {
	client API
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Store instance. If logger is nil, slog.Default() is used.
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Find returns the live records matching p, sorted, windowed and projected per o.
func (s *Store) Find(ctx context.Context, p query.Predicate, o query.CallOptions) ([]model.Record, error) {
	recs, err := s.collect(ctx, p, o)
	if err != nil {
		return nil, err
	}
	query.SortRecords(recs, o.Sort)
	recs = query.Window(recs, o.Skip, o.Limit)
	return projection.SelectAll(recs, o.Select, s.config.IDField), nil
}

// Count returns the number of live records matching p. When the whole predicate can be
// evaluated by DynamoDB only item counts are transferred.
func (s *Store) Count(ctx context.Context, p query.Predicate, o query.CallOptions) (int, error) {
	if _, keyed := s.keyOf(p); !keyed {
		cond, pushed, residual := compile(p, o.IgnoreCase)
		if len(residual) == 0 {
			return s.scanCount(ctx, cond, pushed, o.Consistency.Strong())
		}
	}
	recs, err := s.collect(ctx, p, o)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// FindByID returns the live record with the identifier or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string, o query.CallOptions) (model.Record, error) {
	rec, err := s.get(ctx, id, o.Consistency.Strong())
	if err != nil {
		return nil, err
	}
	return projection.Select(rec, o.Select, s.config.IDField), nil
}

// Create puts a new item. A missing identifier is generated; a live one fails with
// ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, data model.Record) (model.Record, error) {
	rec := projection.Copy(data)
	if rec == nil {
		rec = model.Record{}
	}
	id := uuid.NewString()
	if raw, ok := rec[s.config.IDField]; ok && raw != nil {
		var err error
		if id, err = query.ID(raw); err != nil {
			return nil, err
		}
	}
	rec[s.config.IDField] = id

	cond := vacantCondition(s.config.IDField, s.config.TTLAttribute, s.now().Unix())
	if err := s.put(ctx, rec, cond); err != nil {
		if isConditionFailed(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return rec, nil
}

// ReplaceByID overwrites the live item with data, keeping its identifier.
func (s *Store) ReplaceByID(ctx context.Context, id string, data model.Record) (model.Record, error) {
	rec := projection.Copy(data)
	if rec == nil {
		rec = model.Record{}
	}
	rec[s.config.IDField] = id

	cond := existsCondition(s.config.IDField, s.config.TTLAttribute, s.now().Unix())
	if err := s.put(ctx, rec, cond); err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UpdateByID sets every field of data on the live item and returns the updated record.
func (s *Store) UpdateByID(ctx context.Context, id string, data model.Record) (model.Record, error) {
	fields := slices.Sorted(maps.Keys(data))
	fields = slices.DeleteFunc(fields, func(f string) bool { return f == s.config.IDField })
	if len(fields) == 0 {
		return s.get(ctx, id, true)
	}

	update := expression.Set(expression.NameNoDotSplit(fields[0]), expression.Value(data[fields[0]]))
	for _, f := range fields[1:] {
		update = update.Set(expression.NameNoDotSplit(f), expression.Value(data[f]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(existsCondition(s.config.IDField, s.config.TTLAttribute, s.now().Unix())).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.Table),
		Key:                       s.key(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.unmarshal(out.Attributes)
}

// UpdateMany applies UpdateByID to every matching record. The writes are not atomic;
// records removed concurrently are skipped.
func (s *Store) UpdateMany(ctx context.Context, p query.Predicate, data model.Record, o query.CallOptions) (model.Mutation, error) {
	recs, err := s.collect(ctx, p, o)
	if err != nil {
		return model.Mutation{}, err
	}

	res := model.Mutation{Data: make([]model.Record, 0, len(recs))}
	for _, rec := range recs {
		id, _ := rec[s.config.IDField].(string)
		updated, err := s.UpdateByID(ctx, id, data)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("update %s: %w", id, err)
		}
		res.Success++
		res.Data = append(res.Data, projection.Select(updated, o.Select, s.config.IDField))
	}
	return res, nil
}

// RemoveByID deletes the live item or returns ErrNotFound.
func (s *Store) RemoveByID(ctx context.Context, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(existsCondition(s.config.IDField, s.config.TTLAttribute, s.now().Unix())).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.config.Table),
		Key:                       s.key(id),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	return err
}

// RemoveMany deletes every matching record. The deletes are not atomic.
func (s *Store) RemoveMany(ctx context.Context, p query.Predicate, o query.CallOptions) (model.Mutation, error) {
	recs, err := s.collect(ctx, p, o)
	if err != nil {
		return model.Mutation{}, err
	}

	var res model.Mutation
	for _, rec := range recs {
		id, _ := rec[s.config.IDField].(string)
		err := s.RemoveByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("remove %s: %w", id, err)
		}
		res.Success++
	}
	return res, nil
}

// collect returns every live record matching p, unordered and unprojected.
func (s *Store) collect(ctx context.Context, p query.Predicate, o query.CallOptions) ([]model.Record, error) {
	strong := o.Consistency.Strong()

	// Fast path: the identifier is pinned, a single GetItem replaces the scan.
	if id, ok := s.keyOf(p); ok {
		rec, err := s.get(ctx, id, strong)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !query.Matches(p, rec, o.IgnoreCase) {
			return nil, nil
		}
		return []model.Record{rec}, nil
	}

	cond, pushed, residual := compile(p, o.IgnoreCase)
	items, err := s.scan(ctx, cond, pushed, strong)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	recs := make([]model.Record, 0, len(items))
	for _, item := range items {
		if IsExpired(item, s.config.TTLAttribute, now) {
			continue
		}
		rec, err := s.unmarshal(item)
		if err != nil {
			return nil, err
		}
		if query.Matches(residual, rec, o.IgnoreCase) {
			recs = append(recs, rec)
		}
	}

	s.logger.DebugContext(ctx, "scan",
		"table", s.config.Table,
		"pushed", pushed,
		"residual", len(residual),
		"scanned", len(items),
		"matched", len(recs),
	)
	return recs, nil
}

// keyOf returns the identifier p pins with a top-level equality, directly or inside a
// top-level conjunction branch.
func (s *Store) keyOf(p query.Predicate) (string, bool) {
	for _, n := range p {
		switch node := n.(type) {
		case query.Literal:
			if id, ok := s.idLiteral(node); ok {
				return id, true
			}
		case query.Conjunction:
			for _, b := range node.Branches {
				if len(b) != 1 {
					continue
				}
				if lit, ok := b[0].(query.Literal); ok {
					if id, ok := s.idLiteral(lit); ok {
						return id, true
					}
				}
			}
		}
	}
	return "", false
}

func (s *Store) idLiteral(lit query.Literal) (string, bool) {
	if lit.Field != s.config.IDField {
		return "", false
	}
	id, ok := lit.Value.(string)
	return id, ok
}

func (s *Store) get(ctx context.Context, id string, strong bool) (model.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(strong),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil || IsExpired(out.Item, s.config.TTLAttribute, s.now().Unix()) {
		return nil, ErrNotFound
	}
	return s.unmarshal(out.Item)
}

func (s *Store) put(ctx context.Context, rec model.Record, cond expression.ConditionBuilder) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.config.Table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// scanInput builds a Scan over live items, narrowed by cond when pushed is set.
func (s *Store) scanInput(cond expression.ConditionBuilder, pushed, strong bool) (*dynamodb.ScanInput, error) {
	filter := liveCondition(s.config.TTLAttribute, s.now().Unix())
	if pushed {
		filter = expression.And(filter, cond)
	}
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.Table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(strong),
	}
	if s.config.PageSize > 0 {
		input.Limit = aws.Int32(s.config.PageSize)
	}
	return input, nil
}

func (s *Store) scan(ctx context.Context, cond expression.ConditionBuilder, pushed, strong bool) ([]map[string]types.AttributeValue, error) {
	input, err := s.scanInput(cond, pushed, strong)
	if err != nil {
		return nil, err
	}
	return shard.Scan(ctx, s.client, input, s.config.Segments)
}

func (s *Store) scanCount(ctx context.Context, cond expression.ConditionBuilder, pushed, strong bool) (int, error) {
	input, err := s.scanInput(cond, pushed, strong)
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount
	return shard.Count(ctx, s.client, input, s.config.Segments)
}

func (s *Store) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.config.IDField: &types.AttributeValueMemberS{Value: id},
	}
}

func (s *Store) unmarshal(item map[string]types.AttributeValue) (model.Record, error) {
	var rec model.Record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if _, ok := rec[s.config.IDField].(string); !ok {
		return nil, ErrInvalidKey
	}
	return rec, nil
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
