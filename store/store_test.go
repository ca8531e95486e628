package store_test

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
	"github.com/jacentio/docservice/store"
)

var setClause = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)

// fakeAPI keeps items in memory. It ignores filter and condition expressions;
// conditional failures are injected with failConditions.
type fakeAPI struct {
	mu             sync.Mutex
	items          map[string]map[string]types.AttributeValue
	failConditions bool
	scanErr        error

	gets    []*dynamodb.GetItemInput
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	deletes []*dynamodb.DeleteItemInput
	scans   []*dynamodb.ScanInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeAPI) key(k map[string]types.AttributeValue) string {
	return k["id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, in)
	return &dynamodb.GetItemOutput{Item: f.items[f.key(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	if f.failConditions {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	f.items[f.key(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	if f.failConditions {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	item := f.items[f.key(in.Key)]
	for _, m := range setClause.FindAllStringSubmatch(aws.ToString(in.UpdateExpression), -1) {
		item[in.ExpressionAttributeNames[m[1]]] = in.ExpressionAttributeValues[m[2]]
	}
	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, in)
	if f.failConditions {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	delete(f.items, f.key(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Count++
		if in.Select != types.SelectCount {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeAPI) seed(id string, attrs map[string]types.AttributeValue) {
	item := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
	for k, v := range attrs {
		item[k] = v
	}
	f.items[id] = item
}

func str(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }
func num(n int64) types.AttributeValue  { return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)} }

func newStore(api *fakeAPI) *store.Store {
	return store.New(api, store.Config{Table: "records"}, nil)
}

// --- Unit Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.Table != "docservice_records" {
		t.Errorf("expected Table 'docservice_records', got %q", cfg.Table)
	}
	if cfg.IDField != "id" {
		t.Errorf("expected IDField 'id', got %q", cfg.IDField)
	}
	if cfg.TTLAttribute != "ttl" {
		t.Errorf("expected TTLAttribute 'ttl', got %q", cfg.TTLAttribute)
	}
	if cfg.Segments != 1 {
		t.Errorf("expected Segments 1, got %d", cfg.Segments)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now().Unix()
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected bool
	}{
		{"no ttl", map[string]types.AttributeValue{}, false},
		{"past ttl", map[string]types.AttributeValue{"ttl": num(now - 60)}, true},
		{"ttl now", map[string]types.AttributeValue{"ttl": num(now)}, true},
		{"future ttl", map[string]types.AttributeValue{"ttl": num(now + 60)}, false},
		{"string ttl", map[string]types.AttributeValue{"ttl": str("soon")}, false},
		{"malformed ttl", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.IsExpired(tt.item, "ttl", now); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	api := newFakeAPI()
	s := newStore(api)

	rec, err := s.Create(context.Background(), model.Record{"name": "Dave"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id, ok := rec["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected generated id, got %v", rec["id"])
	}

	if len(api.puts) != 1 {
		t.Fatalf("expected 1 PutItem, got %d", len(api.puts))
	}
	put := api.puts[0]
	if aws.ToString(put.TableName) != "records" {
		t.Errorf("expected table 'records', got %q", aws.ToString(put.TableName))
	}
	if put.ConditionExpression == nil {
		t.Error("expected a condition expression")
	}
	if v, ok := put.Item["name"].(*types.AttributeValueMemberS); !ok || v.Value != "Dave" {
		t.Errorf("expected name attribute 'Dave', got %v", put.Item["name"])
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	api := newFakeAPI()
	api.failConditions = true

	_, err := newStore(api).Create(context.Background(), model.Record{"id": "1"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Error("expected error to match model.ErrAlreadyExists")
	}
}

func TestFindByID(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"name": str("Dave"), "age": num(29)})
	s := newStore(api)

	rec, err := s.FindByID(context.Background(), "1", query.CallOptions{
		Consistency: query.ConsistencyLocal,
		Select:      []string{"age", "id"},
	})
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if len(rec) != 2 || rec["age"] != float64(29) || rec["id"] != "1" {
		t.Errorf("unexpected record %v", rec)
	}
	if !aws.ToBool(api.gets[0].ConsistentRead) {
		t.Error("expected consistent read")
	}
}

func TestFindByID_NotFound(t *testing.T) {
	api := newFakeAPI()
	api.seed("expired", map[string]types.AttributeValue{"ttl": num(time.Now().Unix() - 10)})
	s := newStore(api)

	for _, id := range []string{"missing", "expired"} {
		_, err := s.FindByID(context.Background(), id, query.CallOptions{})
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestFind_ResidualSortWindow(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"name": str("Dave"), "age": num(29)})
	api.seed("2", map[string]types.AttributeValue{"name": str("DAVID"), "age": num(31)})
	api.seed("3", map[string]types.AttributeValue{"name": str("ann"), "age": num(40)})
	api.seed("4", map[string]types.AttributeValue{"name": str("dave"), "ttl": num(time.Now().Unix() - 10)})
	s := newStore(api)
	limit := 2

	recs, err := s.Find(context.Background(),
		query.Predicate{query.Operator{Field: "name", Op: query.OpLike, Value: "da%"}},
		query.CallOptions{
			IgnoreCase: true,
			Sort:       []query.Order{{Field: "age", Direction: query.Descending}},
			Limit:      &limit,
			Select:     []string{"name", "id"},
		})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(recs), recs)
	}
	if recs[0]["id"] != "2" || recs[1]["id"] != "1" {
		t.Errorf("unexpected order %v", recs)
	}
	if _, ok := recs[0]["age"]; ok {
		t.Error("expected age to be projected out")
	}
	if len(api.scans) != 1 || api.scans[0].FilterExpression == nil {
		t.Error("expected one scan with the TTL filter")
	}
}

func TestFind_KeyedUsesGetItem(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"team": str("a")})
	s := newStore(api)

	p := query.Reconcile("1", "id", query.Predicate{query.Literal{Field: "team", Value: "a"}})
	recs, err := s.Find(context.Background(), p, query.CallOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if len(api.scans) != 0 || len(api.gets) != 1 {
		t.Errorf("expected a single GetItem, got %d scans and %d gets", len(api.scans), len(api.gets))
	}

	p = query.Reconcile("1", "id", query.Predicate{query.Literal{Field: "team", Value: "b"}})
	recs, err = s.Find(context.Background(), p, query.CallOptions{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %v", recs)
	}
}

func TestCount_PushedDown(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", nil)
	api.seed("2", nil)
	s := newStore(api)

	n, err := s.Count(context.Background(), query.Predicate{query.Literal{Field: "team", Value: "a"}}, query.CallOptions{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected fake count 2, got %d", n)
	}
	if api.scans[0].Select != types.SelectCount {
		t.Errorf("expected COUNT scan, got %q", api.scans[0].Select)
	}
}

func TestCount_Residual(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"name": str("Dave")})
	api.seed("2", map[string]types.AttributeValue{"name": str("Ann")})
	s := newStore(api)

	n, err := s.Count(context.Background(),
		query.Predicate{query.Literal{Field: "name", Value: "dave"}},
		query.CallOptions{IgnoreCase: true})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if api.scans[0].Select == types.SelectCount {
		t.Error("expected items to be fetched for in-memory matching")
	}
}

func TestFind_ScanErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	boom := errors.New("throttled")
	api.scanErr = boom

	_, err := newStore(api).Find(context.Background(), nil, query.CallOptions{})
	if !errors.Is(err, boom) {
		t.Errorf("expected scan error, got %v", err)
	}
}

func TestUpdateByID(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"name": str("Dave")})
	s := newStore(api)

	rec, err := s.UpdateByID(context.Background(), "1", model.Record{"age": 30, "id": "ignored"})
	if err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}
	if rec["age"] != float64(30) || rec["name"] != "Dave" || rec["id"] != "1" {
		t.Errorf("unexpected record %v", rec)
	}
	if api.updates[0].ReturnValues != types.ReturnValueAllNew {
		t.Error("expected ALL_NEW return values")
	}
}

func TestByID_ConditionFailureIsNotFound(t *testing.T) {
	api := newFakeAPI()
	api.failConditions = true
	s := newStore(api)
	ctx := context.Background()

	if _, err := s.ReplaceByID(ctx, "1", model.Record{}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ReplaceByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateByID(ctx, "1", model.Record{"a": 1}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateByID: expected ErrNotFound, got %v", err)
	}
	if err := s.RemoveByID(ctx, "1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("RemoveByID: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveMany(t *testing.T) {
	api := newFakeAPI()
	api.seed("1", map[string]types.AttributeValue{"created": &types.AttributeValueMemberBOOL{Value: true}})
	api.seed("2", map[string]types.AttributeValue{"created": &types.AttributeValueMemberBOOL{Value: true}})
	api.seed("3", map[string]types.AttributeValue{"nested": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"x": num(1)}}})
	s := newStore(api)

	res, err := s.RemoveMany(context.Background(),
		query.Predicate{query.Literal{Field: "nested.x", Value: 1}},
		query.CallOptions{})
	if err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}
	if res.Success != 1 {
		t.Errorf("expected 1 removed, got %d", res.Success)
	}
	if _, ok := api.items["3"]; ok {
		t.Error("expected item 3 to be deleted")
	}
	if len(api.items) != 2 {
		t.Errorf("expected 2 remaining items, got %d", len(api.items))
	}
}
