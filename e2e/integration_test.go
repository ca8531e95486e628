//go:build e2e

// Package e2e contains end-to-end integration tests against a real DynamoDB table.
// Run with: go test -tags=e2e -v ./e2e/...
//
// E2E_AWS_PROFILE selects a shared config profile and E2E_DYNAMODB_ENDPOINT points the
// client at DynamoDB Local.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
	"github.com/jacentio/docservice/service"
	"github.com/jacentio/docservice/store"
)

// Table names are unique per test run to avoid conflicts
const tablePrefix = "docservice-e2e-test"

var (
	testID    string
	tableName string

	ddbClient *dynamodb.Client
	testStore *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	tableName = fmt.Sprintf("%s-%s", tablePrefix, testID)

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table: %s\n", tableName)

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if profile := os.Getenv("E2E_AWS_PROFILE"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := os.Getenv("E2E_DYNAMODB_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	testStore = store.New(ddbClient, store.Config{Table: tableName}, nil)

	code := m.Run()

	if err := deleteTable(ctx); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}

	os.Exit(code)
}

func createTable(ctx context.Context) error {
	fmt.Println("Creating test table...")

	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", tableName, err)
	}

	fmt.Println("Table created and active")
	return nil
}

func deleteTable(ctx context.Context) error {
	fmt.Println("Deleting test table...")
	_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		fmt.Printf("Warning: failed to delete table %s: %v\n", tableName, err)
	}
	return nil
}

// newService returns a service over the shared table and a suite tag. Every record a
// test creates carries the tag so queries stay isolated from other tests.
func newService(t *testing.T, cfg service.Config) (*service.Service, string) {
	t.Helper()
	svc, err := service.New(testStore, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc, uuid.New().String()
}

func seed(t *testing.T, svc *service.Service, suite string) {
	t.Helper()
	recs := []model.Record{
		{"name": "Dave", "age": 29, "created": true},
		{"name": "David", "age": 31, "created": true},
		{"name": "Ann", "age": 40},
	}
	for _, r := range recs {
		r["suite"] = suite
	}
	if _, err := svc.CreateMany(context.Background(), recs, service.Params{}); err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}
}

// --- CRUD Tests ---

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())

	created, err := svc.Create(ctx, model.Record{"name": "Dave", "suite": suite}, service.Params{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id, ok := created["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected generated id, got %v", created["id"])
	}

	got, err := svc.Get(ctx, id, service.Params{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["name"] != "Dave" {
		t.Errorf("expected name 'Dave', got %v", got["name"])
	}

	// A constraint the record does not satisfy hides it.
	_, err = svc.Get(ctx, id, service.Params{Query: map[string]any{"name": "Ann"}})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())
	id := uuid.New().String()

	if _, err := svc.Create(ctx, model.Record{"id": id, "suite": suite}, service.Params{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := svc.Create(ctx, model.Record{"id": id, "suite": suite}, service.Params{})
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestFind_PaginatedAndPushedDown(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())
	seed(t, svc, suite)

	res, err := svc.Find(ctx, service.Params{
		Query: map[string]any{
			"suite":   suite,
			"age":     map[string]any{"$gte": 30},
			"$sort":   map[string]any{"age": -1},
			"$limit":  1,
			"$select": []any{"name"},
		},
		Paginate: &query.Paginate{Default: 10},
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	page, ok := res.(*service.Page)
	if !ok {
		t.Fatalf("expected a page, got %T", res)
	}
	if page.Total != 2 {
		t.Errorf("expected total 2, got %d", page.Total)
	}
	if len(page.Data) != 1 || page.Data[0]["name"] != "Ann" {
		t.Errorf("unexpected data %v", page.Data)
	}
	if _, ok := page.Data[0]["age"]; ok {
		t.Error("expected age to be projected out")
	}
}

func TestFind_IgnoreCaseLike(t *testing.T) {
	ctx := context.Background()
	cfg := service.DefaultConfig()
	cfg.Whitelist = []string{"$like", "$ignoreCase"}
	svc, suite := newService(t, cfg)
	seed(t, svc, suite)

	res, err := svc.Find(ctx, service.Params{Query: map[string]any{
		"suite": suite,
		"name":  map[string]any{"$like": "DA%", "$ignoreCase": true},
	}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if recs := res.(service.Records); len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}
}

func TestPatchMany(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())
	seed(t, svc, suite)

	patched, err := svc.PatchMany(ctx, model.Record{"done": true}, service.Params{
		Query: map[string]any{"suite": suite, "created": true},
	})
	if err != nil {
		t.Fatalf("PatchMany failed: %v", err)
	}
	if len(patched) != 2 {
		t.Fatalf("expected 2 patched records, got %d", len(patched))
	}

	res, err := svc.Find(ctx, service.Params{Query: map[string]any{"suite": suite, "done": true}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if recs := res.(service.Records); len(recs) != 2 {
		t.Errorf("expected 2 done records, got %d", len(recs))
	}
}

func TestPatch_ReconcilesID(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())

	created, err := svc.Create(ctx, model.Record{"name": "Dave", "suite": suite}, service.Params{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id := created["id"]

	_, err = svc.Patch(ctx, id, model.Record{"age": 30}, service.Params{
		Query: map[string]any{"id": map[string]any{"$ne": id}},
	})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound for mutually exclusive id clauses, got %v", err)
	}

	got, err := svc.Patch(ctx, id, model.Record{"age": 30}, service.Params{})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if got["age"] != float64(30) || got["name"] != "Dave" {
		t.Errorf("unexpected record %v", got)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())
	seed(t, svc, suite)

	removed, err := svc.RemoveMany(ctx, service.Params{Query: map[string]any{"suite": suite, "created": true}})
	if err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("expected 2 removed records, got %d", len(removed))
	}

	res, err := svc.Find(ctx, service.Params{Query: map[string]any{"suite": suite}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	recs := res.(service.Records)
	if len(recs) != 1 {
		t.Fatalf("expected 1 remaining record, got %d", len(recs))
	}

	if _, err := svc.Remove(ctx, recs[0]["id"], service.Params{}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, err = svc.Remove(ctx, recs[0]["id"], service.Params{})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestQuery_WithTTLFiltering(t *testing.T) {
	ctx := context.Background()
	svc, suite := newService(t, service.DefaultConfig())
	id := uuid.New().String()

	// Expired items stay in the table until DynamoDB sweeps them.
	_, err := ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item: map[string]types.AttributeValue{
			"id":    &types.AttributeValueMemberS{Value: id},
			"suite": &types.AttributeValueMemberS{Value: suite},
			"ttl":   &types.AttributeValueMemberN{Value: fmt.Sprint(time.Now().Add(-time.Hour).Unix())},
		},
	})
	if err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	if _, err := svc.Get(ctx, id, service.Params{}); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected expired record to be hidden, got %v", err)
	}
	res, err := svc.Find(ctx, service.Params{Query: map[string]any{"suite": suite}})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if recs := res.(service.Records); len(recs) != 0 {
		t.Errorf("expected no records, got %v", recs)
	}

	// The identifier of an expired record can be reused.
	if _, err := svc.Create(ctx, model.Record{"id": id, "suite": suite}, service.Params{}); err != nil {
		t.Errorf("Create over expired record failed: %v", err)
	}
}
