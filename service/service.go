package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/docservice/internal/projection"
	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
)

// Service dispatches generic CRUD calls to a document store.
type Service struct {
	model  model.Model
	config Config
	logger *slog.Logger
}

// New creates a Service on top of m. If logger is nil, slog.Default() is used.
func New(m model.Model, cfg Config, logger *slog.Logger) (*Service, error) {
	if m == nil {
		return nil, ErrModelRequired
	}
	cfg.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		model:  m,
		config: cfg,
		logger: logger,
	}, nil
}

// IDField returns the configured identifier field.
func (s *Service) IDField() string {
	return s.config.IDField
}

// Get returns the record with the given identifier. When the query constrains other
// fields, the record must satisfy them as well.
func (s *Service) Get(ctx context.Context, rawID any, p Params) (model.Record, error) {
	id, err := requireID(rawID, "get")
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}
	opts := query.DefaultOptions(n.Directives, s.config.Options, s.config.IDField)

	if n.Predicate.Empty() {
		s.logger.DebugContext(ctx, "get by id", "id", id)
		rec, err := s.model.FindByID(ctx, id, opts)
		if err != nil {
			return nil, byID(err, id)
		}
		return s.project(rec, n.Directives), nil
	}

	pred := s.reconcile(id, n.Predicate)
	one := 1
	opts.Limit = &one
	s.logger.DebugContext(ctx, "get by predicate", "id", id, "clauses", len(pred))

	rows, err := s.model.Find(ctx, pred, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFoundID(id)
	}
	return s.project(rows[0], n.Directives), nil
}

// Find returns the records matching the query. The result is a *Page when pagination
// is enabled for the call and Records otherwise.
func (s *Service) Find(ctx context.Context, p Params) (Result, error) {
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}
	pred := query.MapOperators(n.Predicate)
	opts, err := query.FindOptions(n.Directives, s.config.Options, s.config.IDField)
	if err != nil {
		return nil, err
	}

	if !n.Paginate {
		s.logger.DebugContext(ctx, "find", "clauses", len(pred))
		rows, err := s.model.Find(ctx, pred, opts)
		if err != nil {
			return nil, err
		}
		return s.records(query.Window(rows, nil, n.Directives.Limit), n.Directives), nil
	}

	s.logger.DebugContext(ctx, "find paginated", "clauses", len(pred), "limit", *n.Directives.Limit)

	var (
		rows  []model.Record
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.model.Find(gctx, pred, opts)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.model.Count(gctx, pred, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &Page{
		Total: total,
		Limit: n.Directives.Limit,
		Data:  s.records(query.Window(rows, nil, n.Directives.Limit), n.Directives),
	}
	if n.Directives.Skip != nil {
		page.Skip = *n.Directives.Skip
	}
	return page, nil
}

// Create stores a single record.
func (s *Service) Create(ctx context.Context, data model.Record, p Params) (model.Record, error) {
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "create")

	rec, err := s.model.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.project(rec, n.Directives), nil
}

// CreateMany stores every record concurrently and returns them in input order.
// The first failure cancels the remaining creates; records already written stay.
func (s *Service) CreateMany(ctx context.Context, data []model.Record, p Params) (Records, error) {
	if !s.config.allowsMulti(MethodCreate) {
		return nil, fmt.Errorf("%w: can not create multiple entries", ErrMethodNotAllowed)
	}
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "create many", "count", len(data))

	out := make(Records, len(data))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.CreateConcurrency)
	for i, rec := range data {
		g.Go(func() error {
			created, err := s.model.Create(gctx, rec)
			if err != nil {
				return fmt.Errorf("create entry %d: %w", i, err)
			}
			out[i] = s.project(created, n.Directives)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the record with the given identifier. When the query constrains other
// fields, data is merged into the record only if it satisfies them.
func (s *Service) Update(ctx context.Context, rawID any, data model.Record, p Params) (model.Record, error) {
	if rawID == nil {
		return nil, fmt.Errorf("%w: you can not replace multiple instances, did you mean patch?", ErrBadRequest)
	}
	id, err := query.ID(rawID)
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}

	if !n.Predicate.Empty() {
		return s.updateWhere(ctx, id, data, n)
	}

	s.logger.DebugContext(ctx, "replace by id", "id", id)
	rec, err := s.model.ReplaceByID(ctx, id, data)
	if err != nil {
		return nil, byID(err, id)
	}
	return s.project(rec, n.Directives), nil
}

// Patch merges data into the record with the given identifier. Use PatchMany to patch
// by query.
func (s *Service) Patch(ctx context.Context, rawID any, data model.Record, p Params) (model.Record, error) {
	id, err := requireID(rawID, "patch")
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}

	if !n.Predicate.Empty() {
		return s.updateWhere(ctx, id, data, n)
	}

	s.logger.DebugContext(ctx, "update by id", "id", id)
	rec, err := s.model.UpdateByID(ctx, id, data)
	if err != nil {
		return nil, byID(err, id)
	}
	return s.project(rec, n.Directives), nil
}

// PatchMany merges data into every record matching the query and returns them as they
// are after the write.
func (s *Service) PatchMany(ctx context.Context, data model.Record, p Params) (Records, error) {
	if !s.config.allowsMulti(MethodPatch) {
		return nil, fmt.Errorf("%w: can not patch multiple entries", ErrMethodNotAllowed)
	}
	n, err := s.normalize(p.Query, &query.Paginate{})
	if err != nil {
		return nil, err
	}
	pred := query.MapOperators(n.Predicate)

	entries, err := s.matching(ctx, pred, n)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "update many", "clauses", len(pred), "matched", len(entries))
	res, err := s.model.UpdateMany(ctx, pred, data, s.writeOptions(n))
	if err != nil {
		return nil, err
	}
	if res.Success == 0 {
		return nil, fmt.Errorf("%w: no record found for query %v", ErrNotFound, p.Query)
	}

	out := make(Records, len(entries))
	for i, e := range entries {
		merged := maps.Clone(e)
		maps.Copy(merged, projection.Copy(data))
		out[i] = s.project(merged, n.Directives)
	}
	return out, nil
}

// Remove deletes the record with the given identifier and returns it as it was before
// deletion. When the query constrains other fields, the record must satisfy them.
// Use RemoveMany to remove by query.
func (s *Service) Remove(ctx context.Context, rawID any, p Params) (model.Record, error) {
	id, err := requireID(rawID, "remove")
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(p.Query, p.Paginate)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.model.FindByID(ctx, id, query.CallOptions{
		Lean:        s.config.Options.Lean,
		Consistency: s.config.Options.Consistency,
	})
	if err != nil {
		return nil, byID(err, id)
	}

	if n.Predicate.Empty() {
		s.logger.DebugContext(ctx, "remove by id", "id", id)
		if err := s.model.RemoveByID(ctx, id); err != nil {
			return nil, byID(err, id)
		}
		return s.project(snapshot, n.Directives), nil
	}

	pred := s.reconcile(id, n.Predicate)
	s.logger.DebugContext(ctx, "remove by predicate", "id", id, "clauses", len(pred))
	res, err := s.model.RemoveMany(ctx, pred, s.writeOptions(n))
	if err != nil {
		return nil, err
	}
	if res.Success == 0 {
		return nil, notFoundID(id)
	}
	return s.project(snapshot, n.Directives), nil
}

// RemoveMany deletes every record matching the query and returns them as they were
// before deletion. No match is not an error.
func (s *Service) RemoveMany(ctx context.Context, p Params) (Records, error) {
	if !s.config.allowsMulti(MethodRemove) {
		return nil, fmt.Errorf("%w: can not remove multiple entries", ErrMethodNotAllowed)
	}
	n, err := s.normalize(p.Query, &query.Paginate{})
	if err != nil {
		return nil, err
	}
	pred := query.MapOperators(n.Predicate)

	entries, err := s.matching(ctx, pred, n)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "remove many", "clauses", len(pred), "matched", len(entries))
	if _, err := s.model.RemoveMany(ctx, pred, s.writeOptions(n)); err != nil {
		return nil, err
	}
	return s.records(entries, n.Directives), nil
}

// updateWhere merges data into the record with the identifier when it also satisfies the
// query. Stores that do not echo updated records are read back by identifier.
func (s *Service) updateWhere(ctx context.Context, id string, data model.Record, n query.Normalized) (model.Record, error) {
	pred := s.reconcile(id, n.Predicate)
	s.logger.DebugContext(ctx, "update by predicate", "id", id, "clauses", len(pred))

	opts := s.writeOptions(n)
	res, err := s.model.UpdateMany(ctx, pred, data, opts)
	if err != nil {
		return nil, err
	}
	if res.Success == 0 {
		return nil, notFoundID(id)
	}
	if len(res.Data) > 0 {
		return s.project(res.Data[0], n.Directives), nil
	}

	rec, err := s.model.FindByID(ctx, id, opts)
	if err != nil {
		return nil, byID(err, id)
	}
	return s.project(rec, n.Directives), nil
}

func (s *Service) normalize(raw map[string]any, override *query.Paginate) (query.Normalized, error) {
	paginate := s.config.Paginate
	if override != nil {
		paginate = *override
	}
	return query.Normalize(raw, query.NormalizeOptions{
		Whitelist: s.config.Whitelist,
		Paginate:  paginate,
	})
}

func (s *Service) reconcile(id string, p query.Predicate) query.Predicate {
	return query.Reconcile(id, s.config.IDField, query.MapOperators(p))
}

// matching reads the records a multi-record write is about to affect.
func (s *Service) matching(ctx context.Context, pred query.Predicate, n query.Normalized) ([]model.Record, error) {
	opts, err := query.FindOptions(n.Directives, s.config.Options, s.config.IDField)
	if err != nil {
		return nil, err
	}
	return s.model.Find(ctx, pred, opts)
}

// writeOptions are the options for predicate-based writes. They match with the same
// case sensitivity as the preceding read.
func (s *Service) writeOptions(n query.Normalized) query.CallOptions {
	opts := query.DefaultOptions(n.Directives, s.config.Options, s.config.IDField)
	opts.IgnoreCase = n.Directives.IgnoreCase
	return opts
}

func (s *Service) project(rec model.Record, d query.Directives) model.Record {
	return projection.Select(rec, d.Select, s.config.IDField)
}

func (s *Service) records(rows []model.Record, d query.Directives) Records {
	out := make(Records, len(rows))
	for i, rec := range rows {
		out[i] = s.project(rec, d)
	}
	return out
}

func requireID(raw any, method string) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: %s requires an id", ErrBadRequest, method)
	}
	return query.ID(raw)
}
