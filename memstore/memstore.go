// Package memstore implements model.Model in memory.
//
// Records are kept in insertion order and deep-copied on the way in and out, so callers
// never share state with the store. Predicates are evaluated with query.Matches. The
// store is safe for concurrent use.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/docservice/internal/projection"
	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
)

var _ model.Model = (*Store)(nil)

// Store is an in-memory collection of records.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.Record
	order   []string
	idField string
}

// New creates an empty Store keyed by idField. An empty idField defaults to "id".
func New(idField string) *Store {
	if idField == "" {
		idField = "id"
	}
	return &Store{
		records: make(map[string]model.Record),
		idField: idField,
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Find returns deep copies of the matching records, sorted, windowed and projected per o.
func (s *Store) Find(ctx context.Context, p query.Predicate, o query.CallOptions) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rows := make([]model.Record, 0, len(s.order))
	for _, id := range s.matchLocked(p, o.IgnoreCase) {
		rows = append(rows, projection.Copy(s.records[id]))
	}
	s.mu.RUnlock()

	query.SortRecords(rows, o.Sort)
	rows = query.Window(rows, o.Skip, o.Limit)
	return projection.SelectAll(rows, o.Select, s.idField), nil
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, p query.Predicate, o query.CallOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchLocked(p, o.IgnoreCase)), nil
}

// FindByID returns a copy of the record or model.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string, o query.CallOptions) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	return projection.Select(projection.Copy(rec), o.Select, s.idField), nil
}

// Create stores a copy of data. A missing identifier is generated; a taken one fails
// with model.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, data model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := projection.Copy(data)
	if rec == nil {
		rec = model.Record{}
	}

	id := uuid.NewString()
	if raw, ok := rec[s.idField]; ok && raw != nil {
		var err error
		if id, err = query.ID(raw); err != nil {
			return nil, err
		}
	}
	rec[s.idField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return nil, model.ErrAlreadyExists
	}
	s.records[id] = rec
	s.order = append(s.order, id)
	return projection.Copy(rec), nil
}

// ReplaceByID swaps the whole record, keeping its identifier.
func (s *Store) ReplaceByID(ctx context.Context, id string, data model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := projection.Copy(data)
	if rec == nil {
		rec = model.Record{}
	}
	rec[s.idField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil, model.ErrNotFound
	}
	s.records[id] = rec
	return projection.Copy(rec), nil
}

// UpdateByID merges data into the record. The identifier cannot be changed.
func (s *Store) UpdateByID(ctx context.Context, id string, data model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil, model.ErrNotFound
	}
	return projection.Copy(s.mergeLocked(id, data)), nil
}

// UpdateMany merges data into every matching record.
func (s *Store) UpdateMany(ctx context.Context, p query.Predicate, data model.Record, o query.CallOptions) (model.Mutation, error) {
	if err := ctx.Err(); err != nil {
		return model.Mutation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.matchLocked(p, o.IgnoreCase)
	res := model.Mutation{Success: len(ids), Data: make([]model.Record, 0, len(ids))}
	for _, id := range ids {
		rec := s.mergeLocked(id, data)
		res.Data = append(res.Data, projection.Select(projection.Copy(rec), o.Select, s.idField))
	}
	return res, nil
}

// RemoveByID deletes the record or returns model.ErrNotFound.
func (s *Store) RemoveByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return model.ErrNotFound
	}
	s.deleteLocked(id)
	return nil
}

// RemoveMany deletes every matching record.
func (s *Store) RemoveMany(ctx context.Context, p query.Predicate, o query.CallOptions) (model.Mutation, error) {
	if err := ctx.Err(); err != nil {
		return model.Mutation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.matchLocked(p, o.IgnoreCase)
	for _, id := range ids {
		s.deleteLocked(id)
	}
	return model.Mutation{Success: len(ids)}, nil
}

// matchLocked returns the identifiers of matching records in insertion order.
// Caller must hold s.mu.
func (s *Store) matchLocked(p query.Predicate, ignoreCase bool) []string {
	var ids []string
	for _, id := range s.order {
		if query.Matches(p, s.records[id], ignoreCase) {
			ids = append(ids, id)
		}
	}
	return ids
}

// mergeLocked copies data into the stored record. Caller must hold s.mu for writing.
func (s *Store) mergeLocked(id string, data model.Record) model.Record {
	rec := s.records[id]
	maps.Copy(rec, projection.Copy(data))
	rec[s.idField] = id
	return rec
}

func (s *Store) deleteLocked(id string) {
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}
