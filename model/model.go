// Package model defines the contract between the CRUD engine and a document store.
//
// A store operates on a single logical collection of records keyed by a string
// identifier. Predicates arrive already normalized and mapped to the native operator
// vocabulary of package query.
package model

import (
	"context"
	"errors"

	"github.com/jacentio/docservice/query"
)

var (
	// ErrNotFound is returned by by-identifier calls when no record has the identifier.
	// It is the only store error the engine reclassifies.
	ErrNotFound = errors.New("model: record not found")

	// ErrAlreadyExists is returned by Create when the identifier is taken.
	ErrAlreadyExists = errors.New("model: record already exists")
)

// Record is a single document: field name to decoded value.
type Record map[string]any

// Mutation reports the outcome of a predicate-based write.
type Mutation struct {
	// Success is the number of records affected.
	Success int

	// Data holds the records after the write, when the store returns them.
	Data []Record
}

// Model is the capability surface a store exposes to the engine.
type Model interface {
	// Find returns the records matching p, shaped by o (selection, sort, skip, limit).
	Find(ctx context.Context, p query.Predicate, o query.CallOptions) ([]Record, error)

	// Count returns the number of records matching p, ignoring selection and windowing.
	Count(ctx context.Context, p query.Predicate, o query.CallOptions) (int, error)

	// FindByID returns the record with the identifier or ErrNotFound.
	FindByID(ctx context.Context, id string, o query.CallOptions) (Record, error)

	// Create stores data, assigning an identifier when none is set.
	Create(ctx context.Context, data Record) (Record, error)

	// ReplaceByID replaces the whole record or returns ErrNotFound.
	ReplaceByID(ctx context.Context, id string, data Record) (Record, error)

	// UpdateByID merges data into the record or returns ErrNotFound.
	UpdateByID(ctx context.Context, id string, data Record) (Record, error)

	// UpdateMany merges data into every record matching p.
	UpdateMany(ctx context.Context, p query.Predicate, data Record, o query.CallOptions) (Mutation, error)

	// RemoveByID deletes the record or returns ErrNotFound.
	RemoveByID(ctx context.Context, id string) error

	// RemoveMany deletes every record matching p.
	RemoveMany(ctx context.Context, p query.Predicate, o query.CallOptions) (Mutation, error)
}
