package service

import (
	"errors"
	"fmt"

	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
)

var (
	// ErrModelRequired is returned by New when no store is given.
	ErrModelRequired = errors.New("docservice: model must be provided")

	// ErrBadRequest is returned for structurally invalid calls.
	ErrBadRequest = errors.New("docservice: bad request")

	// ErrNotFound is returned when no record matches an identifier or a predicate-based write.
	ErrNotFound = errors.New("docservice: not found")

	// ErrMethodNotAllowed is returned when a multi-record call is not enabled in Config.Multi.
	ErrMethodNotAllowed = errors.New("docservice: method not allowed")

	// ErrValidation is returned for malformed queries and directives.
	ErrValidation = query.ErrInvalidQuery
)

func notFoundID(id string) error {
	return fmt.Errorf("%w: no record found for id %s", ErrNotFound, id)
}

// byID classifies the error of a by-identifier store call. Only model.ErrNotFound
// becomes ErrNotFound; other failures pass through.
func byID(err error, id string) error {
	if errors.Is(err, model.ErrNotFound) {
		return notFoundID(id)
	}
	return err
}
