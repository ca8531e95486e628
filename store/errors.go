package store

import (
	"errors"

	"github.com/jacentio/docservice/model"
)

var (
	// ErrNotFound is returned when an item doesn't exist or has expired.
	ErrNotFound = model.ErrNotFound

	// ErrAlreadyExists is returned when creating an item with a live identifier.
	ErrAlreadyExists = model.ErrAlreadyExists

	// ErrInvalidKey is returned when a stored item has no string identifier.
	ErrInvalidKey = errors.New("docservice: item has no string identifier")
)
