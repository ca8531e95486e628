package query

import "errors"

// ErrInvalidQuery is returned when a query object or one of its directives is malformed.
var ErrInvalidQuery = errors.New("docservice: invalid query")
