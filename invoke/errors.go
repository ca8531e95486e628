package invoke

import (
	"errors"
	"net/http"

	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/service"
)

var (
	// ErrUnknownMethod is returned for a request method the service does not offer.
	ErrUnknownMethod = errors.New("docservice: unknown method")

	// ErrMalformedData is returned when the request data is not a record or a list of records.
	ErrMalformedData = errors.New("docservice: malformed data")
)

// ErrorBody is the wire form of a rejected request.
type ErrorBody struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classify maps caller-facing failures to an ErrorBody. Anything else is a store or
// infrastructure failure and is reported as an invocation error.
func classify(err error) (ErrorBody, bool) {
	var name string
	var code int
	switch {
	case errors.Is(err, service.ErrValidation):
		name, code = "ValidationFailure", http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, ErrUnknownMethod),
		errors.Is(err, ErrMalformedData):
		name, code = "BadRequest", http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		name, code = "NotFound", http.StatusNotFound
	case errors.Is(err, service.ErrMethodNotAllowed):
		name, code = "MethodNotAllowed", http.StatusMethodNotAllowed
	case errors.Is(err, model.ErrAlreadyExists):
		name, code = "Conflict", http.StatusConflict
	default:
		return ErrorBody{}, false
	}
	return ErrorBody{Name: name, Code: code, Message: err.Error()}, true
}
