// Package invoke exposes a service.Service as an AWS Lambda handler.
//
// A request names one of the generic methods (get, find, create, update, patch, remove)
// and carries the identifier, data and query object:
//
//	{"method": "patch", "id": null, "data": {"done": true}, "query": {"owner": "ann"}}
//
// A null id on patch or remove addresses every record matching the query. Caller
// errors are returned in Response.Error; store failures fail the invocation.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
	"github.com/jacentio/docservice/service"
)

// Methods accepted in Request.Method.
const (
	MethodGet    = "get"
	MethodFind   = "find"
	MethodCreate = "create"
	MethodUpdate = "update"
	MethodPatch  = "patch"
	MethodRemove = "remove"
)

// Request is a single generic CRUD call.
type Request struct {
	Method   string          `json:"method"`
	ID       any             `json:"id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Query    map[string]any  `json:"query,omitempty"`
	Paginate *query.Paginate `json:"paginate,omitempty"`
}

// Response carries either the result of the call or the reason it was rejected.
type Response struct {
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// Handler dispatches requests to a service.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewHandler creates a new invocation handler.
func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// Handle processes one request. This function is designed to be used as an AWS Lambda handler.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	result, err := h.dispatch(ctx, req)
	if err != nil {
		if body, ok := classify(err); ok {
			h.logger.InfoContext(ctx, "request rejected",
				"method", req.Method,
				"name", body.Name,
				"error", err,
			)
			return Response{Error: &body}, nil
		}
		h.logger.ErrorContext(ctx, "request failed",
			"method", req.Method,
			"error", err,
		)
		return Response{}, err
	}
	return Response{Result: result}, nil
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, error) {
	params := service.Params{Query: req.Query, Paginate: req.Paginate}

	switch req.Method {
	case MethodGet:
		return h.service.Get(ctx, req.ID, params)
	case MethodFind:
		return h.service.Find(ctx, params)
	case MethodCreate:
		if isList(req.Data) {
			var data []model.Record
			if err := decode(req.Data, &data); err != nil {
				return nil, err
			}
			return h.service.CreateMany(ctx, data, params)
		}
		data, err := record(req.Data)
		if err != nil {
			return nil, err
		}
		return h.service.Create(ctx, data, params)
	case MethodUpdate:
		data, err := record(req.Data)
		if err != nil {
			return nil, err
		}
		return h.service.Update(ctx, req.ID, data, params)
	case MethodPatch:
		data, err := record(req.Data)
		if err != nil {
			return nil, err
		}
		if req.ID == nil {
			return h.service.PatchMany(ctx, data, params)
		}
		return h.service.Patch(ctx, req.ID, data, params)
	case MethodRemove:
		if req.ID == nil {
			return h.service.RemoveMany(ctx, params)
		}
		return h.service.Remove(ctx, req.ID, params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
}

func record(raw json.RawMessage) (model.Record, error) {
	var data model.Record
	if err := decode(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = model.Record{}
	}
	return data, nil
}

func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return nil
}

func isList(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
