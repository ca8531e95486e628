package service

import (
	"github.com/jacentio/docservice/model"
	"github.com/jacentio/docservice/query"
)

// Result is the outcome of Find: Records, or *Page when pagination was requested.
type Result interface {
	result()
}

// Records is a plain result sequence.
type Records []model.Record

func (Records) result() {}

// Page is the paginated envelope. Total counts every record matching the query,
// independent of Limit and Skip.
type Page struct {
	Total int            `json:"total"`
	Limit *int           `json:"limit,omitempty"`
	Skip  int            `json:"skip"`
	Data  []model.Record `json:"data"`
}

func (*Page) result() {}

// Params carries the per-call query and pagination override.
type Params struct {
	// Query is the generic query object, directives included.
	Query map[string]any

	// Paginate overrides Config.Paginate for this call; a zero Paginate disables it.
	Paginate *query.Paginate
}
