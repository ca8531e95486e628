package service

import (
	"slices"

	"github.com/jacentio/docservice/query"
)

// Methods that can be enabled for multi-record calls.
const (
	MethodCreate = "create"
	MethodPatch  = "patch"
	MethodRemove = "remove"

	// MultiAll enables every multi-record method.
	MultiAll = "*"
)

// Config holds configuration for the Service. It is copied by New and never
// modified afterwards.
type Config struct {
	// IDField is the record field holding the identifier.
	// Default: "id"
	IDField string

	// Options are the static store options merged into every call.
	// Default: lean, no consistency requirement
	Options query.StaticOptions

	// Whitelist enables extended query operators such as "$like" or "$ignoreCase".
	Whitelist []string

	// Multi lists the methods allowed to address several records
	// (MethodCreate, MethodPatch, MethodRemove or MultiAll).
	Multi []string

	// Paginate enables paginated Find results unless a call overrides it.
	Paginate query.Paginate

	// CreateConcurrency bounds the number of concurrent store calls in CreateMany.
	// Default: 8
	CreateConcurrency int
}

// DefaultConfig returns the default identifier field, lean reads and every
// multi-record method enabled.
func DefaultConfig() Config {
	return Config{
		IDField:           "id",
		Options:           query.DefaultStaticOptions(),
		Multi:             []string{MultiAll},
		CreateConcurrency: 8,
	}
}

// validate fills in defaults for zero values.
func (c *Config) validate() {
	if c.IDField == "" {
		c.IDField = "id"
	}
	if c.Options.Consistency == "" {
		c.Options.Consistency = query.ConsistencyNone
	}
	if c.CreateConcurrency < 1 {
		c.CreateConcurrency = 8
	}
	c.Whitelist = slices.Clone(c.Whitelist)
	c.Multi = slices.Clone(c.Multi)
}

func (c Config) allowsMulti(method string) bool {
	return slices.Contains(c.Multi, MultiAll) || slices.Contains(c.Multi, method)
}
