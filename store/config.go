package store

import "github.com/jacentio/docservice/internal/shard"

// Config holds configuration for the Store.
type Config struct {
	// Table is the DynamoDB table holding the records.
	// Default: "docservice_records"
	Table string

	// IDField is the record field used as the table's string hash key.
	// Default: "id"
	IDField string

	// TTLAttribute is the numeric attribute holding an expiry time in Unix seconds.
	// Items whose TTL has passed are invisible before DynamoDB removes them.
	// Default: "ttl"
	TTLAttribute string

	// PageSize limits the number of items evaluated per Scan request.
	// Default: 0 (DynamoDB's 1 MB page limit)
	PageSize int32

	// Segments is the number of parallel Scan segments. Results are merged in segment order.
	// Default: 1 (sequential scan)
	Segments int
}

// DefaultConfig returns the default table layout.
func DefaultConfig() Config {
	return Config{
		Table:        "docservice_records",
		IDField:      "id",
		TTLAttribute: "ttl",
		Segments:     1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "docservice_records"
	}
	if c.IDField == "" {
		c.IDField = "id"
	}
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	c.Segments = shard.Segments(c.Segments)
}
