// Package store implements model.Model over a single Amazon DynamoDB table.
//
// Records are stored as items keyed by a string hash key named after the identifier
// field. Values are converted with the attributevalue package, so numbers read back as
// float64.
//
// # Queries
//
// DynamoDB has no general query language over non-key attributes, so every predicate
// lookup is a Scan. The top-level clauses DynamoDB can evaluate are compiled into the
// scan's filter expression; the rest (case-insensitive comparisons, general $like
// patterns, dotted paths, large membership lists) are matched in memory with
// query.Matches. Sorting, skip, limit and selection always happen in memory.
// Config.Segments splits large scans into parallel segments.
//
// A predicate that pins the identifier with an equality is served by GetItem instead:
//
//	{id: "abc", status: "open"} → GetItem(abc) + in-memory check of status
//
// # Expiry
//
// Items whose TTL attribute (Unix seconds) is at or before now are treated as deleted,
// matching the DynamoDB TTL feature which removes them lazily:
//
//	cfg := store.DefaultConfig()
//	cfg.TTLAttribute = "expires_at"
//
// # Consistency
//
// query.ConsistencyLocal and query.ConsistencyGlobal request strongly consistent reads.
//
// # Errors
//
//   - [ErrNotFound] - item doesn't exist or has expired
//   - [ErrAlreadyExists] - a live item already has the identifier
//   - [ErrInvalidKey] - stored item without a string identifier
//
// Conditional check failures are translated with errors.As; every other AWS error is
// returned unchanged.
package store
