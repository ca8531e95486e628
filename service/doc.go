// Package service is the CRUD engine: it turns generic get/find/create/update/patch/remove
// calls into store calls on a [model.Model] and normalizes the outcome.
//
// # Paths
//
// Every by-identifier operation first checks whether the query carries constraints
// beyond the identifier. Without them the store's by-id primitive is used directly.
// With them the identifier is reconciled into the predicate and the predicate-based
// primitive runs instead:
//
//	Get(id)            FindByID        | Find(id ∧ query, limit 1)
//	Update(id, data)   ReplaceByID     | UpdateMany(id ∧ query)
//	Patch(id, data)    UpdateByID      | UpdateMany(id ∧ query)
//	Remove(id)         RemoveByID      | RemoveMany(id ∧ query)
//
// The multi-record variants CreateMany, PatchMany and RemoveMany address records by
// predicate only and must be allowed by [Config.Multi]. PatchMany and RemoveMany read
// the affected records before writing.
//
// # Errors
//
//   - [ErrBadRequest] - structurally invalid call (e.g. Update without an id)
//   - [ErrNotFound] - no record matched an id or a predicate-based write
//   - [ErrMethodNotAllowed] - multi-record call not enabled
//   - [ErrValidation] - malformed query or directive
//
// Any other error comes from the store and is returned unchanged.
package service
