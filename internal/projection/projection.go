// Package projection trims records to a selection list.
package projection

import (
	"slices"
	"strings"

	"github.com/mitchellh/copystructure"

	"github.com/jacentio/docservice/query"
)

// Select returns a deep copy of rec holding only the selected fields and idField.
// A nil selection returns rec unchanged. Dotted fields select nested values and keep
// their nesting in the result. rec is never modified.
func Select[R ~map[string]any](rec R, fields []string, idField string) R {
	if fields == nil || rec == nil {
		return rec
	}
	out := make(R, len(fields)+1)
	for _, field := range slices.Concat(fields, []string{idField}) {
		v, ok := query.Lookup(rec, field)
		if !ok {
			continue
		}
		if _, flat := rec[field]; flat {
			out[field] = Copy(v)
			continue
		}
		setPath(out, strings.Split(field, "."), Copy(v))
	}
	return out
}

// SelectAll applies Select to every record, returning a new slice.
func SelectAll[R ~map[string]any](recs []R, fields []string, idField string) []R {
	if fields == nil {
		return recs
	}
	out := make([]R, len(recs))
	for i, rec := range recs {
		out[i] = Select(rec, fields, idField)
	}
	return out
}

// Copy deep-copies a decoded value. Values copystructure cannot walk are returned as is.
func Copy[T any](v T) T {
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	out, ok := c.(T)
	if !ok {
		return v
	}
	return out
}

func setPath(m map[string]any, path []string, v any) {
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}
