package types

import (
	"reflect"
	"strings"
	"time"
)

// Document is the unit of storage. A document's id is globally unique and is
// generated by the store when absent. Content is required. The embedding is
// optional; when present its length must equal the collection's configured
// vector dimension.
type Document struct {
	ID        string
	Content   string
	Title     string
	Metadata  map[string]any
	Embedding []float32

	// Set by the store, never by the caller
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the document against the collection's vector dimension.
// A dimension of 0 disables the embedding check (vector search disabled).
// Violations are reported before any write happens.
func (d *Document) Validate(dimension int) error {
	if strings.TrimSpace(d.Content) == "" {
		return NewValidationError("content", ErrEmptyContent)
	}
	if len(d.Embedding) > 0 && dimension > 0 && len(d.Embedding) != dimension {
		return NewValidationError("embedding", ErrDimensionMismatch)
	}
	return nil
}

// Clone returns a deep copy so callers never share mutable state with the
// store's transient copies.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Metadata != nil {
		out.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	if d.Embedding != nil {
		out.Embedding = make([]float32, len(d.Embedding))
		copy(out.Embedding, d.Embedding)
	}
	return &out
}

// SearchFilter narrows list/search operations by metadata. A plain value
// means equality; a []string or []any value means "metadata value is one of".
type SearchFilter map[string]any

// Matches reports whether the given metadata satisfies every filter entry.
// A document with no metadata matches only an empty filter.
func (f SearchFilter) Matches(metadata map[string]any) bool {
	if len(f) == 0 {
		return true
	}
	if metadata == nil {
		return false
	}
	for key, want := range f {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		switch allowed := want.(type) {
		case []string:
			if !containsValue(got, stringsToAny(allowed)) {
				return false
			}
		case []any:
			if !containsValue(got, allowed) {
				return false
			}
		default:
			if !valueEqual(got, want) {
				return false
			}
		}
	}
	return true
}

func stringsToAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func containsValue(got any, allowed []any) bool {
	for _, v := range allowed {
		if valueEqual(got, v) {
			return true
		}
	}
	return false
}

// valueEqual compares metadata values loosely: numbers compare by value
// regardless of Go type, since JSON round-trips turn ints into float64.
func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
