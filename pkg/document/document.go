// Package document defines the collection boundary the storage engine is
// built on: an opaque document representation, equality filters, and the
// Collection/Store interfaces implemented by the memory, badger, and s3
// backends.
//
// The engine never talks to a database directly. Everything it persists
// goes through a Collection, so any store that can hold documents keyed
// by the fields it writes (insert/find/remove/count) can back it.
package document

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/google/uuid"
)

// ID uniquely identifies a document within a collection.
//
// IDs are UUID v4 strings. They are assigned at insert time when the
// document does not already carry one, and are immutable afterwards.
type ID string

// String returns the ID as a plain string.
func (id ID) String() string {
	return string(id)
}

// FieldID is the reserved document field holding the primary key.
//
// Every backend keys its storage on this field. Inserting a document
// that already carries a non-empty FieldID preserves it; otherwise the
// backend assigns a fresh one.
const FieldID = "id"

// NewID returns a fresh unique identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// IDGenerator produces unique document identifiers.
//
// Backends accept a generator so tests can substitute deterministic
// sequences. The zero value (nil) means NewID.
type IDGenerator func() ID

// Document is the opaque unit of storage.
//
// Values are restricted to the types the codec round-trips losslessly:
// string, bool, int64, float64, []byte, nil, map[string]any, and []any
// (with the same restriction applying recursively). Integer values of
// other widths are accepted on write and normalized to int64.
type Document map[string]any

// ID returns the document's primary key, or "" when unset.
func (d Document) ID() ID {
	id, _ := d[FieldID].(string)
	return ID(id)
}

// Clone returns a deep copy of the document.
//
// Backends clone on both insert and find so callers can never alias
// stored state through a returned map or payload slice.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []byte:
		cp := make([]byte, len(val))
		copy(cp, val)
		return cp
	case map[string]any:
		cp := make(map[string]any, len(val))
		for k, inner := range val {
			cp[k] = cloneValue(inner)
		}
		return cp
	case Document:
		return map[string]any(val.Clone())
	case []any:
		cp := make([]any, len(val))
		for i, inner := range val {
			cp[i] = cloneValue(inner)
		}
		return cp
	default:
		return v
	}
}

// Filter selects documents by field equality.
//
// Every key listed must be present in the document with an equal value.
// An empty (or nil) filter matches every document. Numeric values are
// compared after normalization, so an int32 filter value matches an
// int64 stored value.
type Filter map[string]any

// Matches reports whether doc satisfies every equality constraint in f.
func (f Filter) Matches(doc Document) bool {
	for field, want := range f {
		got, ok := doc[field]
		if !ok {
			return false
		}
		if !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// valuesEqual compares two document values after normalization.
func valuesEqual(a, b any) bool {
	na, nb := normalize(a), normalize(b)

	if ba, ok := na.([]byte); ok {
		bb, ok := nb.([]byte)
		return ok && bytes.Equal(ba, bb)
	}

	// Mixed integer/float comparisons happen when a value crossed the
	// JSON codec (which cannot distinguish the two). Compare as floats;
	// document integers stay well inside float64's exact range.
	if ia, ok := na.(int64); ok {
		if fb, ok := nb.(float64); ok {
			return float64(ia) == fb
		}
	}
	if fa, ok := na.(float64); ok {
		if ib, ok := nb.(int64); ok {
			return fa == float64(ib)
		}
	}

	return na == nb
}

// normalize maps every numeric representation onto int64 or float64 so
// values compare consistently regardless of which backend (or codec
// round-trip) produced them.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		if uint64(n) > math.MaxInt64 {
			return uint64(n)
		}
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		// Values past MaxInt64 would wrap negative; keep them as-is
		// (they can never equal a stored int64 anyway).
		if n > math.MaxInt64 {
			return n
		}
		return int64(n)
	case float32:
		return float64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case ID:
		return string(n)
	default:
		return v
	}
}
