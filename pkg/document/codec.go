package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec
// =====
//
// The persistent backends (badger, s3) store documents as bytes. Plain
// JSON would lose two things on the way back: []byte values come back as
// base64 strings, and integers come back as float64. The envelope below
// fixes both:
//
//   - binary fields are split into a typed map[string][]byte, which
//     encoding/json round-trips as base64 without losing the Go type;
//   - the remaining fields are decoded with json.Number and normalized
//     to int64/float64 afterwards.
//
// JSON is kept (over a binary format) for the same reason the rest of
// the stored metadata uses it: values stay inspectable with standard
// tooling, and schema evolution needs no migration step.
//
// Only top-level binary fields survive the round trip typed; a []byte
// nested inside a metadata map decodes as a base64 string.

type envelope struct {
	Fields map[string]any    `json:"fields"`
	Binary map[string][]byte `json:"binary,omitempty"`
}

// Encode serializes a document for storage.
func Encode(doc Document) ([]byte, error) {
	env := envelope{Fields: make(map[string]any, len(doc))}
	for k, v := range doc {
		if b, ok := v.([]byte); ok {
			if env.Binary == nil {
				env.Binary = make(map[string][]byte, 1)
			}
			env.Binary[k] = b
			continue
		}
		env.Fields[k] = v
	}

	data, err := json.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Decode deserializes a document produced by Encode.
func Decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	doc := make(Document, len(env.Fields)+len(env.Binary))
	for k, v := range env.Fields {
		doc[k] = normalizeDecoded(v)
	}
	for k, b := range env.Binary {
		doc[k] = b
	}
	return doc, nil
}

// normalizeDecoded rewrites a decoded JSON tree so numbers carry the
// same types Insert accepted (int64 when integral, float64 otherwise).
func normalizeDecoded(v any) any {
	switch val := v.(type) {
	case json.Number:
		return normalize(val)
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeDecoded(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalizeDecoded(inner)
		}
		return val
	default:
		return v
	}
}
