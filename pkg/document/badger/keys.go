package badger

import "github.com/marmos91/gridstore/pkg/document"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so documents from different collections
// share one keyspace and are told apart by prefixed keys. This design:
//   - Prevents key collisions between collections
//   - Enables efficient prefix scans (all documents of one collection)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Data Type   Prefix   Key Format               Value Type
// =================================================================
// Document    "d:"     d:<collection>:<id>      codec envelope (JSON)
//
// Document identifiers are UUID v4 strings and therefore never contain
// a colon, so the <collection> segment parses unambiguously even though
// collection names themselves contain dots ("photos.chunks").
//
// Point lookup by (collection, id) is O(1); listing a collection is a
// prefix scan over "d:<collection>:".

const prefixDocument = "d:"

// keyDocument generates the key for a document.
//
// Format: "d:<collection>:<id>"
// Example: "d:fs.files:550e8400-e29b-41d4-a716-446655440000"
func keyDocument(collection string, id document.ID) []byte {
	return []byte(prefixDocument + collection + ":" + id.String())
}

// keyCollectionPrefix generates the prefix for scanning a collection.
//
// Format: "d:<collection>:"
func keyCollectionPrefix(collection string) []byte {
	return []byte(prefixDocument + collection + ":")
}
