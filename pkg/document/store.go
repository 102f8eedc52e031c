package document

import "context"

// Collection is the narrow interface the storage engine consumes.
//
// A Collection holds documents of one kind (file records or chunks for a
// given namespace) and supports exactly the four operations the engine
// needs. Implementations must be safe for concurrent use; atomicity of a
// single Insert or Remove is the backend's responsibility and is the
// only consistency the engine relies on.
//
// Semantics:
//   - Insert stores a deep copy of the document and returns its primary
//     key, assigning a fresh one when the document carries none. Insert
//     is keyed by that identifier: inserting a document whose id is
//     already stored replaces the previous document in one write.
//   - Find returns deep copies of every document matching the filter, in
//     unspecified order. No match is an empty slice, not an error.
//   - Remove deletes every matching document and is idempotent.
//   - Count reports how many documents match the filter.
//
// Errors returned by a Collection are backend failures (I/O, encoding,
// remote service errors). They are propagated to the engine unchanged.
type Collection interface {
	// Insert stores doc and returns its assigned identifier.
	Insert(ctx context.Context, doc Document) (ID, error)

	// Find returns all documents matching filter.
	Find(ctx context.Context, filter Filter) ([]Document, error)

	// Remove deletes all documents matching filter.
	Remove(ctx context.Context, filter Filter) error

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Store provides named collections over one storage backend.
//
// Collection returns a handle for the named collection, creating it
// lazily on first use. Handles returned for the same name operate on the
// same underlying data. Close releases backend resources; using any
// collection handle after Close is undefined.
type Store interface {
	Collection(name string) Collection
	Close() error
}
