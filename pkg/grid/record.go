package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/gridstore/pkg/document"
)

// Document field names for the persisted layout. FileRecord documents
// carry {id, name, namespace, length, chunkSize, uploadTimestamp,
// contentType, metadata}; chunk documents carry {fileId, index, payload}.
const (
	fieldName            = "name"
	fieldNamespace       = "namespace"
	fieldLength          = "length"
	fieldChunkSize       = "chunkSize"
	fieldUploadTimestamp = "uploadTimestamp"
	fieldContentType     = "contentType"
	fieldMetadata        = "metadata"

	fieldFileID  = "fileId"
	fieldIndex   = "index"
	fieldPayload = "payload"
)

const (
	// DefaultNamespace scopes files when no namespace is chosen.
	DefaultNamespace = "fs"

	// DefaultChunkSize is the chunk payload size used when a writer
	// does not pick one (255 KiB).
	DefaultChunkSize = 255 * 1024

	// DefaultContentType is recorded when a writer does not set one.
	DefaultContentType = "application/octet-stream"
)

// FileRecord describes one logical file.
//
// A record is created when a file is opened for writing and persisted
// when the handle closes; until then it exists only in memory. Several
// records may share a Name (historical versions); open-for-read
// resolves to the one with the greatest UploadTimestamp, breaking ties
// by the lexicographically greatest ID.
type FileRecord struct {
	// ID is the globally unique identifier, immutable once created.
	ID document.ID

	// Name is the lookup key within Namespace. Not unique by itself.
	Name string

	// Namespace is the logical root grouping ("fs" by default).
	Namespace string

	// Length is the total byte length of the content. Authoritative:
	// always equals the sum of the chunk payload sizes once a
	// write session has closed.
	Length int64

	// ChunkSize is the payload size of every chunk except possibly
	// the last. Fixed for the file's lifetime once any chunk exists.
	ChunkSize int64

	// UploadTimestamp is set once at creation and preserved across
	// modify sessions.
	UploadTimestamp time.Time

	// ContentType defaults to DefaultContentType when unset.
	ContentType string

	// Metadata is an open key-to-value mapping, opaque to the engine.
	// Nil means absent, which is distinct from an empty map.
	Metadata map[string]any
}

// chunkCount returns how many chunks a file of this length and chunk
// size occupies: ceil(Length/ChunkSize), zero for an empty file.
func (r *FileRecord) chunkCount() int64 {
	if r.Length == 0 {
		return 0
	}
	return (r.Length + r.ChunkSize - 1) / r.ChunkSize
}

// recordStore persists FileRecords on one document collection.
//
// All business errors carry a StoreError code; raw collection failures
// are wrapped under ErrCollaborator with the cause preserved.
type recordStore struct {
	collection document.Collection
	namespace  string
}

// findLatestByName returns the most recent record for name.
//
// Recency is the greatest UploadTimestamp; records sharing an identical
// timestamp are ordered by lexicographically greatest ID so resolution
// stays deterministic.
//
// Returns:
//   - *FileRecord: The winning record
//   - error: ErrNotFound when no record matches, ErrCollaborator on
//     collection failure
func (s *recordStore) findLatestByName(ctx context.Context, name string) (*FileRecord, error) {
	records, err := s.findAllByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound(name)
	}

	best := records[0]
	for _, rec := range records[1:] {
		if rec.UploadTimestamp.After(best.UploadTimestamp) {
			best = rec
			continue
		}
		if rec.UploadTimestamp.Equal(best.UploadTimestamp) && rec.ID > best.ID {
			best = rec
		}
	}
	return best, nil
}

// findAllByName returns every record for name, in no particular order.
// A name with no records yields an empty slice, not an error.
func (s *recordStore) findAllByName(ctx context.Context, name string) ([]*FileRecord, error) {
	docs, err := s.collection.Find(ctx, document.Filter{
		fieldName:      name,
		fieldNamespace: s.namespace,
	})
	if err != nil {
		return nil, collaborator("failed to query file records", err)
	}

	records := make([]*FileRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := recordFromDocument(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// insert stores a new record. When rec.ID is empty the collection
// assigns one and it is written back into rec.
func (s *recordStore) insert(ctx context.Context, rec *FileRecord) error {
	id, err := s.collection.Insert(ctx, recordToDocument(rec))
	if err != nil {
		return collaborator("failed to insert file record", err)
	}
	rec.ID = id
	return nil
}

// update fully replaces the stored record matching rec.ID. Insert with
// a carried id is a keyed overwrite, so a failed write leaves the
// previous record intact instead of deleting it first.
func (s *recordStore) update(ctx context.Context, rec *FileRecord) error {
	if _, err := s.collection.Insert(ctx, recordToDocument(rec)); err != nil {
		return collaborator("failed to replace file record", err)
	}
	return nil
}

// deleteByName removes every record for name. Idempotent.
func (s *recordStore) deleteByName(ctx context.Context, name string) error {
	err := s.collection.Remove(ctx, document.Filter{
		fieldName:      name,
		fieldNamespace: s.namespace,
	})
	if err != nil {
		return collaborator("failed to delete file records", err)
	}
	return nil
}

// exists reports whether at least one record for name is stored.
func (s *recordStore) exists(ctx context.Context, name string) (bool, error) {
	n, err := s.collection.Count(ctx, document.Filter{
		fieldName:      name,
		fieldNamespace: s.namespace,
	})
	if err != nil {
		return false, collaborator("failed to count file records", err)
	}
	return n > 0, nil
}

// all returns every record in the namespace, in no particular order.
func (s *recordStore) all(ctx context.Context) ([]*FileRecord, error) {
	docs, err := s.collection.Find(ctx, document.Filter{fieldNamespace: s.namespace})
	if err != nil {
		return nil, collaborator("failed to list file records", err)
	}

	records := make([]*FileRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := recordFromDocument(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordToDocument converts a FileRecord into its persisted document.
// The timestamp is stored as Unix nanoseconds so ordering survives the
// codec; Metadata is written only when present.
func recordToDocument(rec *FileRecord) document.Document {
	doc := document.Document{
		fieldName:            rec.Name,
		fieldNamespace:       rec.Namespace,
		fieldLength:          rec.Length,
		fieldChunkSize:       rec.ChunkSize,
		fieldUploadTimestamp: rec.UploadTimestamp.UnixNano(),
		fieldContentType:     rec.ContentType,
	}
	if rec.ID != "" {
		doc[document.FieldID] = rec.ID.String()
	}
	if rec.Metadata != nil {
		doc[fieldMetadata] = rec.Metadata
	}
	return doc
}

// recordFromDocument rebuilds a FileRecord from its persisted document.
func recordFromDocument(doc document.Document) (*FileRecord, error) {
	rec := &FileRecord{ID: doc.ID()}

	var ok bool
	if rec.Name, ok = stringField(doc, fieldName); !ok {
		return nil, malformedRecord(doc, fieldName)
	}
	if rec.Namespace, ok = stringField(doc, fieldNamespace); !ok {
		return nil, malformedRecord(doc, fieldNamespace)
	}
	if rec.Length, ok = intField(doc, fieldLength); !ok {
		return nil, malformedRecord(doc, fieldLength)
	}
	if rec.ChunkSize, ok = intField(doc, fieldChunkSize); !ok {
		return nil, malformedRecord(doc, fieldChunkSize)
	}

	nanos, ok := intField(doc, fieldUploadTimestamp)
	if !ok {
		return nil, malformedRecord(doc, fieldUploadTimestamp)
	}
	rec.UploadTimestamp = time.Unix(0, nanos)

	rec.ContentType, _ = stringField(doc, fieldContentType)
	if rec.ContentType == "" {
		rec.ContentType = DefaultContentType
	}

	if raw, present := doc[fieldMetadata]; present {
		meta, ok := raw.(map[string]any)
		if !ok {
			return nil, malformedRecord(doc, fieldMetadata)
		}
		rec.Metadata = meta
	}
	return rec, nil
}

// malformedRecord reports a stored document that cannot be interpreted
// as a FileRecord. Classified as a collaborator failure because the
// collection returned data this layer never writes.
func malformedRecord(doc document.Document, field string) error {
	return collaborator(
		fmt.Sprintf("malformed file record %s: bad field %q", doc.ID(), field),
		nil,
	)
}

// stringField extracts a string field from a document.
func stringField(doc document.Document, field string) (string, bool) {
	v, ok := doc[field].(string)
	return v, ok
}

// intField extracts an integer field, tolerating the numeric types the
// codec and the in-memory store produce.
func intField(doc document.Document, field string) (int64, bool) {
	switch v := doc[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
