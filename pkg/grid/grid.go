// Package grid implements chunked file storage over plain document
// collections.
//
// A logical file is a FileRecord document plus a dense sequence of
// fixed-size chunk documents. The engine translates byte-range reads,
// writes and seeks on an open File handle into chunk-level operations,
// buffering one chunk in memory at a time. No other state exists
// outside the two collections, so any document.Store backend (memory,
// Badger, S3) serves as durable storage.
//
// Typical usage goes through FS.With, which guarantees the handle is
// flushed and closed on every exit path:
//
//	fs := grid.NewFS(store, grid.FSConfig{})
//	err := fs.With(ctx, "report.txt", "w", func(f *grid.File) error {
//		_, err := f.WriteString(ctx, "hello, world!")
//		return err
//	})
package grid

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/marmos91/gridstore/pkg/document"
)

// Collections supplies named document collections. Every
// document.Store implementation satisfies it, as does a session bound
// to one, so the engine never sees pooling or authentication.
type Collections interface {
	Collection(name string) document.Collection
}

// RecordsCollectionName returns the collection holding file records
// for a namespace.
func RecordsCollectionName(namespace string) string {
	return namespace + ".files"
}

// ChunksCollectionName returns the collection holding chunks for a
// namespace.
func ChunksCollectionName(namespace string) string {
	return namespace + ".chunks"
}

// FSConfig contains configuration for one grid filesystem.
//
// The zero value works: namespace "fs", 255 KiB chunks, octet-stream
// content type, no metrics.
type FSConfig struct {
	// Namespace scopes name lookups and chunk storage. Files under
	// distinct namespaces are fully isolated.
	Namespace string

	// DefaultChunkSize applies to new files whose writer does not call
	// SetChunkSize.
	DefaultChunkSize int64

	// DefaultContentType applies to new files whose writer does not
	// call SetContentType.
	DefaultContentType string

	// Metrics receives engine observations. Nil disables them.
	Metrics Metrics

	// IDGenerator mints file identifiers. Defaults to random UUIDs.
	IDGenerator document.IDGenerator

	// Now supplies upload timestamps. Defaults to time.Now.
	Now func() time.Time
}

// FS is a grid filesystem bound to one namespace.
//
// Thread Safety:
// FS itself is stateless and safe for concurrent use; each Open hands
// out an independent handle. Concurrent sessions on the same name are
// not coordinated beyond last-close-wins record resolution.
type FS struct {
	records *recordStore
	chunks  *chunkStore
	metrics Metrics

	namespace          string
	defaultChunkSize   int64
	defaultContentType string
	newID              document.IDGenerator
	now                func() time.Time
}

// NewFS creates a filesystem over the record and chunk collections of
// cfg.Namespace, resolved through colls.
func NewFS(colls Collections, cfg FSConfig) *FS {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = DefaultChunkSize
	}
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = DefaultContentType
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = document.NewID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &FS{
		records: &recordStore{
			collection: colls.Collection(RecordsCollectionName(cfg.Namespace)),
			namespace:  cfg.Namespace,
		},
		chunks: &chunkStore{
			collection: colls.Collection(ChunksCollectionName(cfg.Namespace)),
		},
		metrics:            cfg.Metrics,
		namespace:          cfg.Namespace,
		defaultChunkSize:   cfg.DefaultChunkSize,
		defaultContentType: cfg.DefaultContentType,
		newID:              cfg.IDGenerator,
		now:                cfg.Now,
	}
}

// Namespace returns the namespace this filesystem is bound to.
func (fs *FS) Namespace() string {
	return fs.namespace
}

// Open resolves or creates a file record and wires it to a handle.
//
// Mode tokens:
//   - "r": read the latest stored version; fails with ErrNotFound when
//     the name is absent
//   - "w": create a fresh version from scratch; the old version stays
//     resolvable until this handle closes
//   - "w+": modify the latest version in place, cursor at the end; an
//     absent name starts a fresh file
//
// The caller owns the handle and must Close it on every exit path.
// Prefer With, which does that automatically.
//
// Returns:
//   - *File: Open handle
//   - error: ErrInvalidArgument on a bad mode token or empty name,
//     ErrNotFound for read mode on an absent name, ErrCollaborator on
//     collection failure
func (fs *FS) Open(ctx context.Context, name, mode string) (*File, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalidArgument("file name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file := &File{
		records:    fs.records,
		chunks:     fs.chunks,
		metrics:    fs.metrics,
		mode:       m,
		chunkIndex: -1,
	}

	switch m {
	case ModeRead:
		rec, err := fs.records.findLatestByName(ctx, name)
		if err != nil {
			return nil, err
		}
		file.record = rec

	case ModeWrite:
		file.record = fs.newRecord(name)

	case ModeModify:
		rec, err := fs.records.findLatestByName(ctx, name)
		switch {
		case err == nil:
			file.record = rec
			file.existing = true
			file.position = rec.Length
		case IsNotFound(err):
			file.record = fs.newRecord(name)
		default:
			return nil, err
		}
	}

	if fs.metrics != nil {
		fs.metrics.FileOpened(m.String())
	}
	return file, nil
}

// With runs fn against an open handle and closes it on every exit
// path, including panics. A close failure surfaces only when fn itself
// succeeded.
func (fs *FS) With(ctx context.Context, name, mode string, fn func(*File) error) (err error) {
	file, openErr := fs.Open(ctx, name, mode)
	if openErr != nil {
		return openErr
	}
	defer func() {
		closeErr := file.Close(ctx)
		if err == nil {
			err = closeErr
		}
	}()
	return fn(file)
}

// newRecord builds the in-memory record for a file being created. It
// is persisted at close, never here.
func (fs *FS) newRecord(name string) *FileRecord {
	return &FileRecord{
		ID:              fs.newID(),
		Name:            name,
		Namespace:       fs.namespace,
		ChunkSize:       fs.defaultChunkSize,
		UploadTimestamp: fs.now(),
		ContentType:     fs.defaultContentType,
	}
}

// Exists reports whether at least one version of name is stored in
// this namespace.
func (fs *FS) Exists(ctx context.Context, name string) (bool, error) {
	return fs.records.exists(ctx, name)
}

// Unlink deletes every version of name together with all its chunks.
// Idempotent: unlinking an absent name is not an error.
func (fs *FS) Unlink(ctx context.Context, name string) error {
	records, err := fs.records.findAllByName(ctx, name)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := fs.chunks.deleteAll(ctx, rec.ID); err != nil {
			return err
		}
	}
	if err := fs.records.deleteByName(ctx, name); err != nil {
		return err
	}

	if fs.metrics != nil && len(records) > 0 {
		fs.metrics.FileUnlinked(len(records))
	}
	return nil
}

// ReadAll returns the full content of the latest version of name.
func (fs *FS) ReadAll(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := fs.With(ctx, name, "r", func(f *File) error {
		var err error
		data, err = f.ReadAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadRange returns up to length bytes of name starting at offset. A
// negative length means "to the end of the stream"; a range past the
// end yields the bytes that exist, down to none.
func (fs *FS) ReadRange(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	if offset < 0 {
		return nil, invalidArgument("offset must not be negative")
	}

	var data []byte
	err := fs.With(ctx, name, "r", func(f *File) error {
		if offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return err
			}
		}
		if length < 0 {
			var err error
			data, err = f.ReadAll(ctx)
			return err
		}

		buf := make([]byte, length)
		n, err := f.Read(ctx, buf)
		if err != nil && err != io.EOF {
			return err
		}
		data = buf[:n]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadLines returns the content of name split on newline boundaries.
// Every line keeps its trailing terminator except a final unterminated
// fragment, which is returned as written.
func (fs *FS) ReadLines(ctx context.Context, name string) ([]string, error) {
	data, err := fs.ReadAll(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}

	parts := bytes.SplitAfter(data, []byte("\n"))
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}

	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = string(part)
	}
	return lines, nil
}

// WriteLines creates a fresh version of name from the given lines,
// appending a newline to any line missing one.
func (fs *FS) WriteLines(ctx context.Context, name string, lines []string) error {
	return fs.With(ctx, name, "w", func(f *File) error {
		return f.WriteLines(ctx, lines)
	})
}

// Stat returns the latest stored record for name.
func (fs *FS) Stat(ctx context.Context, name string) (*FileRecord, error) {
	return fs.records.findLatestByName(ctx, name)
}

// Versions returns every stored record for name, in no particular
// order. Useful for inspecting historical versions left behind by
// repeated create sessions.
func (fs *FS) Versions(ctx context.Context, name string) ([]*FileRecord, error) {
	return fs.records.findAllByName(ctx, name)
}

// List returns every file record in the namespace.
func (fs *FS) List(ctx context.Context) ([]*FileRecord, error) {
	return fs.records.all(ctx)
}

// FileIDs returns the id of every file record in the namespace. Feed
// for the orphan sweeper.
func (fs *FS) FileIDs(ctx context.Context) ([]document.ID, error) {
	records, err := fs.records.all(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]document.ID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// ChunkOwners returns the distinct file id every stored chunk belongs
// to, whether or not a record for it exists. Feed for the orphan
// sweeper.
func (fs *FS) ChunkOwners(ctx context.Context) ([]document.ID, error) {
	return fs.chunks.fileIDs(ctx)
}

// DeleteChunksOf removes every chunk owned by fileID. Idempotent.
func (fs *FS) DeleteChunksOf(ctx context.Context, fileID document.ID) error {
	return fs.chunks.deleteAll(ctx, fileID)
}

// ChunkCount returns how many chunks fileID owns.
func (fs *FS) ChunkCount(ctx context.Context, fileID document.ID) (int64, error) {
	return fs.chunks.count(ctx, fileID)
}
