// Package badger implements the document store on BadgerDB.
//
// This backend provides persistent collections backed by an embedded
// key-value store. It is suitable for:
//   - Production deployments requiring persistence across restarts
//   - Single-node setups without an external database
//   - Multi-GB record and chunk storage
//
// Key Features:
//   - Crash recovery (WAL-based)
//   - Transactional inserts and removes
//   - Prefix scans for collection queries (see keys.go for the schema)
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/gridstore/pkg/document"
)

// removeBatchSize bounds how many deletes share one transaction so bulk
// removes never hit Badger's transaction size limit.
const removeBatchSize = 1000

// Store implements document.Store using BadgerDB for persistence.
//
// Thread Safety:
// BadgerDB transactions provide isolation; the store itself holds no
// mutable state beyond the database handle, so all collection handles
// are safe for concurrent use.
type Store struct {
	db    *badger.DB
	newID document.IDGenerator
}

// StoreConfig contains configuration for creating a BadgerDB document store.
type StoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	// (value log, LSM tree, etc.). Created if it does not exist.
	DBPath string `mapstructure:"db_path"`

	// BadgerOptions allows full customization of BadgerDB behavior.
	// If nil, defaults tuned for the document workload are used.
	BadgerOptions *badger.Options

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 256).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 128).
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`
}

// NewStore opens (or creates) a BadgerDB-backed document store.
//
// The returned store is immediately ready for use and safe for
// concurrent access from multiple goroutines.
//
// Parameters:
//   - ctx: Context for cancellation (checked before opening the DB)
//   - config: Configuration including the DB path and cache sizes
//
// Returns:
//   - *Store: A new store instance ready for use
//   - error: Error if database initialization fails or ctx is cancelled
func NewStore(ctx context.Context, config StoreConfig) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		// Defaults tuned for the document workload: frequent point
		// lookups by id, prefix scans per collection, chunk payloads
		// up to a few hundred KB per value.
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 256
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 128
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &Store{
		db:    db,
		newID: document.NewID,
	}, nil
}

// Collection returns a handle for the named collection.
func (s *Store) Collection(name string) document.Collection {
	return &collection{
		db:    s.db,
		name:  name,
		newID: s.newID,
	}
}

// Close closes the BadgerDB database and releases all resources.
//
// This flushes pending writes to disk. After calling Close, the store
// and every collection handle obtained from it must not be used.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// collection implements document.Collection over one key prefix.
type collection struct {
	db    *badger.DB
	name  string
	newID document.IDGenerator
}

// Insert stores doc under its identifier, assigning one when absent.
func (c *collection) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := doc.ID()
	if id == "" {
		id = c.newID()
	}

	// Encode outside the transaction; the stored copy carries the id.
	stored := doc.Clone()
	stored[document.FieldID] = id.String()
	data, err := document.Encode(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode document for %s: %w", c.name, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyDocument(c.name, id), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert document into %s: %w", c.name, err)
	}
	return id, nil
}

// Find returns every document in the collection matching filter.
func (c *collection) Find(ctx context.Context, filter document.Filter) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []document.Document
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(ctx, txn, filter, func(doc document.Document) error {
			out = append(out, doc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", c.name, err)
	}
	return out, nil
}

// Remove deletes every document matching filter. Idempotent.
//
// Keys are collected first and deleted in bounded batches so removing a
// large file's chunks never exceeds the transaction size limit.
func (c *collection) Remove(ctx context.Context, filter document.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(ctx, txn, filter, func(doc document.Document) error {
			keys = append(keys, keyDocument(c.name, doc.ID()))
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s for removal: %w", c.name, err)
	}

	for start := 0; start < len(keys); start += removeBatchSize {
		end := start + removeBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		err := c.db.Update(func(txn *badger.Txn) error {
			for _, key := range batch {
				if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to remove documents from %s: %w", c.name, err)
		}
	}
	return nil
}

// Count returns the number of documents matching filter.
func (c *collection) Count(ctx context.Context, filter document.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64

	// An empty filter matches everything, so keys alone answer the
	// question without fetching values.
	if len(filter) == 0 {
		err := c.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = keyCollectionPrefix(c.name)

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				n++
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
		return n, nil
	}

	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(ctx, txn, filter, func(document.Document) error {
			n++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
	}
	return n, nil
}

// scan walks the collection prefix, decodes each value, and invokes fn
// for every document matching filter.
func (c *collection) scan(ctx context.Context, txn *badger.Txn, filter document.Filter, fn func(document.Document) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = keyCollectionPrefix(c.name)

	it := txn.NewIterator(opts)
	defer it.Close()

	scanned := 0
	for it.Rewind(); it.Valid(); it.Next() {
		// Check context periodically on large collections.
		if scanned%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		scanned++

		item := it.Item()
		var doc document.Document
		err := item.Value(func(val []byte) error {
			var derr error
			doc, derr = document.Decode(val)
			return derr
		})
		if err != nil {
			return fmt.Errorf("failed to decode document at %s: %w", item.Key(), err)
		}

		if !filter.Matches(doc) {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
