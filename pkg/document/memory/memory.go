// Package memory implements the document store on in-process maps.
//
// This backend is designed for:
//   - Testing and development
//   - Small-scale or ephemeral deployments
//   - Acting as the reference implementation for Collection semantics
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: data is lost on process exit
//   - Thread-safe: protected by RWMutex, copies on every boundary
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/gridstore/pkg/document"
)

// Store holds named collections in process memory.
//
// Thread Safety:
// The collection map and every collection are guarded by RWMutexes.
// Documents are deep-copied on insert and find, so callers can never
// alias stored state.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	newID       document.IDGenerator
}

// NewStore creates an empty in-memory document store.
//
// Parameters:
//   - ctx: Context for cancellation (checked before initialization)
//
// Returns:
//   - *Store: Initialized store
//   - error: Only returns error if context is cancelled
func NewStore(ctx context.Context) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Store{
		collections: make(map[string]*collection),
		newID:       document.NewID,
	}, nil
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) document.Collection {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok = s.collections[name]; ok {
		return col
	}
	col = &collection{
		docs:  make(map[document.ID]document.Document),
		newID: s.newID,
	}
	s.collections[name] = col
	return col
}

// Close releases the store. For the memory backend this only drops the
// collection map so later use fails loudly instead of silently reviving
// stale data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = nil
	return nil
}

// collection implements document.Collection over a map keyed by ID.
type collection struct {
	mu    sync.RWMutex
	docs  map[document.ID]document.Document
	newID document.IDGenerator
}

// Insert stores a deep copy of doc, assigning an identifier when absent.
func (c *collection) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := doc.Clone()
	id := stored.ID()
	if id == "" {
		id = c.newID()
		stored[document.FieldID] = id.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = stored
	return id, nil
}

// Find returns deep copies of every document matching filter.
func (c *collection) Find(ctx context.Context, filter document.Filter) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []document.Document
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Remove deletes every document matching filter. Idempotent.
func (c *collection) Remove(ctx context.Context, filter document.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, doc := range c.docs {
		if filter.Matches(doc) {
			delete(c.docs, id)
		}
	}
	return nil
}

// Count returns the number of documents matching filter.
func (c *collection) Count(ctx context.Context, filter document.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			n++
		}
	}
	return n, nil
}
