// Package session provides the connection boundary between the grid
// engine and a document store.
//
// A Session owns one document.Store and hands out throttled,
// pool-gated collection handles, so every grid filesystem built on it
// shares the same operation pool and throttle. Pooling, credentials, and replica
// node bookkeeping all stop here: the engine above sees only the
// narrow collection interface.
//
// Example usage:
//
//	sess, err := session.New(ctx, store, session.Config{
//		Nodes:        []string{"db-0:27017", "db-1:27017"},
//		PoolSize:     16,
//		OpsPerSecond: 500,
//	})
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	fs := sess.Grid("fs")
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/gridstore/internal/logger"
	"github.com/marmos91/gridstore/internal/ratelimiter"
	"github.com/marmos91/gridstore/pkg/document"
	"github.com/marmos91/gridstore/pkg/grid"
)

// Credentials carries what the backing store wants for authentication.
// Stored for the store's benefit only; the session never interprets
// them beyond shape validation.
type Credentials struct {
	Username string
	Password string
}

// Config contains configuration for a session.
type Config struct {
	// Nodes lists replica node addresses ("host:port"). Address
	// resolution and failover live below the document store; the
	// session records them for diagnostics.
	Nodes []string

	// Credentials presented to the backing store. Optional; when set,
	// both fields must be non-empty.
	Credentials *Credentials

	// PoolSize caps concurrent in-flight store operations across all
	// collections. Zero means unlimited.
	PoolSize int

	// OpsPerSecond throttles the sustained store operation rate across
	// all collections. Zero means unthrottled.
	OpsPerSecond uint

	// Burst is the throttle bucket capacity. Zero defaults to twice
	// OpsPerSecond.
	Burst uint

	// DefaultChunkSize applies to grid filesystems built by this
	// session. Zero keeps the engine default.
	DefaultChunkSize int64

	// Grids overrides chunk size and content type per namespace.
	// Namespaces not listed here fall back to DefaultChunkSize and the
	// engine defaults.
	Grids []GridDefaults

	// Metrics is handed to every grid filesystem built by this
	// session. Nil disables engine metrics.
	Metrics grid.Metrics

	// StoreMetrics observes store operations passing through the
	// session gate. Nil disables collection.
	StoreMetrics StoreMetrics
}

// GridDefaults carries per-namespace settings applied when Grid first
// builds that namespace.
type GridDefaults struct {
	Namespace   string
	ChunkSize   int64
	ContentType string
}

// validate rejects configurations the session cannot honor.
func (c *Config) validate() error {
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size must not be negative, got %d", c.PoolSize)
	}
	for i, node := range c.Nodes {
		if node == "" {
			return fmt.Errorf("node address %d is empty", i)
		}
	}
	if c.Credentials != nil {
		if c.Credentials.Username == "" || c.Credentials.Password == "" {
			return fmt.Errorf("credentials require both username and password")
		}
	}
	for i, g := range c.Grids {
		if g.ChunkSize < 0 {
			return fmt.Errorf("grid %d: chunk size must not be negative, got %d", i, g.ChunkSize)
		}
	}
	return nil
}

// Session is a handle on one document store, shared by any number of
// grid filesystems.
//
// Thread Safety:
// All methods are safe for concurrent use. Collection handles obtained
// from a session stay valid until Close.
type Session struct {
	store   document.Store
	limiter *ratelimiter.Limiter

	// slots bounds concurrent store operations; nil means unlimited.
	slots chan struct{}

	nodes       []string
	credentials *Credentials

	gridMu   sync.RWMutex
	grids    map[string]*grid.FS
	gridDefs map[string]GridDefaults
	gridSize int64
	metrics  grid.Metrics

	storeMetrics StoreMetrics

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a session over store.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - store: Backing document store; the session takes ownership and
//     closes it on Close
//   - cfg: Session configuration
//
// Returns:
//   - *Session: Ready session
//   - error: Returns error on invalid configuration or cancelled ctx
func New(ctx context.Context, store document.Store, cfg Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	var slots chan struct{}
	if cfg.PoolSize > 0 {
		slots = make(chan struct{}, cfg.PoolSize)
		logger.Debug("session pool size: %d", cfg.PoolSize)
	} else {
		logger.Debug("session pool size: unlimited")
	}

	nodes := make([]string, len(cfg.Nodes))
	copy(nodes, cfg.Nodes)

	gridDefs := make(map[string]GridDefaults, len(cfg.Grids))
	for _, g := range cfg.Grids {
		ns := g.Namespace
		if ns == "" {
			ns = grid.DefaultNamespace
		}
		gridDefs[ns] = g
	}

	storeMetrics := cfg.StoreMetrics
	if storeMetrics == nil {
		storeMetrics = noopStoreMetrics{}
	}

	return &Session{
		store:        store,
		limiter:      ratelimiter.New(cfg.OpsPerSecond, cfg.Burst),
		slots:        slots,
		nodes:        nodes,
		credentials:  cfg.Credentials,
		grids:        make(map[string]*grid.FS),
		gridDefs:     gridDefs,
		gridSize:     cfg.DefaultChunkSize,
		metrics:      cfg.Metrics,
		storeMetrics: storeMetrics,
	}, nil
}

// Collection returns a throttled, pool-gated handle on the named
// collection. Satisfies grid.Collections.
func (s *Session) Collection(name string) document.Collection {
	return &gatedCollection{session: s, inner: s.store.Collection(name)}
}

// Grid returns the filesystem for a namespace, building it on first
// use. An empty namespace means the default one. Repeated calls with
// the same namespace return the same instance.
func (s *Session) Grid(namespace string) *grid.FS {
	if namespace == "" {
		namespace = grid.DefaultNamespace
	}

	s.gridMu.RLock()
	fs, ok := s.grids[namespace]
	s.gridMu.RUnlock()
	if ok {
		return fs
	}

	s.gridMu.Lock()
	defer s.gridMu.Unlock()

	if fs, ok := s.grids[namespace]; ok {
		return fs
	}

	fsCfg := grid.FSConfig{
		Namespace:        namespace,
		DefaultChunkSize: s.gridSize,
		Metrics:          s.metrics,
	}
	if defs, ok := s.gridDefs[namespace]; ok {
		if defs.ChunkSize > 0 {
			fsCfg.DefaultChunkSize = defs.ChunkSize
		}
		if defs.ContentType != "" {
			fsCfg.DefaultContentType = defs.ContentType
		}
	}

	fs = grid.NewFS(s, fsCfg)
	s.grids[namespace] = fs
	return fs
}

// Nodes returns the configured replica node addresses. The returned
// slice is a copy and safe to modify.
func (s *Session) Nodes() []string {
	nodes := make([]string, len(s.nodes))
	copy(nodes, s.nodes)
	return nodes
}

// Credentials returns a copy of the configured credentials, or nil.
func (s *Session) Credentials() *Credentials {
	if s.credentials == nil {
		return nil
	}
	creds := *s.credentials
	return &creds
}

// Stats reports the session's current resource usage.
type Stats struct {
	// ActiveOps is the number of store operations in flight. Always
	// zero when the pool is unlimited.
	ActiveOps int

	// PoolSize is the configured operation cap, zero when unlimited.
	PoolSize int

	// TokensAvailable is the throttle bucket level.
	TokensAvailable float64
}

// Stats returns a point-in-time snapshot of pool and throttle state.
func (s *Session) Stats() Stats {
	stats := Stats{TokensAvailable: s.limiter.Tokens()}
	if s.slots != nil {
		stats.ActiveOps = len(s.slots)
		stats.PoolSize = cap(s.slots)
	}
	return stats
}

// Close releases the session and the store it owns. Safe to call more
// than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.store.Close()
		logger.Debug("session closed")
	})
	return s.closeErr
}

// acquire waits for throttle and pool admission.
func (s *Session) acquire(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("session is closed")
	}
	start := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.storeMetrics.ObserveQueueWait(time.Since(start))
	return nil
}

// release returns a pool slot.
func (s *Session) release() {
	if s.slots != nil {
		<-s.slots
	}
}

// gatedCollection runs every collection operation through the
// session's throttle and pool before delegating.
type gatedCollection struct {
	session *Session
	inner   document.Collection
}

func (c *gatedCollection) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	if err := c.session.acquire(ctx); err != nil {
		return "", err
	}
	defer c.session.release()
	start := time.Now()
	id, err := c.inner.Insert(ctx, doc)
	c.session.storeMetrics.ObserveOperation("insert", time.Since(start), err)
	return id, err
}

func (c *gatedCollection) Find(ctx context.Context, filter document.Filter) ([]document.Document, error) {
	if err := c.session.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.session.release()
	start := time.Now()
	docs, err := c.inner.Find(ctx, filter)
	c.session.storeMetrics.ObserveOperation("find", time.Since(start), err)
	return docs, err
}

func (c *gatedCollection) Remove(ctx context.Context, filter document.Filter) error {
	if err := c.session.acquire(ctx); err != nil {
		return err
	}
	defer c.session.release()
	start := time.Now()
	err := c.inner.Remove(ctx, filter)
	c.session.storeMetrics.ObserveOperation("remove", time.Since(start), err)
	return err
}

func (c *gatedCollection) Count(ctx context.Context, filter document.Filter) (int64, error) {
	if err := c.session.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.session.release()
	start := time.Now()
	n, err := c.inner.Count(ctx, filter)
	c.session.storeMetrics.ObserveOperation("count", time.Since(start), err)
	return n, err
}
