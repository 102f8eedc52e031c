// Package gc provides garbage collection for orphaned chunks.
//
// The garbage collector identifies and removes chunk documents whose owning
// file record no longer exists (orphaned chunks). This can occur due to:
//   - Process crashes between chunk flushes and the record commit on close
//   - Unlink operations that removed the record but failed mid chunk sweep
//   - Abandoned write handles that were never closed
//
// The collector works against any grid provider, typically a session, and
// sweeps one or more namespaces per run.
package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/gridstore/internal/logger"
	"github.com/marmos91/gridstore/pkg/document"
	"github.com/marmos91/gridstore/pkg/grid"
)

// GridProvider resolves a namespace to its grid filesystem.
//
// *session.Session satisfies this interface.
type GridProvider interface {
	Grid(namespace string) *grid.FS
}

// Collector performs periodic garbage collection on chunk collections.
//
// The collector runs in the background and periodically scans each configured
// namespace for chunks whose file record is gone, then deletes them.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	grids  GridProvider
	config Config
	stopCh chan struct{}
	doneCh chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active (default: true)
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// Namespaces lists the namespaces to sweep (default: ["fs"])
	Namespaces []string

	// DryRun mode logs what would be deleted without actually deleting (default: false)
	// Useful for testing and validation
	DryRun bool
}

// NewCollector creates a new garbage collector.
//
// The collector will be initialized but not started. Call Start() to begin
// background garbage collection.
//
// Parameters:
//   - grids: Provider used to resolve each configured namespace
//   - config: Garbage collection configuration
//
// Returns:
//   - *Collector: Initialized collector (not started)
//   - error: Returns error if grids is nil
func NewCollector(grids GridProvider, config Config) (*Collector, error) {
	if grids == nil {
		return nil, fmt.Errorf("grid provider is required")
	}

	// Set defaults
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if len(config.Namespaces) == 0 {
		config.Namespaces = []string{grid.DefaultNamespace}
	}

	return &Collector{
		grids:  grids,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins background garbage collection.
//
// This starts a goroutine that periodically runs garbage collection at the
// configured interval. The goroutine will run until Stop() is called.
//
// Safe to call multiple times (subsequent calls are no-ops).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		logger.Info("Starting garbage collector: interval=%s namespaces=%v dry_run=%v",
			c.config.Interval, c.config.Namespaces, c.config.DryRun)

		c.started.Store(true)
		go c.worker()
	})
}

// Stop stops the garbage collector and waits for it to finish.
//
// This signals the worker goroutine to stop and waits for it to complete
// any in-progress collection. Safe to call multiple times.
//
// Parameters:
//   - ctx: Context for timeout (garbage collection will be interrupted if context expires)
//
// Returns:
//   - error: Returns error if context expires before shutdown completes
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled || !c.started.Load() {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping garbage collector...")
		close(c.stopCh)
	})

	// Wait for worker to finish (with context timeout)
	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate garbage collection run.
//
// This is useful for:
//   - Testing
//   - Manual triggers via CLI or admin API
//   - Initial cleanup on startup
//
// The method blocks until collection completes or context is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - *Stats: Collection statistics
//   - error: Returns error if collection fails or context is cancelled
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic garbage collection.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("Garbage collector worker started")

	for {
		select {
		case <-ticker.C:
			// Periodic collection
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Garbage collector worker stopping...")
			return
		}
	}
}

// collect performs a single garbage collection run across all namespaces.
//
// This is the core GC algorithm, applied per namespace:
//  1. Get all file IDs referenced by file records
//  2. Get all file IDs that own chunks
//  3. Compute orphaned = owners - referenced
//  4. Delete the chunks of each orphaned owner
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - *Stats: Collection statistics
//   - error: Returns error if collection fails
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	for _, namespace := range c.config.Namespaces {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		if err := c.collectNamespace(ctx, namespace, stats); err != nil {
			stats.EndTime = time.Now()
			return stats, fmt.Errorf("namespace %q: %w", namespace, err)
		}
	}

	stats.EndTime = time.Now()

	logger.Info("GC: Completed - deleted chunks of %d files, %d failed, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.Duration())

	return stats, nil
}

// collectNamespace sweeps a single namespace and accumulates into stats.
func (c *Collector) collectNamespace(ctx context.Context, namespace string, stats *Stats) error {
	fs := c.grids.Grid(namespace)

	logger.Info("GC: [%s] Phase 1 - Getting file IDs referenced by file records...", namespace)

	// Phase 1: Get all file IDs that still have a record
	referenced, err := fs.FileIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get referenced file IDs: %w", err)
	}
	stats.ReferencedCount += uint64(len(referenced))

	logger.Info("GC: [%s] Found %d referenced files", namespace, len(referenced))

	// Build set for fast lookup
	referencedSet := make(map[document.ID]struct{}, len(referenced))
	for _, id := range referenced {
		referencedSet[id] = struct{}{}
	}

	logger.Info("GC: [%s] Phase 2 - Getting chunk owners from chunk collection...", namespace)

	// Phase 2: Get all file IDs that own at least one chunk
	owners, err := fs.ChunkOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chunk owners: %w", err)
	}
	stats.OwnerCount += uint64(len(owners))

	logger.Info("GC: [%s] Found %d chunk owners", namespace, len(owners))

	// Phase 3: Compute orphaned owners
	orphaned := make([]document.ID, 0)
	for _, id := range owners {
		if _, isReferenced := referencedSet[id]; !isReferenced {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount += uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Info("GC: [%s] No orphaned chunks found", namespace)
		return nil
	}

	logger.Info("GC: [%s] Found %d orphaned chunk owners", namespace, len(orphaned))

	if c.config.DryRun {
		logger.Info("GC: [%s] DRY RUN - Would delete chunks of %d files:", namespace, len(orphaned))
		for i, id := range orphaned {
			if i < 10 {
				logger.Info("  - %s", id)
			}
		}
		if len(orphaned) > 10 {
			logger.Info("  ... and %d more", len(orphaned)-10)
		}
		return nil
	}

	// Phase 4: Delete the chunks of each orphaned owner
	logger.Info("GC: [%s] Phase 3 - Deleting orphaned chunks...", namespace)

	for _, id := range orphaned {
		// Check for cancellation
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fs.DeleteChunksOf(ctx, id); err != nil {
			logger.Warn("GC: [%s] Failed to delete chunks of %s: %v", namespace, id, err)
			stats.FailedCount++
			continue
		}

		stats.DeletedCount++
		logger.Debug("GC: [%s] Deleted chunks of %s", namespace, id)
	}

	return nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Number of file IDs referenced by file records
	OwnerCount      uint64    // Number of file IDs owning chunks
	OrphanedCount   uint64    // Number of orphaned owners found
	DeletedCount    uint64    // Number of orphaned owners whose chunks were deleted
	FailedCount     uint64    // Number of orphaned owners whose deletion failed
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d owners=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.OwnerCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
