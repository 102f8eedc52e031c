package e2e

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/marmos91/gridstore/pkg/config"
	"github.com/marmos91/gridstore/pkg/document"
	"github.com/marmos91/gridstore/pkg/grid"
)

// gcConfig enables the orphan sweeper on top of the given store block.
func gcConfig(storeBlock string) string {
	return fmt.Sprintf(`
logging:
  level: ERROR
%s
session:
  pool_size: 8
grids:
  - namespace: fs
gc:
  enabled: true
  interval: 24h
  namespaces:
    - fs
`, storeBlock)
}

// TestStack_OrphanSweepThroughConfig strands chunks the way a crashed
// unlink would and verifies the configured collector reclaims them
// without touching live files.
func TestStack_OrphanSweepThroughConfig(t *testing.T) {
	backends := []struct {
		name  string
		block func(t *testing.T) string
	}{
		{"memory", func(t *testing.T) string {
			return "store:\n  type: memory"
		}},
		{"badger", func(t *testing.T) string {
			return fmt.Sprintf("store:\n  type: badger\n  badger:\n    db_path: %s",
				filepath.Join(t.TempDir(), "documents"))
		}},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			st := newStack(t, gcConfig(backend.block(t)))
			fs := st.Session.Grid("fs")

			writeFile(t, fs, "keep.bin", make([]byte, 10_000))
			writeFile(t, fs, "doomed.bin", make([]byte, 10_000))

			doomed, err := fs.Stat(ctx, "doomed.bin")
			if err != nil {
				t.Fatalf("stat failed: %v", err)
			}

			// Strand the chunks by dropping only the file record.
			records := st.Session.Collection(grid.RecordsCollectionName("fs"))
			err = records.Remove(ctx, document.Filter{document.FieldID: doomed.ID.String()})
			if err != nil {
				t.Fatalf("Failed to drop file record: %v", err)
			}

			collector, err := config.CreateCollector(st.Session, &st.Config.GC)
			if err != nil {
				t.Fatalf("Failed to create collector: %v", err)
			}
			if collector == nil {
				t.Fatal("collector is nil with gc enabled")
			}

			stats, err := collector.RunNow(ctx)
			if err != nil {
				t.Fatalf("sweep failed: %v", err)
			}
			if stats.OrphanedCount != 1 || stats.DeletedCount != 1 || stats.FailedCount != 0 {
				t.Fatalf("unexpected sweep stats: %s", stats.Summary())
			}

			orphaned, err := fs.ChunkCount(ctx, doomed.ID)
			if err != nil {
				t.Fatalf("chunk count failed: %v", err)
			}
			if orphaned != 0 {
				t.Errorf("%d orphaned chunks survived the sweep", orphaned)
			}

			if got := readFile(t, fs, "keep.bin"); len(got) != 10_000 {
				t.Errorf("live file damaged by sweep: %d bytes", len(got))
			}
		})
	}
}
