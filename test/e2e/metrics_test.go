package e2e

import (
	"context"
	"testing"

	"github.com/marmos91/gridstore/pkg/metrics"
)

// TestStack_MetricsWiring enables collection through the configuration
// file and verifies grid and store traffic lands in the registry.
//
// The Prometheus registry is process-global and write-once, so this
// must stay the only test in the binary that enables metrics.
func TestStack_MetricsWiring(t *testing.T) {
	ctx := context.Background()
	st := newStack(t, `
logging:
  level: ERROR
store:
  type: memory
server:
  metrics:
    enabled: true
grids:
  - namespace: fs
`)

	if st.Metrics.Server == nil {
		t.Fatal("metrics server is nil with metrics enabled")
	}
	if st.Metrics.GridMetrics == nil {
		t.Fatal("grid metrics sink is nil with metrics enabled")
	}
	if st.Metrics.StoreMetrics == nil {
		t.Fatal("store metrics sink is nil with metrics enabled")
	}

	fs := st.Session.Grid("fs")
	writeFile(t, fs, "observed.bin", make([]byte, 2048))
	readFile(t, fs, "observed.bin")
	if err := fs.Unlink(ctx, "observed.bin"); err != nil {
		t.Fatalf("unlink failed: %v", err)
	}

	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	gathered := make(map[string]bool, len(families))
	for _, mf := range families {
		gathered[mf.GetName()] = true
	}

	for _, name := range []string{
		"gridstore_sessions_opened_total",
		"gridstore_sessions_closed_total",
		"gridstore_stream_bytes_total",
		"gridstore_chunks_total",
		"gridstore_files_unlinked_total",
		"gridstore_store_operations_total",
		"gridstore_store_operation_duration_seconds",
		"gridstore_store_queue_wait_seconds",
	} {
		if !gathered[name] {
			t.Errorf("metric family %q missing from registry", name)
		}
	}
}
