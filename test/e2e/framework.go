// Package e2e exercises the full gridstore stack the way a deployment
// wires it: configuration file -> factories -> session -> grid.
//
// Every stack here is self-contained; the scenarios run against the
// memory and badger backends and need no external services.
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/gridstore/pkg/config"
	"github.com/marmos91/gridstore/pkg/grid"
	"github.com/marmos91/gridstore/pkg/session"
)

// Stack is one fully wired deployment built from a configuration file.
type Stack struct {
	Config  *config.Config
	Metrics *config.MetricsResult
	Session *session.Session
}

// newStack writes cfgYAML to a config file, loads it, and brings up a
// session over the configured store. The session is closed when the
// test finishes.
func newStack(t *testing.T, cfgYAML string) *Stack {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	metricsResult := config.InitializeMetrics(cfg)

	sess, err := config.CreateSession(ctx, cfg, metricsResult)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	return &Stack{
		Config:  cfg,
		Metrics: metricsResult,
		Session: sess,
	}
}

// memoryConfig returns a configuration file for an in-memory stack
// with one extra namespace carrying non-default grid settings.
func memoryConfig() string {
	return `
logging:
  level: ERROR
store:
  type: memory
session:
  pool_size: 8
grids:
  - namespace: fs
  - namespace: media
    chunk_size: 4096
    content_type: image/png
`
}

// badgerConfig returns a configuration file for a badger-backed stack
// rooted at dir. Two stacks built from the same dir see the same data
// as long as their lifetimes do not overlap.
func badgerConfig(dir string) string {
	return fmt.Sprintf(`
logging:
  level: ERROR
store:
  type: badger
  badger:
    db_path: %s
session:
  pool_size: 8
grids:
  - namespace: fs
  - namespace: media
    chunk_size: 4096
    content_type: image/png
`, filepath.Join(dir, "documents"))
}

// runOnAllStores runs scenario once per self-contained backend, each
// time against a freshly built stack.
func runOnAllStores(t *testing.T, scenario func(t *testing.T, st *Stack)) {
	t.Run("memory", func(t *testing.T) {
		scenario(t, newStack(t, memoryConfig()))
	})
	t.Run("badger", func(t *testing.T) {
		scenario(t, newStack(t, badgerConfig(t.TempDir())))
	})
}

// writeFile stores payload under name through the stack's grid.
func writeFile(t *testing.T, fs *grid.FS, name string, payload []byte) {
	t.Helper()
	err := fs.With(context.Background(), name, "w", func(f *grid.File) error {
		_, err := f.Write(context.Background(), payload)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to write %q: %v", name, err)
	}
}

// readFile reads the full contents of name through the stack's grid.
func readFile(t *testing.T, fs *grid.FS, name string) []byte {
	t.Helper()
	data, err := fs.ReadAll(context.Background(), name)
	if err != nil {
		t.Fatalf("Failed to read %q: %v", name, err)
	}
	return data
}
