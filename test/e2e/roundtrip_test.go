package e2e

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/gridstore/pkg/grid"
)

// TestStack_WriteReadRoundTrip pushes a payload through a configured
// stack and reads it back.
func TestStack_WriteReadRoundTrip(t *testing.T) {
	runOnAllStores(t, func(t *testing.T, st *Stack) {
		ctx := context.Background()
		fs := st.Session.Grid("fs")

		payload := make([]byte, 100_000)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
		writeFile(t, fs, "dataset.bin", payload)

		if got := readFile(t, fs, "dataset.bin"); !bytes.Equal(got, payload) {
			t.Fatalf("read back %d bytes, want %d matching bytes", len(got), len(payload))
		}

		ok, err := fs.Exists(ctx, "dataset.bin")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if !ok {
			t.Fatal("file should exist after write")
		}

		rec, err := fs.Stat(ctx, "dataset.bin")
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if rec.Length != int64(len(payload)) {
			t.Errorf("length = %d, want %d", rec.Length, len(payload))
		}
		if rec.ChunkSize != grid.DefaultChunkSize {
			t.Errorf("chunk size = %d, want engine default %d", rec.ChunkSize, grid.DefaultChunkSize)
		}
		if rec.ContentType != grid.DefaultContentType {
			t.Errorf("content type = %q, want %q", rec.ContentType, grid.DefaultContentType)
		}

		middle, err := fs.ReadRange(ctx, "dataset.bin", 50_000, 16)
		if err != nil {
			t.Fatalf("range read failed: %v", err)
		}
		if !bytes.Equal(middle, payload[50_000:50_016]) {
			t.Fatalf("range read returned %v", middle)
		}

		if err := fs.Unlink(ctx, "dataset.bin"); err != nil {
			t.Fatalf("unlink failed: %v", err)
		}
		ok, err = fs.Exists(ctx, "dataset.bin")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if ok {
			t.Fatal("file should be gone after unlink")
		}
	})
}

// TestStack_NamespaceDefaultsFromConfig verifies that per-namespace
// grid settings in the configuration file reach the engine.
func TestStack_NamespaceDefaultsFromConfig(t *testing.T) {
	runOnAllStores(t, func(t *testing.T, st *Stack) {
		ctx := context.Background()
		media := st.Session.Grid("media")

		payload := make([]byte, 10_000)
		writeFile(t, media, "cover.png", payload)

		rec, err := media.Stat(ctx, "cover.png")
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if rec.ChunkSize != 4096 {
			t.Errorf("chunk size = %d, want 4096 from config", rec.ChunkSize)
		}
		if rec.ContentType != "image/png" {
			t.Errorf("content type = %q, want image/png from config", rec.ContentType)
		}

		chunks, err := media.ChunkCount(ctx, rec.ID)
		if err != nil {
			t.Fatalf("chunk count failed: %v", err)
		}
		if chunks != 3 {
			t.Errorf("stored chunks = %d, want 3 for 10000 bytes over 4096", chunks)
		}
	})
}

// TestStack_NamespacesAreIsolated stores the same name in two
// namespaces and verifies they never mix.
func TestStack_NamespacesAreIsolated(t *testing.T) {
	runOnAllStores(t, func(t *testing.T, st *Stack) {
		ctx := context.Background()
		fs := st.Session.Grid("fs")
		media := st.Session.Grid("media")

		writeFile(t, fs, "shared-name", []byte("filesystem payload"))
		writeFile(t, media, "shared-name", []byte("media payload"))

		if got := readFile(t, fs, "shared-name"); string(got) != "filesystem payload" {
			t.Fatalf("fs namespace read %q", got)
		}
		if got := readFile(t, media, "shared-name"); string(got) != "media payload" {
			t.Fatalf("media namespace read %q", got)
		}

		if err := fs.Unlink(ctx, "shared-name"); err != nil {
			t.Fatalf("unlink failed: %v", err)
		}
		ok, err := media.Exists(ctx, "shared-name")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if !ok {
			t.Fatal("unlink in one namespace removed the other's file")
		}
	})
}

// TestStack_LineOrientedHelpers drives the line helpers end to end.
func TestStack_LineOrientedHelpers(t *testing.T) {
	runOnAllStores(t, func(t *testing.T, st *Stack) {
		ctx := context.Background()
		fs := st.Session.Grid("fs")

		if err := fs.WriteLines(ctx, "access.log", []string{"GET /", "POST /upload", "GET /health"}); err != nil {
			t.Fatalf("write lines failed: %v", err)
		}

		lines, err := fs.ReadLines(ctx, "access.log")
		if err != nil {
			t.Fatalf("read lines failed: %v", err)
		}
		want := []string{"GET /\n", "POST /upload\n", "GET /health\n"}
		if len(lines) != len(want) {
			t.Fatalf("got %d lines, want %d", len(lines), len(want))
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
			}
		}
	})
}

// TestStack_VersionsAccumulate writes one name twice and checks that
// the newest version wins while history stays reachable.
func TestStack_VersionsAccumulate(t *testing.T) {
	runOnAllStores(t, func(t *testing.T, st *Stack) {
		ctx := context.Background()
		fs := st.Session.Grid("fs")

		writeFile(t, fs, "report.txt", []byte("first draft"))
		writeFile(t, fs, "report.txt", []byte("final version"))

		if got := readFile(t, fs, "report.txt"); string(got) != "final version" {
			t.Fatalf("latest read %q", got)
		}

		versions, err := fs.Versions(ctx, "report.txt")
		if err != nil {
			t.Fatalf("versions failed: %v", err)
		}
		if len(versions) != 2 {
			t.Fatalf("got %d versions, want 2", len(versions))
		}
	})
}
