package testing

import (
	"testing"

	"github.com/marmos91/gridstore/pkg/document"
	"github.com/stretchr/testify/require"
)

// mustInsert inserts a document and fails the test if it errors.
func mustInsert(t *testing.T, coll document.Collection, doc document.Document) document.ID {
	t.Helper()
	id, err := coll.Insert(testContext(), doc)
	require.NoError(t, err, "Insert should succeed")
	require.NotEmpty(t, id, "Insert should return an identifier")
	return id
}

// mustFind runs a query and fails the test if it errors.
func mustFind(t *testing.T, coll document.Collection, filter document.Filter) []document.Document {
	t.Helper()
	docs, err := coll.Find(testContext(), filter)
	require.NoError(t, err, "Find should succeed")
	return docs
}

// findOne expects the filter to match exactly one document.
func findOne(t *testing.T, coll document.Collection, filter document.Filter) document.Document {
	t.Helper()
	docs := mustFind(t, coll, filter)
	require.Len(t, docs, 1, "Filter should match exactly one document")
	return docs[0]
}

// mustRemove removes matching documents and fails the test if it errors.
func mustRemove(t *testing.T, coll document.Collection, filter document.Filter) {
	t.Helper()
	err := coll.Remove(testContext(), filter)
	require.NoError(t, err, "Remove should succeed")
}

// assertCount checks how many documents match the filter.
func assertCount(t *testing.T, coll document.Collection, filter document.Filter, expected int64) {
	t.Helper()
	n, err := coll.Count(testContext(), filter)
	require.NoError(t, err, "Count should succeed")
	require.Equal(t, expected, n, "Document count mismatch")
}

// generateBinary creates a binary payload of the given size.
func generateBinary(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}
