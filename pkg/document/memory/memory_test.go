package memory

import (
	"context"
	"testing"

	"github.com/marmos91/gridstore/pkg/document"
	documenttesting "github.com/marmos91/gridstore/pkg/document/testing"
)

// TestMemoryStore runs the complete document.Store test suite against
// the in-memory implementation.
func TestMemoryStore(t *testing.T) {
	suite := &documenttesting.StoreTestSuite{
		NewStore: func() document.Store {
			store, err := NewStore(context.Background())
			if err != nil {
				t.Fatalf("Failed to create memory store: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}
