package testing

import (
	"context"
	"testing"

	"github.com/marmos91/gridstore/pkg/document"
)

// StoreTestSuite is a comprehensive test suite for document.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across different backends (memory,
// Badger, S3, ...).
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() document.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func() document.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Insert", suite.RunInsertTests)
	t.Run("Find", suite.RunFindTests)
	t.Run("Remove", suite.RunRemoveTests)
	t.Run("Count", suite.RunCountTests)
	t.Run("Collections", suite.RunCollectionTests)
	t.Run("Context", suite.RunContextTests)
}

// open creates a fresh store and arranges for it to be closed when the
// test finishes.
func (suite *StoreTestSuite) open(t *testing.T) document.Store {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
