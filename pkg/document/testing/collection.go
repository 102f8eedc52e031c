package testing

import (
	"context"
	"testing"

	"github.com/marmos91/gridstore/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunInsertTests executes all Insert contract tests.
func (suite *StoreTestSuite) RunInsertTests(t *testing.T) {
	t.Run("Insert_AssignsIdentifier", suite.testInsertAssignsIdentifier)
	t.Run("Insert_PreservesProvidedIdentifier", suite.testInsertPreservesProvidedIdentifier)
	t.Run("Insert_ClonesInput", suite.testInsertClonesInput)
	t.Run("Insert_KeepsDocumentsDistinct", suite.testInsertKeepsDocumentsDistinct)
	t.Run("Insert_SameIdentifierReplaces", suite.testInsertSameIdentifierReplaces)
}

// RunFindTests executes all Find contract tests.
func (suite *StoreTestSuite) RunFindTests(t *testing.T) {
	t.Run("Find_EmptyFilterReturnsAll", suite.testFindEmptyFilterReturnsAll)
	t.Run("Find_FieldEquality", suite.testFindFieldEquality)
	t.Run("Find_ConjunctionSemantics", suite.testFindConjunctionSemantics)
	t.Run("Find_NoMatchIsEmptyNotError", suite.testFindNoMatchIsEmptyNotError)
	t.Run("Find_MissingFieldNeverMatches", suite.testFindMissingFieldNeverMatches)
	t.Run("Find_NumericWidths", suite.testFindNumericWidths)
	t.Run("Find_ByIdentifier", suite.testFindByIdentifier)
	t.Run("Find_ReturnsClones", suite.testFindReturnsClones)
	t.Run("Find_BinaryPayloadStaysTyped", suite.testFindBinaryPayloadStaysTyped)
}

// RunRemoveTests executes all Remove contract tests.
func (suite *StoreTestSuite) RunRemoveTests(t *testing.T) {
	t.Run("Remove_ByFilter", suite.testRemoveByFilter)
	t.Run("Remove_Idempotent", suite.testRemoveIdempotent)
	t.Run("Remove_ByIdentifier", suite.testRemoveByIdentifier)
	t.Run("Remove_EmptyFilterRemovesAll", suite.testRemoveEmptyFilterRemovesAll)
}

// RunCountTests executes all Count contract tests.
func (suite *StoreTestSuite) RunCountTests(t *testing.T) {
	t.Run("Count_EmptyCollection", suite.testCountEmptyCollection)
	t.Run("Count_WithFilter", suite.testCountWithFilter)
}

// RunCollectionTests executes collection identity tests.
func (suite *StoreTestSuite) RunCollectionTests(t *testing.T) {
	t.Run("Collections_Isolated", suite.testCollectionsIsolated)
	t.Run("Collections_SameNameSharesData", suite.testCollectionsSameNameSharesData)
}

// RunContextTests executes context propagation tests.
func (suite *StoreTestSuite) RunContextTests(t *testing.T) {
	t.Run("Context_CancellationRejected", suite.testContextCancellationRejected)
}

// ============================================================================
// Insert Tests
// ============================================================================

func (suite *StoreTestSuite) testInsertAssignsIdentifier(t *testing.T) {
	coll := suite.open(t).Collection("records")

	id := mustInsert(t, coll, document.Document{"kind": "assigned"})

	// The stored document carries the identifier it was assigned.
	doc := findOne(t, coll, document.Filter{document.FieldID: id.String()})
	assert.Equal(t, id, doc.ID(), "Stored document should carry the assigned identifier")
}

func (suite *StoreTestSuite) testInsertPreservesProvidedIdentifier(t *testing.T) {
	coll := suite.open(t).Collection("records")

	id := mustInsert(t, coll, document.Document{
		document.FieldID: "custom-0001",
		"kind":           "provided",
	})
	require.Equal(t, document.ID("custom-0001"), id, "Insert should keep the provided identifier")

	findOne(t, coll, document.Filter{document.FieldID: "custom-0001"})
}

func (suite *StoreTestSuite) testInsertClonesInput(t *testing.T) {
	coll := suite.open(t).Collection("records")

	payload := []byte("original payload")
	doc := document.Document{"kind": "cloned", "note": "before", "payload": payload}
	id := mustInsert(t, coll, doc)

	// Mutating the caller's document after insert must not reach
	// stored state.
	doc["note"] = "after"
	payload[0] = 'X'

	stored := findOne(t, coll, document.Filter{document.FieldID: id.String()})
	assert.Equal(t, "before", stored["note"], "Stored field aliases caller state")

	storedPayload, ok := stored["payload"].([]byte)
	require.True(t, ok, "Stored payload should stay []byte")
	assert.Equal(t, []byte("original payload"), storedPayload, "Stored payload aliases caller state")
}

func (suite *StoreTestSuite) testInsertKeepsDocumentsDistinct(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "distinct", "n": int64(1)})
	mustInsert(t, coll, document.Document{"kind": "distinct", "n": int64(2)})

	assertCount(t, coll, document.Filter{"kind": "distinct"}, 2)
}

func (suite *StoreTestSuite) testInsertSameIdentifierReplaces(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{document.FieldID: "rec-1", "rev": int64(1)})
	mustInsert(t, coll, document.Document{document.FieldID: "rec-1", "rev": int64(2)})

	// Insert is keyed by identifier: one document remains, carrying
	// the fields of the second write.
	assertCount(t, coll, document.Filter{document.FieldID: "rec-1"}, 1)
	doc := findOne(t, coll, document.Filter{document.FieldID: "rec-1"})
	assert.Equal(t, int64(2), doc["rev"], "Second insert should replace the stored document")
}

// ============================================================================
// Find Tests
// ============================================================================

func (suite *StoreTestSuite) testFindEmptyFilterReturnsAll(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "a"})
	mustInsert(t, coll, document.Document{"kind": "b"})
	mustInsert(t, coll, document.Document{"kind": "c"})

	docs := mustFind(t, coll, document.Filter{})
	assert.Len(t, docs, 3, "Empty filter should return every document")
}

func (suite *StoreTestSuite) testFindFieldEquality(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"name": "report", "owner": "amelia"})
	mustInsert(t, coll, document.Document{"name": "report", "owner": "jordan"})
	mustInsert(t, coll, document.Document{"name": "draft", "owner": "amelia"})

	docs := mustFind(t, coll, document.Filter{"name": "report"})
	assert.Len(t, docs, 2, "Filter should match both report documents")
	for _, doc := range docs {
		assert.Equal(t, "report", doc["name"])
	}
}

func (suite *StoreTestSuite) testFindConjunctionSemantics(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"name": "report", "owner": "amelia"})
	mustInsert(t, coll, document.Document{"name": "report", "owner": "jordan"})
	mustInsert(t, coll, document.Document{"name": "draft", "owner": "amelia"})

	// Multiple filter fields must all match.
	doc := findOne(t, coll, document.Filter{"name": "report", "owner": "amelia"})
	assert.Equal(t, "amelia", doc["owner"])
}

func (suite *StoreTestSuite) testFindNoMatchIsEmptyNotError(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "present"})

	docs := mustFind(t, coll, document.Filter{"kind": "absent"})
	assert.Empty(t, docs, "No match should be an empty result, not an error")
}

func (suite *StoreTestSuite) testFindMissingFieldNeverMatches(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "sparse"})

	docs := mustFind(t, coll, document.Filter{"ghost": "anything"})
	assert.Empty(t, docs, "A field the document lacks should not match")
}

func (suite *StoreTestSuite) testFindNumericWidths(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "numeric", "rank": int64(7)})

	// Callers hand filters whatever integer width is convenient; the
	// stored value may have crossed a codec in the meantime.
	for _, rank := range []any{int64(7), int(7), int32(7), float64(7)} {
		docs := mustFind(t, coll, document.Filter{"rank": rank})
		assert.Len(t, docs, 1, "rank as %T should match", rank)
	}

	docs := mustFind(t, coll, document.Filter{"rank": int64(8)})
	assert.Empty(t, docs, "Different value should not match")
}

func (suite *StoreTestSuite) testFindByIdentifier(t *testing.T) {
	coll := suite.open(t).Collection("records")

	id := mustInsert(t, coll, document.Document{"kind": "addressed", "n": int64(1)})
	mustInsert(t, coll, document.Document{"kind": "addressed", "n": int64(2)})

	doc := findOne(t, coll, document.Filter{document.FieldID: id.String()})
	assert.Equal(t, int64(1), doc["n"])
}

func (suite *StoreTestSuite) testFindReturnsClones(t *testing.T) {
	coll := suite.open(t).Collection("records")

	id := mustInsert(t, coll, document.Document{"kind": "isolated", "note": "pristine"})

	doc := findOne(t, coll, document.Filter{document.FieldID: id.String()})
	doc["note"] = "tampered"

	again := findOne(t, coll, document.Filter{document.FieldID: id.String()})
	assert.Equal(t, "pristine", again["note"], "Find results alias stored state")
}

func (suite *StoreTestSuite) testFindBinaryPayloadStaysTyped(t *testing.T) {
	coll := suite.open(t).Collection("chunks")

	payload := generateBinary(4096)
	id := mustInsert(t, coll, document.Document{
		"fileId":  "f-0001",
		"index":   int64(0),
		"payload": payload,
	})

	doc := findOne(t, coll, document.Filter{document.FieldID: id.String()})

	got, ok := doc["payload"].([]byte)
	require.True(t, ok, "Top-level binary field should come back as []byte, got %T", doc["payload"])
	assert.Equal(t, payload, got, "Binary payload should round-trip byte for byte")
}

// ============================================================================
// Remove Tests
// ============================================================================

func (suite *StoreTestSuite) testRemoveByFilter(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "victim"})
	mustInsert(t, coll, document.Document{"kind": "victim"})
	mustInsert(t, coll, document.Document{"kind": "survivor"})

	mustRemove(t, coll, document.Filter{"kind": "victim"})

	assertCount(t, coll, document.Filter{"kind": "victim"}, 0)
	assertCount(t, coll, document.Filter{"kind": "survivor"}, 1)
}

func (suite *StoreTestSuite) testRemoveIdempotent(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "fleeting"})

	mustRemove(t, coll, document.Filter{"kind": "fleeting"})
	mustRemove(t, coll, document.Filter{"kind": "fleeting"})
	mustRemove(t, coll, document.Filter{"kind": "never-existed"})

	assertCount(t, coll, document.Filter{}, 0)
}

func (suite *StoreTestSuite) testRemoveByIdentifier(t *testing.T) {
	coll := suite.open(t).Collection("records")

	id := mustInsert(t, coll, document.Document{"kind": "addressed"})
	keep := mustInsert(t, coll, document.Document{"kind": "addressed"})

	mustRemove(t, coll, document.Filter{document.FieldID: id.String()})

	docs := mustFind(t, coll, document.Filter{"kind": "addressed"})
	require.Len(t, docs, 1)
	assert.Equal(t, keep, docs[0].ID(), "The untargeted document should survive")
}

func (suite *StoreTestSuite) testRemoveEmptyFilterRemovesAll(t *testing.T) {
	coll := suite.open(t).Collection("records")

	mustInsert(t, coll, document.Document{"kind": "a"})
	mustInsert(t, coll, document.Document{"kind": "b"})

	mustRemove(t, coll, document.Filter{})

	assertCount(t, coll, document.Filter{}, 0)
}

// ============================================================================
// Count Tests
// ============================================================================

func (suite *StoreTestSuite) testCountEmptyCollection(t *testing.T) {
	coll := suite.open(t).Collection("records")
	assertCount(t, coll, document.Filter{}, 0)
}

func (suite *StoreTestSuite) testCountWithFilter(t *testing.T) {
	coll := suite.open(t).Collection("records")

	for i := 0; i < 5; i++ {
		mustInsert(t, coll, document.Document{"kind": "counted", "index": int64(i)})
	}
	mustInsert(t, coll, document.Document{"kind": "other"})

	assertCount(t, coll, document.Filter{}, 6)
	assertCount(t, coll, document.Filter{"kind": "counted"}, 5)
	assertCount(t, coll, document.Filter{"kind": "counted", "index": int64(3)}, 1)
}

// ============================================================================
// Collection Identity Tests
// ============================================================================

func (suite *StoreTestSuite) testCollectionsIsolated(t *testing.T) {
	store := suite.open(t)
	files := store.Collection("ns.files")
	chunks := store.Collection("ns.chunks")

	mustInsert(t, files, document.Document{"name": "shared"})
	mustInsert(t, chunks, document.Document{"name": "shared"})

	mustRemove(t, files, document.Filter{})

	assertCount(t, files, document.Filter{}, 0)
	assertCount(t, chunks, document.Filter{}, 1)
}

func (suite *StoreTestSuite) testCollectionsSameNameSharesData(t *testing.T) {
	store := suite.open(t)

	first := store.Collection("records")
	second := store.Collection("records")

	mustInsert(t, first, document.Document{"kind": "shared"})

	findOne(t, second, document.Filter{"kind": "shared"})
}

// ============================================================================
// Context Tests
// ============================================================================

func (suite *StoreTestSuite) testContextCancellationRejected(t *testing.T) {
	coll := suite.open(t).Collection("records")
	mustInsert(t, coll, document.Document{"kind": "present"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coll.Insert(ctx, document.Document{"kind": "late"})
	assert.Error(t, err, "Insert with a cancelled context should fail")

	_, err = coll.Find(ctx, document.Filter{})
	assert.Error(t, err, "Find with a cancelled context should fail")

	err = coll.Remove(ctx, document.Filter{})
	assert.Error(t, err, "Remove with a cancelled context should fail")

	_, err = coll.Count(ctx, document.Filter{})
	assert.Error(t, err, "Count with a cancelled context should fail")

	// The cancelled operations must not have altered stored data.
	assertCount(t, coll, document.Filter{"kind": "present"}, 1)
}
