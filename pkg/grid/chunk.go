package grid

import (
	"context"
	"fmt"

	"github.com/marmos91/gridstore/pkg/document"
)

// chunkStore persists binary chunks on one document collection, keyed
// by (file id, chunk index).
//
// Chunks for a file form a dense 0..N-1 index range once the owning
// write session has closed; during a session the range may be sparse
// and is repaired by the close-time normalization in File.Close.
type chunkStore struct {
	collection document.Collection
}

// load returns the payload of one chunk.
//
// Returns:
//   - []byte: Chunk payload
//   - error: ErrNotFound when the chunk is absent, ErrCollaborator on
//     collection failure
func (s *chunkStore) load(ctx context.Context, fileID document.ID, index int64) ([]byte, error) {
	docs, err := s.collection.Find(ctx, document.Filter{
		fieldFileID: fileID.String(),
		fieldIndex:  index,
	})
	if err != nil {
		return nil, collaborator("failed to load chunk", err)
	}
	if len(docs) == 0 {
		return nil, &StoreError{
			Code:    ErrNotFound,
			Message: fmt.Sprintf("chunk %d not found for file %s", index, fileID),
		}
	}

	payload, ok := docs[0][fieldPayload].([]byte)
	if !ok {
		return nil, collaborator(
			fmt.Sprintf("malformed chunk %d for file %s: bad payload", index, fileID),
			nil,
		)
	}
	return payload, nil
}

// save stores payload as the chunk at (fileID, index), replacing any
// prior chunk at that position.
func (s *chunkStore) save(ctx context.Context, fileID document.ID, index int64, payload []byte) error {
	filter := document.Filter{
		fieldFileID: fileID.String(),
		fieldIndex:  index,
	}
	if err := s.collection.Remove(ctx, filter); err != nil {
		return collaborator("failed to replace chunk", err)
	}

	_, err := s.collection.Insert(ctx, document.Document{
		fieldFileID:  fileID.String(),
		fieldIndex:   index,
		fieldPayload: payload,
	})
	if err != nil {
		return collaborator("failed to save chunk", err)
	}
	return nil
}

// deleteAll removes every chunk for the file. Idempotent.
func (s *chunkStore) deleteAll(ctx context.Context, fileID document.ID) error {
	err := s.collection.Remove(ctx, document.Filter{fieldFileID: fileID.String()})
	if err != nil {
		return collaborator("failed to delete chunks", err)
	}
	return nil
}

// deleteFrom removes every chunk with index >= from. Used to drop the
// surplus tail when a session shrinks a file.
func (s *chunkStore) deleteFrom(ctx context.Context, fileID document.ID, from int64) error {
	lengths, err := s.lengths(ctx, fileID)
	if err != nil {
		return err
	}

	for index := range lengths {
		if index < from {
			continue
		}
		err := s.collection.Remove(ctx, document.Filter{
			fieldFileID: fileID.String(),
			fieldIndex:  index,
		})
		if err != nil {
			return collaborator("failed to delete chunk tail", err)
		}
	}
	return nil
}

// count returns how many chunks the file has.
func (s *chunkStore) count(ctx context.Context, fileID document.ID) (int64, error) {
	n, err := s.collection.Count(ctx, document.Filter{fieldFileID: fileID.String()})
	if err != nil {
		return 0, collaborator("failed to count chunks", err)
	}
	return n, nil
}

// lengths returns the payload length of every stored chunk, keyed by
// index. One query answers both "which indices exist" and "which
// deviate from the expected size", which is what close-time
// normalization needs.
func (s *chunkStore) lengths(ctx context.Context, fileID document.ID) (map[int64]int64, error) {
	docs, err := s.collection.Find(ctx, document.Filter{fieldFileID: fileID.String()})
	if err != nil {
		return nil, collaborator("failed to list chunks", err)
	}

	out := make(map[int64]int64, len(docs))
	for _, doc := range docs {
		index, ok := intField(doc, fieldIndex)
		if !ok {
			return nil, collaborator(
				fmt.Sprintf("malformed chunk for file %s: bad index", fileID),
				nil,
			)
		}
		payload, ok := doc[fieldPayload].([]byte)
		if !ok {
			return nil, collaborator(
				fmt.Sprintf("malformed chunk %d for file %s: bad payload", index, fileID),
				nil,
			)
		}
		out[index] = int64(len(payload))
	}
	return out, nil
}

// fileIDs returns the distinct owning file id of every stored chunk.
// Feed for the orphan sweeper.
func (s *chunkStore) fileIDs(ctx context.Context) ([]document.ID, error) {
	docs, err := s.collection.Find(ctx, document.Filter{})
	if err != nil {
		return nil, collaborator("failed to list chunks", err)
	}

	seen := make(map[string]bool, len(docs))
	var ids []document.ID
	for _, doc := range docs {
		owner, ok := stringField(doc, fieldFileID)
		if !ok || seen[owner] {
			continue
		}
		seen[owner] = true
		ids = append(ids, document.ID(owner))
	}
	return ids, nil
}
