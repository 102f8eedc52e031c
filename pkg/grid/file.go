package grid

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// File is an open handle on one logical file: a random-access byte
// stream backed by fixed-size chunks in the chunk collection.
//
// Position Semantics:
//   - Reads and writes advance the cursor by the bytes transferred
//   - Seek moves the cursor without touching stored chunks
//   - One chunk is buffered in memory at a time, loaded lazily and
//     flushed when the cursor crosses into another chunk or on close
//
// Visibility:
// Nothing a write session produces is resolvable by name until Close
// persists the file record. The record write is the single commit
// point; a session that never closes leaves at most unreferenced
// chunks behind, never a record whose length disagrees with its
// chunks.
//
// Thread Safety:
// A handle serves one logical caller at a time. Handles hold no locks;
// concurrent use of the same handle is not coordinated.
type File struct {
	records *recordStore
	chunks  *chunkStore
	metrics Metrics

	record *FileRecord
	mode   Mode

	position   int64
	chunkIndex int64
	chunkBuf   []byte
	chunkDirty bool

	// touched flips when any chunk is materialized this session and
	// locks the chunk size.
	touched bool

	// maxWritten is the furthest position any write reached. Zero
	// means the session never wrote.
	maxWritten int64

	// existing marks a Modify session that reopened a stored record.
	existing bool

	closed bool
}

// Read fills p with up to len(p) bytes starting at the cursor,
// advancing the cursor by the number of bytes returned. Chunk
// boundaries are crossed transparently.
//
// Exhausting the file is not a failure: a read at or past the end
// returns io.EOF with a zero count, matching io.Reader conventions.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - p: Destination buffer
//
// Returns:
//   - int: Bytes read
//   - error: io.EOF at end of stream, ErrInvalidOperation outside read
//     mode, ErrCollaborator on collection failure
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.closed {
		return 0, invalidOperation("file is closed")
	}
	if f.mode != ModeRead {
		return 0, invalidOperation(fmt.Sprintf("read not permitted in mode %q", f.mode))
	}
	if f.position >= f.record.Length {
		return 0, io.EOF
	}

	want := len(p)
	if remaining := f.record.Length - f.position; int64(want) > remaining {
		want = int(remaining)
	}

	read := 0
	for read < want {
		index := f.position / f.record.ChunkSize
		offset := f.position - index*f.record.ChunkSize

		if err := f.loadChunk(ctx, index); err != nil {
			return read, err
		}
		if offset >= int64(len(f.chunkBuf)) {
			return read, collaborator(
				fmt.Sprintf("chunk %d shorter than expected for file %s", index, f.record.ID),
				nil,
			)
		}

		n := copy(p[read:want], f.chunkBuf[offset:])
		read += n
		f.position += int64(n)
	}

	if f.metrics != nil {
		f.metrics.BytesRead(read)
	}
	return read, nil
}

// ReadAll reads from the cursor to the end of the stream. A cursor at
// or past the end yields an empty slice, not an error.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	if f.closed {
		return nil, invalidOperation("file is closed")
	}
	if f.mode != ModeRead {
		return nil, invalidOperation(fmt.Sprintf("read not permitted in mode %q", f.mode))
	}
	if f.position >= f.record.Length {
		return []byte{}, nil
	}

	out := make([]byte, f.record.Length-f.position)
	n, err := f.Read(ctx, out)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return out[:n], nil
}

// Write stores p at the cursor, splitting across chunk boundaries as
// needed and advancing the cursor. Writing inside an existing chunk
// splices the new bytes over the old payload while preserving the
// untouched tail.
//
// The stored length is not updated here; it is settled once at close
// from the final cursor position (create sessions) or the furthest
// written position (modify sessions).
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - p: Bytes to write
//
// Returns:
//   - int: Bytes written (always len(p) on success)
//   - error: ErrInvalidOperation outside write/modify mode,
//     ErrCollaborator on collection failure
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.closed {
		return 0, invalidOperation("file is closed")
	}
	if f.mode != ModeWrite && f.mode != ModeModify {
		return 0, invalidOperation(fmt.Sprintf("write not permitted in mode %q", f.mode))
	}

	chunkSize := f.record.ChunkSize
	written := 0
	for written < len(p) {
		// ====================================================================
		// Step 1: Locate the chunk covering the cursor
		// ====================================================================

		index := f.position / chunkSize
		offset := f.position - index*chunkSize

		if err := f.loadChunkForWrite(ctx, index); err != nil {
			return written, err
		}

		// ====================================================================
		// Step 2: Splice into the buffered chunk
		// ====================================================================

		n := int(chunkSize - offset)
		if n > len(p)-written {
			n = len(p) - written
		}

		// Grow the buffer when the write lands past its current tail.
		// The gap between old tail and offset stays zero from make().
		if end := offset + int64(n); int64(len(f.chunkBuf)) < end {
			grown := make([]byte, end)
			copy(grown, f.chunkBuf)
			f.chunkBuf = grown
		}

		copy(f.chunkBuf[offset:offset+int64(n)], p[written:written+n])
		f.chunkDirty = true
		f.touched = true

		// ====================================================================
		// Step 3: Advance the cursor
		// ====================================================================

		written += n
		f.position += int64(n)
		if f.position > f.maxWritten {
			f.maxWritten = f.position
		}
	}

	if f.metrics != nil {
		f.metrics.BytesWritten(written)
	}
	return written, nil
}

// WriteString writes s at the cursor.
func (f *File) WriteString(ctx context.Context, s string) (int, error) {
	return f.Write(ctx, []byte(s))
}

// WriteLines writes each line at the cursor, appending a newline to
// any line that does not already end with one. Three logical lines in
// always read back as exactly three terminated lines.
func (f *File) WriteLines(ctx context.Context, lines []string) error {
	for _, line := range lines {
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := f.Write(ctx, []byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// Seek moves the cursor without touching stored chunks. The next read
// or write loads whatever chunk covers the new position.
//
// Implements io.Seeker: whence is io.SeekStart, io.SeekCurrent, or
// io.SeekEnd, where the end is the larger of the stored length and the
// furthest position written this session.
//
// Returns:
//   - int64: New cursor position
//   - error: ErrInvalidArgument on a negative target or unknown whence
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, invalidOperation("file is closed")
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.position
	case io.SeekEnd:
		base = f.size()
	default:
		return 0, invalidArgument(fmt.Sprintf("unknown seek whence %d", whence))
	}

	target := base + offset
	if target < 0 {
		return 0, invalidArgument(fmt.Sprintf("seek to negative offset %d", target))
	}
	f.position = target
	return target, nil
}

// Rewind moves the cursor back to the start of the stream.
//
// In a create session this is how the eventual length is controlled:
// it is settled from the final cursor position, so rewinding and
// writing less than before shrinks the stored file.
func (f *File) Rewind() error {
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// Tell returns the cursor position.
func (f *File) Tell() int64 {
	return f.position
}

// EOF reports whether the cursor is at or past the end of the stored
// content. Meaningful for read sessions.
func (f *File) EOF() bool {
	return f.position >= f.record.Length
}

// size returns the stream extent as currently known: the stored length
// or the furthest written position, whichever is larger.
func (f *File) size() int64 {
	if f.maxWritten > f.record.Length {
		return f.maxWritten
	}
	return f.record.Length
}

// SetChunkSize picks the chunk payload size for a file being created.
//
// Permitted only while the session can still honor it: before any
// chunk has been materialized, in a session allowed to mutate the
// record, and never once stored content already has a chunk layout.
//
// Returns:
//   - error: ErrInvalidArgument when size is not positive,
//     ErrInvalidOperation when the layout is already fixed
func (f *File) SetChunkSize(size int64) error {
	if f.closed {
		return invalidOperation("file is closed")
	}
	if size <= 0 {
		return invalidArgument(fmt.Sprintf("chunk size must be positive, got %d", size))
	}
	if f.mode == ModeRead {
		return invalidOperation("chunk size change not permitted in read mode")
	}
	if f.touched {
		return invalidOperation("chunk size change not permitted after a chunk has been written")
	}
	if f.existing && f.record.Length > 0 {
		return invalidOperation("chunk size change not permitted on stored content")
	}
	f.record.ChunkSize = size
	return nil
}

// SetContentType sets the content type persisted at close.
func (f *File) SetContentType(contentType string) error {
	if f.closed {
		return invalidOperation("file is closed")
	}
	if f.mode == ModeRead {
		return invalidOperation("content type change not permitted in read mode")
	}
	f.record.ContentType = contentType
	return nil
}

// SetMetadata sets the custom metadata mapping persisted at close.
// Passing nil clears it; nil is stored as absent, not as empty.
func (f *File) SetMetadata(metadata map[string]any) error {
	if f.closed {
		return invalidOperation("file is closed")
	}
	if f.mode == ModeRead {
		return invalidOperation("metadata change not permitted in read mode")
	}
	f.record.Metadata = metadata
	return nil
}

// ID returns the file's unique identifier.
func (f *File) ID() string {
	return f.record.ID.String()
}

// Name returns the file name the handle was opened with.
func (f *File) Name() string {
	return f.record.Name
}

// Mode returns the mode the handle was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// Length returns the stored length. For a write session this is the
// value from open time; the final length is settled at close.
func (f *File) Length() int64 {
	return f.record.Length
}

// ChunkSize returns the chunk payload size in effect.
func (f *File) ChunkSize() int64 {
	return f.record.ChunkSize
}

// ContentType returns the content type in effect.
func (f *File) ContentType() string {
	return f.record.ContentType
}

// UploadTimestamp returns the file's creation time. Preserved across
// modify sessions.
func (f *File) UploadTimestamp() time.Time {
	return f.record.UploadTimestamp
}

// Metadata returns a copy of the custom metadata mapping in effect.
// Nil when absent. Changes go through SetMetadata.
func (f *File) Metadata() map[string]any {
	if f.record.Metadata == nil {
		return nil
	}
	out := make(map[string]any, len(f.record.Metadata))
	for k, v := range f.record.Metadata {
		out[k] = v
	}
	return out
}

// Close flushes dirty state and persists the file record. Invoke on
// every exit path; FS.With does this for you.
//
// For read sessions nothing is persisted. For write and modify
// sessions Close settles the final length, repairs the chunk sequence
// to match it (trimming the tail, zero-filling gaps), and writes the
// record as the single commit point.
//
// Subsequent calls are no-ops returning nil.
//
// Returns:
//   - error: ErrCollaborator when flushing chunks or persisting the
//     record fails; the record is not written unless the chunk
//     sequence settled cleanly
func (f *File) Close(ctx context.Context) error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.metrics != nil {
		defer f.metrics.FileClosed(f.mode.String())
	}

	if f.mode == ModeRead {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// ========================================================================
	// Step 1: Flush the buffered chunk
	// ========================================================================

	if err := f.flushChunk(ctx); err != nil {
		return err
	}

	// ========================================================================
	// Step 2: Settle the final length
	// ========================================================================

	length := f.finalLength()
	f.record.Length = length

	// ========================================================================
	// Step 3: Repair the chunk sequence to match the final length
	// ========================================================================

	if err := f.normalizeChunks(ctx); err != nil {
		return err
	}

	// ========================================================================
	// Step 4: Persist the record (single commit point)
	// ========================================================================

	if f.existing {
		return f.records.update(ctx, f.record)
	}
	return f.records.insert(ctx, f.record)
}

// finalLength derives the length recorded at close.
//
// Create sessions persist the final cursor position: content beyond it
// is discarded even when written earlier and abandoned by a rewind. A
// session that never wrote persists zero regardless of seeks. Modify
// sessions never shrink: the larger of the prior stored length and the
// furthest written position wins.
func (f *File) finalLength() int64 {
	if f.mode == ModeModify {
		if f.maxWritten > f.record.Length {
			return f.maxWritten
		}
		return f.record.Length
	}
	if f.maxWritten == 0 {
		return 0
	}
	return f.position
}

// normalizeChunks makes the stored chunk sequence agree with the final
// length: indices dense from 0, every payload exactly ChunkSize except
// the last, which carries the remainder.
//
// One listing answers which indices exist and which deviate; only
// deviant chunks are rewritten, so a plain sequential write session
// repairs nothing.
func (f *File) normalizeChunks(ctx context.Context) error {
	length := f.record.Length
	chunkSize := f.record.ChunkSize

	stored, err := f.chunks.lengths(ctx, f.record.ID)
	if err != nil {
		return err
	}

	// A zero-length file keeps no chunks at all.
	if length == 0 {
		if len(stored) == 0 {
			return nil
		}
		return f.chunks.deleteAll(ctx, f.record.ID)
	}

	lastIndex := (length - 1) / chunkSize
	lastLen := length - lastIndex*chunkSize

	// ========================================================================
	// Step 1: Drop surplus chunks beyond the last index
	// ========================================================================

	maxStored := int64(-1)
	for index := range stored {
		if index > maxStored {
			maxStored = index
		}
	}
	if maxStored > lastIndex {
		if err := f.chunks.deleteFrom(ctx, f.record.ID, lastIndex+1); err != nil {
			return err
		}
	}

	// ========================================================================
	// Step 2: Fix payload sizing index by index
	// ========================================================================

	for index := int64(0); index <= lastIndex; index++ {
		expected := chunkSize
		if index == lastIndex {
			expected = lastLen
		}

		actual, present := stored[index]
		if present && actual == expected {
			continue
		}

		var payload []byte
		if present {
			payload, err = f.chunks.load(ctx, f.record.ID, index)
			if err != nil {
				return err
			}
			if int64(len(payload)) > expected {
				payload = payload[:expected]
			} else {
				grown := make([]byte, expected)
				copy(grown, payload)
				payload = grown
			}
		} else {
			// A chunk skipped over by a forward seek reads as zeros.
			payload = make([]byte, expected)
		}

		if err := f.chunks.save(ctx, f.record.ID, index, payload); err != nil {
			return err
		}
	}
	return nil
}

// loadChunk buffers the chunk at index for reading, flushing any dirty
// buffer first. The chunk must exist.
func (f *File) loadChunk(ctx context.Context, index int64) error {
	if f.chunkIndex == index {
		return nil
	}
	if err := f.flushChunk(ctx); err != nil {
		return err
	}

	payload, err := f.chunks.load(ctx, f.record.ID, index)
	if err != nil {
		return err
	}
	f.chunkIndex = index
	f.chunkBuf = payload
	f.chunkDirty = false

	if f.metrics != nil {
		f.metrics.ChunkLoaded()
	}
	return nil
}

// loadChunkForWrite buffers the chunk at index for writing. An absent
// chunk starts from an empty buffer; an existing one is loaded so a
// partial overwrite preserves its untouched tail.
func (f *File) loadChunkForWrite(ctx context.Context, index int64) error {
	if f.chunkIndex == index {
		return nil
	}
	if err := f.flushChunk(ctx); err != nil {
		return err
	}

	payload, err := f.chunks.load(ctx, f.record.ID, index)
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		payload = nil
	} else if f.metrics != nil {
		f.metrics.ChunkLoaded()
	}

	f.chunkIndex = index
	f.chunkBuf = payload
	f.chunkDirty = false
	return nil
}

// flushChunk persists the buffered chunk when dirty.
func (f *File) flushChunk(ctx context.Context) error {
	if !f.chunkDirty || f.chunkIndex < 0 {
		return nil
	}
	if err := f.chunks.save(ctx, f.record.ID, f.chunkIndex, f.chunkBuf); err != nil {
		return err
	}
	f.chunkDirty = false

	if f.metrics != nil {
		f.metrics.ChunkSaved()
	}
	return nil
}
