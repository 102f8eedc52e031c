package grid

// Metrics provides observability for the stream engine.
//
// Implementations can use this interface to track session counts,
// throughput, and chunk traffic. This is optional - if not provided,
// metrics collection is skipped.
//
// Example implementations:
//   - Prometheus metrics
//   - In-memory counters for testing
type Metrics interface {
	// FileOpened records a handle being opened in the given mode
	FileOpened(mode string)

	// FileClosed records a handle being closed in the given mode
	FileClosed(mode string)

	// BytesRead records bytes delivered by one Read call
	BytesRead(n int)

	// BytesWritten records bytes accepted by one Write call
	BytesWritten(n int)

	// ChunkLoaded records a chunk fetched from the chunk collection
	ChunkLoaded()

	// ChunkSaved records a chunk persisted to the chunk collection
	ChunkSaved()

	// FileUnlinked records an unlink that removed the given number of
	// file versions
	FileUnlinked(records int)
}

// NoopMetrics is a Metrics implementation that discards everything.
// Handy for tests that want explicit wiring.
type NoopMetrics struct{}

func (NoopMetrics) FileOpened(mode string)   {}
func (NoopMetrics) FileClosed(mode string)   {}
func (NoopMetrics) BytesRead(n int)          {}
func (NoopMetrics) BytesWritten(n int)       {}
func (NoopMetrics) ChunkLoaded()             {}
func (NoopMetrics) ChunkSaved()              {}
func (NoopMetrics) FileUnlinked(records int) {}
