package grid

import "fmt"

// Mode determines which stream operations a file handle accepts.
type Mode int

const (
	// ModeRead opens the latest stored version of an existing file for
	// reading. Write operations are rejected.
	ModeRead Mode = iota

	// ModeWrite creates a fresh file version from scratch. Nothing is
	// visible to readers until the handle is closed. Read operations
	// are rejected.
	ModeWrite

	// ModeModify opens the latest stored version (or a fresh one when
	// the name is absent) for in-place updates, positioned at the end.
	// Read operations are rejected; existing bytes outside the written
	// ranges survive.
	ModeModify
)

// String returns the mode token.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeModify:
		return "w+"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode token into a Mode.
//
// Accepted tokens:
//   - "r": ModeRead
//   - "w": ModeWrite
//   - "w+": ModeModify
//
// Returns:
//   - Mode: Parsed mode
//   - error: ErrInvalidArgument naming the rejected token
func ParseMode(token string) (Mode, error) {
	switch token {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "w+":
		return ModeModify, nil
	default:
		return 0, invalidArgument(fmt.Sprintf("unknown file mode %q", token))
	}
}
