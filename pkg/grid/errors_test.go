package grid

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassifiers(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name               string
		err                error
		notFound           bool
		invalidArgument    bool
		invalidOperation   bool
		collaboratorFailed bool
	}{
		{
			name:     "not found",
			err:      notFound("missing.txt"),
			notFound: true,
		},
		{
			name:            "invalid argument",
			err:             invalidArgument("bad offset"),
			invalidArgument: true,
		},
		{
			name:             "invalid operation",
			err:              invalidOperation("file is closed"),
			invalidOperation: true,
		},
		{
			name:               "collaborator failure",
			err:                collaborator("query failed", cause),
			collaboratorFailed: true,
		},
		{
			name:     "wrapped grid error keeps its code",
			err:      fmt.Errorf("loading report: %w", notFound("report")),
			notFound: true,
		},
		{
			name: "plain error matches nothing",
			err:  errors.New("some other failure"),
		},
		{
			name: "nil matches nothing",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsInvalidArgument(tt.err); got != tt.invalidArgument {
				t.Errorf("IsInvalidArgument = %v, want %v", got, tt.invalidArgument)
			}
			if got := IsInvalidOperation(tt.err); got != tt.invalidOperation {
				t.Errorf("IsInvalidOperation = %v, want %v", got, tt.invalidOperation)
			}
			if got := IsCollaboratorFailure(tt.err); got != tt.collaboratorFailed {
				t.Errorf("IsCollaboratorFailure = %v, want %v", got, tt.collaboratorFailed)
			}
		})
	}
}

func TestStoreError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{
			name: "message only",
			err:  invalidArgument("offset must not be negative"),
			want: "offset must not be negative",
		},
		{
			name: "message with file name",
			err:  notFound("report.txt"),
			want: "file not found: report.txt",
		},
		{
			name: "message with cause",
			err:  collaborator("insert failed", errors.New("disk full")),
			want: "insert failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoreError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := collaborator("listing chunks", cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through errors.Is")
	}

	// Another layer of wrapping must not hide the cause either.
	wrapped := fmt.Errorf("sweep aborted: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Fatal("cause not reachable through a second wrap")
	}
	if !IsCollaboratorFailure(wrapped) {
		t.Fatal("code not reachable through a second wrap")
	}
}
