package tailer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPath is returned when a Tailer is created without a file path.
	ErrNoPath = errors.New("tailer: no path configured")
	// ErrTailerClosed is returned from Run after Close.
	ErrTailerClosed = errors.New("tailer: closed")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("tailer: already running")
)

// TailOp identifies the operation a TailError occurred in.
type TailOp string

const (
	TailOpOpen TailOp = "open"
	TailOpRead TailOp = "read"
	TailOpStat TailOp = "stat"
)

// TailError wraps an error from the tail loop with its operation and
// the file involved.
type TailError struct {
	Op   TailOp
	Path string
	Err  error
}

func (e *TailError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tail %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("tail %s: %v", e.Op, e.Err)
}

func (e *TailError) Unwrap() error { return e.Err }
