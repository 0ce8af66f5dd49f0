package fs

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeDirClosed = "ERR_DIR_CLOSED"
)

var (
	// ErrDirClosed is returned when a directory stream is read or closed
	// after it has already been closed.
	ErrDirClosed = errors.New("directory handle was closed")
)

// Error records a failed operation together with the path it was applied to.
type Error struct {
	Op   string // Operation that failed (e.g., "read", "close")
	Path string // Affected path
	Code string // Platform-style error code, empty when none applies
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	if e.Path == "" {
		msg = fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation and path it came from.
func NewError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// NewDirClosedError returns the error reported for op on a closed stream.
func NewDirClosedError(op, path string) error {
	return &Error{Op: op, Path: path, Code: CodeDirClosed, Err: ErrDirClosed}
}

// IsDirClosed reports whether err signals use of a closed directory stream.
func IsDirClosed(err error) bool {
	return errors.Is(err, ErrDirClosed)
}

// Operation names used in errors.
const (
	OpRead    = "read"
	OpClose   = "close"
	OpOpendir = "opendir"
	OpStat    = "stat"
)
