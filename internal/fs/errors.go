// Package fs provides safe file and filesystem primitives.
//
// This file contains error types and error handling utilities.
package fs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrInvalidArgument indicates caller misuse detected before any syscall
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotOpen indicates an operation that requires an open descriptor
	// was attempted on a closed file
	ErrNotOpen = errors.New("file is not opened")

	// ErrMappingClosed indicates use of a memory mapping after Close
	ErrMappingClosed = errors.New("memory mapping already released")
)

// Error wraps a failed filesystem operation with the operation name and
// affected path. For OS failures Err is the unix.Errno reported by the
// kernel.
type Error struct {
	Op   string // Operation that failed (e.g., "open", "fallocate")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new Error with the given operation, path, and underlying error
func newError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Trace("Created new Error: %v", fsErr)
	return fsErr
}

// invalidArgument reports caller misuse without touching the OS.
func invalidArgument(op, path, reason string) *Error {
	return newError(op, path, fmt.Errorf("%w: %s", ErrInvalidArgument, reason))
}

// Common operation names for consistent logging and error reporting
const (
	OpOpen       = "open"
	OpClose      = "close"
	OpRead       = "read"
	OpWrite      = "write"
	OpSeek       = "seek"
	OpStat       = "stat"
	OpTruncate   = "truncate"
	OpSync       = "fsync"
	OpMkdir      = "mkdir"
	OpRemove     = "remove"
	OpRename     = "rename"
	OpRealpath   = "realpath"
	OpList       = "list"
	OpAllocate   = "allocate"
	OpDeallocate = "deallocate"
	OpInsert     = "insert"
	OpCollapse   = "collapse"
	OpMap        = "mmap"
	OpMsync      = "msync"
	OpUnmap      = "munmap"
	OpLock       = "lock"
	OpLockTest   = "locktest"
)

// Errno extracts the system error code carried by err, if any.
func Errno(err error) (unix.Errno, bool) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

// IsTemporary returns true if the error is likely temporary and the
// operation could succeed if retried.
func IsTemporary(err error) bool {
	errno, ok := Errno(err)
	if !ok {
		return false
	}

	errLogger.Trace("Checking if errno is temporary: %v", errno)
	switch errno {
	case unix.EAGAIN, unix.EINTR, unix.EBUSY, unix.ETIMEDOUT:
		return true
	default:
		return false
	}
}

// IsConflict reports whether err is the kernel's answer to a lock request
// that overlaps a lock held through another open file description. fcntl(2)
// allows either EACCES or EAGAIN for a conflicting F_SETLK.
func IsConflict(err error) bool {
	errno, ok := Errno(err)
	return ok && (errno == unix.EAGAIN || errno == unix.EACCES)
}
