package mount

import (
	"errors"
	"os"
	"syscall"

	"safefs/internal/fs"

	"bazil.org/fuse"
)

// ToFuseError converts an error from the fs layer into the errno FUSE
// reports to the kernel. The errno carried by an fs.Error is passed through
// unchanged; anything else becomes EIO.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	if errno, ok := fs.Errno(err); ok {
		mountLogger.Trace("Passing errno through to FUSE: %v", errno)
		return fuse.Errno(errno)
	}

	switch {
	case errors.Is(err, fs.ErrInvalidArgument):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, os.ErrNotExist):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, os.ErrPermission):
		return fuse.Errno(syscall.EACCES)
	default:
		mountLogger.Debug("Unknown error type, returning EIO: %v", err)
		return fuse.Errno(syscall.EIO)
	}
}
