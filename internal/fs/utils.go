package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// unwrapErrno reduces an error returned by the os or path/filepath packages
// to its bare errno when one is present, so that every Error produced here
// carries the system code directly in Err.
func unwrapErrno(err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return err
}

// retryEINTR re-issues fn while it fails with EINTR.
func retryEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
