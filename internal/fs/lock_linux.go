//go:build linux

package fs

import (
	"fmt"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	lockLogger = logging.GetLogger().WithPrefix("lock")
)

// LockMode selects the kind of byte-range lock to request.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
	LockUnlock
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	case LockUnlock:
		return "unlock"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}

func (m LockMode) flockType() (int16, bool) {
	switch m {
	case LockShared:
		return unix.F_RDLCK, true
	case LockExclusive:
		return unix.F_WRLCK, true
	case LockUnlock:
		return unix.F_UNLCK, true
	default:
		return 0, false
	}
}

// Whence is the reference point a Range offset is measured from.
type Whence int16

const (
	FromStart   Whence = unix.SEEK_SET
	FromCurrent Whence = unix.SEEK_CUR
	FromEnd     Whence = unix.SEEK_END
)

// Range describes a byte range for locking. The kernel resolves Offset
// against Whence when the request is made. Len zero extends the range to
// the end of the file, including bytes appended later.
type Range struct {
	Whence Whence
	Offset int64
	Len    int64
}

// Abs is the range [offset, offset+length) from the start of the file.
func Abs(offset, length int64) Range {
	return Range{Whence: FromStart, Offset: offset, Len: length}
}

// FromCursor is a range starting offset bytes from the current position.
func FromCursor(offset, length int64) Range {
	return Range{Whence: FromCurrent, Offset: offset, Len: length}
}

// FromEOF is a range starting offset bytes from the end of the file.
func FromEOF(offset, length int64) Range {
	return Range{Whence: FromEnd, Offset: offset, Len: length}
}

func (r Range) String() string {
	var ref string
	switch r.Whence {
	case FromCurrent:
		ref = "cur"
	case FromEnd:
		ref = "end"
	default:
		ref = "start"
	}
	return fmt.Sprintf("%s%+d len %d", ref, r.Offset, r.Len)
}

func (r Range) flock(typ int16) unix.Flock_t {
	// Pid must be zero for open file description locks.
	return unix.Flock_t{
		Type:   typ,
		Whence: int16(r.Whence),
		Start:  r.Offset,
		Len:    r.Len,
	}
}

// Lock acquires, converts or releases a lock on r. Locks belong to the open
// file description, so two Files opened on the same path conflict even in
// one process, and closing the File releases them.
//
// With blocking set the calling goroutine's thread waits until the lock is
// granted; EINTR is retried and the result is always true on success.
// Without blocking, a conflicting lock yields false and no error.
func (f *File) Lock(mode LockMode, r Range, blocking bool) (bool, error) {
	typ, ok := mode.flockType()
	if !ok {
		return false, invalidArgument(OpLock, f.path.String(), "unknown lock mode "+mode.String())
	}
	if err := f.ensureOpen(); err != nil {
		return false, err
	}

	lk := r.flock(typ)
	lockLogger.Trace("%s lock on %q %v (blocking=%v)", mode, f.path.String(), r, blocking)

	if blocking {
		err := retryEINTR(func() error {
			return unix.FcntlFlock(uintptr(f.fd), unix.F_OFD_SETLKW, &lk)
		})
		if err != nil {
			return false, newError(OpLock, f.path.String(), err)
		}
		return true, nil
	}

	if err := unix.FcntlFlock(uintptr(f.fd), unix.F_OFD_SETLK, &lk); err != nil {
		if IsConflict(err) {
			lockLogger.Debug("%s lock on %q %v is contended", mode, f.path.String(), r)
			return false, nil
		}
		return false, newError(OpLock, f.path.String(), err)
	}
	return true, nil
}

// Unlock releases any lock this File holds on r.
func (f *File) Unlock(r Range) error {
	_, err := f.Lock(LockUnlock, r, false)
	return err
}

// TestLock reports whether a lock of the given mode on r could be granted
// right now, without acquiring it. LockUnlock is rejected.
func (f *File) TestLock(mode LockMode, r Range) (bool, error) {
	if mode == LockUnlock {
		return false, invalidArgument(OpLockTest, f.path.String(), "cannot test an unlock request")
	}
	typ, ok := mode.flockType()
	if !ok {
		return false, invalidArgument(OpLockTest, f.path.String(), "unknown lock mode "+mode.String())
	}
	if err := f.ensureOpen(); err != nil {
		return false, err
	}

	lk := r.flock(typ)
	if err := unix.FcntlFlock(uintptr(f.fd), unix.F_OFD_GETLK, &lk); err != nil {
		return false, newError(OpLockTest, f.path.String(), err)
	}
	free := lk.Type == unix.F_UNLCK
	lockLogger.Trace("Test %s lock on %q %v: free=%v", mode, f.path.String(), r, free)
	return free, nil
}
