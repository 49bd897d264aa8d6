//go:build linux

package fs

import (
	"golang.org/x/sys/unix"
)

// Allocate reserves storage for [offset, offset+length), extending the file
// size if the range ends past it.
func (f *File) Allocate(offset, length int64) error {
	return f.fallocate(OpAllocate, 0, offset, length)
}

// Deallocate punches a hole over [offset, offset+length). The file size is
// kept and the range reads back as zeros.
func (f *File) Deallocate(offset, length int64) error {
	return f.fallocate(OpDeallocate, unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, length)
}

// Insert shifts every byte at or after offset forward by length, leaving a
// zero-filled gap. Both values must be multiples of the filesystem block
// size; the kernel rejects anything else with EINVAL.
func (f *File) Insert(offset, length int64) error {
	return f.fallocate(OpInsert, unix.FALLOC_FL_INSERT_RANGE, offset, length)
}

// Collapse removes [offset, offset+length) and shifts the remainder of the
// file back by length. Same alignment rules as Insert.
func (f *File) Collapse(offset, length int64) error {
	return f.fallocate(OpCollapse, unix.FALLOC_FL_COLLAPSE_RANGE, offset, length)
}

func (f *File) fallocate(op string, mode uint32, offset, length int64) error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	defer f.Invalidate()

	fileLogger.Debug("%s %q [%d, %d)", op, f.path.String(), offset, offset+length)
	if err := unix.Fallocate(f.fd, mode, offset, length); err != nil {
		return newError(op, f.path.String(), err)
	}
	return nil
}
