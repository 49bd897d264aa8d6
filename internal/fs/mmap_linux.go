//go:build linux

package fs

import (
	"runtime"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	mmapLogger = logging.GetLogger().WithPrefix("mmap")
)

// noCopy makes go vet's copylocks check reject copies of the struct that
// embeds it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Mapping is an exclusively owned memory-mapped view of a file range. Its
// length is fixed at creation and only Close unmaps it. A Mapping dropped
// without Close is reported as a leak and its region stays mapped, since
// slices returned by Bytes may still point into it.
type Mapping struct {
	noCopy noCopy
	path   string
	data   []byte
}

// Bytes returns the mapped region, or nil after Close. The slice must not
// be used once the mapping is closed.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the length of the mapped region, or zero after Close.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Sync flushes modified pages back to the file. With block set the call
// waits for the write-back to complete.
func (m *Mapping) Sync(block bool) error {
	flags := unix.MS_ASYNC
	if block {
		flags = unix.MS_SYNC
	}
	return m.msync(flags)
}

// SyncInvalidate flushes like Sync and also invalidates other mappings of
// the same file so they observe the written data.
func (m *Mapping) SyncInvalidate(block bool) error {
	flags := unix.MS_INVALIDATE | unix.MS_ASYNC
	if block {
		flags = unix.MS_INVALIDATE | unix.MS_SYNC
	}
	return m.msync(flags)
}

func (m *Mapping) msync(flags int) error {
	if m.data == nil {
		return newError(OpMsync, m.path, ErrMappingClosed)
	}
	if err := unix.Msync(m.data, flags); err != nil {
		return newError(OpMsync, m.path, err)
	}
	return nil
}

// Close unmaps the region. Any call after the first returns
// ErrMappingClosed without touching memory.
func (m *Mapping) Close() error {
	if m.data == nil {
		return newError(OpUnmap, m.path, ErrMappingClosed)
	}

	data := m.data
	m.data = nil
	runtime.SetFinalizer(m, nil)

	mmapLogger.Trace("Unmapping %d bytes of %q", len(data), m.path)
	if err := unix.Munmap(data); err != nil {
		return newError(OpUnmap, m.path, err)
	}
	return nil
}

// Map maps [offset, offset+length) of the file. The view is read-only unless
// writable is set, in which case stores through it reach the file and file
// writes are visible through it. offset must be page aligned.
func (f *File) Map(offset int64, length int, writable bool) (*Mapping, error) {
	if err := f.ensureOpen(); err != nil {
		return nil, err
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	flags := unix.MAP_SHARED | unix.MAP_NONBLOCK | unix.MAP_NORESERVE

	data, err := unix.Mmap(f.fd, offset, length, prot, flags)
	if err != nil {
		mmapLogger.Debug("Failed to map %q [%d, +%d): %v", f.path.String(), offset, length, err)
		return nil, newError(OpMap, f.path.String(), err)
	}

	m := &Mapping{path: f.path.String(), data: data}
	runtime.SetFinalizer(m, func(m *Mapping) {
		mmapLogger.Warn("Mapping of %q was never closed; %d bytes stay mapped", m.path, len(m.data))
	})
	mmapLogger.Trace("Mapped %d bytes of %q at offset %d (writable=%v)", length, f.path.String(), offset, writable)
	return m, nil
}

// MapAll maps the whole file using a freshly fetched size.
func (f *File) MapAll(writable bool) (*Mapping, error) {
	f.Invalidate()
	meta, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return f.Map(0, int(meta.Size), writable)
}

// WithMapping maps the range, passes it to fn and unmaps it on every return
// path. The mapping must not escape fn.
func WithMapping(f *File, offset int64, length int, writable bool, fn func(*Mapping) error) (err error) {
	m, err := f.Map(offset, length, writable)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}
