package fs

import (
	"io"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

const (
	// DefaultOpenFlags are used when a descriptor is opened implicitly.
	DefaultOpenFlags = unix.O_RDWR

	// DefaultFilePerm is the mode for newly created files, before umask.
	DefaultFilePerm uint32 = 0o664

	// DefaultDirPerm is the mode for newly created directories, before umask.
	DefaultDirPerm uint32 = 0o755
)

// Open flags re-exported for callers that should not import x/sys.
const (
	OpenReadOnly  = unix.O_RDONLY
	OpenWriteOnly = unix.O_WRONLY
	OpenReadWrite = unix.O_RDWR
	OpenAppend    = unix.O_APPEND
	OpenCreate    = unix.O_CREAT
	OpenExclusive = unix.O_EXCL
	OpenTruncate  = unix.O_TRUNC
)

// File owns at most one descriptor for a path, opened lazily by the first
// operation that needs it, and a cached metadata snapshot that every
// mutating operation discards.
//
// File is not safe for concurrent use. Coordination between handles,
// including handles in the same process, is done with Lock.
type File struct {
	path Path
	fd   int
	meta *Metadata
}

// NewFile returns a File bound to path. Nothing is opened until needed.
func NewFile(path Path) *File {
	return &File{path: path, fd: -1}
}

// Path returns the path the file is bound to.
func (f *File) Path() Path {
	return f.path
}

// IsOpen reports whether the file currently owns a descriptor.
func (f *File) IsOpen() bool {
	return f.fd != -1
}

// Fd returns the owned descriptor, or -1 when closed.
func (f *File) Fd() int {
	return f.fd
}

// Open opens the descriptor with the given flags and permission bits. It is
// a no-op when a descriptor is already held, so explicit Open calls must
// come before the first implicit one to take effect.
func (f *File) Open(flags int, perm uint32) error {
	if f.fd != -1 {
		return nil
	}

	fileLogger.Debug("Opening %q with flags %#o", f.path.String(), flags)
	fd, err := unix.Open(f.path.String(), flags|unix.O_CLOEXEC, perm)
	if err != nil {
		fileLogger.Debug("Failed to open %q: %v", f.path.String(), err)
		return newError(OpOpen, f.path.String(), err)
	}
	f.fd = fd
	return nil
}

func (f *File) ensureOpen() error {
	if f.fd != -1 {
		return nil
	}
	return f.Open(DefaultOpenFlags, DefaultFilePerm)
}

// Close releases the descriptor. Closing a closed File is a no-op. Locks held
// through this descriptor are released by the kernel.
func (f *File) Close() error {
	if f.fd == -1 {
		return nil
	}

	fileLogger.Debug("Closing %q", f.path.String())
	err := unix.Close(f.fd)
	f.fd = -1
	if err != nil {
		return newError(OpClose, f.path.String(), err)
	}
	return nil
}

// Exists reports whether the bound path exists.
func (f *File) Exists() bool {
	return f.path.Exists()
}

// Stat returns the cached metadata snapshot, fetching a new one if the cache
// was cleared. An open descriptor is queried with fstat, otherwise the path
// is stat'ed.
func (f *File) Stat() (*Metadata, error) {
	if f.meta != nil {
		return f.meta, nil
	}

	if f.fd == -1 {
		meta, err := Stat(f.path)
		if err != nil {
			return nil, err
		}
		f.meta = meta
		return meta, nil
	}

	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return nil, newError(OpStat, f.path.String(), err)
	}
	f.meta = metadataFromStat(&st)
	return f.meta, nil
}

// Invalidate discards the cached metadata snapshot.
func (f *File) Invalidate() {
	f.meta = nil
}

// Read fills buf from the current position, issuing reads until buf is full
// or a read returns zero bytes. A count smaller than len(buf) means end of
// stream and is not an error.
//
// Read does not follow the io.Reader end-of-stream convention; use Reader
// when an io.Reader is needed.
func (f *File) Read(buf []byte) (int, error) {
	if err := f.ensureOpen(); err != nil {
		return 0, err
	}

	done := 0
	for done < len(buf) {
		n, err := unix.Read(f.fd, buf[done:])
		if err != nil {
			return done, newError(OpRead, f.path.String(), err)
		}
		if n == 0 {
			break
		}
		done += n
	}
	fileLogger.Trace("Read %d/%d bytes from %q", done, len(buf), f.path.String())
	return done, nil
}

// ReadAt fills buf from offset without moving the file position, with the
// same short-count-means-end-of-stream contract as Read.
func (f *File) ReadAt(offset int64, buf []byte) (int, error) {
	if err := f.ensureOpen(); err != nil {
		return 0, err
	}

	done := 0
	for done < len(buf) {
		n, err := unix.Pread(f.fd, buf[done:], offset+int64(done))
		if err != nil {
			return done, newError(OpRead, f.path.String(), err)
		}
		if n == 0 {
			break
		}
		done += n
	}
	fileLogger.Trace("Read %d/%d bytes from %q at offset %d", done, len(buf), f.path.String(), offset)
	return done, nil
}

// Write writes all of buf at the current position, continuing after short
// writes. The metadata cache is cleared whether or not the write succeeds.
func (f *File) Write(buf []byte) error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	defer f.Invalidate()

	for done := 0; done < len(buf); {
		n, err := unix.Write(f.fd, buf[done:])
		if err != nil {
			return newError(OpWrite, f.path.String(), err)
		}
		done += n
	}
	fileLogger.Trace("Wrote %d bytes to %q", len(buf), f.path.String())
	return nil
}

// WriteAt writes all of buf at offset without moving the file position.
func (f *File) WriteAt(offset int64, buf []byte) error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	defer f.Invalidate()

	for done := 0; done < len(buf); {
		n, err := unix.Pwrite(f.fd, buf[done:], offset+int64(done))
		if err != nil {
			return newError(OpWrite, f.path.String(), err)
		}
		done += n
	}
	fileLogger.Trace("Wrote %d bytes to %q at offset %d", len(buf), f.path.String(), offset)
	return nil
}

// Pos returns the current file position.
func (f *File) Pos() (int64, error) {
	return f.seek(0, io.SeekCurrent)
}

// SetPos moves the file position to pos.
func (f *File) SetPos(pos int64) error {
	_, err := f.seek(pos, io.SeekStart)
	return err
}

// MovePos moves the file position by delta and returns the new position.
func (f *File) MovePos(delta int64) (int64, error) {
	return f.seek(delta, io.SeekCurrent)
}

func (f *File) seek(offset int64, whence int) (int64, error) {
	if f.fd == -1 {
		return 0, newError(OpSeek, f.path.String(), ErrNotOpen)
	}
	pos, err := unix.Seek(f.fd, offset, whence)
	if err != nil {
		return 0, newError(OpSeek, f.path.String(), err)
	}
	return pos, nil
}

// Truncate sets the file length to size.
func (f *File) Truncate(size int64) error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	defer f.Invalidate()

	if err := unix.Ftruncate(f.fd, size); err != nil {
		return newError(OpTruncate, f.path.String(), err)
	}
	return nil
}

// Sync flushes file data and metadata to stable storage.
func (f *File) Sync() error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	if err := unix.Fsync(f.fd); err != nil {
		return newError(OpSync, f.path.String(), err)
	}
	return nil
}

// Remove closes the file and removes the bound path.
func (f *File) Remove() error {
	if err := f.Close(); err != nil {
		return err
	}
	defer f.Invalidate()
	return Remove(f.path)
}

// Rename closes the file, renames the bound path to newPath and rebinds the
// File to it.
func (f *File) Rename(newPath Path) error {
	if err := f.Close(); err != nil {
		return err
	}
	if err := Rename(f.path, newPath); err != nil {
		return err
	}
	f.path = newPath
	f.meta = nil
	return nil
}

// Mkdir creates the bound path as a single directory.
func (f *File) Mkdir() error {
	return Mkdir(f.path)
}

// Mkdirs creates the bound path and any missing ancestors.
func (f *File) Mkdirs() error {
	return Mkdirs(f.path)
}

// Rmdirs closes the file and recursively removes the bound path.
func (f *File) Rmdirs() error {
	if err := f.Close(); err != nil {
		return err
	}
	defer f.Invalidate()
	return Rmdirs(f.path)
}

// Reader adapts the sequential Read to io.Reader, reporting io.EOF once a
// read returns no bytes.
func (f *File) Reader() io.Reader {
	return fileReader{f: f}
}

type fileReader struct {
	f *File
}

func (r fileReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.f.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
