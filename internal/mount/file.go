package mount

import (
	"context"
	"sync"

	"safefs/internal/fs"
	"safefs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is a non-directory node of the source tree.
type File struct {
	fs   *FS
	path fs.Path
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	fileLogger.Trace("Getting attributes for file: %q", f.path.String())

	meta, err := fs.Stat(f.path)
	if err != nil {
		fileLogger.Debug("Failed to stat %q: %v", f.path.String(), err)
		return ToFuseError(err)
	}
	f.fs.fillAttr(a, meta)

	fileLogger.Trace("File attributes: mode=%v, size=%d, mtime=%v",
		a.Mode, a.Size, a.Mtime)
	return nil
}

// Open implements the NodeOpener interface, opening the source file with the
// caller's flags.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening file %q with flags %v", f.path.String(), req.Flags)

	file := fs.NewFile(f.path)
	if err := file.Open(int(req.Flags), 0); err != nil {
		fileLogger.Warn("Failed to open file: %v", err)
		return nil, ToFuseError(err)
	}

	resp.Flags |= fuse.OpenDirectIO
	return &Handle{file: file}, nil
}

// Setattr implements the NodeSetattrer interface. Only size changes are
// applied; the resulting attributes are always returned.
func (f *File) Setattr(_ context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		fileLogger.Debug("Truncating %q to %d bytes", f.path.String(), req.Size)

		file := fs.NewFile(f.path)
		defer file.Close()
		if err := file.Open(fs.OpenWriteOnly, 0); err != nil {
			return ToFuseError(err)
		}
		if err := file.Truncate(int64(req.Size)); err != nil {
			fileLogger.Warn("Truncate failed: %v", err)
			return ToFuseError(err)
		}
	}

	return f.Attr(context.Background(), &resp.Attr)
}

// Fsync implements the NodeFsyncer interface. fsync on any descriptor of the
// inode flushes all of its dirty data.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	fileLogger.Debug("Syncing %q", f.path.String())

	file := fs.NewFile(f.path)
	defer file.Close()
	if err := file.Open(fs.OpenReadOnly, 0); err != nil {
		return ToFuseError(err)
	}
	return ToFuseError(file.Sync())
}

// Handle is an open descriptor on a source file.
type Handle struct {
	file *fs.File
	mu   sync.RWMutex
}

// Read implements the HandleReader interface, reading data from the file.
func (h *Handle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fileLogger.Trace("Reading %d bytes from file %q at offset %d",
		req.Size, h.file.Path().String(), req.Offset)

	buf := make([]byte, req.Size)
	n, err := h.file.ReadAt(req.Offset, buf)
	if err != nil {
		fileLogger.Error("Failed to read from file: %v", err)
		return ToFuseError(err)
	}
	resp.Data = buf[:n]
	return nil
}

// Write implements the HandleWriter interface.
func (h *Handle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fileLogger.Trace("Writing %d bytes to file %q at offset %d",
		len(req.Data), h.file.Path().String(), req.Offset)

	if err := h.file.WriteAt(req.Offset, req.Data); err != nil {
		fileLogger.Error("Failed to write to file: %v", err)
		return ToFuseError(err)
	}
	resp.Size = len(req.Data)
	return nil
}

// Release implements the HandleReleaser interface, closing the descriptor.
func (h *Handle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fileLogger.Debug("Closing file %q", h.file.Path().String())
	return ToFuseError(h.file.Close())
}
