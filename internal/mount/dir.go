package mount

import (
	"context"
	"syscall"

	"safefs/internal/fs"
	"safefs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is a directory of the source tree.
type Dir struct {
	fs   *FS
	path fs.Path
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path.String())

	meta, err := fs.Stat(d.path)
	if err != nil {
		dirLogger.Debug("Failed to stat directory %q: %v", d.path.String(), err)
		return ToFuseError(err)
	}
	d.fs.fillAttr(a, meta)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
// Symbolic links are followed, so a link shows up as its target.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.path.String())
	childPath := d.path.Append(name)

	meta, err := fs.Stat(childPath)
	if err != nil {
		dirLogger.Debug("Path not found: %q", childPath.String())
		return nil, ToFuseError(err)
	}

	if meta.IsDir() {
		return &Dir{fs: d.fs, path: childPath}, nil
	}
	return &File{fs: d.fs, path: childPath}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path.String())

	children, err := fs.Children(d.path)
	if err != nil {
		dirLogger.Error("Failed to list %q: %v", d.path.String(), err)
		return nil, ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(children)+2)
	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})

	for _, child := range children {
		meta, err := fs.Lstat(child)
		if err != nil {
			// Removed between listing and stat.
			dirLogger.Trace("Skipping vanished entry %q: %v", child.String(), err)
			continue
		}
		entries = append(entries, fuse.Dirent{
			Name: child.Base(),
			Type: direntType(meta),
		})
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path.String(), len(entries))
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating new directory %q in %q", req.Name, d.path.String())
	newPath := d.path.Append(req.Name)

	if err := fs.Mkdir(newPath); err != nil {
		dirLogger.Warn("Failed to create directory %q: %v", newPath.String(), err)
		return nil, ToFuseError(err)
	}

	return &Dir{fs: d.fs, path: newPath}, nil
}

// Create implements the NodeCreater interface, creating and opening a
// regular file in one step.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Info("Creating file %q in %q", req.Name, d.path.String())
	newPath := d.path.Append(req.Name)

	file := fs.NewFile(newPath)
	if err := file.Open(int(req.Flags)|fs.OpenCreate, uint32(req.Mode.Perm())); err != nil {
		dirLogger.Warn("Failed to create %q: %v", newPath.String(), err)
		return nil, nil, ToFuseError(err)
	}

	meta, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, ToFuseError(err)
	}
	d.fs.fillAttr(&resp.Attr, meta)
	resp.Flags |= fuse.OpenDirectIO

	return &File{fs: d.fs, path: newPath}, &Handle{file: file}, nil
}

// Remove implements the NodeRemover interface, removing a file or an empty
// directory.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Info("Removing %q from directory %q (isDir=%v)",
		req.Name, d.path.String(), req.Dir)

	childPath := d.path.Append(req.Name)
	if err := fs.Remove(childPath); err != nil {
		dirLogger.Warn("Failed to remove %q: %v", childPath.String(), err)
		return ToFuseError(err)
	}
	return nil
}

// Rename implements the NodeRenamer interface, renaming/moving a file or directory.
func (d *Dir) Rename(_ context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	dirLogger.Info("Renaming %q to %q", req.OldName, req.NewName)

	target, ok := newDir.(*Dir)
	if !ok {
		dirLogger.Error("Target is not a valid directory type")
		return fuse.Errno(syscall.EINVAL)
	}

	oldPath := d.path.Append(req.OldName)
	newPath := target.path.Append(req.NewName)
	dirLogger.Debug("Rename operation: %q -> %q", oldPath.String(), newPath.String())

	if err := fs.Rename(oldPath, newPath); err != nil {
		dirLogger.Warn("Rename failed: %v", err)
		return ToFuseError(err)
	}
	return nil
}
