// Package mount exposes a source directory through FUSE. Every operation on
// the mounted tree is carried out with the primitives in safefs/internal/fs.
package mount

import (
	"context"
	"fmt"
	"os"
	"time"

	"safefs/internal/fs"
	"safefs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	mountLogger = logging.GetLogger().WithPrefix("mount")
)

// Options controls ownership reporting and mount flags.
type Options struct {
	// UID and GID, when non-negative, replace the owner reported for every
	// node. Negative values report the source file's owner.
	UID int
	GID int

	// AllowOther lets users other than the mounter access the mount.
	AllowOther bool
}

// FS is a passthrough filesystem rooted at a source directory.
type FS struct {
	source fs.Path
	opts   Options
	conn   *fuse.Conn
	done   chan struct{}
}

// New creates a passthrough filesystem for source, which must be an
// existing directory.
func New(source fs.Path, opts Options) (*FS, error) {
	mountLogger.Info("Creating passthrough filesystem")
	mountLogger.Debug("Source directory: %s", source)

	meta, err := fs.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("source directory not accessible: %w", err)
	}
	if !meta.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", source)
	}

	return &FS{source: source, opts: opts}, nil
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (m *FS) Root() (fusefs.Node, error) {
	mountLogger.Trace("Getting root directory node")
	return &Dir{fs: m, path: m.source}, nil
}

// owner applies the configured uid/gid override to a node's attributes.
func (m *FS) owner(a *fuse.Attr, meta *fs.Metadata) {
	a.Uid = meta.UID
	a.Gid = meta.GID
	if m.opts.UID >= 0 {
		a.Uid = safeIntToUint32(m.opts.UID)
	}
	if m.opts.GID >= 0 {
		a.Gid = safeIntToUint32(m.opts.GID)
	}
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem at mountPoint and serves it in the background
// until ctx is cancelled or the mount is removed.
func (m *FS) Mount(ctx context.Context, mountPoint string) error {
	mountLogger.Info("Mounting passthrough filesystem")
	mountLogger.Debug("Mount point: %s", mountPoint)

	mountOpts := []fuse.MountOption{
		fuse.FSName("safefs"),
		fuse.Subtype("safefs"),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
		fuse.AllowNonEmptyMount(),
	}
	if m.opts.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	m.conn = c
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		if err := fusefs.Serve(c, m); err != nil {
			mountLogger.Error("FUSE server error: %v", err)
		}
		mountLogger.Debug("FUSE server stopped")
	}()

	go func() {
		<-ctx.Done()
		if err := m.Unmount(mountPoint); err != nil {
			mountLogger.Warn("Unmount on cancel failed: %v", err)
		}
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		mountLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	mountLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the FUSE server started by Mount stops.
func (m *FS) Wait() {
	if m.done != nil {
		<-m.done
	}
	if m.conn != nil {
		m.conn.Close()
	}
}

// Unmount cleanly unmounts the filesystem.
func (m *FS) Unmount(mountPoint string) error {
	mountLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if m.conn == nil {
		return nil
	}

	err := fuse.Unmount(mountPoint)
	if err != nil {
		mountLogger.Error("Unmount failed: %v", err)
		return err
	}
	mountLogger.Info("Unmount completed successfully")
	return nil
}
