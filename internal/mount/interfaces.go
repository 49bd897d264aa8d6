package mount

import (
	fusefs "bazil.org/fuse/fs"
)

// DirNode is the set of FUSE operations a directory serves.
type DirNode interface {
	fusefs.Node
	fusefs.NodeStringLookuper
	fusefs.HandleReadDirAller
	fusefs.NodeMkdirer
	fusefs.NodeCreater
	fusefs.NodeRemover
	fusefs.NodeRenamer
}

// FileNode is the set of FUSE operations a regular file serves.
type FileNode interface {
	fusefs.Node
	fusefs.NodeOpener
	fusefs.NodeSetattrer
	fusefs.NodeFsyncer
}

// FileHandle is the set of operations on an open file.
type FileHandle interface {
	fusefs.Handle
	fusefs.HandleReader
	fusefs.HandleWriter
	fusefs.HandleReleaser
}

var (
	_ fusefs.FS  = (*FS)(nil)
	_ DirNode    = (*Dir)(nil)
	_ FileNode   = (*File)(nil)
	_ FileHandle = (*Handle)(nil)
)
