package mount

import (
	"os"

	"safefs/internal/fs"

	"bazil.org/fuse"
)

func safeInt64ToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func safeInt64ToUint32(n int64) uint32 {
	if n < 0 || n > int64(^uint32(0)) {
		return 0
	}
	return uint32(n)
}

// fileMode converts a raw st_mode into an os.FileMode.
func fileMode(meta *fs.Metadata) os.FileMode {
	perm := meta.Perm()
	mode := os.FileMode(perm & 0o777)
	if perm&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if perm&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if perm&0o1000 != 0 {
		mode |= os.ModeSticky
	}

	switch {
	case meta.IsDir():
		mode |= os.ModeDir
	case meta.IsSymlink():
		mode |= os.ModeSymlink
	case meta.IsCharDevice():
		mode |= os.ModeDevice | os.ModeCharDevice
	case meta.IsBlockDevice():
		mode |= os.ModeDevice
	case meta.IsPipe():
		mode |= os.ModeNamedPipe
	}
	return mode
}

func direntType(meta *fs.Metadata) fuse.DirentType {
	switch {
	case meta.IsDir():
		return fuse.DT_Dir
	case meta.IsSymlink():
		return fuse.DT_Link
	case meta.IsCharDevice():
		return fuse.DT_Char
	case meta.IsBlockDevice():
		return fuse.DT_Block
	case meta.IsPipe():
		return fuse.DT_FIFO
	case meta.IsFile():
		return fuse.DT_File
	default:
		return fuse.DT_Unknown
	}
}

// fillAttr copies a metadata snapshot into FUSE attributes.
func (m *FS) fillAttr(a *fuse.Attr, meta *fs.Metadata) {
	a.Mode = fileMode(meta)
	a.Size = safeInt64ToUint64(meta.Size)
	a.Blocks = safeInt64ToUint64(meta.Blocks)
	a.BlockSize = safeInt64ToUint32(meta.BlockSize)
	a.Atime = meta.AccessTime
	a.Mtime = meta.ModifyTime
	a.Ctime = meta.ChangeTime
	m.owner(a, meta)
}
