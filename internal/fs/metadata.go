package fs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Metadata is a snapshot of a path's stat(2) information. A snapshot is
// never refreshed in place; File discards it on every mutation and the next
// Stat call fetches a new one.
type Metadata struct {
	Size       int64
	Mode       uint32
	BlockSize  int64
	Blocks     int64
	UID        uint32
	GID        uint32
	AccessTime time.Time
	ModifyTime time.Time
	ChangeTime time.Time
}

func metadataFromStat(st *unix.Stat_t) *Metadata {
	return &Metadata{
		Size:       st.Size,
		Mode:       st.Mode,
		BlockSize:  int64(st.Blksize),
		Blocks:     st.Blocks,
		UID:        st.Uid,
		GID:        st.Gid,
		AccessTime: time.Unix(st.Atim.Unix()),
		ModifyTime: time.Unix(st.Mtim.Unix()),
		ChangeTime: time.Unix(st.Ctim.Unix()),
	}
}

func (m *Metadata) fileType() uint32 { return m.Mode & unix.S_IFMT }

// IsFile reports whether the path is a regular file.
func (m *Metadata) IsFile() bool { return m.fileType() == unix.S_IFREG }

// IsDir reports whether the path is a directory.
func (m *Metadata) IsDir() bool { return m.fileType() == unix.S_IFDIR }

// IsSymlink reports whether the path is a symbolic link. Only snapshots
// taken with Lstat can report true.
func (m *Metadata) IsSymlink() bool { return m.fileType() == unix.S_IFLNK }

// IsCharDevice reports whether the path is a character device.
func (m *Metadata) IsCharDevice() bool { return m.fileType() == unix.S_IFCHR }

// IsBlockDevice reports whether the path is a block device.
func (m *Metadata) IsBlockDevice() bool { return m.fileType() == unix.S_IFBLK }

// IsPipe reports whether the path is a FIFO.
func (m *Metadata) IsPipe() bool { return m.fileType() == unix.S_IFIFO }

// Perm returns the permission bits.
func (m *Metadata) Perm() uint32 { return m.Mode & 0o7777 }

// Stat fetches metadata for path, following symbolic links.
func Stat(path Path) (*Metadata, error) {
	var st unix.Stat_t
	if err := unix.Stat(path.String(), &st); err != nil {
		return nil, newError(OpStat, path.String(), err)
	}
	return metadataFromStat(&st), nil
}

// Lstat fetches metadata for path without following a final symbolic link.
func Lstat(path Path) (*Metadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path.String(), &st); err != nil {
		return nil, newError(OpStat, path.String(), err)
	}
	return metadataFromStat(&st), nil
}
