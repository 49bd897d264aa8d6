package fs

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// Separator is the path separator understood by every helper in this package.
const Separator = '/'

// Path is an immutable filesystem path. The zero value is the empty path.
type Path struct {
	path string
}

// NewPath creates a Path holding p verbatim. No cleaning is applied so that
// trailing separators survive for callers such as Mkdirs.
func NewPath(p string) Path {
	return Path{path: p}
}

// String returns the string representation of the path
func (p Path) String() string {
	return p.path
}

// IsZero reports whether the path is empty.
func (p Path) IsZero() bool {
	return p.path == ""
}

// Append returns a new Path with each child joined by exactly one separator
// at every boundary where the left side does not already end in one.
func (p Path) Append(children ...string) Path {
	var b strings.Builder
	b.WriteString(p.path)
	for _, child := range children {
		if b.Len() == 0 || b.String()[b.Len()-1] != Separator {
			b.WriteByte(Separator)
		}
		b.WriteString(child)
	}
	joined := b.String()
	pathLogger.Trace("Appending %q to %q -> %q", children, p.path, joined)
	return Path{path: joined}
}

// Parent returns a Path representing the parent directory
func (p Path) Parent() Path {
	return Path{path: filepath.Dir(p.path)}
}

// Base returns the last element of the path
func (p Path) Base() string {
	return filepath.Base(p.path)
}

// Exists tests for the existence of the path with access(F_OK). Dangling
// symbolic links report false.
func (p Path) Exists() bool {
	return unix.Access(p.path, unix.F_OK) == nil
}

// Realpath resolves symbolic links and relative components against the
// current working directory.
func (p Path) Realpath() (Path, error) {
	abs, err := filepath.Abs(p.path)
	if err != nil {
		return Path{}, newError(OpRealpath, p.path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Path{}, newError(OpRealpath, p.path, unwrapErrno(err))
	}
	return Path{path: resolved}, nil
}
