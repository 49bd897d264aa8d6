package fs

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"safefs/internal/logging"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Mkdir creates a single directory with DefaultDirPerm.
func Mkdir(path Path) error {
	dirLogger.Debug("Creating directory %q", path.String())
	if err := unix.Mkdir(path.String(), DefaultDirPerm); err != nil {
		return newError(OpMkdir, path.String(), err)
	}
	return nil
}

// Mkdirs creates path and every missing ancestor. Ancestors are tested for
// existence only until the first missing one; everything below it is created
// without further checks. The first failure aborts the walk and directories
// created up to that point are left in place.
func Mkdirs(path Path) error {
	p := path.String()
	if len(p) > 1 && p[len(p)-1] == Separator {
		p = p[:len(p)-1]
	}
	if p == "" {
		return invalidArgument(OpMkdir, path.String(), "empty path")
	}

	missing := false
	for i := 1; i < len(p); i++ {
		if p[i] != Separator || p[i-1] == Separator {
			continue
		}
		ancestor := NewPath(p[:i])
		if missing || !ancestor.Exists() {
			missing = true
			if err := Mkdir(ancestor); err != nil {
				return err
			}
		}
	}

	leaf := NewPath(p)
	if missing || !leaf.Exists() {
		return Mkdir(leaf)
	}
	return nil
}

// Remove deletes a file or an empty directory, like remove(3).
func Remove(path Path) error {
	dirLogger.Debug("Removing %q", path.String())
	err := unix.Unlink(path.String())
	if err == unix.EISDIR {
		err = unix.Rmdir(path.String())
	}
	if err != nil {
		return newError(OpRemove, path.String(), err)
	}
	return nil
}

// Rmdirs removes path. A directory is emptied first by recursively removing
// every child, so entries are always deleted before their parent. Symbolic
// links are removed, never followed.
func Rmdirs(path Path) error {
	meta, err := Lstat(path)
	if err != nil {
		return err
	}

	if meta.IsDir() {
		children, err := Children(path)
		if err != nil {
			return err
		}
		dirLogger.Trace("Removing %d children of %q", len(children), path.String())
		for _, child := range children {
			if err := Rmdirs(child); err != nil {
				return err
			}
		}
	}

	return Remove(path)
}

// Rename moves oldPath to newPath, replacing newPath if it exists.
func Rename(oldPath, newPath Path) error {
	dirLogger.Debug("Renaming %q to %q", oldPath.String(), newPath.String())
	if err := unix.Rename(oldPath.String(), newPath.String()); err != nil {
		return newError(OpRename, oldPath.String(), err)
	}
	return nil
}

// List expands a shell glob pattern (*, ?, [...]) into the matching paths.
// No match yields an empty slice and no error; a malformed pattern yields an
// empty slice and an error wrapping ErrInvalidArgument.
func List(pattern Path) ([]Path, error) {
	if err := checkPattern(pattern.String()); err != nil {
		return []Path{}, invalidArgument(OpList, pattern.String(), err.Error())
	}

	matches, err := filepath.Glob(pattern.String())
	if err != nil {
		return []Path{}, invalidArgument(OpList, pattern.String(), err.Error())
	}

	paths := make([]Path, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, NewPath(m))
	}
	dirLogger.Trace("Pattern %q matched %d paths", pattern.String(), len(paths))
	return paths, nil
}

// Children lists the entries of dir, hidden ones included, by globbing
// dir/* with dir's own metacharacters quoted.
func Children(dir Path) ([]Path, error) {
	return List(NewPath(escapeGlob(dir.String())).Append("*"))
}

// escapeGlob quotes glob metacharacters so that s matches only itself.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// checkPattern reports filepath.ErrBadPattern for a syntax error anywhere in
// pattern. filepath.Glob only validates the parts it gets to evaluate, so an
// unterminated class after a star would otherwise read as "no match".
func checkPattern(pattern string) error {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
			if i == len(pattern) {
				return filepath.ErrBadPattern
			}
		case '[':
			end, ok := classEnd(pattern, i+1)
			if !ok {
				return filepath.ErrBadPattern
			}
			i = end
		}
	}
	return nil
}

// classEnd returns the index of the ']' closing the character class whose
// body starts at i.
func classEnd(p string, i int) (int, bool) {
	if i < len(p) && p[i] == '^' {
		i++
	}
	for n := 0; ; n++ {
		if i < len(p) && p[i] == ']' && n > 0 {
			return i, true
		}
		var ok bool
		if i, ok = classChar(p, i); !ok {
			return 0, false
		}
		if i < len(p) && p[i] == '-' {
			if i, ok = classChar(p, i+1); !ok {
				return 0, false
			}
		}
	}
}

// classChar consumes one possibly escaped class member at i and returns the
// index after it.
func classChar(p string, i int) (int, bool) {
	if i >= len(p) {
		return 0, false
	}
	switch p[i] {
	case '-', ']', Separator:
		return 0, false
	case '\\':
		i++
		if i >= len(p) {
			return 0, false
		}
	}
	_, size := utf8.DecodeRuneInString(p[i:])
	return i + size, true
}
