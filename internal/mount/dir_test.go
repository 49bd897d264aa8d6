package mount

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"testing"

	"safefs/internal/fs"

	"bazil.org/fuse"
)

func setupTestFS(t *testing.T, opts Options) (*FS, string) {
	t.Helper()
	sourceDir := t.TempDir()

	mfs, err := New(fs.NewPath(sourceDir), opts)
	if err != nil {
		t.Fatalf("Failed to create filesystem: %v", err)
	}
	return mfs, sourceDir
}

func rootDir(t *testing.T, mfs *FS) *Dir {
	t.Helper()
	root, err := mfs.Root()
	if err != nil {
		t.Fatalf("Failed to get root: %v", err)
	}
	return root.(*Dir)
}

func TestNewRejectsBadSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(fs.NewPath(filepath.Join(dir, "missing")), Options{UID: -1, GID: -1}); err == nil {
		t.Error("Expected error for missing source")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if _, err := New(fs.NewPath(file), Options{UID: -1, GID: -1}); err == nil {
		t.Error("Expected error for non-directory source")
	}
}

func TestDirOperations(t *testing.T) {
	mfs, sourceDir := setupTestFS(t, Options{UID: -1, GID: -1})

	testFiles := []string{
		"file1.txt",
		".hidden",
		"dir1/file2.txt",
	}
	for _, tf := range testFiles {
		fullPath := filepath.Join(sourceDir, tf)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	ctx := context.Background()
	root := rootDir(t, mfs)

	t.Run("RootDirectory", func(t *testing.T) {
		attr := &fuse.Attr{}
		if err := root.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get root attributes: %v", err)
		}
		if !attr.Mode.IsDir() {
			t.Error("Root should be a directory")
		}
		if attr.Uid != uint32(os.Getuid()) {
			t.Errorf("Expected uid %d, got %d", os.Getuid(), attr.Uid)
		}
	})

	t.Run("ReadDirAll", func(t *testing.T) {
		entries, err := root.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read root: %v", err)
		}

		var names []string
		types := make(map[string]fuse.DirentType)
		for _, e := range entries {
			names = append(names, e.Name)
			types[e.Name] = e.Type
		}
		sort.Strings(names)

		want := []string{".", "..", ".hidden", "dir1", "file1.txt"}
		if len(names) != len(want) {
			t.Fatalf("Expected entries %v, got %v", want, names)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("Expected entries %v, got %v", want, names)
				break
			}
		}
		if types["dir1"] != fuse.DT_Dir {
			t.Errorf("dir1 should be DT_Dir, got %v", types["dir1"])
		}
		if types["file1.txt"] != fuse.DT_File {
			t.Errorf("file1.txt should be DT_File, got %v", types["file1.txt"])
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		node, err := root.Lookup(ctx, "dir1")
		if err != nil {
			t.Fatalf("Failed to lookup dir1: %v", err)
		}
		if _, ok := node.(*Dir); !ok {
			t.Errorf("Expected *Dir, got %T", node)
		}

		node, err = root.Lookup(ctx, "file1.txt")
		if err != nil {
			t.Fatalf("Failed to lookup file1.txt: %v", err)
		}
		if _, ok := node.(*File); !ok {
			t.Errorf("Expected *File, got %T", node)
		}

		_, err = root.Lookup(ctx, "nonexistent")
		if err != fuse.Errno(syscall.ENOENT) {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})

	t.Run("Mkdir", func(t *testing.T) {
		node, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "newdir"})
		if err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if _, ok := node.(*Dir); !ok {
			t.Errorf("Expected *Dir, got %T", node)
		}
		info, err := os.Stat(filepath.Join(sourceDir, "newdir"))
		if err != nil || !info.IsDir() {
			t.Errorf("Directory not created in source: %v", err)
		}

		_, err = root.Mkdir(ctx, &fuse.MkdirRequest{Name: "newdir"})
		if err != fuse.Errno(syscall.EEXIST) {
			t.Errorf("Expected EEXIST, got %v", err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		err := root.Remove(ctx, &fuse.RemoveRequest{Name: "dir1", Dir: true})
		if err != fuse.Errno(syscall.ENOTEMPTY) {
			t.Errorf("Expected ENOTEMPTY, got %v", err)
		}

		if err := root.Remove(ctx, &fuse.RemoveRequest{Name: "newdir", Dir: true}); err != nil {
			t.Errorf("Failed to remove empty directory: %v", err)
		}
		if err := root.Remove(ctx, &fuse.RemoveRequest{Name: "file1.txt"}); err != nil {
			t.Errorf("Failed to remove file: %v", err)
		}
		if _, err := os.Stat(filepath.Join(sourceDir, "file1.txt")); !os.IsNotExist(err) {
			t.Error("file1.txt should be gone from source")
		}
	})

	t.Run("Rename", func(t *testing.T) {
		dir1, err := root.Lookup(ctx, "dir1")
		if err != nil {
			t.Fatalf("Failed to lookup dir1: %v", err)
		}

		req := &fuse.RenameRequest{OldName: "file2.txt", NewName: "moved.txt"}
		if err := dir1.(*Dir).Rename(ctx, req, root); err != nil {
			t.Fatalf("Failed to rename: %v", err)
		}
		if _, err := os.Stat(filepath.Join(sourceDir, "moved.txt")); err != nil {
			t.Errorf("Renamed file not found: %v", err)
		}
		if _, err := os.Stat(filepath.Join(sourceDir, "dir1", "file2.txt")); !os.IsNotExist(err) {
			t.Error("Old name should be gone")
		}

		req = &fuse.RenameRequest{OldName: "moved.txt", NewName: "x"}
		if err := root.Rename(ctx, req, &File{}); err != fuse.Errno(syscall.EINVAL) {
			t.Errorf("Expected EINVAL for non-directory target, got %v", err)
		}
	})
}

func TestOwnerOverride(t *testing.T) {
	mfs, _ := setupTestFS(t, Options{UID: 1234, GID: 5678})

	attr := &fuse.Attr{}
	if err := rootDir(t, mfs).Attr(context.Background(), attr); err != nil {
		t.Fatalf("Failed to get attributes: %v", err)
	}
	if attr.Uid != 1234 || attr.Gid != 5678 {
		t.Errorf("Expected owner 1234:5678, got %d:%d", attr.Uid, attr.Gid)
	}
}

func TestToFuseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"errno", &fs.Error{Op: fs.OpOpen, Path: "/x", Err: syscall.EACCES}, fuse.Errno(syscall.EACCES)},
		{"invalid argument", fs.ErrInvalidArgument, fuse.Errno(syscall.EINVAL)},
		{"not exist", os.ErrNotExist, fuse.Errno(syscall.ENOENT)},
		{"unknown", errors.New("boom"), fuse.Errno(syscall.EIO)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToFuseError(tt.err); got != tt.want {
				t.Errorf("ToFuseError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
