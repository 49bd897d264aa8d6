package fs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestErrorFormatting(t *testing.T) {
	withPath := &Error{Op: OpOpen, Path: "/tmp/x", Err: unix.ENOENT}
	assert.Equal(t, "operation open on /tmp/x failed: no such file or directory", withPath.Error())

	withoutPath := &Error{Op: OpMap, Err: unix.ENOMEM}
	assert.Equal(t, "operation mmap failed: cannot allocate memory", withoutPath.Error())
}

func TestErrno(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", newError(OpRead, "/f", unix.EIO))

	errno, ok := Errno(wrapped)
	assert.True(t, ok)
	assert.Equal(t, unix.EIO, errno)
	assert.True(t, errors.Is(wrapped, unix.EIO))

	_, ok = Errno(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eagain", err: newError(OpLock, "", unix.EAGAIN), want: true},
		{name: "eintr", err: newError(OpLock, "", unix.EINTR), want: true},
		{name: "ebusy", err: unix.EBUSY, want: true},
		{name: "enoent", err: newError(OpOpen, "", unix.ENOENT), want: false},
		{name: "invalid argument", err: invalidArgument(OpLockTest, "", "x"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTemporary(tt.err))
		})
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eagain", err: newError(OpLock, "/f", unix.EAGAIN), want: true},
		{name: "eacces", err: newError(OpLock, "/f", unix.EACCES), want: true},
		{name: "bare eacces", err: unix.EACCES, want: true},
		{name: "ebadf", err: newError(OpLock, "/f", unix.EBADF), want: false},
		{name: "invalid argument", err: invalidArgument(OpLock, "/f", "x"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflict(tt.err))
		})
	}
}

func TestInvalidArgument(t *testing.T) {
	err := invalidArgument(OpLockTest, "/f", "cannot test an unlock request")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, ok := Errno(err)
	assert.False(t, ok)
}
