//go:build linux

package fs

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPair opens two independent handles to the same file.
func openPair(t *testing.T) (*File, *File) {
	t.Helper()
	p := NewPath(t.TempDir()).Append("locked")
	require.NoError(t, os.WriteFile(p.String(), make([]byte, 64), 0o644))

	a, b := NewFile(p), NewFile(p)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestLockConflictBetweenHandles(t *testing.T) {
	a, b := openPair(t)

	ok, err := a.Lock(LockExclusive, Abs(0, 10), false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Lock(LockShared, Abs(5, 10), false)
	require.NoError(t, err)
	assert.False(t, ok, "shared request overlapping an exclusive lock")

	ok, err = b.Lock(LockExclusive, Abs(0, 1), false)
	require.NoError(t, err)
	assert.False(t, ok, "exclusive request overlapping an exclusive lock")

	free, err := b.TestLock(LockShared, Abs(0, 10))
	require.NoError(t, err)
	assert.False(t, free)

	free, err = b.TestLock(LockExclusive, Abs(10, 10))
	require.NoError(t, err)
	assert.True(t, free, "range past the held lock is free")

	require.NoError(t, a.Unlock(Abs(0, 10)))

	ok, err = b.Lock(LockExclusive, Abs(0, 10), false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockTestDoesNotAcquire(t *testing.T) {
	a, b := openPair(t)

	free, err := a.TestLock(LockExclusive, Abs(0, 0))
	require.NoError(t, err)
	require.True(t, free)

	ok, err := b.Lock(LockExclusive, Abs(0, 0), false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSharedLocksCoexist(t *testing.T) {
	a, b := openPair(t)

	ok, err := a.Lock(LockShared, Abs(0, 20), false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Lock(LockShared, Abs(10, 20), false)
	require.NoError(t, err)
	assert.True(t, ok)

	free, err := a.TestLock(LockExclusive, Abs(15, 1))
	require.NoError(t, err)
	assert.False(t, free)
}

func TestLockTestRejectsUnlock(t *testing.T) {
	a, _ := openPair(t)
	for _, r := range []Range{Abs(0, 0), Abs(5, 10), FromCursor(-1, 3), FromEOF(0, 0)} {
		_, err := a.TestLock(LockUnlock, r)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "range %v", r)
	}
	assert.False(t, a.IsOpen(), "rejected before any syscall")
}

func TestLockUnknownMode(t *testing.T) {
	a, _ := openPair(t)
	_, err := a.Lock(LockMode(42), Abs(0, 1), false)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestLockRelativeRanges(t *testing.T) {
	a, b := openPair(t)

	require.NoError(t, a.Open(OpenReadWrite, 0))
	require.NoError(t, a.SetPos(32))
	ok, err := a.Lock(LockExclusive, FromCursor(0, 8), false)
	require.NoError(t, err)
	require.True(t, ok)

	// Moving the cursor afterwards does not move the lock.
	require.NoError(t, a.SetPos(0))

	free, err := b.TestLock(LockShared, Abs(32, 8))
	require.NoError(t, err)
	assert.False(t, free)
	free, err = b.TestLock(LockShared, Abs(0, 8))
	require.NoError(t, err)
	assert.True(t, free)

	ok, err = a.Lock(LockShared, FromEOF(-4, 4), false)
	require.NoError(t, err)
	require.True(t, ok)
	free, err = b.TestLock(LockExclusive, Abs(60, 4))
	require.NoError(t, err)
	assert.False(t, free)
}

func TestBlockingLockWaitsForRelease(t *testing.T) {
	a, b := openPair(t)

	ok, err := a.Lock(LockExclusive, Abs(0, 10), true)
	require.NoError(t, err)
	require.True(t, ok)

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := b.Lock(LockExclusive, Abs(0, 10), true)
		done <- result{ok, err}
	}()

	select {
	case <-done:
		t.Fatal("blocking lock returned while the range was held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, a.Unlock(Abs(0, 10)))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.ok)
	case <-time.After(5 * time.Second):
		t.Fatal("blocking lock was not granted after release")
	}
}

func TestCloseReleasesLocks(t *testing.T) {
	a, b := openPair(t)

	ok, err := a.Lock(LockExclusive, Abs(0, 0), false)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, a.Close())

	ok, err = b.Lock(LockExclusive, Abs(0, 0), false)
	require.NoError(t, err)
	assert.True(t, ok)
}
