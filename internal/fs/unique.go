package fs

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"
)

var lastStamp atomic.Int64

// nextStamp returns a wall-clock nanosecond timestamp, bumped when needed so
// that it is strictly greater than any previously returned in this process.
// Stamps from different processes are not ordered and a clock step backwards
// only stalls the sequence, it never repeats a value.
func nextStamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}

// UniquePath returns a path under dir, named prefix followed by an encoded
// timestamp, that did not exist when checked. Nothing is created: another
// process may claim the name between the check and the caller's own create,
// so callers that need a guarantee should open with OpenCreate|OpenExclusive.
func UniquePath(dir Path, prefix string) Path {
	var raw [8]byte
	for {
		binary.LittleEndian.PutUint64(raw[:], uint64(nextStamp()))
		token := strings.ReplaceAll(base64.StdEncoding.EncodeToString(raw[:]), "/", "-")
		candidate := dir.Append(prefix + token)
		if !candidate.Exists() {
			pathLogger.Trace("Generated unique path %q", candidate.String())
			return candidate
		}
	}
}

// UniqueFile returns an unopened File bound to UniquePath(dir, prefix).
func UniqueFile(dir Path, prefix string) *File {
	return NewFile(UniquePath(dir, prefix))
}
