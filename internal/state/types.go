// Package state records which mount owns a source directory.
package state

import "time"

// CurrentVersion is the session record format written by this build.
const CurrentVersion = 1

// Session describes the most recent mount of a source directory.
type Session struct {
	// Version for future compatibility
	Version int `json:"version"`

	Source     string    `json:"source"`
	MountPoint string    `json:"mount_point"`
	PID        int       `json:"pid"`
	Started    time.Time `json:"started"`

	// Clean is set on orderly shutdown. A loaded session with Clean unset
	// and a non-zero PID was interrupted.
	Clean bool `json:"clean"`
}

// Interrupted reports whether the recorded mount ended without an orderly
// shutdown.
func (s *Session) Interrupted() bool {
	return s.PID != 0 && !s.Clean
}
