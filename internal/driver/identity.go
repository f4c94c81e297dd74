package driver

import (
	"errors"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Identity pins a pid to the process that owned it when it was recorded,
// so a recycled pid is not mistaken for our child.
type Identity struct {
	PID       int    `json:"pid"`
	Command   string `json:"command,omitempty"`
	StartTime int64  `json:"start_time,omitempty"`
}

// IdentityOf captures the identity of a running pid. The command is the
// name the OS reports (an interpreter symlink resolves to its target), with
// fallback as the name to use when it cannot be read. StartTime is left
// zero when the platform cannot report it.
func IdentityOf(pid int, fallback string) Identity {
	id := Identity{PID: pid, Command: filepath.Base(fallback)}
	if name, err := processName(pid); err == nil {
		id.Command = name
	}
	if st, err := processStartTime(pid); err == nil {
		id.StartTime = st
	}
	return id
}

// Matches reports whether the pid is alive and still belongs to the
// recorded process. A recorded start time must match exactly; the command
// is compared by executable base name.
func (id Identity) Matches() bool {
	if id.PID <= 0 {
		return false
	}
	if err := unix.Kill(id.PID, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}

	if id.StartTime != 0 {
		actual, err := processStartTime(id.PID)
		if err != nil || actual != id.StartTime {
			return false
		}
	}

	if id.Command == "" {
		return true
	}
	actual, err := processName(id.PID)
	if err != nil {
		return false
	}
	return actual == filepath.Base(id.Command)
}
