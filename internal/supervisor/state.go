package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/benaskins/tether/internal/driver"
	"github.com/benaskins/tether/internal/procstat"
	"github.com/benaskins/tether/internal/relay"
)

// Phase is the supervisor's position in the launch/monitor cycle.
type Phase string

const (
	PhaseInit        Phase = "INIT"
	PhaseDepsPending Phase = "DEPS_PENDING"
	PhaseStarting    Phase = "STARTING"
	PhaseRunning     Phase = "RUNNING"
	PhaseStopped     Phase = "STOPPED"
	PhaseFailed      Phase = "FAILED"
)

// Level is the severity of the status banner.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// child pairs a running process with the relay draining its output.
type child struct {
	proc  *driver.Process
	relay *relay.Relay
}

// State is everything the launcher, monitor and render loop share. All
// fields are guarded by mu.
type State struct {
	mu sync.Mutex

	phase     Phase
	running   bool
	handle    *child
	depsReady bool
	starting  bool

	attempts     int // consecutive failed launches
	restarts     int
	spawned      int
	lastError    string
	lastExitCode int
	nextAttempt  time.Time
	expectedStop bool
	closed       bool
	envRendered  []byte
}

// Status is a point-in-time view of the supervisor for rendering.
type Status struct {
	Title        string          `json:"title"`
	Phase        Phase           `json:"phase"`
	Running      bool            `json:"running"`
	PID          int             `json:"pid,omitempty"`
	StartedAt    time.Time       `json:"started_at,omitzero"`
	Uptime       string          `json:"uptime,omitempty"`
	Attempts     int             `json:"attempts"`
	Restarts     int             `json:"restarts"`
	LastExitCode int             `json:"last_exit_code,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	RetryIn      string          `json:"retry_in,omitempty"`
	Level        Level           `json:"level"`
	Message      string          `json:"message"`
	LastSeq      uint64          `json:"last_seq"`
	Usage        *procstat.Usage `json:"usage,omitempty"`
}

// Report is the outcome of one liveness check.
type Report struct {
	Running bool
	PID     int
	// Exited is set when this check observed the child's termination.
	Exited   bool
	ExitCode int
}

// banner derives the banner level and message from the phase. Caller
// holds mu.
func (st *State) banner(maxAttempts int) (Level, string) {
	switch st.phase {
	case PhaseInit:
		return LevelInfo, "Initializing"
	case PhaseDepsPending:
		return LevelInfo, "Installing dependencies"
	case PhaseStarting:
		return LevelInfo, "Starting backend"
	case PhaseRunning:
		if st.handle != nil {
			return LevelSuccess, fmt.Sprintf("Backend running (pid %d)", st.handle.proc.PID())
		}
		return LevelSuccess, "Backend running"
	case PhaseFailed:
		return LevelError, fmt.Sprintf("Backend failed %d times in a row; retry manually", st.attempts)
	default:
		if st.lastError != "" {
			msg := st.lastError
			if maxAttempts > 0 {
				msg = fmt.Sprintf("%s (attempt %d of %d)", msg, st.attempts, maxAttempts)
			}
			return LevelError, msg
		}
		return LevelWarning, "Backend stopped"
	}
}
