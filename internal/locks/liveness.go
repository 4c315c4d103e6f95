package locks

import (
	"errors"

	"golang.org/x/sys/unix"
)

// State is the result of a process liveness probe.
type State int

// Liveness states. Unknown must never be collapsed into Dead: the
// stale-lock reaper only deletes locks whose owner is confirmed dead.
const (
	StateAlive State = iota
	StateDead
	StateUnknown
)

// String returns a human-readable name for logging.
func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks -source=liveness.go Prober

// Prober checks whether a process is running on the local host.
type Prober interface {
	// Probe reports the liveness of the process with the given pid.
	Probe(pid int) State
}

// unixProber probes liveness by sending the null signal.
type unixProber struct{}

// NewUnixProber returns a Prober backed by the null-signal probe.
func NewUnixProber() Prober {
	return &unixProber{}
}

// Probe sends signal 0 to the pid. ESRCH means the process is gone;
// EPERM means it exists but belongs to another user, which still counts
// as inconclusive for reaping purposes. Pid 0 would signal our own
// process group, so it is never probed.
func (*unixProber) Probe(pid int) State {
	if pid < 0 {
		return StateDead
	}
	if pid == 0 {
		return StateUnknown
	}

	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return StateAlive
	case errors.Is(err, unix.ESRCH):
		return StateDead
	case errors.Is(err, unix.EPERM):
		return StateUnknown
	default:
		return StateUnknown
	}
}
