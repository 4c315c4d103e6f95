// Package locks provides filesystem-backed mutual exclusion for
// (project, stage) pairs shared across processes and hosts.
//
// A lock is a flag file named {settingsPrefix}_{STAGE} in the flag
// directory. Its content is "{host}-{pid}" identifying the owner;
// its existence means the stage is held. A lock is truly held only
// while the owning process is alive on its recorded host, which can
// only be verified from that host. The reaper therefore never touches
// locks recorded against another host.
package locks

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/identity"
)

// FlagDirName is the subdirectory of the results directory holding
// lock files.
const FlagDirName = "FlagFiles"

//go:generate mockgen -destination=mocks/mock_registry.go -package=mocks -source=locks.go Registry

// Registry is the lock lifecycle for stage keys.
type Registry interface {
	// Acquire creates the lock file for the key. If the file already
	// exists the stage is treated as held and a lock-conflict fault is
	// returned; there is no blocking or retry.
	Acquire(key string) error

	// Release deletes the lock file. Releasing an absent lock is not
	// an error.
	Release(key string) error

	// IsLocked reports whether the lock file exists. Existence only;
	// no liveness check.
	IsLocked(key string) bool

	// ReapStale scans the flag directory and deletes every lock whose
	// recorded host matches this host and whose recorded pid is
	// confirmed dead. Unparsable and remote-host locks are left alone.
	ReapStale() error
}

// dirRegistry implements Registry over a single flag directory.
type dirRegistry struct {
	dir    string
	prober Prober
	logger *slog.Logger
}

// Option configures a directory registry.
type Option func(*dirRegistry)

// WithProber overrides the process liveness prober.
func WithProber(p Prober) Option {
	return func(r *dirRegistry) {
		r.prober = p
	}
}

// WithLogger sets the logger used by the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *dirRegistry) {
		r.logger = logger
	}
}

// NewDirRegistry creates a Registry over the given flag directory,
// creating the directory if needed.
func NewDirRegistry(dir string, opts ...Option) (Registry, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create flag directory: %w", err)
	}

	r := &dirRegistry{
		dir:    dir,
		prober: NewUnixProber(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Key builds the lock key for a settings prefix and stage suffix.
func Key(settingsPrefix, stageSuffix string) string {
	return settingsPrefix + "_" + stageSuffix
}

// path returns the lock file path for a key.
func (r *dirRegistry) path(key string) string {
	return filepath.Join(r.dir, key)
}

// Acquire creates the lock file with exclusive-create semantics.
// O_EXCL is not reliable on every network filesystem, so a concurrent
// create on two hosts can still race; a pre-existing file is treated
// as held regardless of owner liveness.
func (r *dirRegistry) Acquire(key string) error {
	owner, err := identity.LockOwner()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(r.path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		if os.IsExist(err) {
			return faults.LockConflict("lock already held: %s", key)
		}
		return fmt.Errorf("failed to create lock file %s: %w", key, err)
	}

	if _, err := f.WriteString(owner); err != nil {
		_ = f.Close()
		_ = os.Remove(r.path(key))
		return fmt.Errorf("failed to write lock file %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(r.path(key))
		return fmt.Errorf("failed to close lock file %s: %w", key, err)
	}

	r.logger.Debug("Acquired lock", "key", key, "owner", owner)
	return nil
}

// Release deletes the lock file unconditionally.
func (r *dirRegistry) Release(key string) error {
	if err := os.Remove(r.path(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove lock file %s: %w", key, err)
	}
	r.logger.Debug("Released lock", "key", key)
	return nil
}

// IsLocked reports lock file existence.
func (r *dirRegistry) IsLocked(key string) bool {
	info, err := os.Stat(r.path(key))
	return err == nil && !info.IsDir()
}

// ReapStale walks the flag directory once.
func (r *dirRegistry) ReapStale() error {
	localHost, err := identity.Hostname()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read flag directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		r.reapOne(entry.Name(), localHost)
	}
	return nil
}

// reapOne checks a single lock file and deletes it only when the owner
// is confirmed dead on this host.
func (r *dirRegistry) reapOne(name, localHost string) {
	path := r.path(name)
	logger := r.logger.With("lock", name)
	logger.Debug("Checking lock file")

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("Failed to read lock file", "error", err)
		return
	}

	host, pid, ok := parseOwner(string(data))
	if !ok {
		logger.Debug("Failed to parse lock file, leaving in place")
		return
	}

	if host != localHost {
		logger.Debug("Lock recorded on different host, cannot verify", "host", host)
		return
	}

	switch state := r.prober.Probe(pid); state {
	case StateDead:
		logger.Info("Lock owner not running, deleting stale lock", "pid", pid)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to delete stale lock", "error", err)
		}
	default:
		logger.Debug("Lock owner liveness", "pid", pid, "state", state.String())
	}
}

// parseOwner splits "host-pid" lock content. Hosts may themselves
// contain hyphens, so the pid is taken after the last one.
func parseOwner(content string) (host string, pid int, ok bool) {
	line := strings.TrimSpace(content)
	idx := strings.LastIndex(line, "-")
	if idx <= 0 || idx == len(line)-1 {
		return "", 0, false
	}

	pid, err := strconv.Atoi(line[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return line[:idx], pid, true
}
