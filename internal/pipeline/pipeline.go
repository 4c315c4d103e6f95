// Package pipeline runs the per-project update and launch stages and
// the shared upload stage, each gated by its own lock. A stage fault
// is caught, logged with its classification, and the lock forcibly
// released so a later cycle may retry.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/locks"
	"github.com/name2020117/gridflow/internal/settings"
	"github.com/name2020117/gridflow/internal/stages"
)

// UploadLockPrefix keys the shared upload lock; upload is one stage
// per cycle, not per project.
const UploadLockPrefix = "upload"

// Pipeline drives the sequential stages for one cycle.
type Pipeline struct {
	locks  locks.Registry
	runner stages.Runner
	logDir string
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the wall clock used for log naming.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline writing stage logs under logDir.
func New(lockRegistry locks.Registry, runner stages.Runner, logDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		locks:  lockRegistry,
		runner: runner,
		logDir: logDir,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunStage runs one update or launch stage for a project under its
// lock. A held lock skips with a warning. A stage fault does not
// propagate; it is logged and the lock released so the next cycle can
// retry. Only infrastructure errors around the lock itself return.
func (p *Pipeline) RunStage(ctx context.Context, stage stages.Stage, project, settingsPath string) error {
	key := locks.Key(settings.LockPrefix(settingsPath), stage.Suffix())
	return p.runLocked(ctx, key, stages.Request{
		Stage:        stage,
		Project:      project,
		SettingsPath: settingsPath,
		LogPath:      filepath.Join(p.logDir, stages.LogFilename(stage, project, p.clock())),
	})
}

// RunUpload runs the shared upload stage under its own lock, blocking
// until it completes.
func (p *Pipeline) RunUpload(ctx context.Context) error {
	key := locks.Key(UploadLockPrefix, stages.StageUpload.Suffix())
	return p.runLocked(ctx, key, stages.Request{
		Stage:   stages.StageUpload,
		LogPath: filepath.Join(p.logDir, stages.LogFilename(stages.StageUpload, "", p.clock())),
	})
}

func (p *Pipeline) runLocked(ctx context.Context, key string, req stages.Request) error {
	if err := p.locks.Acquire(key); err != nil {
		if faults.IsKind(err, faults.KindLockConflict) {
			p.logger.Warn("Stage already running, skipping",
				"stage", req.Stage,
				"project", req.Project,
				"lock", key)
			return nil
		}
		return err
	}

	p.logger.Info("Stage started",
		"stage", req.Stage,
		"project", req.Project,
		"log", req.LogPath)

	if err := p.runner.Run(ctx, req); err != nil {
		// Caught here so one project's fault never stops the rest of
		// the cycle. The release makes the stage retryable next cycle.
		p.logger.Error("Stage failed",
			"stage", req.Stage,
			"project", req.Project,
			"kind", faults.KindOf(err),
			"error", err)
		return p.locks.Release(key)
	}

	p.logger.Info("Stage finished", "stage", req.Stage, "project", req.Project)
	return p.locks.Release(key)
}
