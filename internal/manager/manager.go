// Package manager drives one full pipeline cycle: reap stale locks,
// regenerate the settings catalog, fan builds out to the bounded pool,
// walk the update/launch loop, run the shared upload, and drain the
// builds. Re-invocation on a schedule is an external concern.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/locks"
	"github.com/name2020117/gridflow/internal/scheduler"
	"github.com/name2020117/gridflow/internal/settings"
	"github.com/name2020117/gridflow/internal/stages"
	"github.com/name2020117/gridflow/internal/telemetry"
)

// Refresher regenerates the settings catalog and returns the
// materialized document paths.
type Refresher interface {
	Refresh(ctx context.Context) ([]string, error)
}

// Pool is one cycle's build pool.
type Pool interface {
	Submit(ctx context.Context, task scheduler.Task)
	Ready() bool
	Wait() error
}

// PoolFactory builds a fresh Pool. Pools are spent after Wait, so the
// coordinator creates one per cycle.
type PoolFactory func() Pool

// Driver runs the sequential update, launch and upload stages.
type Driver interface {
	RunStage(ctx context.Context, stage stages.Stage, project, settingsPath string) error
	RunUpload(ctx context.Context) error
}

//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks -source=manager.go Refresher,Pool,Driver

// Coordinator runs pipeline cycles.
type Coordinator interface {
	// RunCycle executes one full cycle. Stage faults inside the cycle
	// are logged and folded into the returned error; a configuration
	// or registry fault during catalog regeneration aborts the cycle
	// before any stage runs.
	RunCycle(ctx context.Context) error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	refresher Refresher
	newPool   PoolFactory
	driver    Driver
	locks     locks.Registry

	metrics *telemetry.CycleMetrics
	clock   func() time.Time
	logger  *slog.Logger
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithCycleMetrics sets the cycle metrics for the coordinator
func WithCycleMetrics(metrics *telemetry.CycleMetrics) Option {
	return func(c *defaultCoordinator) {
		c.metrics = metrics
	}
}

// WithClock overrides the wall clock used for cycle timing
func WithClock(clock func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *defaultCoordinator) {
		c.logger = logger
	}
}

// New creates a coordinator with injected dependencies
func New(
	refresher Refresher,
	newPool PoolFactory,
	driver Driver,
	lockRegistry locks.Registry,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		refresher: refresher,
		newPool:   newPool,
		driver:    driver,
		locks:     lockRegistry,
		clock:     time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RunCycle executes one full cycle
func (c *defaultCoordinator) RunCycle(ctx context.Context) error {
	start := c.clock()
	logger := c.logger.With("cycle_id", uuid.NewString())
	logger.Info("Cycle started")

	// Stale locks from crashed runs on this host would otherwise block
	// their stages forever.
	if err := c.locks.ReapStale(); err != nil {
		logger.Warn("Stale lock reap failed", "error", err)
	}

	paths, err := c.refresher.Refresh(ctx)
	if err != nil {
		logger.Error("Catalog regeneration failed, aborting cycle",
			"kind", faults.KindOf(err),
			"error", err)
		c.metrics.RecordCycleDuration(ctx, c.clock().Sub(start), false)
		return err
	}
	c.metrics.RecordProjectsTotal(ctx, int64(len(paths)))

	projects := make(map[string]string, len(paths))
	for _, path := range paths {
		project, err := settings.ProjectFromPath(path)
		if err != nil {
			logger.Warn("Skipping unrecognized settings document", "path", path, "error", err)
			continue
		}
		projects[path] = project
	}

	// Builds queue behind the pool limit and run while the sequential
	// loop below proceeds.
	pool := c.newPool()
	for _, path := range paths {
		project, ok := projects[path]
		if !ok {
			continue
		}
		logger.Info("Submitting build", "project", project, "settings", path)
		pool.Submit(ctx, scheduler.Task{Project: project, SettingsPath: path})
	}

	// All updates before any launch; per project, update happens
	// before launch.
	for _, stage := range []stages.Stage{stages.StageUpdate, stages.StageLaunch} {
		for _, path := range paths {
			project, ok := projects[path]
			if !ok {
				continue
			}
			if err := c.driver.RunStage(ctx, stage, project, path); err != nil {
				logger.Error("Stage dispatch failed",
					"stage", stage,
					"project", project,
					"error", err)
			}
		}
	}

	logger.Info("Starting upload")
	uploadDone := make(chan error, 1)
	go func() {
		uploadDone <- c.driver.RunUpload(ctx)
	}()
	uploadErr := <-uploadDone
	if uploadErr != nil {
		logger.Error("Upload failed", "error", uploadErr)
	}
	logger.Info("Upload complete")

	logger.Info("Waiting for builds to finish")
	buildErr := pool.Wait()
	if buildErr != nil {
		logger.Error("Build pool finished with faults", "error", buildErr)
	}

	err = errors.Join(uploadErr, buildErr)
	c.metrics.RecordCycleDuration(ctx, c.clock().Sub(start), err == nil)
	logger.Info("Cycle finished", "projects", len(paths), "duration", c.clock().Sub(start).String())
	return err
}
