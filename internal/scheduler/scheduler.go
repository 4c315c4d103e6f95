// Package scheduler runs the build stage for every unlocked project on
// a bounded worker pool, recording start and finish bookkeeping in the
// remote registry around each build.
package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/name2020117/gridflow/internal/bookkeeping"
	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/locks"
	"github.com/name2020117/gridflow/internal/settings"
	"github.com/name2020117/gridflow/internal/stages"
	"github.com/name2020117/gridflow/internal/telemetry"
)

// DefaultWorkers bounds the build pool when no capacity is configured.
const DefaultWorkers = 10

// Task is one build submission.
type Task struct {
	Project      string
	SettingsPath string
}

// Scheduler is the bounded build pool for one cycle. Create one per
// cycle; Wait drains it and the scheduler is then spent.
type Scheduler struct {
	locks   locks.Registry
	keeper  bookkeeping.Keeper
	runner  stages.Runner
	metrics *telemetry.BuildMetrics
	logDir  string
	workers int
	clock   func() time.Time
	logger  *slog.Logger

	group *errgroup.Group

	// submitted tracks handoffs to the pool so Wait cannot return
	// before a queued task has registered with the group.
	submitted sync.WaitGroup
	mu        sync.Mutex
	pending   int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the pool capacity.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics attaches build metrics. Nil metrics are a no-op.
func WithMetrics(metrics *telemetry.BuildMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = metrics
	}
}

// New creates a Scheduler writing build logs under logDir.
func New(
	lockRegistry locks.Registry,
	keeper bookkeeping.Keeper,
	runner stages.Runner,
	logDir string,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		locks:   lockRegistry,
		keeper:  keeper,
		runner:  runner,
		logDir:  logDir,
		workers: DefaultWorkers,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.group = &errgroup.Group{}
	s.group.SetLimit(s.workers)
	return s
}

// Submit hands a build to the pool without blocking, even when every
// worker is busy. The coordinator keeps walking the update/launch loop
// while builds queue behind the capacity limit.
func (s *Scheduler) Submit(ctx context.Context, task Task) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	s.submitted.Add(1)
	go func() {
		defer s.submitted.Done()
		s.group.Go(func() error {
			defer func() {
				s.mu.Lock()
				s.pending--
				s.mu.Unlock()
			}()
			return s.runBuild(ctx, task)
		})
	}()
}

// Ready reports whether every submitted build has already finished.
// Never blocks.
func (s *Scheduler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending == 0
}

// Wait blocks until every submitted build has completed and returns
// the first build fault, if any. A fault in one build does not stop
// the others.
func (s *Scheduler) Wait() error {
	s.submitted.Wait()
	return s.group.Wait()
}

func (s *Scheduler) runBuild(ctx context.Context, task Task) error {
	key := locks.Key(settings.LockPrefix(task.SettingsPath), stages.StageBuild.Suffix())

	if err := s.locks.Acquire(key); err != nil {
		if faults.IsKind(err, faults.KindLockConflict) {
			// Held means a build is already running somewhere; no
			// retry this cycle and the registry timestamps stay
			// untouched.
			s.logger.Warn("Build already running, skipping",
				"project", task.Project,
				"lock", key)
			s.metrics.RecordBuildSkipped(ctx, task.Project)
			return nil
		}
		return err
	}
	defer func() {
		if err := s.locks.Release(key); err != nil {
			s.logger.Error("Failed to release build lock",
				"project", task.Project,
				"lock", key,
				"error", err)
		}
	}()

	start := s.clock()
	logPath := filepath.Join(s.logDir, stages.LogFilename(stages.StageBuild, task.Project, start))

	var lastRun string
	last, err := s.keeper.LastRun(ctx, task.Project)
	if err != nil {
		return err
	}
	if last != nil {
		lastRun = last.Format(bookkeeping.TimeFormat)
	}

	if err := s.keeper.SetBuildStart(ctx, task.Project); err != nil {
		return err
	}

	s.logger.Info("Build started",
		"project", task.Project,
		"lastrun", lastRun,
		"log", logPath)

	if err := s.runner.Run(ctx, stages.Request{
		Stage:        stages.StageBuild,
		Project:      task.Project,
		SettingsPath: task.SettingsPath,
		LogPath:      logPath,
		LastRun:      lastRun,
	}); err != nil {
		// The start timestamp stays recorded with no finish. That
		// start-without-finish signature is how a crashed build is
		// told apart from a completed one; it must not be repaired
		// here.
		s.metrics.RecordBuildDuration(ctx, task.Project, s.clock().Sub(start), false)
		return err
	}

	if err := s.keeper.SetBuildComplete(ctx, task.Project); err != nil {
		return err
	}

	s.metrics.RecordBuildDuration(ctx, task.Project, s.clock().Sub(start), true)
	s.logger.Info("Build finished", "project", task.Project)
	return nil
}
