package plugins

import (
	"context"
	"log/slog"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/settings"
	"github.com/name2020117/gridflow/internal/stages"
	"github.com/name2020117/gridflow/internal/telemetry"
)

// Runner executes a project's stage in-process through the registered
// capabilities instead of spawning a launcher command. The settings
// document's assignment lists pick which capabilities run; modules run
// before processors, in catalog order.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

var _ stages.Runner = (*Runner)(nil)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner over the capability registry.
func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves and executes the project's assigned capabilities. The
// upload stage carries no settings document and has no in-process
// equivalent here.
func (r *Runner) Run(ctx context.Context, req stages.Request) error {
	if req.SettingsPath == "" {
		return faults.Stage("no in-process capability for stage %s", req.Stage)
	}

	doc, err := settings.Load(req.SettingsPath)
	if err != nil {
		return err
	}

	bundle, err := r.registry.Resolve(doc, req.Project)
	if err != nil {
		return err
	}

	rc := RunContext{
		Project:      req.Project,
		SettingsPath: req.SettingsPath,
		HostURL:      doc.Attrs.HostURL,
	}

	// In-process runs write the same per-run log file a spawned
	// launcher command would.
	runLog := r.logger
	if req.LogPath != "" {
		stageLog, closeLog, err := telemetry.StageLogger(req.LogPath, req.Stage, req.Project, slog.LevelDebug)
		if err != nil {
			return faults.Wrap(faults.KindStage, err, "failed to open run log for project %q", req.Project)
		}
		defer func() {
			if err := closeLog(); err != nil {
				r.logger.Warn("Failed to close run log", "path", req.LogPath, "error", err)
			}
		}()
		runLog = stageLog
	}

	for _, group := range [][]Configured{bundle.Modules, bundle.Processors} {
		for _, c := range group {
			runLog.Info("Running capability", "capability", c.Name)
			if err := c.Capability.Run(ctx, rc); err != nil {
				runLog.Error("Capability failed", "capability", c.Name, "error", err)
				return faults.Wrap(faults.KindStage, err, "capability %s failed for project %q", c.Name, req.Project)
			}
		}
	}
	return nil
}
