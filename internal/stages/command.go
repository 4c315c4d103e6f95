package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/name2020117/gridflow/internal/faults"
)

// DefaultCommands maps each stage to its launcher executable, resolved
// through PATH. Overridable from configuration.
func DefaultCommands() map[Stage]string {
	return map[Stage]string{
		StageBuild:  "gridflow-build",
		StageUpdate: "gridflow-update",
		StageLaunch: "gridflow-launch",
		StageUpload: "gridflow-upload",
	}
}

// CommandRunner executes stages as external launcher commands, with
// stdout and stderr appended to the request's log destination.
type CommandRunner struct {
	commands map[Stage]string
	logger   *slog.Logger
}

// CommandOption configures a CommandRunner.
type CommandOption func(*CommandRunner)

// WithCommandLogger sets the logger.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(r *CommandRunner) {
		r.logger = logger
	}
}

// NewCommandRunner creates a runner over the given stage commands.
func NewCommandRunner(commands map[Stage]string, opts ...CommandOption) *CommandRunner {
	r := &CommandRunner{
		commands: commands,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the stage command and waits for it. A missing command
// mapping or a nonzero exit is a stage fault.
func (r *CommandRunner) Run(ctx context.Context, req Request) error {
	command, ok := r.commands[req.Stage]
	if !ok || command == "" {
		return faults.Stage("no command configured for stage %s", req.Stage)
	}

	args := make([]string, 0, 8)
	if req.SettingsPath != "" {
		args = append(args, "--settings", req.SettingsPath)
	}
	if req.LogPath != "" {
		args = append(args, "--log", req.LogPath)
	}
	if req.Project != "" {
		args = append(args, "--project", req.Project)
	}
	if req.LastRun != "" {
		args = append(args, "--lastrun", req.LastRun)
	}

	cmd := exec.CommandContext(ctx, command, args...)

	if req.LogPath != "" {
		logFile, err := os.OpenFile(req.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return fmt.Errorf("failed to open stage log %s: %w", req.LogPath, err)
		}
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	r.logger.Debug("Executing stage command",
		"stage", req.Stage,
		"project", req.Project,
		"command", command)

	if err := cmd.Run(); err != nil {
		return faults.Wrap(faults.KindStage, err, "stage %s failed for project %q", req.Stage, req.Project)
	}
	return nil
}
