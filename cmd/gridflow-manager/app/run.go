package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/name2020117/gridflow/internal/bookkeeping"
	"github.com/name2020117/gridflow/internal/catalog"
	"github.com/name2020117/gridflow/internal/config"
	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/identity"
	"github.com/name2020117/gridflow/internal/locks"
	"github.com/name2020117/gridflow/internal/manager"
	"github.com/name2020117/gridflow/internal/pipeline"
	"github.com/name2020117/gridflow/internal/plugins"
	"github.com/name2020117/gridflow/internal/registry"
	"github.com/name2020117/gridflow/internal/scheduler"
	"github.com/name2020117/gridflow/internal/stages"
	"github.com/name2020117/gridflow/internal/telemetry"
	"github.com/name2020117/gridflow/internal/versions"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pipeline cycle",
	Long: `Run one full pipeline cycle: reap stale locks, regenerate the
settings catalog from the remote registry, run builds on the bounded
worker pool, walk update/launch per project, run the shared upload, and
wait for builds to drain. Re-invocation on a schedule is left to cron
or a systemd timer.`,
	RunE: runRun,
}

// Stage runner modes accepted by the --runner flag.
const (
	// RunnerCommand spawns one launcher command per stage run.
	RunnerCommand = "command"
	// RunnerPlugin executes stage runs in-process through the
	// capabilities registered on plugins.Default().
	RunnerPlugin = "plugin"
)

func newStageRunner(mode string) (stages.Runner, error) {
	switch mode {
	case "", RunnerCommand:
		return stages.NewCommandRunner(stages.DefaultCommands()), nil
	case RunnerPlugin:
		return plugins.NewRunner(plugins.Default()), nil
	default:
		return nil, faults.Configuration("unknown runner mode %q (expected %q or %q)", mode, RunnerCommand, RunnerPlugin)
	}
}

func init() {
	runCmd.Flags().Int("workers", 0, "Build pool capacity (0 uses the instance record)")
	runCmd.Flags().String("runner", RunnerCommand, "Stage runner: command (spawn launcher commands) or plugin (registered in-process capabilities)")
	runCmd.Flags().Bool("metrics-enabled", false, "Export OTLP metrics")
	runCmd.Flags().String("metrics-endpoint", telemetry.DefaultEndpoint, "OTLP collector endpoint")
	runCmd.Flags().Bool("metrics-insecure", false, "Use HTTP instead of HTTPS for the OTLP endpoint")

	for _, name := range []string{"workers", "runner", "metrics-enabled", "metrics-endpoint", "metrics-insecure"} {
		if err := viper.BindPFlag(name, runCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}
}

// environment is the shared wiring every subcommand starts from: the
// registry clients, the validated instance record and the lock
// registry rooted in the instance's results tree.
type environment struct {
	instance       *config.Instance
	projectsClient registry.Client
	locks          locks.Registry
}

func setupEnvironment(ctx context.Context) (*environment, error) {
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}

	instanceName, err := identity.Instance()
	if err != nil {
		return nil, fmt.Errorf("failed to determine instance identity: %w", err)
	}
	slog.Info("Resolved instance identity", "instance", instanceName)

	instancesClient := registry.NewHTTPClient(creds.URL, creds.InstancesToken)
	instance, err := config.LoadInstance(ctx, instancesClient, instanceName)
	if err != nil {
		return nil, err
	}

	lockRegistry, err := locks.NewDirRegistry(instance.FlagDir())
	if err != nil {
		return nil, err
	}

	return &environment{
		instance:       instance,
		projectsClient: registry.NewHTTPClient(creds.URL, creds.ProjectsToken),
		locks:          lockRegistry,
	}, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := setupEnvironment(ctx)
	if err != nil {
		return err
	}

	telemetryCfg := &telemetry.Config{
		Enabled:        viper.GetBool("metrics-enabled"),
		Endpoint:       viper.GetString("metrics-endpoint"),
		Insecure:       viper.GetBool("metrics-insecure"),
		ServiceVersion: versions.GetVersionInfo().Version,
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg)
	if err != nil {
		return err
	}
	defer func() {
		if shutdown, ok := meterProvider.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdown.Shutdown(context.Background()); err != nil {
				slog.Warn("Failed to shut down meter provider", "error", err)
			}
		}
	}()

	cycleMetrics, err := telemetry.NewCycleMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create cycle metrics: %w", err)
	}
	buildMetrics, err := telemetry.NewBuildMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create build metrics: %w", err)
	}

	workers := env.instance.BuildWorkers
	if flagWorkers := viper.GetInt("workers"); flagWorkers > 0 {
		workers = flagWorkers
	}

	keeper := bookkeeping.NewKeeper(env.projectsClient)
	runner, err := newStageRunner(viper.GetString("runner"))
	if err != nil {
		return err
	}
	cat := catalog.New(env.projectsClient, env.instance)
	pipe := pipeline.New(env.locks, runner, env.instance.LogDir)

	poolFactory := func() manager.Pool {
		return scheduler.New(env.locks, keeper, runner, env.instance.LogDir,
			scheduler.WithWorkers(workers),
			scheduler.WithMetrics(buildMetrics))
	}

	coordinator := manager.New(cat, poolFactory, pipe, env.locks,
		manager.WithCycleMetrics(cycleMetrics))

	return coordinator.RunCycle(ctx)
}
