// Package bookkeeping maintains per-project build records in the
// remote registry. A start timestamp is written before a build runs
// and the finish timestamp only after it succeeds, so a record with a
// start and no later finish is the durable signature of a crashed or
// still-running build. The gap is intentionally never repaired here;
// staleness of the start timestamp is the external monitoring signal.
package bookkeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/name2020117/gridflow/internal/registry"
)

// TimeFormat is the timestamp layout used by registry records.
const TimeFormat = "2006-01-02 15:04:05"

// Record field names.
const (
	FieldProjectName          = "project_name"
	FieldLastStartTime        = "build_laststarttime"
	FieldLastCompleteStart    = "build_lastcompletestarttime"
	FieldLastCompleteFinish   = "build_lastcompletefinishtime"
	FieldLastCompleteDuration = "build_lastcompleteduration"
	FieldBuildStatusComplete  = "build_status_complete"
)

//go:generate mockgen -destination=mocks/mock_keeper.go -package=mocks -source=bookkeeping.go Keeper

// Keeper records build start/finish bookkeeping for projects.
type Keeper interface {
	// LastRun returns the start time of the last complete build, or
	// nil when no complete build is recorded.
	LastRun(ctx context.Context, project string) (*time.Time, error)

	// SetBuildStart records that a build is starting now and flips the
	// build status back to incomplete.
	SetBuildStart(ctx context.Context, project string) error

	// SetBuildComplete records the finish time, the derived duration,
	// and marks the build status complete.
	SetBuildComplete(ctx context.Context, project string) error
}

// registryKeeper implements Keeper over the remote registry client.
type registryKeeper struct {
	client registry.Client
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a registry keeper.
type Option func(*registryKeeper)

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(k *registryKeeper) {
		k.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *registryKeeper) {
		k.logger = logger
	}
}

// NewKeeper creates a Keeper backed by the registry client.
func NewKeeper(client registry.Client, opts ...Option) Keeper {
	k := &registryKeeper{
		client: client,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// LastRun reads the last complete start/finish pair. The pair only
// counts when both are present and the start precedes the finish.
func (k *registryKeeper) LastRun(ctx context.Context, project string) (*time.Time, error) {
	records, err := k.client.Export(ctx, registry.ExportOptions{
		Fields:  []string{FieldLastCompleteStart, FieldLastCompleteFinish},
		Records: []string{project},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export last run for %s: %w", project, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	lastStart := records[0][FieldLastCompleteStart]
	lastFinish := records[0][FieldLastCompleteFinish]
	if lastStart == "" || lastFinish == "" || lastStart >= lastFinish {
		return nil, nil
	}

	start, err := time.Parse(TimeFormat, lastStart)
	if err != nil {
		k.logger.Debug("Unparsable last run timestamp", "project", project, "value", lastStart)
		return nil, nil
	}
	return &start, nil
}

// SetBuildStart writes the start timestamp.
func (k *registryKeeper) SetBuildStart(ctx context.Context, project string) error {
	lastStart := k.clock().Format(TimeFormat)

	k.logger.Info("Recording build start", "project", project, "start", lastStart)

	_, err := k.client.Import(ctx, []registry.Record{{
		FieldProjectName:         project,
		FieldLastStartTime:       lastStart,
		FieldBuildStatusComplete: registry.StatusIncomplete,
	}})
	if err != nil {
		return fmt.Errorf("failed to record build start for %s: %w", project, err)
	}
	return nil
}

// SetBuildComplete copies the recorded start into the complete pair,
// stamps the finish time, and writes the derived duration.
func (k *registryKeeper) SetBuildComplete(ctx context.Context, project string) error {
	records, err := k.client.Export(ctx, registry.ExportOptions{
		Fields:  []string{FieldLastStartTime},
		Records: []string{project},
	})
	if err != nil {
		return fmt.Errorf("failed to export build start for %s: %w", project, err)
	}

	var lastStart string
	if len(records) > 0 {
		lastStart = records[0][FieldLastStartTime]
	}

	lastFinish := k.clock().Format(TimeFormat)
	duration := Duration(lastStart, lastFinish)

	k.logger.Info("Recording build complete",
		"project", project,
		"start", lastStart,
		"finish", lastFinish,
		"duration", duration)

	_, err = k.client.Import(ctx, []registry.Record{{
		FieldProjectName:          project,
		FieldLastCompleteStart:    lastStart,
		FieldLastCompleteFinish:   lastFinish,
		FieldLastCompleteDuration: duration,
		FieldBuildStatusComplete:  registry.StatusComplete,
	}})
	if err != nil {
		return fmt.Errorf("failed to record build complete for %s: %w", project, err)
	}
	return nil
}

// Duration formats the wall-clock distance between two record
// timestamps as "H hrs M mins", dropping the hours segment when zero.
// Malformed timestamps yield an empty duration, never an error.
func Duration(start, finish string) string {
	startTime, err := time.Parse(TimeFormat, start)
	if err != nil {
		return ""
	}
	finishTime, err := time.Parse(TimeFormat, finish)
	if err != nil {
		return ""
	}

	// Floored division so a finish stamped earlier than its start
	// wraps within the hour instead of producing negative minutes.
	secs := int(finishTime.Sub(startTime).Seconds())
	hours := floorDiv(secs, 3600)
	mins := floorMod(secs, 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%d hrs %d mins", hours, mins)
	}
	return fmt.Sprintf("%d mins", mins)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
