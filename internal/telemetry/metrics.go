package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CycleMetricsMeterName is the name used for the cycle metrics meter
	CycleMetricsMeterName = "github.com/name2020117/gridflow/manager"

	// BuildMetricsMeterName is the name used for the build metrics meter
	BuildMetricsMeterName = "github.com/name2020117/gridflow/scheduler"
)

// CycleMetrics holds the OpenTelemetry instruments for coordinator cycles
type CycleMetrics struct {
	cycleDuration metric.Float64Histogram
	projectsTotal metric.Int64Gauge
}

// NewCycleMetrics creates a new CycleMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewCycleMetrics(provider metric.MeterProvider) (*CycleMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CycleMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"gridflow_cycle_duration_seconds",
		metric.WithDescription("Duration of coordinator cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 60, 300, 900, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	projectsTotal, err := meter.Int64Gauge(
		"gridflow_projects_total",
		metric.WithDescription("Number of eligible projects in the last cycle"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	return &CycleMetrics{
		cycleDuration: cycleDuration,
		projectsTotal: projectsTotal,
	}, nil
}

// RecordCycleDuration records the duration of one coordinator cycle
func (m *CycleMetrics) RecordCycleDuration(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordProjectsTotal records the number of eligible projects in a cycle
func (m *CycleMetrics) RecordProjectsTotal(ctx context.Context, count int64) {
	if m == nil || m.projectsTotal == nil {
		return
	}

	m.projectsTotal.Record(ctx, count)
}

// BuildMetrics holds the OpenTelemetry instruments for build scheduling
type BuildMetrics struct {
	buildDuration metric.Float64Histogram
	buildsSkipped metric.Int64Counter
}

// NewBuildMetrics creates a new BuildMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewBuildMetrics(provider metric.MeterProvider) (*BuildMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(BuildMetricsMeterName)

	buildDuration, err := meter.Float64Histogram(
		"gridflow_build_duration_seconds",
		metric.WithDescription("Duration of project builds in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 60, 300, 900, 1800, 3600),
	)
	if err != nil {
		return nil, err
	}

	buildsSkipped, err := meter.Int64Counter(
		"gridflow_builds_skipped_total",
		metric.WithDescription("Builds skipped because the build lock was held"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	return &BuildMetrics{
		buildDuration: buildDuration,
		buildsSkipped: buildsSkipped,
	}, nil
}

// RecordBuildDuration records the duration of one project build
func (m *BuildMetrics) RecordBuildDuration(ctx context.Context, project string, duration time.Duration, success bool) {
	if m == nil || m.buildDuration == nil {
		return
	}

	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("project", project),
		attribute.Bool("success", success),
	))
}

// RecordBuildSkipped counts one build skipped on a held lock
func (m *BuildMetrics) RecordBuildSkipped(ctx context.Context, project string) {
	if m == nil || m.buildsSkipped == nil {
		return
	}

	m.buildsSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("project", project),
	))
}
