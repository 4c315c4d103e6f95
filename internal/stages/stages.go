// Package stages names the pipeline stages and defines the collaborator
// boundary the manager drives them through. The manager owns locking,
// bookkeeping and scheduling; the actual grid work happens behind
// Runner.
package stages

import (
	"context"
	"strings"
	"time"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageBuild  Stage = "build"
	StageUpdate Stage = "update"
	StageLaunch Stage = "launch"
	StageUpload Stage = "upload"
)

// All lists the stages in pipeline order.
func All() []Stage {
	return []Stage{StageBuild, StageUpdate, StageLaunch, StageUpload}
}

func (s Stage) String() string {
	return string(s)
}

// Suffix returns the uppercase lock-key suffix for the stage, as it
// appears in flag filenames.
func (s Stage) Suffix() string {
	return strings.ToUpper(string(s))
}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageBuild, StageUpdate, StageLaunch, StageUpload:
		return true
	}
	return false
}

// logTimeFormat timestamps log filenames down to the second, so
// successive runs of the same (stage, project) keep separate logs.
const logTimeFormat = "20060102-150405"

// LogFilename returns the log filename for one stage run.
func LogFilename(stage Stage, project string, at time.Time) string {
	return string(stage) + "_" + project + "_" + at.Format(logTimeFormat) + ".log"
}

// Request carries everything a Runner needs for one stage run.
// LastRun is set only for build and is empty when the project has no
// complete prior run. SettingsPath and Project are empty for upload,
// which operates over the whole results tree.
type Request struct {
	Stage        Stage
	Project      string
	SettingsPath string
	LogPath      string
	LastRun      string
}

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=stages.go Runner

// Runner executes one stage run. Implementations must be safe for
// concurrent use; the build pool calls Run from multiple goroutines.
type Runner interface {
	Run(ctx context.Context, req Request) error
}
