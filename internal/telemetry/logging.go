package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/name2020117/gridflow/internal/stages"
)

// ParseLogLevel maps a level string to its slog.Level. Empty and
// unknown values default to info; unknown values are reported.
func ParseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid log level, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// NewHandler builds the process-wide slog handler. JSON by default,
// text when format is "text". Writes to stderr so stdout stays clean
// for commands that output data.
func NewHandler(format string, level slog.Level) slog.Handler {
	return newHandler(os.Stderr, format, level)
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// StageLogger opens the per-run log file at path and returns a logger
// bound to it. Every stage run gets its own file; the shared process
// log never interleaves with grid output. The caller must call the
// returned close function when the run ends.
func StageLogger(
	path string,
	stage stages.Stage,
	project string,
	level slog.Level,
) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stage log %s: %w", path, err)
	}

	logger := slog.New(newHandler(file, "text", level)).With(
		"stage", stage.String(),
		"project", project,
	)
	return logger, file.Close, nil
}
