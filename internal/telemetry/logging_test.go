package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/name2020117/gridflow/internal/stages"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.input), "level %q", tt.input)
	}
}

func TestStageLogger(t *testing.T) {
	t.Parallel()

	logDir := filepath.Join(t.TempDir(), "logs")
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	path := filepath.Join(logDir, stages.LogFilename(stages.StageUpdate, "alpha", at))

	logger, closeFn, err := StageLogger(path, stages.StageUpdate, "alpha", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("Stage started")
	require.NoError(t, closeFn())

	assert.Equal(t, filepath.Join(logDir, "update_alpha_20250314-092653.log"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Stage started")
	assert.Contains(t, string(data), "project=alpha")
}
