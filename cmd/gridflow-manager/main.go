// Package main is the entry point for the gridflow pipeline manager.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/name2020117/gridflow/cmd/gridflow-manager/app"
	"github.com/name2020117/gridflow/internal/config"
	"github.com/name2020117/gridflow/internal/telemetry"
)

// logSettings reads GRIDFLOW_LOG_LEVEL and GRIDFLOW_LOG_FORMAT from the
// environment, falling back to unprefixed LOG_LEVEL.
func logSettings() (string, string) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	return levelStr, v.GetString("LOG_FORMAT")
}

func main() {
	// Structured logging to stderr keeps stdout clean for commands
	// that output data (e.g., version --format json).
	levelStr, format := logSettings()
	handler := telemetry.NewHandler(format, telemetry.ParseLogLevel(levelStr))
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
