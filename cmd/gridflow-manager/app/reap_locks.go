package app

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var reapLocksCmd = &cobra.Command{
	Use:   "reap-locks",
	Short: "Reap stale lock files left by dead processes on this host",
	Long: `Scan the flag-file directory and delete lock files whose recorded
process is confirmed dead on this host. Locks recorded on other hosts
or with inconclusive liveness are left untouched.`,
	RunE: runReapLocks,
}

func runReapLocks(cmd *cobra.Command, _ []string) error {
	env, err := setupEnvironment(cmd.Context())
	if err != nil {
		return err
	}

	if err := env.locks.ReapStale(); err != nil {
		return err
	}
	slog.Info("Stale lock reap complete", "dir", env.instance.FlagDir())
	return nil
}
