package app

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/name2020117/gridflow/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Regenerate the settings catalog without running any stage",
	Long: `Regenerate the per-project settings documents from the remote
registry. With --prune-only, only delete documents of projects whose
status dropped below complete and leave the rest untouched.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().Bool("prune-only", false, "Only remove documents of disabled projects")
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	env, err := setupEnvironment(ctx)
	if err != nil {
		return err
	}

	cat := catalog.New(env.projectsClient, env.instance)

	pruneOnly, err := cmd.Flags().GetBool("prune-only")
	if err != nil {
		return err
	}
	if pruneOnly {
		return cat.RemoveDisabled(ctx)
	}

	written, err := cat.Refresh(ctx)
	if err != nil {
		return err
	}
	slog.Info("Settings catalog regenerated", "documents", len(written))
	return nil
}
