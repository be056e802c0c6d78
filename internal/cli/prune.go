package cli

import (
	"github.com/spf13/cobra"

	"dexalerts/internal/app"
)

var (
	pruneOlderThan string
	pruneDryRun    bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete alerts older than a retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, err := parseRetention(pruneOlderThan)
		if err != nil {
			return err
		}
		return getApp().Prune(cmd.Context(), app.PruneOptions{
			OlderThan: olderThan,
			DryRun:    pruneDryRun,
		})
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneOlderThan, "older-than", "720h", "Retention window, Go duration or days such as 30d")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Report what would be deleted without deleting")
}
