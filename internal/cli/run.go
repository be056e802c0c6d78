package cli

import (
	"github.com/spf13/cobra"

	"dexalerts/internal/app"
)

var (
	runSymbol string
	runAbove  string
	runBelow  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the price monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RunOptions{Symbol: runSymbol}
		if cmd.Flags().Changed("above") {
			opts.Above = &runAbove
		}
		if cmd.Flags().Changed("below") {
			opts.Below = &runBelow
		}
		return getApp().Run(cmd.Context(), opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "Symbol to monitor (overrides monitor.symbol)")
	runCmd.Flags().StringVar(&runAbove, "above", "", "Comma separated above thresholds in percent")
	runCmd.Flags().StringVar(&runBelow, "below", "", "Comma separated below thresholds in percent")
}
