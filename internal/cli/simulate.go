package cli

import (
	"github.com/spf13/cobra"

	"dexalerts/internal/app"
)

var (
	simulateSymbol  string
	simulatePrices  []string
	simulateAbove   string
	simulateBelow   string
	simulateDeliver bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Feed a price sequence through the monitor and print the alerts it raises",
	Example: `  dexalerts simulate-alert --prices 1.00,1.00,1.12,1.12 --above 10
  dexalerts simulate-alert --prices 2,1.5 --below -20 --deliver`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Symbol:  simulateSymbol,
			Prices:  simulatePrices,
			Deliver: simulateDeliver,
		}
		if cmd.Flags().Changed("above") {
			opts.Above = &simulateAbove
		}
		if cmd.Flags().Changed("below") {
			opts.Below = &simulateBelow
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Symbol shown in alerts (overrides monitor.symbol)")
	simulateCmd.Flags().StringSliceVar(&simulatePrices, "prices", nil, "Comma separated USD prices, the first one is the baseline")
	simulateCmd.Flags().StringVar(&simulateAbove, "above", "", "Comma separated above thresholds in percent")
	simulateCmd.Flags().StringVar(&simulateBelow, "below", "", "Comma separated below thresholds in percent")
	simulateCmd.Flags().BoolVar(&simulateDeliver, "deliver", false, "Also deliver alerts to the configured channels")
	_ = simulateCmd.MarkFlagRequired("prices")
}
