package cli

import (
	"github.com/spf13/cobra"

	"dexalerts/internal/app"
)

var (
	priceToken  string
	priceReport bool
)

var priceCmd = &cobra.Command{
	Use:   "price [symbol]",
	Short: "Fetch a CoinMarketCap quote and optionally post it to the alert channels",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PriceOptions{
			TokenAddress: priceToken,
			Report:       priceReport,
		}
		if len(args) == 1 {
			opts.Symbol = args[0]
		}
		return getApp().Price(cmd.Context(), opts)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceToken, "token", "", "Token address used to pick the CoinMarketCap listing (defaults to the resolved pair's base token)")
	priceCmd.Flags().BoolVar(&priceReport, "report", false, "Send the quote to every enabled alert channel")
}
