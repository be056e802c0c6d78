package cli

import (
	"github.com/spf13/cobra"

	"dexalerts/internal/app"
)

var resolveTokens []string

var resolveCmd = &cobra.Command{
	Use:   "resolve [symbol]",
	Short: "Show the DEX pair a symbol resolves to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ResolveOptions{Tokens: resolveTokens}
		if len(args) == 1 {
			opts.Symbol = args[0]
		}
		return getApp().Resolve(cmd.Context(), opts)
	},
}

func init() {
	resolveCmd.Flags().StringSliceVar(&resolveTokens, "token", nil, "List pairs for token addresses instead of searching a symbol")
}
