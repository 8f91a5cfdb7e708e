package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourorg/xbridge-api/internal/config"
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	apiURL  string
	timeout time.Duration
	json    bool
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.apiURL, o.timeout)
}

func (o *globalOptions) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "xbridgectl",
		Short: "Operator CLI for the xBridge swap API",
		Long: `xbridgectl queries a running xBridge API server for quotes, routes,
transactions, fees and tokens.

Amounts are given in human units and converted with --decimals.

Examples:
  xbridgectl quote 1.5 --from-token 0x0000000000000000000000000000000000000000 --to-token 0x2791... --from-chain 1 --to-chain 137
  xbridgectl status 0xabc... --chain 137 --watch
  xbridgectl fee --chain 42161 --amount 100 --decimals 6
  xbridgectl chains --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       "1.0.0",
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api", config.GetEnvOrDefault("XBRIDGE_API_URL", "http://localhost:3000"), "xBridge API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", config.GetEnvAsDuration("XBRIDGE_CLI_TIMEOUT", 30*time.Second), "request timeout")
	root.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "Output in JSON format")

	root.AddCommand(
		newQuoteCmd(opts),
		newRoutesCmd(opts),
		newTxCmd(opts),
		newStatusCmd(opts),
		newFeeCmd(opts),
		newChainsCmd(opts),
		newTokensCmd(opts),
		newGasCmd(opts),
		newInfoCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.GreenString(title))
}
