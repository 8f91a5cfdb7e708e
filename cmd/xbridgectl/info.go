package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/units"
)

func newFeeCmd(opts *globalOptions) *cobra.Command {
	var (
		chainID  string
		amount   string
		token    string
		decimals int32
	)
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Show the platform fee of a chain, or the fee owed on an amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			client := opts.client()
			w := cmd.OutOrStdout()

			if amount == "" {
				var info model.FeeInfo
				if err := client.get(ctx, "/api/swap/fee", url.Values{"chainId": {chainID}}, &info); err != nil {
					return err
				}
				if opts.json {
					return printJSON(w, info)
				}
				fmt.Fprintf(w, "Chain %s fee: %s%% (%d bps)\n", chainID,
					color.YellowString("%.2f", info.PercentageFormatted), info.PercentageBasisPoints)
				return nil
			}

			base, err := units.ToBaseUnits(amount, decimals)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			var fee model.CalculatedFee
			body := map[string]string{"chainId": chainID, "amount": base}
			if token != "" {
				body["token"] = token
			}
			if err := client.post(ctx, "/api/swap/calculate-fee", body, &fee); err != nil {
				return err
			}
			if opts.json {
				return printJSON(w, fee)
			}
			fmt.Fprintf(w, "Fee on %s: %s (%s base units, token %s)\n", amount,
				color.YellowString(units.FormatUnits(fee.Amount, decimals, displayDecimals, true)), fee.Amount, fee.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&chainID, "chain", "", "chain id")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in human units")
	cmd.Flags().StringVar(&token, "token", "", "token address (native when empty)")
	cmd.Flags().Int32Var(&decimals, "decimals", 18, "decimals of the token")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func newChainsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List chains served by the routing API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			var chains []model.Chain
			if err := opts.client().get(ctx, "/api/chains", nil, &chains); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), chains)
			}
			w := cmd.OutOrStdout()
			printHeader(w, fmt.Sprintf("%d CHAINS", len(chains)))
			for _, c := range chains {
				fmt.Fprintf(w, "  %-10d %-6s %s\n", c.ID, c.Key, c.Name)
			}
			return nil
		},
	}
}

func newTokensCmd(opts *globalOptions) *cobra.Command {
	var (
		chainID  string
		external bool
		symbol   string
	)
	cmd := &cobra.Command{
		Use:     "tokens",
		Aliases: []string{"ls"},
		Short:   "List registered tokens of a chain",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			q := url.Values{"chainId": {chainID}}
			if external {
				q.Set("includeExternal", "true")
			}
			var tokens []model.Token
			if err := opts.client().get(ctx, "/api/tokens", q, &tokens); err != nil {
				return err
			}
			if symbol != "" {
				filtered := tokens[:0]
				for _, t := range tokens {
					if strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
						filtered = append(filtered, t)
					}
				}
				tokens = filtered
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), tokens)
			}
			w := cmd.OutOrStdout()
			if len(tokens) == 0 {
				fmt.Fprintln(w, "No tokens found matching the criteria.")
				return nil
			}
			printHeader(w, fmt.Sprintf("%d TOKENS ON CHAIN %s", len(tokens), chainID))
			for _, t := range tokens {
				source := ""
				if t.External {
					source = color.HiBlackString("external")
				}
				fmt.Fprintf(w, "  %-10s %-15s %2d  %s\n", t.Symbol, units.ShortAddress(t.Address), t.Decimals, source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chainID, "chain", "", "chain id")
	cmd.Flags().BoolVar(&external, "external", false, "include routing API tokens that are not registered")
	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by token symbol")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func newGasCmd(opts *globalOptions) *cobra.Command {
	var chainID string
	cmd := &cobra.Command{
		Use:   "gas",
		Short: "Show the current gas price of a chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			var price model.GasPrice
			if err := opts.client().get(ctx, "/api/gas", url.Values{"chainId": {chainID}}, &price); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), price)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chain %s gas price: %s gwei\n", chainID, color.CyanString("%.2f", price.GasPriceGwei))
			return nil
		},
	}
	cmd.Flags().StringVar(&chainID, "chain", "", "chain id")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the server name, version and configured chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			var info model.ServiceInfo
			if err := opts.client().get(ctx, "/api/info", nil, &info); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", info.Name, info.Version)
			for _, c := range info.SupportedChains {
				fmt.Fprintf(w, "  %-8s %s\n", c.ID, c.Name)
			}
			return nil
		},
	}
}
