package main

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/units"
)

// displayDecimals caps fractional digits in human output
const displayDecimals = 6

// swapFlags are the pair, chain and amount flags shared by quote, routes and tx
type swapFlags struct {
	fromToken string
	toToken   string
	fromChain string
	toChain   string
	decimals  int32
}

func (f *swapFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fromToken, "from-token", "", "source token address (zero address for native)")
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "destination token address")
	cmd.Flags().StringVar(&f.fromChain, "from-chain", "1", "source chain id")
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "destination chain id (defaults to the source chain)")
	cmd.Flags().Int32Var(&f.decimals, "decimals", 18, "decimals of the source token")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("to-token")
}

// query converts the human amount and builds the quote query
func (f *swapFlags) query(amount string) (url.Values, error) {
	base, err := units.ToBaseUnits(amount, f.decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	q := url.Values{}
	q.Set("fromToken", f.fromToken)
	q.Set("toToken", f.toToken)
	q.Set("amount", base)
	q.Set("fromChain", f.fromChain)
	if f.toChain != "" {
		q.Set("toChain", f.toChain)
	}
	return q, nil
}

func newQuoteCmd(opts *globalOptions) *cobra.Command {
	flags := &swapFlags{}
	cmd := &cobra.Command{
		Use:   "quote <amount>",
		Short: "Get a fee-inclusive swap quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()

			var quote model.Quote
			if err := opts.client().get(ctx, "/api/swap/quote", q, &quote); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), quote)
			}
			displayQuote(cmd.OutOrStdout(), quote)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newRoutesCmd(opts *globalOptions) *cobra.Command {
	flags := &swapFlags{}
	var toDecimals int32
	cmd := &cobra.Command{
		Use:   "routes <amount>",
		Short: "List candidate routes, best first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()

			var routes []model.RouteSummary
			if err := opts.client().get(ctx, "/api/swap/routes", q, &routes); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), routes)
			}
			printHeader(cmd.OutOrStdout(), fmt.Sprintf("%d ROUTES", len(routes)))
			displayRoutes(cmd.OutOrStdout(), routes, toDecimals)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Int32Var(&toDecimals, "to-decimals", 18, "decimals of the destination token")
	return cmd
}

// transactionRequest is the POST /api/swap/transaction body
type transactionRequest struct {
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	FromChain   string `json:"fromChain"`
	ToChain     string `json:"toChain,omitempty"`
	Slippage    string `json:"slippage,omitempty"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress,omitempty"`
}

func newTxCmd(opts *globalOptions) *cobra.Command {
	flags := &swapFlags{}
	var fromAddress, toAddress, slippage string
	cmd := &cobra.Command{
		Use:   "tx <amount>",
		Short: "Build the adapter transaction for a swap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := units.ToBaseUnits(args[0], flags.decimals)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			ctx, cancel := opts.context()
			defer cancel()

			var payload model.TransactionPayload
			err = opts.client().post(ctx, "/api/swap/transaction", transactionRequest{
				FromToken:   flags.fromToken,
				ToToken:     flags.toToken,
				Amount:      base,
				FromChain:   flags.fromChain,
				ToChain:     flags.toChain,
				Slippage:    slippage,
				FromAddress: fromAddress,
				ToAddress:   toAddress,
			}, &payload)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), payload)
			}
			displayTransaction(cmd.OutOrStdout(), payload)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&fromAddress, "from-address", "", "sender wallet address")
	cmd.Flags().StringVar(&toAddress, "to-address", "", "recipient address (defaults to the sender)")
	cmd.Flags().StringVar(&slippage, "slippage", "", "slippage tolerance in percent (server default 1)")
	_ = cmd.MarkFlagRequired("from-address")
	return cmd
}

func displayQuote(w io.Writer, q model.Quote) {
	printHeader(w, "QUOTE "+q.ID)
	fmt.Fprintf(w, "  From:  %s %s on chain %s\n",
		units.FormatUnits(q.FromToken.Amount, int32(q.FromToken.Decimals), displayDecimals, true),
		q.FromToken.Symbol, q.FromChainID)
	fmt.Fprintf(w, "  To:    %s on chain %s\n", q.ToToken.Symbol, q.ToChainID)
	if q.Fee != nil {
		fmt.Fprintf(w, "  Fee:   %s%% (%s)\n",
			color.YellowString("%.2f", q.Fee.PercentageFormatted),
			units.FormatUnits(q.Fee.Amount, int32(q.FromToken.Decimals), displayDecimals, true))
	}
	fmt.Fprintln(w)
	displayRoutes(w, q.Routes, int32(q.ToToken.Decimals))
}

func displayRoutes(w io.Writer, routes []model.RouteSummary, toDecimals int32) {
	if len(routes) == 0 {
		fmt.Fprintln(w, "  No routes found.")
		return
	}
	for i, r := range routes {
		label := fmt.Sprintf("#%d", i+1)
		if i == 0 {
			label = color.GreenString("#1 best")
		}
		fmt.Fprintf(w, "  %-8s receive %-18s  ~%-8s  gas $%s  via %s\n",
			label,
			units.FormatUnits(r.ToAmount, toDecimals, displayDecimals, true),
			(time.Duration(r.ExecutionTimeSeconds) * time.Second).String(),
			r.GasCostUSD,
			stepTools(r.Steps))
	}
}

func stepTools(steps []model.StepSummary) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += " > "
		}
		name := s.ToolName
		if name == "" {
			name = s.Tool
		}
		out += name
	}
	return out
}

func displayTransaction(w io.Writer, p model.TransactionPayload) {
	printHeader(w, "TRANSACTION")
	fmt.Fprintf(w, "  To:        %s\n", color.CyanString(p.To))
	fmt.Fprintf(w, "  Value:     %s\n", p.Value)
	fmt.Fprintf(w, "  Gas limit: %d\n", p.GasLimit)
	data := p.Data
	if len(data) > 42 {
		data = data[:42] + "..."
	}
	fmt.Fprintf(w, "  Data:      %s (%d bytes)\n", color.HiBlackString(data), (len(p.Data)-2)/2)
	if p.Fee != nil {
		fmt.Fprintf(w, "  Fee:       %.2f%% = %s base units\n", p.Fee.PercentageFormatted, p.Fee.Amount)
	}
}
