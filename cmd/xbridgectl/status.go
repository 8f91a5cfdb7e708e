package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourorg/xbridge-api/internal/model"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var (
		chainID  string
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status <tx-hash>",
		Short: "Check the status of a submitted transfer",
		Long: `Check the execution status of a transfer by its source transaction hash.

Examples:
  xbridgectl status 0xabc... --chain 137
  xbridgectl status 0xabc... --chain 137 --watch --interval 10s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && opts.json {
				return fmt.Errorf("watch mode not supported with JSON output")
			}
			q := url.Values{}
			q.Set("txHash", args[0])
			q.Set("chainId", chainID)
			client := opts.client()

			for {
				ctx, cancel := opts.context()
				var status model.StatusResult
				err := client.get(ctx, "/api/swap/status", q, &status)
				cancel()
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), status)
				}
				displayStatus(cmd.OutOrStdout(), args[0], status)
				if !watch || isFinal(status.Status) {
					return nil
				}
				time.Sleep(interval)
			}
		},
	}
	cmd.Flags().StringVar(&chainID, "chain", "", "source chain id")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the transfer settles")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "polling interval when watching")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func isFinal(status string) bool {
	switch strings.ToUpper(status) {
	case "DONE", "FAILED", "INVALID":
		return true
	}
	return false
}

func coloredStatus(status string) string {
	status = strings.ToUpper(status)
	switch status {
	case "DONE":
		return color.GreenString(status)
	case "PENDING":
		return color.YellowString(status)
	case "FAILED", "INVALID":
		return color.RedString(status)
	case "NOT_FOUND":
		return color.MagentaString(status)
	default:
		return status
	}
}

func displayStatus(w io.Writer, txHash string, s model.StatusResult) {
	printHeader(w, "TRANSFER STATUS")
	fmt.Fprintf(w, "  Tx:      %s\n", color.CyanString(txHash))
	fmt.Fprintf(w, "  Status:  %s\n", coloredStatus(s.Status))
	if s.Substatus != "" {
		fmt.Fprintf(w, "  Detail:  %s %s\n", s.Substatus, s.SubstatusMessage)
	}
	for i, step := range s.Steps {
		fmt.Fprintf(w, "  Step %d:  %s via %s: %s\n", i+1, step.Type, step.Tool, coloredStatus(step.Status))
	}
}
