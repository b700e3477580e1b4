package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trickstertwo/xsinger"
)

func newValidateCmd(c *cli) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse protocol lines from stdin and print per-type counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("strict") {
				c.cfg.Strict = strict
			}
			r := xsinger.NewReader(
				xsinger.WithReaderLogger(c.logger),
				xsinger.WithReaderDiagnostics(xsinger.LogDiagnostics{Logger: c.logger}),
				xsinger.WithStrictTypes(c.cfg.Strict),
			)
			err := r.Consume(cmd.Context(), cmd.InOrStdin(), func(context.Context, xsinger.Message) error {
				return nil
			})
			printStats(cmd, r.Stats())
			if err != nil {
				return fmt.Errorf("invalid input: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on messages of unknown type")
	return cmd
}

func printStats(cmd *cobra.Command, s xsinger.ReaderStats) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, t := range xsinger.MessageTypes {
		fmt.Fprintf(tw, "%s\t%d\n", t, s.ByType[t])
	}
	fmt.Fprintf(tw, "UNRECOGNIZED\t%d\n", s.Unrecognized)
	fmt.Fprintf(tw, "LINES\t%d\n", s.Lines)
	_ = tw.Flush()
}
