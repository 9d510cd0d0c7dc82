package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/summary"
)

func newSummarizeCmd(opts *globalOptions) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "summarize <conversation>",
		Short: "Summarize the newest messages of a conversation",
		Long: `Send the newest messages of a conversation to the configured summary
endpoint (summary.endpoint) and print the result.

Examples:
  pitchroom summarize pitch-42
  pitchroom summarize pitch-42 --last 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runSummarize(cmd.Context(), cmd.OutOrStdout(), s, args[0], last)
		},
	}
	cmd.Flags().IntVar(&last, "last", summary.MaxMessages, "number of newest messages to summarize")
	return cmd
}

func runSummarize(ctx context.Context, w io.Writer, s *settings, conversationID string, last int) error {
	sc, err := newSummarizer(s)
	if err != nil {
		return err
	}
	msgs, err := fetchLast(ctx, s, conversationID, last)
	if err != nil {
		return err
	}
	text, err := sc.Generate(ctx, msgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, text)
	return nil
}
