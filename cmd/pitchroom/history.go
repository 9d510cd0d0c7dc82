package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/tui"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		last   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history <conversation>",
		Short: "Print the messages of a conversation",
		Long: `Print a conversation's messages, oldest first.

Examples:
  pitchroom history pitch-42
  pitchroom history pitch-42 --last 20
  pitchroom history pitch-42 --json | jq '.[].content'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runHistory(cmd.Context(), cmd.OutOrStdout(), s, args[0], last, asJSON)
		},
	}
	cmd.Flags().IntVar(&last, "last", 0, "only the newest N messages (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func runHistory(ctx context.Context, w io.Writer, s *settings, conversationID string, last int, asJSON bool) error {
	msgs, err := fetchLast(ctx, s, conversationID, last)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return nil
	}
	now := time.Now()
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", tui.FormatTimestamp(m.CreatedAt, now), m.Author.Name, m.Content)
	}
	return nil
}

// fetchLast fetches a conversation and keeps the newest n messages, or all
// when n <= 0.
func fetchLast(ctx context.Context, s *settings, conversationID string, n int) ([]chat.Message, error) {
	msgs, err := s.client.FetchMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}
