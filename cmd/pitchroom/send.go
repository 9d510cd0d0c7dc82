package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

func newSendCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation> <message...>",
		Short: "Post a message to a conversation",
		Long: `Post one message. Use "-" as the message to read it from stdin.

Examples:
  pitchroom send pitch-42 "what about a sequel?"
  echo "notes attached" | pitchroom send pitch-42 -`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args[1:], " ")
			if content == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				content = string(b)
			}
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runSend(cmd.Context(), cmd.OutOrStdout(), s, args[0], content)
		},
	}
}

var errEmptyMessage = errors.New("message is empty")

func runSend(ctx context.Context, w io.Writer, s *settings, conversationID, content string) error {
	content = strings.TrimRight(content, "\n")
	if strings.TrimSpace(content) == "" {
		return errEmptyMessage
	}

	session := chat.NewSession(chat.Deps{Writer: s.client})
	defer session.Close()
	if err := session.Select(ctx, conversationID); err != nil {
		return err
	}
	m, err := session.Send(ctx, s.identity, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sent %s\n", m.ID)
	return nil
}
