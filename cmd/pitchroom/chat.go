package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	"github.com/fyrsmithlabs/pitchroom/internal/summary"
	"github.com/fyrsmithlabs/pitchroom/internal/tui"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <conversation>",
		Short: "Open the live chat view of a conversation",
		Long: `Open a conversation in an interactive terminal view.

Messages from other participants appear as they are posted. Your own
messages show immediately and dim until the daemon confirms them.

Keys:
  enter    send
  ctrl+s   mark/unmark the newest message for the summary
  ctrl+g   summarize marked messages
  ctrl+x   dismiss summary
  esc      quit

Examples:
  pitchroom chat pitch-42
  pitchroom chat pitch-42 --user ana --name Ana`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := feed.ValidateConversationID(args[0]); err != nil {
				return err
			}
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runChat(cmd.Context(), s, args[0])
		},
	}
}

func runChat(ctx context.Context, s *settings, conversationID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	identity := s.identity
	identity.DisplayName = s.profileName(ctx)

	notices := tui.NewNotices(8)
	session := newSession(s, notices)
	defer func() {
		cancel()
		session.Close()
	}()

	var summarizer tui.Summarizer
	sc, err := newSummarizer(s)
	switch {
	case err == nil:
		summarizer = sc
	case !errors.Is(err, summary.ErrNotConfigured):
		return err
	}

	model := tui.NewModel(ctx, tui.Options{
		Session:      session,
		Conversation: conversationID,
		Identity:     identity,
		Notices:      notices,
		Summarizer:   summarizer,
		Logger:       s.logger,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}

// newSession wires a chat session to the daemon client.
func newSession(s *settings, notifier chat.Notifier) *chat.Session {
	return chat.NewSession(chat.Deps{
		Writer:   s.client,
		Fetcher:  s.client,
		Authors:  s.client,
		Feed:     s.client,
		Notifier: notifier,
		Logger:   s.logger,
	})
}
