// Package main implements the pitchroom CLI: the terminal chat client and
// one-shot commands against a pitchroomd daemon.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/apiclient"
	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/config"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/pkg/auth"
)

// version information
var version = "dev"

// defaultLogFile receives client logs unless logging.file is set. The chat
// view owns the terminal, so the client never logs to stdout.
const defaultLogFile = "~/.local/state/pitchroom/pitchroom.log"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	serverURL  string
	userID     string
	name       string
}

// settings is the resolved client configuration.
type settings struct {
	cfg      *config.Config
	identity chat.Identity
	client   *apiclient.Client
	logger   *logging.Logger
}

// close flushes and closes the client log.
func (s *settings) close() {
	_ = s.logger.Close()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "pitchroom",
		Short: "Chat client for the pitchroom daemon",
		Long: `pitchroom is a terminal client for pitchroom conversations.

It opens a live chat view of one conversation and offers one-shot commands
to print history, post a message, summarize recent messages and manage your
profile.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pitchroom/config.yaml)")
	flags.StringVar(&opts.serverURL, "server", "", "pitchroomd URL (overrides client.server_url)")
	flags.StringVar(&opts.userID, "user", "", "user id (overrides client.user_id)")
	flags.StringVar(&opts.name, "name", "", "display name for your own messages")

	root.AddCommand(
		newChatCmd(opts),
		newHistoryCmd(opts),
		newSendCmd(opts),
		newSummarizeCmd(opts),
		newProfileCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// resolve loads the config file and applies flag overrides. Without a
// configured user id the id is derived from the OS username.
func (o *globalOptions) resolve() (*settings, error) {
	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.serverURL != "" {
		cfg.Client.ServerURL = o.serverURL
	}
	if o.userID != "" {
		cfg.Client.UserID = o.userID
	}
	if o.name != "" {
		cfg.Client.DisplayName = o.name
	}
	if cfg.Client.UserID == "" {
		id, err := auth.LocalUserID()
		if err != nil {
			return nil, fmt.Errorf("no user id configured and none derivable: %w", err)
		}
		cfg.Client.UserID = id
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.Client.ServerURL,
		UserID:  cfg.Client.UserID,
		Timeout: cfg.Client.RequestTimeout.Duration(),
		Logger:  logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &settings{
		cfg:      cfg,
		identity: chat.Identity{UserID: cfg.Client.UserID, DisplayName: cfg.Client.DisplayName},
		client:   client,
		logger:   logger,
	}, nil
}

// newLogger builds the client logger from the logging section. Records go
// to the log file only; the CLI runs no telemetry exporter.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	path := cfg.Logging.File
	if path == "" {
		path = defaultLogFile
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	lc, err := logging.FromSettings(cfg.Logging, false)
	if err != nil {
		return nil, err
	}
	lc.Output.Stdout = false
	lc.Output.File = path
	lc.Fields["component"] = "cli"
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return nil, fmt.Errorf("client log: %w", err)
	}
	return logger, nil
}

// profileName prefers the saved profile name over the configured one.
func (s *settings) profileName(ctx context.Context) string {
	if p, err := s.client.GetProfile(ctx, s.identity.UserID); err == nil && p.Name != "" {
		return p.Name
	}
	return s.identity.DisplayName
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check pitchroomd health",
		Long: `Check that the pitchroom daemon is reachable and healthy.

Examples:
  pitchroom health
  pitchroom health --server http://localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runHealth(cmd.Context(), cmd.OutOrStdout(), s)
		},
	}
}

func runHealth(ctx context.Context, w io.Writer, s *settings) error {
	if err := s.client.Health(ctx); err != nil {
		fmt.Fprintf(w, "✗ %s is unhealthy\n", s.cfg.Client.ServerURL)
		return err
	}
	fmt.Fprintf(w, "✓ %s is healthy\n", s.cfg.Client.ServerURL)
	return nil
}
