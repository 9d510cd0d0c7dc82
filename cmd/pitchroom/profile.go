package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pitchroom/internal/apiclient"
)

func newProfileCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [user-id]",
		Short: "Show a participant profile",
		Long: `Show a profile. Without an argument your own profile is shown.

Examples:
  pitchroom profile
  pitchroom profile ben
  pitchroom profile set --name Ana --role pitcher`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			id := s.identity.UserID
			if len(args) == 1 {
				id = args[0]
			}
			p, err := s.client.GetProfile(cmd.Context(), id)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.AddCommand(newProfileSetCmd(opts))
	return cmd
}

func newProfileSetCmd(opts *globalOptions) *cobra.Command {
	var p apiclient.Profile
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update your profile",
		Long: `Create or update your profile. Role is one of pitcher, collaborator
or professional.

Examples:
  pitchroom profile set --name Ana --role pitcher
  pitchroom profile set --name Ana --role pitcher --avatar https://example.com/ana.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.resolve()
			if err != nil {
				return err
			}
			defer s.close()
			return runProfileSet(cmd.Context(), cmd.OutOrStdout(), s, p)
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar(&p.AvatarURL, "avatar", "", "avatar URL")
	cmd.Flags().StringVar(&p.Role, "role", "", "pitcher, collaborator or professional")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func runProfileSet(ctx context.Context, w io.Writer, s *settings, p apiclient.Profile) error {
	saved, err := s.client.SaveProfile(ctx, p)
	if err != nil {
		return err
	}
	printProfile(w, saved)
	return nil
}

func printProfile(w io.Writer, p apiclient.Profile) {
	fmt.Fprintf(w, "ID:     %s\n", p.ID)
	fmt.Fprintf(w, "Name:   %s\n", p.Name)
	fmt.Fprintf(w, "Role:   %s\n", p.Role)
	if p.AvatarURL != "" {
		fmt.Fprintf(w, "Avatar: %s\n", p.AvatarURL)
	}
}
