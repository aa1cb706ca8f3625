package cli

import (
	"errors"
	"fmt"

	"github.com/layer-3/zeroturbo/client"
	"github.com/spf13/cobra"
)

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a.session.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a.session.Init(cmd.Context(), nil)

			state := a.session.State()
			if state.Status == client.StatusAuthenticated && state.User != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", state.User.Email, state.User.ID)
				return nil
			}

			if cached, ok := a.session.CachedUser(); ok {
				return fmt.Errorf("not signed in (last signed in as %s)", cached.Email)
			}
			return errors.New("not signed in")
		},
	}
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a fresh access token",
		Long: `Rotate the stored refresh token and print the new access token, for use
as "Authorization: Bearer <token>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Never launch a browser from a command that is usually piped
			opts := *rootOpts
			opts.open = nil

			a, err := newApp(&opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			token, err := a.session.GetToken(cmd.Context())
			if errors.Is(err, client.ErrSignInRequired) {
				return errors.New("not signed in, run `zeroturbo login`")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
