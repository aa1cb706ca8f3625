package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/zeroturbo/client"
	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an emailed pin code",
		Long: `Open the issuer's sign in page in a browser and wait for it to redirect
back to a loopback address. The refresh token is kept in the credentials file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, rootOpts, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the browser")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *RootOptions, timeout time.Duration) error {
	a, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	callback, err := listenCallback(a.cfg.RedirectAddr, a.scoped)
	if err != nil {
		return err
	}
	defer callback.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := a.session.SignIn(ctx); err != nil {
		return fmt.Errorf("failed to start sign in: %w", err)
	}

	location, err := callback.Wait(ctx)
	if err != nil {
		return err
	}

	a.session.Init(ctx, location)

	state := a.session.State()
	if state.Status != client.StatusAuthenticated || state.User == nil {
		return errors.New("sign in did not complete, run with --verbose for details")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", state.User.Email)
	return nil
}
