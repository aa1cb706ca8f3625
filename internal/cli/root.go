package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// open launches a browser, replaced in tests
	open func(url string) error
}

// NewRootCommand creates the root command for the zeroturbo CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{open: openBrowser})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zeroturbo",
		Short: "zeroturbo - sign in and deployment helper",
		Long: `Sign in to a zeroturbo deployment from the terminal, and render the
configuration consumed by the sync engine.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewDeployEnvCommand(opts))

	return cmd
}
