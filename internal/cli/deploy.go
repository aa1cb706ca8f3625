package cli

import (
	"fmt"

	"github.com/layer-3/zeroturbo/deploy"
	"github.com/layer-3/zeroturbo/schema"
	"github.com/spf13/cobra"
)

// DeployEnvOptions holds flags for the deploy-env command.
type DeployEnvOptions struct {
	Role           string
	Stage          string
	BaseDomain     string
	AuthURL        string
	DatabaseURL    string
	Bucket         string
	ChangeStreamer string
	Dev            bool
}

// NewDeployEnvCommand creates the deploy-env command.
func NewDeployEnvCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployEnvOptions{}

	cmd := &cobra.Command{
		Use:   "deploy-env",
		Short: "Render the sync engine container environment",
		Long: `Render the environment of a sync engine container as KEY=value lines.

The replication manager only runs outside of dev stages; the view syncer either
follows it or, in dev, runs its own sync worker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployEnv(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", string(deploy.ViewSyncer), "container role (replication-manager|view-syncer)")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "deployment stage")
	cmd.Flags().StringVar(&opts.BaseDomain, "base-domain", "", "production domain, stages are served below it")
	cmd.Flags().StringVar(&opts.AuthURL, "auth-url", "", "issuer url (defaults to openauth.<domain>)")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", "", "postgres connection string")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "litestream backup bucket")
	cmd.Flags().StringVar(&opts.ChangeStreamer, "change-streamer", "", "replication manager url")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "dev stage")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}

func runDeployEnv(cmd *cobra.Command, opts *DeployEnvOptions) error {
	authURL := opts.AuthURL
	if authURL == "" {
		if opts.BaseDomain == "" {
			return fmt.Errorf("either --auth-url or --base-domain is required")
		}
		authURL = "https://" + deploy.AuthHost(deploy.Domain(opts.Stage, opts.BaseDomain))
	}

	schemaJSON, err := schema.Default().JSON()
	if err != nil {
		return err
	}

	env, err := deploy.SyncEnv(deploy.Role(opts.Role), deploy.SyncOptions{
		Stage:             opts.Stage,
		Dev:               opts.Dev,
		DatabaseURL:       opts.DatabaseURL,
		AuthURL:           authURL,
		SchemaJSON:        schemaJSON,
		BackupBucket:      opts.Bucket,
		ChangeStreamerURL: opts.ChangeStreamer,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), deploy.DotEnv(env))
	return err
}
