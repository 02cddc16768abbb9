package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbxdeploy/dbxdeploy/pkg/secrets"
)

func newSecretsCommand() *cobra.Command {
	var scopeName string

	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Provision the application secret scope",
		Long: `Secrets collects the application credentials interactively and
pushes them into a Databricks secret scope. Without --scope the
existing scopes are listed for selection, or a new one is created.

The session secret is generated, never prompted. Secret values are
never echoed or logged.`,
		Example: `  # Select or create a scope interactively
  dbxdeploy secrets

  # Push into a known scope
  dbxdeploy secrets --scope capacity-secrets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			if err := rt.client.CheckCLI(ctx); err != nil {
				return err
			}

			provisioner := secrets.NewProvisioner(rt.client, secrets.NewTerminal(), rt.logger())
			return provisioner.Provision(ctx, scopeName)
		},
	}

	cmd.Flags().StringVar(&scopeName, "scope", "", "secret scope name (interactive selection when empty)")

	return cmd
}
