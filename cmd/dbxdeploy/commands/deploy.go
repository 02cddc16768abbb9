package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
	"github.com/dbxdeploy/dbxdeploy/pkg/history"
	"github.com/dbxdeploy/dbxdeploy/pkg/pipeline"
	"github.com/dbxdeploy/dbxdeploy/pkg/policy"
	"github.com/dbxdeploy/dbxdeploy/pkg/secrets"
	"github.com/dbxdeploy/dbxdeploy/pkg/telemetry"
)

func newDeployCommand() *cobra.Command {
	var (
		appName         string
		appFolder       string
		hardRedeploy    bool
		withSecrets     bool
		scopeName       string
		pollInterval    int
		deletionTimeout int
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build and deploy the application to Databricks Apps",
		Long: `Deploy runs the full workflow: policy check, optional secret
provisioning, frontend build, bundle packaging, workspace import, and
app create/deploy. Build artifacts are removed afterwards whether the
run succeeded or failed.

With --hard-redeploy the existing app is deleted first and the command
waits until the control plane no longer lists it before rebuilding.`,
		Example: `  # Standard deploy with the default app name
  dbxdeploy deploy

  # Hard redeploy with secret provisioning into an explicit scope
  dbxdeploy deploy --hard-redeploy --with-secrets --scope capacity-secrets

  # Deploy under a different name and workspace folder
  dbxdeploy deploy --app-name my-app --app-folder /Workspace/Users/me@corp.com/my-app`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)
			logger := rt.logger()

			if err := rt.client.CheckCLI(ctx); err != nil {
				return err
			}

			if appName == "" {
				appName = rt.cfg.AppName
			}
			if appFolder == "" {
				appFolder = rt.cfg.AppFolder
			}
			if appFolder == "" {
				appFolder = deriveAppFolder(cmd, rt, appName)
			}
			if pollInterval == 0 {
				pollInterval = rt.cfg.PollIntervalSeconds
			}
			if deletionTimeout == 0 {
				deletionTimeout = rt.cfg.DeletionTimeoutSeconds
			}

			pl, err := pipeline.New(rt.runner, pipeline.Options{
				FrontendDir:     rt.cfg.FrontendDir,
				BackendDir:      rt.cfg.BackendDir,
				NPMBin:          rt.cfg.NPMBin,
				ExcludePatterns: rt.cfg.ExcludePatterns,
			}, logger)
			if err != nil {
				return err
			}

			var provisioner deploy.Provisioner
			if withSecrets {
				provisioner = secrets.NewProvisioner(rt.client, secrets.NewTerminal(), logger)
			}

			gate := policy.NewGate(logger)
			if err := gate.LoadPaths(rt.cfg.PolicyPaths); err != nil {
				return fmt.Errorf("loading policies: %w", err)
			}

			var recorder deploy.Recorder
			if rt.cfg.HistoryPath != "" {
				store, err := history.NewStore(rt.cfg.HistoryPath)
				if err == nil {
					err = store.Init(ctx)
				}
				if err != nil {
					logger.Warn().Err(err).Msg("deployment history unavailable")
				} else {
					defer store.Close()
					recorder = store
				}
			}

			orch := deploy.NewOrchestrator(
				rt.client,
				rt.client,
				pl,
				provisioner,
				gate,
				recorder,
				telemetry.NewDeployObserver(rt.tel),
				logger,
			)

			return orch.Run(ctx, deploy.Options{
				Target:          deploy.Target{AppName: appName, AppFolder: appFolder},
				HardRedeploy:    hardRedeploy,
				WithSecrets:     withSecrets,
				ScopeName:       scopeName,
				AppDescription:  rt.cfg.AppDescription,
				PollInterval:    time.Duration(pollInterval) * time.Second,
				DeletionTimeout: time.Duration(deletionTimeout) * time.Second,
			})
		},
	}

	cmd.Flags().StringVar(&appName, "app-name", "", "application name (default from config)")
	cmd.Flags().StringVar(&appFolder, "app-folder", "", "workspace folder (default /Workspace/Users/<you>/<app-name>)")
	cmd.Flags().BoolVar(&hardRedeploy, "hard-redeploy", false, "delete the existing app and wait for deletion before redeploying")
	cmd.Flags().BoolVar(&withSecrets, "with-secrets", false, "provision the secret scope before building")
	cmd.Flags().StringVar(&scopeName, "scope", "", "secret scope name (implies interactive selection when empty)")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 0, "deletion poll interval in seconds")
	cmd.Flags().IntVar(&deletionTimeout, "deletion-timeout", 0, "deletion wait timeout in seconds")

	return cmd
}

// deriveAppFolder resolves /Workspace/Users/<email>/<appName> from the
// authenticated identity. A resolution failure falls back to a
// placeholder the user must correct, matching what apps expect.
func deriveAppFolder(cmd *cobra.Command, rt *runtime, appName string) string {
	user, err := rt.client.CurrentUser(cmd.Context())
	if err != nil {
		logger := rt.logger()
		logger.Warn().Err(err).Msg("could not detect current user, using placeholder folder")
		user = "YOUR_USER@example.com"
	}
	return fmt.Sprintf("/Workspace/Users/%s/%s", user, appName)
}
