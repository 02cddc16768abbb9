// Package commands implements the dbxdeploy CLI commands.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dbxdeploy/dbxdeploy/pkg/config"
	"github.com/dbxdeploy/dbxdeploy/pkg/databricks"
	"github.com/dbxdeploy/dbxdeploy/pkg/executor"
	"github.com/dbxdeploy/dbxdeploy/pkg/telemetry"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command with the given context and version info.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	root := newRootCommand(version, commit, buildDate)
	return root.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	root := &cobra.Command{
		Use:   "dbxdeploy",
		Short: "Deploy full-stack applications to Databricks Apps",
		Long: `dbxdeploy builds, packages, and deploys a frontend/backend application
to Databricks Apps through the databricks CLI.

It provisions secret scopes, builds the frontend with npm, merges the
static assets into the backend, imports the bundle into the workspace,
and drives the app through create/deploy. Hard redeploy deletes the
existing app and waits for the control plane to confirm deletion before
rebuilding.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (optional)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(newDeployCommand())
	root.AddCommand(newBuildCommand())
	root.AddCommand(newSecretsCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newHistoryCommand())

	return root
}

// runtime bundles the pieces every command wires at startup.
type runtime struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	runner *executor.Local
	client *databricks.Client
}

func (r *runtime) logger() zerolog.Logger {
	return r.tel.Logger.Zerolog()
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	telCfg := telemetry.DefaultConfig()
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	if jsonOutput {
		telCfg.Logging.Format = "json"
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	runner := executor.NewLocal()
	runner.Observe = tel.Metrics.RecordCommand

	client := databricks.NewClient(runner, tel.Logger.Zerolog()).WithBin(cfg.DatabricksBin)

	return &runtime{cfg: cfg, tel: tel, runner: runner, client: client}, nil
}

func (r *runtime) shutdown(ctx context.Context) {
	if err := r.tel.Shutdown(ctx); err != nil {
		logger := r.logger()
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}
