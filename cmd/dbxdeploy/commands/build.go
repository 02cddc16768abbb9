package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbxdeploy/dbxdeploy/pkg/pipeline"
)

func newBuildCommand() *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the frontend and package the deployment bundle",
		Long: `Build runs the pipeline without deploying: npm install/build,
static asset merge, and bundle packaging under <backend>/build. The
bundle is left in place for inspection; pass --clean to remove it
instead.`,
		Example: `  # Build and inspect the bundle
  dbxdeploy build
  ls backend/build

  # Remove build artifacts
  dbxdeploy build --clean`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			pl, err := pipeline.New(rt.runner, pipeline.Options{
				FrontendDir:     rt.cfg.FrontendDir,
				BackendDir:      rt.cfg.BackendDir,
				NPMBin:          rt.cfg.NPMBin,
				ExcludePatterns: rt.cfg.ExcludePatterns,
			}, rt.logger())
			if err != nil {
				return err
			}

			if clean {
				if err := pl.Clean(); err != nil {
					return err
				}
				fmt.Println("Build artifacts removed")
				return nil
			}

			if err := pl.Run(ctx); err != nil {
				return err
			}
			fmt.Printf("Bundle packaged at %s\n", pl.BundleDir())
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "remove build artifacts instead of building")

	return cmd
}
