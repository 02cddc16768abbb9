package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployed application state",
		Example: `  # Status of the default app
  dbxdeploy status

  # Machine-readable output
  dbxdeploy status --app-name my-app --json`,
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

			if appName == "" {
				appName = rt.cfg.AppName
			}

			info, err := rt.client.GetAppInfo(ctx, appName)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Name:    %s\n", info.Name)
			fmt.Printf("State:   %s\n", info.State)
			if info.URL != "" {
				fmt.Printf("URL:     %s\n", info.URL)
			}
			if info.CreateTime != "" {
				fmt.Printf("Created: %s\n", info.CreateTime)
			}
			if info.UpdateTime != "" {
				fmt.Printf("Updated: %s\n", info.UpdateTime)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&appName, "app-name", "", "application name (default from config)")

	return cmd
}
