// File: cmd/apps.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vantagesec/hypergraph-cli/internal/apiclient"
	"github.com/vantagesec/hypergraph-cli/internal/observability"
	"github.com/vantagesec/hypergraph-cli/internal/posture"
)

var _ posture.Client = (*apiclient.Client)(nil)

func init() {
	rootCmd.AddCommand(newAppsCmd())
}

// newAppsCmd creates the `apps` command.
func newAppsCmd() *cobra.Command {
	appsCmd := &cobra.Command{
		Use:   "apps",
		Short: "List the applications registered for the configured group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			attackGraphs, _ := cmd.Flags().GetBool("attack-graphs")

			logger := observability.GetLogger()
			client, err := apiclient.New(cfg.Backend(), logger)
			if err != nil {
				return err
			}
			svc := posture.NewService(client, logger)
			apps, err := svc.Apps(cmd.Context(), attackGraphs)
			if err != nil {
				return err
			}
			for _, app := range apps {
				cmd.Printf("%-36s %-24s %s\n", app.ID, app.Name, app.Description)
			}
			return nil
		},
	}
	appsCmd.Flags().Bool("attack-graphs", false, "list attack-graph applications instead")
	return appsCmd
}
