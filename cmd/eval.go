// File: cmd/eval.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/apiclient"
	"github.com/vantagesec/hypergraph-cli/internal/observability"
	"github.com/vantagesec/hypergraph-cli/internal/posture"
)

func init() {
	rootCmd.AddCommand(newEvalCmd())
}

// newEvalCmd creates the `eval` command.
func newEvalCmd() *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "eval <appId>",
		Short: "Trigger a risk-evaluation run for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, _ := cmd.Flags().GetString("schedule")
			from, _ := cmd.Flags().GetString("from")
			attrsCSV, _ := cmd.Flags().GetString("attributes")

			var attrs map[string]string
			if attrsCSV != "" {
				parsed, err := schemas.ParseAttributesCSV(attrsCSV)
				if err != nil {
					return fmt.Errorf("invalid --attributes: %w", err)
				}
				attrs = parsed
			}

			logger := observability.GetLogger()
			client, err := apiclient.New(cfg.Backend(), logger)
			if err != nil {
				return err
			}
			svc := posture.NewService(client, logger)
			result, err := svc.Evaluate(cmd.Context(), args[0], schemas.EvalRequest{
				Schedule:   schedule,
				From:       from,
				Attributes: attrs,
			})
			if err != nil {
				return err
			}
			cmd.Printf("status: %s\n", result.Status)
			if len(result.Verdict) > 0 {
				cmd.Printf("verdict: %s\n", string(result.Verdict))
			}
			return nil
		},
	}
	evalCmd.Flags().String("schedule", "", "evaluation schedule expression")
	evalCmd.Flags().String("from", "", "start of the evaluation time window")
	evalCmd.Flags().String("attributes", "", "extra engine attributes as k1=v1,k2=v2")
	return evalCmd
}
