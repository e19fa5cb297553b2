// File: cmd/graph.go
package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/internal/apiclient"
	"github.com/vantagesec/hypergraph-cli/internal/graphstore"
	"github.com/vantagesec/hypergraph-cli/internal/layout"
	"github.com/vantagesec/hypergraph-cli/internal/observability"
	"github.com/vantagesec/hypergraph-cli/internal/snapshot"
)

// The API client must satisfy the session store's backend contract.
var _ graphstore.Backend = (*apiclient.Client)(nil)

func init() {
	rootCmd.AddCommand(newGraphCmd())
}

// newGraphCmd creates the `graph` command group.
func newGraphCmd() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and lay out an application's hypergraph",
	}
	graphCmd.AddCommand(newGraphShowCmd(), newGraphLayoutCmd(), newGraphSnapshotCmd())
	return graphCmd
}

// openSession builds the backend client and opens a session for the app.
func openSession(cmd *cobra.Command, appID string) (*graphstore.Session, error) {
	logger := observability.GetLogger()
	client, err := apiclient.New(cfg.Backend(), logger)
	if err != nil {
		return nil, err
	}
	service := graphstore.NewService(client, cfg.Graph(), logger)
	sess, err := service.Open(cmd.Context(), cfg.Backend().Group, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for app %s: %w", appID, err)
	}
	return sess, nil
}

func newGraphShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <appId>",
		Short: "Fetch and print the app's entities and associations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			snap := sess.Snapshot()
			nodeIDs := make([]string, 0, len(snap.Nodes))
			for id := range snap.Nodes {
				nodeIDs = append(nodeIDs, id)
			}
			sort.Strings(nodeIDs)

			cmd.Printf("Nodes (%d):\n", len(nodeIDs))
			for _, id := range nodeIDs {
				n := snap.Nodes[id]
				cmd.Printf("  %-40s kind=%-16s fitness=%d name=%q\n", n.ID, n.Kind, n.Fitness, n.Name)
			}

			edgeIDs := make([]string, 0, len(snap.Hyperedges))
			for id := range snap.Hyperedges {
				edgeIDs = append(edgeIDs, id)
			}
			sort.Strings(edgeIDs)

			cmd.Printf("Hyperedges (%d):\n", len(edgeIDs))
			for _, id := range edgeIDs {
				h := snap.Hyperedges[id]
				cmd.Printf("  %s\n    %s -> %s", h.ID,
					strings.Join(h.Source, ","), strings.Join(h.Target, ","))
				if len(h.Other) > 0 {
					cmd.Printf(" (+%s)", strings.Join(h.Other, ","))
				}
				if h.Expressions != nil {
					cmd.Printf("\n    exprs: %s", strings.Join(h.Expressions.Exprs, " "))
				}
				cmd.Println()
			}
			return nil
		},
	}
}

func newGraphLayoutCmd() *cobra.Command {
	layoutCmd := &cobra.Command{
		Use:   "layout <appId>",
		Short: "Compute canvas positions for the app's graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			adapter, err := layout.NewAdapter(cfg.Layout(), observability.GetLogger())
			if err != nil {
				return err
			}
			positioned, err := adapter.Layout(sess.Snapshot())
			if err != nil {
				return err
			}
			for _, p := range positioned {
				cmd.Printf("%-40s x=%.1f y=%.1f\n", p.ID, p.Position.X, p.Position.Y)
			}
			return nil
		},
	}
	layoutCmd.Flags().String("strategy", "", "layout strategy: dag or force")
	layoutCmd.Flags().String("direction", "", "layered direction: LR, RL, TB or BT")
	layoutCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetString("strategy"); v != "" {
			cfg.SetLayoutStrategy(v)
		}
		if v, _ := cmd.Flags().GetString("direction"); v != "" {
			cfg.SetLayoutDirection(v)
		}
		return nil
	}
	return layoutCmd
}

func newGraphSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot <appId>",
		Short: "Persist the app's graph to the local snapshot store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Snapshot().Enabled || cfg.Snapshot().URL == "" {
				return fmt.Errorf("snapshot store is not configured; set snapshot.enabled and HYPERGRAPH_SNAPSHOT_URL")
			}
			sess, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			pool, err := pgxpool.New(cmd.Context(), cfg.Snapshot().URL)
			if err != nil {
				return fmt.Errorf("failed to connect snapshot store: %w", err)
			}
			defer pool.Close()

			store := snapshot.New(pool, observability.GetLogger())
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), sess.Snapshot()); err != nil {
				return err
			}
			observability.GetLogger().Info("Graph snapshot stored", zap.String("app_id", args[0]))
			return nil
		},
	}
	return snapshotCmd
}
