// File: internal/posture/posture.go

// Package posture provides the read-only risk dashboard data: the app
// listings, evaluation runs, and per-graph aggregation for charting.
package posture

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

// Client is the backend surface the posture service consumes.
type Client interface {
	FetchApps(ctx context.Context) ([]schemas.AppData, error)
	FetchAttackGraphs(ctx context.Context) ([]schemas.AppData, error)
	EvalApp(ctx context.Context, appID string, req schemas.EvalRequest) (schemas.EvalResult, error)
}

// Service fronts the dashboard queries.
type Service struct {
	client Client
	log    *zap.Logger
}

// NewService wires the posture service to a backend client.
func NewService(client Client, logger *zap.Logger) *Service {
	return &Service{client: client, log: logger.Named("Posture")}
}

// Apps lists the registered applications, or the attack-graph variants.
func (s *Service) Apps(ctx context.Context, attackGraphs bool) ([]schemas.AppData, error) {
	var (
		apps []schemas.AppData
		err  error
	)
	if attackGraphs {
		apps, err = s.client.FetchAttackGraphs(ctx)
	} else {
		apps, err = s.client.FetchApps(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

// Evaluate triggers a risk-evaluation run, forwarding the schedule, time
// window and attribute fields as given rather than posting an empty
// object.
func (s *Service) Evaluate(ctx context.Context, appID string, req schemas.EvalRequest) (schemas.EvalResult, error) {
	result, err := s.client.EvalApp(ctx, appID, req)
	if err != nil {
		return schemas.EvalResult{}, fmt.Errorf("evaluate app %s: %w", appID, err)
	}
	s.log.Info("Evaluation run completed",
		zap.String("app_id", appID), zap.String("status", result.Status))
	return result, nil
}

// Summary aggregates one graph snapshot for the dashboard widgets.
type Summary struct {
	AppID          string
	NodeCount      int
	HyperedgeCount int
	NodesByKind    map[string]int
	PendingNodes   int
	MeanFitness    float64
}

// KindCount is one pie-chart slice.
type KindCount struct {
	Kind  string
	Count int
}

// Summarize computes the per-kind counts and mean fitness of a snapshot.
func Summarize(g schemas.Graph) Summary {
	sum := Summary{
		AppID:          g.AppID,
		NodeCount:      len(g.Nodes),
		HyperedgeCount: len(g.Hyperedges),
		NodesByKind:    make(map[string]int),
	}
	totalFitness := 0
	for _, n := range g.Nodes {
		sum.NodesByKind[n.Kind]++
		totalFitness += n.Fitness
		if n.State == schemas.LifecyclePending {
			sum.PendingNodes++
		}
	}
	if sum.NodeCount > 0 {
		sum.MeanFitness = float64(totalFitness) / float64(sum.NodeCount)
	}
	return sum
}

// KindCounts returns the per-kind slices in descending count order, ties
// broken by kind name.
func (s Summary) KindCounts() []KindCount {
	out := make([]KindCount, 0, len(s.NodesByKind))
	for kind, count := range s.NodesByKind {
		out = append(out, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
