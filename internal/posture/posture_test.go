// internal/posture/posture_test.go
package posture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

// fakeClient serves canned app listings and records eval requests.
type fakeClient struct {
	apps         []schemas.AppData
	attackGraphs []schemas.AppData
	evalResult   schemas.EvalResult
	evalErr      error

	lastEvalApp string
	lastEvalReq schemas.EvalRequest
}

func (f *fakeClient) FetchApps(ctx context.Context) ([]schemas.AppData, error) {
	return f.apps, nil
}

func (f *fakeClient) FetchAttackGraphs(ctx context.Context) ([]schemas.AppData, error) {
	return f.attackGraphs, nil
}

func (f *fakeClient) EvalApp(ctx context.Context, appID string, req schemas.EvalRequest) (schemas.EvalResult, error) {
	f.lastEvalApp = appID
	f.lastEvalReq = req
	return f.evalResult, f.evalErr
}

var _ Client = (*fakeClient)(nil)

func TestApps(t *testing.T) {
	t.Parallel()

	t.Run("should list apps sorted by id", func(t *testing.T) {
		t.Parallel()
		svc := NewService(&fakeClient{apps: []schemas.AppData{
			{ID: "zeta", Name: "Zeta"},
			{ID: "alpha", Name: "Alpha"},
		}}, zap.NewNop())

		apps, err := svc.Apps(context.Background(), false)
		require.NoError(t, err)
		require.Len(t, apps, 2)
		assert.Equal(t, "alpha", apps[0].ID)
		assert.Equal(t, "zeta", apps[1].ID)
	})

	t.Run("should list attack graphs when asked", func(t *testing.T) {
		t.Parallel()
		svc := NewService(&fakeClient{
			apps:         []schemas.AppData{{ID: "regular"}},
			attackGraphs: []schemas.AppData{{ID: "attack-1"}},
		}, zap.NewNop())

		apps, err := svc.Apps(context.Background(), true)
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.Equal(t, "attack-1", apps[0].ID)
	})
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("should forward the request fields untouched", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{evalResult: schemas.EvalResult{Status: "queued"}}
		svc := NewService(client, zap.NewNop())

		req := schemas.EvalRequest{
			Schedule:   "@daily",
			From:       "2026-08-01T00:00:00Z",
			Attributes: map[string]string{"depth": "3"},
		}
		result, err := svc.Evaluate(context.Background(), "app-1", req)
		require.NoError(t, err)
		assert.Equal(t, "queued", result.Status)
		assert.Equal(t, "app-1", client.lastEvalApp)
		assert.Equal(t, req, client.lastEvalReq)
	})

	t.Run("should wrap a backend failure", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{evalErr: errors.New("engine offline")}
		svc := NewService(client, zap.NewNop())

		_, err := svc.Evaluate(context.Background(), "app-1", schemas.EvalRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evaluate app app-1")
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("should aggregate kinds, fitness and pending drafts", func(t *testing.T) {
		t.Parallel()
		g := schemas.Graph{
			AppID: "app-1",
			Nodes: map[string]schemas.Node{
				"a": {ID: "a", Kind: "host", Fitness: 2, State: schemas.LifecycleCommitted},
				"b": {ID: "b", Kind: "host", Fitness: 4, State: schemas.LifecycleCommitted},
				"c": {ID: "c", Kind: "database", Fitness: 6, State: schemas.LifecyclePending},
			},
			Hyperedges: map[string]schemas.Hyperedge{
				"a,b": {ID: "a,b"},
			},
		}

		sum := Summarize(g)
		assert.Equal(t, "app-1", sum.AppID)
		assert.Equal(t, 3, sum.NodeCount)
		assert.Equal(t, 1, sum.HyperedgeCount)
		assert.Equal(t, 2, sum.NodesByKind["host"])
		assert.Equal(t, 1, sum.NodesByKind["database"])
		assert.Equal(t, 1, sum.PendingNodes)
		assert.InDelta(t, 4.0, sum.MeanFitness, 1e-9)
	})

	t.Run("should handle an empty graph", func(t *testing.T) {
		t.Parallel()
		sum := Summarize(schemas.Graph{AppID: "empty"})
		assert.Zero(t, sum.NodeCount)
		assert.Zero(t, sum.MeanFitness)
	})

	t.Run("should order kind counts descending with name tiebreak", func(t *testing.T) {
		t.Parallel()
		sum := Summary{NodesByKind: map[string]int{
			"host": 2, "database": 2, "service": 5,
		}}
		counts := sum.KindCounts()
		require.Len(t, counts, 3)
		assert.Equal(t, KindCount{Kind: "service", Count: 5}, counts[0])
		assert.Equal(t, KindCount{Kind: "database", Count: 2}, counts[1])
		assert.Equal(t, KindCount{Kind: "host", Count: 2}, counts[2])
	})
}
