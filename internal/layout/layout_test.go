// internal/layout/layout_test.go
package layout

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/config"
)

// chainGraph builds A -> B -> C with one hyperedge per hop.
func chainGraph(t *testing.T) schemas.Graph {
	t.Helper()
	g := schemas.Graph{
		Nodes:      make(map[string]schemas.Node),
		Hyperedges: make(map[string]schemas.Hyperedge),
	}
	for _, id := range []string{"a", "b", "c"} {
		g.Nodes[id] = schemas.Node{ID: id, Kind: "host", State: schemas.LifecycleCommitted}
	}
	g.Hyperedges["a,b"] = schemas.Hyperedge{
		ID: "a,b", Source: []string{"a"}, Target: []string{"b"}, State: schemas.LifecycleCommitted,
	}
	g.Hyperedges["b,c"] = schemas.Hyperedge{
		ID: "b,c", Source: []string{"b"}, Target: []string{"c"}, State: schemas.LifecycleCommitted,
	}
	return g
}

func TestEdgesFromHyperedges(t *testing.T) {
	t.Parallel()

	t.Run("should expand source and target sets pairwise", func(t *testing.T) {
		t.Parallel()
		edges := EdgesFromHyperedges(map[string]schemas.Hyperedge{
			"a,b,c": {ID: "a,b,c", Source: []string{"a", "b"}, Target: []string{"c"}},
		})
		require.Len(t, edges, 2)
		assert.Equal(t, Edge{ID: "a->c", Key: "a,b,c", Source: "a", Target: "c"}, edges[0])
		assert.Equal(t, Edge{ID: "b->c", Key: "a,b,c", Source: "b", Target: "c"}, edges[1])
	})

	t.Run("should ignore other participants", func(t *testing.T) {
		t.Parallel()
		edges := EdgesFromHyperedges(map[string]schemas.Hyperedge{
			"a,b,x": {ID: "a,b,x", Source: []string{"a"}, Target: []string{"b"}, Other: []string{"x"}},
		})
		require.Len(t, edges, 1)
		assert.Equal(t, "a->b", edges[0].ID)
	})

	t.Run("should emit a stable order regardless of map iteration", func(t *testing.T) {
		t.Parallel()
		hyperedges := map[string]schemas.Hyperedge{
			"c,d": {ID: "c,d", Source: []string{"c"}, Target: []string{"d"}},
			"a,b": {ID: "a,b", Source: []string{"a"}, Target: []string{"b"}},
		}
		first := EdgesFromHyperedges(hyperedges)
		for i := 0; i < 10; i++ {
			assert.Empty(t, cmp.Diff(first, EdgesFromHyperedges(hyperedges)))
		}
	})
}

func TestReconnectAfterNodeDeletion(t *testing.T) {
	t.Parallel()

	t.Run("should bridge incomers to outgoers of a deleted node", func(t *testing.T) {
		t.Parallel()
		edges := []Edge{
			{ID: "a->b", Key: "a,b", Source: "a", Target: "b"},
			{ID: "b->c", Key: "b,c", Source: "b", Target: "c"},
		}
		got := ReconnectAfterNodeDeletion([]string{"b"}, edges)
		require.Len(t, got, 1)
		assert.Equal(t, Edge{ID: "a->c", Source: "a", Target: "c"}, got[0])
		assert.Empty(t, got[0].Key, "a synthesized bridge has no owning hyperedge")
	})

	t.Run("should bridge every incomer to every outgoer", func(t *testing.T) {
		t.Parallel()
		edges := []Edge{
			{ID: "a->x", Source: "a", Target: "x"},
			{ID: "b->x", Source: "b", Target: "x"},
			{ID: "x->c", Source: "x", Target: "c"},
			{ID: "x->d", Source: "x", Target: "d"},
		}
		got := ReconnectAfterNodeDeletion([]string{"x"}, edges)
		ids := make([]string, 0, len(got))
		for _, e := range got {
			ids = append(ids, e.ID)
		}
		sort.Strings(ids)
		assert.Equal(t, []string{"a->c", "a->d", "b->c", "b->d"}, ids)
	})

	t.Run("should not duplicate an edge that already exists", func(t *testing.T) {
		t.Parallel()
		edges := []Edge{
			{ID: "a->b", Source: "a", Target: "b"},
			{ID: "b->c", Source: "b", Target: "c"},
			{ID: "a->c", Source: "a", Target: "c"},
		}
		got := ReconnectAfterNodeDeletion([]string{"b"}, edges)
		require.Len(t, got, 1)
		assert.Equal(t, "a->c", got[0].ID)
	})

	t.Run("should leave unrelated edges untouched", func(t *testing.T) {
		t.Parallel()
		edges := []Edge{
			{ID: "a->b", Key: "a,b", Source: "a", Target: "b"},
			{ID: "c->d", Key: "c,d", Source: "c", Target: "d"},
		}
		got := ReconnectAfterNodeDeletion([]string{"z"}, edges)
		assert.Empty(t, cmp.Diff(edges, got))
	})

	t.Run("should drop edges of a node with no outgoers", func(t *testing.T) {
		t.Parallel()
		edges := []Edge{{ID: "a->b", Source: "a", Target: "b"}}
		got := ReconnectAfterNodeDeletion([]string{"b"}, edges)
		assert.Empty(t, got)
	})
}

func TestDAGStrategy(t *testing.T) {
	t.Parallel()

	nodes := []schemas.Node{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}
	edges := []Edge{
		{ID: "a->b", Source: "a", Target: "b"},
		{ID: "b->c", Source: "b", Target: "c"},
	}

	positionsByID := func(t *testing.T, positioned []PositionedNode) map[string]schemas.Point {
		t.Helper()
		out := make(map[string]schemas.Point, len(positioned))
		for _, p := range positioned {
			out[p.ID] = p.Position
		}
		return out
	}

	t.Run("should rank a chain left to right", func(t *testing.T) {
		t.Parallel()
		s := NewDAGStrategy(80, 10)
		positioned, err := s.Layout(nodes, edges, DirectionLR)
		require.NoError(t, err)
		pos := positionsByID(t, positioned)
		assert.Less(t, pos["a"].X, pos["b"].X)
		assert.Less(t, pos["b"].X, pos["c"].X)
		assert.Equal(t, pos["a"].Y, pos["b"].Y, "a chain occupies one row")
	})

	t.Run("should mirror the main axis for RL", func(t *testing.T) {
		t.Parallel()
		s := NewDAGStrategy(80, 10)
		positioned, err := s.Layout(nodes, edges, DirectionRL)
		require.NoError(t, err)
		pos := positionsByID(t, positioned)
		assert.Greater(t, pos["a"].X, pos["b"].X)
		assert.Greater(t, pos["b"].X, pos["c"].X)
	})

	t.Run("should grow along Y for TB", func(t *testing.T) {
		t.Parallel()
		s := NewDAGStrategy(80, 10)
		positioned, err := s.Layout(nodes, edges, DirectionTB)
		require.NoError(t, err)
		pos := positionsByID(t, positioned)
		assert.Less(t, pos["a"].Y, pos["b"].Y)
		assert.Less(t, pos["b"].Y, pos["c"].Y)
	})

	t.Run("should spread siblings within a rank", func(t *testing.T) {
		t.Parallel()
		s := NewDAGStrategy(80, 10)
		fanOut := []Edge{
			{ID: "a->b", Source: "a", Target: "b"},
			{ID: "a->c", Source: "a", Target: "c"},
		}
		positioned, err := s.Layout(nodes, fanOut, DirectionLR)
		require.NoError(t, err)
		pos := positionsByID(t, positioned)
		assert.Equal(t, pos["b"].X, pos["c"].X, "siblings share a rank")
		assert.NotEqual(t, pos["b"].Y, pos["c"].Y, "siblings must not overlap")
	})

	t.Run("should tolerate a cycle", func(t *testing.T) {
		t.Parallel()
		s := NewDAGStrategy(80, 10)
		cyclic := append(append([]Edge(nil), edges...), Edge{ID: "c->a", Source: "c", Target: "a"})
		positioned, err := s.Layout(nodes, cyclic, DirectionLR)
		require.NoError(t, err)
		assert.Len(t, positioned, 3)
	})
}

func TestForceStrategy(t *testing.T) {
	t.Parallel()

	t.Run("should position every node", func(t *testing.T) {
		t.Parallel()
		s := NewForceStrategy()
		nodes := []schemas.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
		positioned, err := s.Layout(nodes, []Edge{
			{ID: "a->b", Source: "a", Target: "b"},
			{ID: "c->d", Source: "c", Target: "d"},
		}, DirectionLR)
		require.NoError(t, err)
		require.Len(t, positioned, 4)

		seen := make(map[schemas.Point]struct{})
		for _, p := range positioned {
			seen[p.Position] = struct{}{}
		}
		assert.Len(t, seen, 4, "nodes must not collapse onto one point")
	})

	t.Run("should pull connected nodes closer than disconnected ones", func(t *testing.T) {
		t.Parallel()
		s := NewForceStrategy()
		nodes := []schemas.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		positioned, err := s.Layout(nodes, []Edge{
			{ID: "a->b", Source: "a", Target: "b"},
		}, DirectionLR)
		require.NoError(t, err)

		pos := make(map[string]schemas.Point, 3)
		for _, p := range positioned {
			pos[p.ID] = p.Position
		}
		distSq := func(p, q schemas.Point) float64 {
			dx, dy := p.X-q.X, p.Y-q.Y
			return dx*dx + dy*dy
		}
		assert.Less(t, distSq(pos["a"], pos["b"]), distSq(pos["a"], pos["c"]))
	})
}

func TestAdapter(t *testing.T) {
	t.Parallel()

	t.Run("should reject an unknown strategy", func(t *testing.T) {
		t.Parallel()
		_, err := NewAdapter(config.LayoutConfig{Strategy: "circular"}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("should lay out a snapshot with the configured strategy", func(t *testing.T) {
		t.Parallel()
		adapter, err := NewAdapter(config.LayoutConfig{
			Strategy: "dag", Direction: "LR", NodeWidth: 80, NodeHeight: 10,
		}, zap.NewNop())
		require.NoError(t, err)

		positioned, err := adapter.Layout(chainGraph(t))
		require.NoError(t, err)
		require.Len(t, positioned, 3)

		pos := make(map[string]schemas.Point, 3)
		for _, p := range positioned {
			pos[p.ID] = p.Position
		}
		assert.Less(t, pos["a"].X, pos["b"].X)
		assert.Less(t, pos["b"].X, pos["c"].X)
	})

	t.Run("should produce identical output across runs", func(t *testing.T) {
		t.Parallel()
		adapter, err := NewAdapter(config.LayoutConfig{
			Strategy: "dag", Direction: "LR", NodeWidth: 80, NodeHeight: 10,
		}, zap.NewNop())
		require.NoError(t, err)

		g := chainGraph(t)
		first, err := adapter.Layout(g)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := adapter.Layout(g)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(first, again))
		}
	})
}
