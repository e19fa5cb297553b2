// File: internal/layout/dag.go
package layout

import (
	"sort"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

// Separation between ranks and between nodes within a rank.
const (
	DefaultRankSep = 50.0
	DefaultNodeSep = 50.0
)

// DAGStrategy assigns nodes to ranks by longest path from the roots and
// spreads each rank along the cross axis. Cycles are tolerated: a back
// edge simply stops contributing to ranking.
type DAGStrategy struct {
	nodeWidth  float64
	nodeHeight float64
}

// NewDAGStrategy creates the layered strategy with the given node box
// dimensions.
func NewDAGStrategy(nodeWidth, nodeHeight float64) *DAGStrategy {
	if nodeWidth <= 0 {
		nodeWidth = 80
	}
	if nodeHeight <= 0 {
		nodeHeight = 10
	}
	return &DAGStrategy{nodeWidth: nodeWidth, nodeHeight: nodeHeight}
}

var _ Strategy = (*DAGStrategy)(nil)

// Layout implements Strategy.
func (d *DAGStrategy) Layout(nodes []schemas.Node, edges []Edge, dir Direction) ([]PositionedNode, error) {
	ranks := rankNodes(nodes, edges)

	// Group nodes by rank, keeping the already-stable input order.
	maxRank := 0
	byRank := make(map[int][]string)
	for _, n := range nodes {
		r := ranks[n.ID]
		byRank[r] = append(byRank[r], n.ID)
		if r > maxRank {
			maxRank = r
		}
	}

	mainStep := d.nodeWidth + DefaultRankSep
	crossStep := d.nodeHeight + DefaultNodeSep
	if dir == DirectionTB || dir == DirectionBT {
		mainStep = d.nodeHeight + DefaultRankSep
		crossStep = d.nodeWidth + DefaultNodeSep
	}

	out := make([]PositionedNode, 0, len(nodes))
	for r := 0; r <= maxRank; r++ {
		ids := byRank[r]
		main := float64(r) * mainStep
		// Mirror the main axis for the reversed directions.
		if dir == DirectionRL || dir == DirectionBT {
			main = float64(maxRank-r) * mainStep
		}
		for i, id := range ids {
			cross := float64(i) * crossStep
			p := schemas.Point{X: main, Y: cross}
			if dir == DirectionTB || dir == DirectionBT {
				p = schemas.Point{X: cross, Y: main}
			}
			out = append(out, PositionedNode{ID: id, Position: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// rankNodes computes the longest-path rank of every node. Roots (no
// incoming edges) sit at rank 0; each edge pushes its target at least one
// rank past its source. Nodes on a cycle keep the deepest rank reached
// before the cycle closes.
func rankNodes(nodes []schemas.Node, edges []Edge) map[string]int {
	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}

	out := make(map[string][]string)
	indegree := make(map[string]int)
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		if _, ok := known[e.Target]; !ok {
			continue
		}
		out[e.Source] = append(out[e.Source], e.Target)
		indegree[e.Target]++
	}

	ranks := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	// Kahn's algorithm; the rank of a node is the longest path to it.
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range out[id] {
			if ranks[id]+1 > ranks[next] {
				ranks[next] = ranks[id] + 1
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return ranks
}
