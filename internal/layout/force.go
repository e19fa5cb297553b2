// File: internal/layout/force.go
package layout

import (
	"math"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

// Force simulation tuning. The numbers approximate the feel of a small
// interactive canvas rather than a physically exact model.
const (
	forceIterations  = 300
	forceRepulsion   = 8000.0
	forceSpringLen   = 120.0
	forceSpringK     = 0.06
	forceCooling     = 0.95
	forceInitialTemp = 40.0
	forceMinDistance = 0.01
)

// ForceStrategy runs a simple repulsion/spring simulation. Nodes start
// from their persisted positions when present, otherwise on a circle, so
// repeated runs over the same graph are deterministic.
type ForceStrategy struct{}

// NewForceStrategy creates the force-directed strategy.
func NewForceStrategy() *ForceStrategy { return &ForceStrategy{} }

var _ Strategy = (*ForceStrategy)(nil)

// Layout implements Strategy. The direction parameter is ignored; a
// force layout has no inherent orientation.
func (f *ForceStrategy) Layout(nodes []schemas.Node, edges []Edge, _ Direction) ([]PositionedNode, error) {
	n := len(nodes)
	if n == 0 {
		return nil, nil
	}

	idx := make(map[string]int, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, node := range nodes {
		idx[node.ID] = i
		if node.Position.X != 0 || node.Position.Y != 0 {
			xs[i], ys[i] = node.Position.X, node.Position.Y
			continue
		}
		// Seed unplaced nodes on a circle around the canvas center.
		angle := 2 * math.Pi * float64(i) / float64(n)
		radius := forceSpringLen * math.Sqrt(float64(n))
		xs[i] = radius * math.Cos(angle)
		ys[i] = radius * math.Sin(angle)
	}

	type link struct{ a, b int }
	links := make([]link, 0, len(edges))
	for _, e := range edges {
		a, okA := idx[e.Source]
		b, okB := idx[e.Target]
		if !okA || !okB || a == b {
			continue
		}
		links = append(links, link{a, b})
	}

	fx := make([]float64, n)
	fy := make([]float64, n)
	temp := forceInitialTemp
	for iter := 0; iter < forceIterations; iter++ {
		for i := range fx {
			fx[i], fy[i] = 0, 0
		}

		// Pairwise repulsion.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := xs[i] - xs[j]
				dy := ys[i] - ys[j]
				distSq := dx*dx + dy*dy
				if distSq < forceMinDistance {
					distSq = forceMinDistance
				}
				force := forceRepulsion / distSq
				dist := math.Sqrt(distSq)
				fx[i] += force * dx / dist
				fy[i] += force * dy / dist
				fx[j] -= force * dx / dist
				fy[j] -= force * dy / dist
			}
		}

		// Spring attraction along edges.
		for _, l := range links {
			dx := xs[l.b] - xs[l.a]
			dy := ys[l.b] - ys[l.a]
			dist := math.Hypot(dx, dy)
			if dist < forceMinDistance {
				continue
			}
			force := forceSpringK * (dist - forceSpringLen)
			fx[l.a] += force * dx / dist
			fy[l.a] += force * dy / dist
			fx[l.b] -= force * dx / dist
			fy[l.b] -= force * dy / dist
		}

		// Bounded displacement with cooling.
		for i := 0; i < n; i++ {
			disp := math.Hypot(fx[i], fy[i])
			if disp < forceMinDistance {
				continue
			}
			limited := math.Min(disp, temp)
			xs[i] += fx[i] / disp * limited
			ys[i] += fy[i] / disp * limited
		}
		temp *= forceCooling
	}

	out := make([]PositionedNode, n)
	for i, node := range nodes {
		out[i] = PositionedNode{ID: node.ID, Position: schemas.Point{X: xs[i], Y: ys[i]}}
	}
	return out, nil
}
