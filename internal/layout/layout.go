// File: internal/layout/layout.go

// Package layout computes 2D canvas positions for the graph without
// owning any graph semantics. It exposes pluggable strategies (layered
// DAG and force-directed) plus the pure edge-rewrite applied after node
// deletion.
package layout

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/config"
)

// Direction is the growth direction of the layered layout.
type Direction string

const (
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
)

// Edge is a pairwise visual edge derived from a hyperedge. Key carries
// the owning hyperedge's canonical id so interaction code can resolve a
// clicked edge back to its hyperedge; synthesized bridging edges carry no
// key.
type Edge struct {
	ID     string
	Key    string
	Source string
	Target string
}

// PositionedNode is a node id with its computed canvas position.
type PositionedNode struct {
	ID       string
	Position schemas.Point
}

// Strategy computes positions for a node set given its visual edges.
type Strategy interface {
	Layout(nodes []schemas.Node, edges []Edge, dir Direction) ([]PositionedNode, error)
}

// Adapter bridges a graph snapshot to the configured layout strategy.
type Adapter struct {
	strategy Strategy
	cfg      config.LayoutConfig
	log      *zap.Logger
}

// NewAdapter selects the strategy named by the configuration.
func NewAdapter(cfg config.LayoutConfig, logger *zap.Logger) (*Adapter, error) {
	var strategy Strategy
	switch cfg.Strategy {
	case "dag":
		strategy = NewDAGStrategy(cfg.NodeWidth, cfg.NodeHeight)
	case "force":
		strategy = NewForceStrategy()
	default:
		return nil, fmt.Errorf("unknown layout strategy %q", cfg.Strategy)
	}
	return &Adapter{
		strategy: strategy,
		cfg:      cfg,
		log:      logger.Named("Layout"),
	}, nil
}

// Layout positions every node of the snapshot using the configured
// strategy and direction.
func (a *Adapter) Layout(g schemas.Graph) ([]PositionedNode, error) {
	nodes := make([]schemas.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	// Map iteration order is random; strategies expect a stable input.
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := EdgesFromHyperedges(g.Hyperedges)
	positioned, err := a.strategy.Layout(nodes, edges, Direction(a.cfg.Direction))
	if err != nil {
		return nil, fmt.Errorf("layout %s/%s: %w", a.cfg.Strategy, a.cfg.Direction, err)
	}
	a.log.Debug("Layout computed",
		zap.Int("nodes", len(positioned)),
		zap.Int("edges", len(edges)),
		zap.String("strategy", a.cfg.Strategy))
	return positioned, nil
}

// EdgesFromHyperedges expands each hyperedge into the pairwise
// source-to-target edges drawn on the canvas. Every derived edge carries
// the hyperedge's canonical key. "Other" participants are display-only
// and contribute no directed edges.
func EdgesFromHyperedges(hyperedges map[string]schemas.Hyperedge) []Edge {
	keys := make([]string, 0, len(hyperedges))
	for k := range hyperedges {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Edge
	for _, k := range keys {
		h := hyperedges[k]
		for _, src := range h.Source {
			for _, dst := range h.Target {
				out = append(out, Edge{
					ID:     src + "->" + dst,
					Key:    h.ID,
					Source: src,
					Target: dst,
				})
			}
		}
	}
	return out
}

// ReconnectAfterNodeDeletion removes every edge touching a deleted node
// and splices each former incomer directly to each former outgoer, so
// deleting a pass-through node does not visually disconnect the graph.
// Pure rewrite; no backend involvement.
func ReconnectAfterNodeDeletion(deletedIDs []string, edges []Edge) []Edge {
	deleted := make(map[string]struct{}, len(deletedIDs))
	for _, id := range deletedIDs {
		deleted[id] = struct{}{}
	}

	incomers := make(map[string][]string) // deleted node -> sources feeding it
	outgoers := make(map[string][]string) // deleted node -> targets it fed
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		_, srcGone := deleted[e.Source]
		_, dstGone := deleted[e.Target]
		if !srcGone && !dstGone {
			kept = append(kept, e)
			continue
		}
		if dstGone && !srcGone {
			incomers[e.Target] = append(incomers[e.Target], e.Source)
		}
		if srcGone && !dstGone {
			outgoers[e.Source] = append(outgoers[e.Source], e.Target)
		}
	}

	seen := make(map[string]struct{}, len(kept))
	for _, e := range kept {
		seen[e.ID] = struct{}{}
	}
	for _, id := range deletedIDs {
		for _, src := range incomers[id] {
			for _, dst := range outgoers[id] {
				bridgeID := src + "->" + dst
				if _, dup := seen[bridgeID]; dup {
					continue
				}
				seen[bridgeID] = struct{}{}
				kept = append(kept, Edge{ID: bridgeID, Source: src, Target: dst})
			}
		}
	}
	return kept
}
