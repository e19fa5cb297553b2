package schemas

import (
	"fmt"
	"strconv"
	"strings"
)

// -- Canonical Hypergraph Data Model --

// LifecycleState tracks where a node or hyperedge sits relative to the
// backend: created locally and unconfirmed, confirmed, or pending removal.
type LifecycleState string

const (
	LifecyclePending   LifecycleState = "pending"   // Created locally, not yet confirmed by the backend.
	LifecycleCommitted LifecycleState = "committed" // Confirmed by the backend.
	LifecycleDeleted   LifecycleState = "deleted"   // Delete confirmed; retained only transiently.
)

// Reserved attribute keys carrying the serialized canvas coordinates.
const (
	AttrCoordX = "xx"
	AttrCoordY = "yy"
)

// Node is a single entity in the hypergraph scoped to a (group, appId) pair.
// Attributes is a free-form string map; the xx/yy keys mirror Position.
type Node struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
	Fitness     int               `json:"fitness"`
	Position    Point             `json:"position"`
	State       LifecycleState    `json:"state"`
}

// Point is a 2D canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Hyperedge is an association connecting an arbitrary set of participant
// nodes split into disjoint source, target and other endpoint sets. A plain
// directed edge is the two-participant special case.
type Hyperedge struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Source      []string          `json:"source"`
	Target      []string          `json:"target"`
	Other       []string          `json:"other"`
	Attributes  map[string]string `json:"attributes"`
	Propensity  float64           `json:"propensity"`
	Expressions *Expressions      `json:"expressions,omitempty"`
	State       LifecycleState    `json:"state"`
}

// Participants returns every endpoint id of the hyperedge, in source,
// target, other order. The result is a fresh slice.
func (h *Hyperedge) Participants() []string {
	out := make([]string, 0, len(h.Source)+len(h.Target)+len(h.Other))
	out = append(out, h.Source...)
	out = append(out, h.Target...)
	out = append(out, h.Other...)
	return out
}

// References reports whether the hyperedge touches the given node id in any
// endpoint set.
func (h *Hyperedge) References(nodeID string) bool {
	for _, set := range [][]string{h.Source, h.Target, h.Other} {
		for _, id := range set {
			if id == nodeID {
				return true
			}
		}
	}
	return false
}

// Expressions is the compiled boolean condition attached to a hyperedge.
// Ops[i] joins Exprs[i] and Exprs[i+1], so len(Ops) == len(Exprs)-1.
// Result/ResultType are fixed placeholders; evaluation is owned by the
// backend engine.
type Expressions struct {
	Exprs      []string `json:"exprs"`
	Ops        []string `json:"ops"`
	Result     string   `json:"result"`
	ResultType string   `json:"resultType"`
}

// Graph is a point-in-time snapshot of a session's node and hyperedge
// collections. Snapshots are deep copies; holders may read them freely.
type Graph struct {
	Group      string               `json:"group"`
	AppID      string               `json:"appId"`
	Nodes      map[string]Node      `json:"nodes"`
	Hyperedges map[string]Hyperedge `json:"hyperedges"`
}

// -- Attribute Helpers --

// PositionFromAttributes reads the xx/yy attribute pair into a Point.
// Missing or malformed values fall back to zero, matching how a fresh
// node with no persisted coordinates is treated.
func PositionFromAttributes(attrs map[string]string) Point {
	var p Point
	if v, err := strconv.ParseFloat(attrs[AttrCoordX], 64); err == nil {
		p.X = v
	}
	if v, err := strconv.ParseFloat(attrs[AttrCoordY], 64); err == nil {
		p.Y = v
	}
	return p
}

// StorePosition writes the point back into the attribute map under the
// reserved xx/yy keys.
func StorePosition(attrs map[string]string, p Point) {
	attrs[AttrCoordX] = strconv.FormatFloat(p.X, 'f', -1, 64)
	attrs[AttrCoordY] = strconv.FormatFloat(p.Y, 'f', -1, 64)
}

// ParseAttributesCSV parses a "k1=v1,k2=v2" form string into an attribute
// map. Empty segments are skipped; a segment without '=' is an error.
func ParseAttributesCSV(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed attribute segment %q: expected key=value", part)
		}
		attrs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return attrs, nil
}
