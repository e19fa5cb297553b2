// File: internal/interaction/controller.go

// Package interaction translates raw UI events into graph session
// operations. The controller is stateless beyond the current selection
// and the modifier-key flag driving the click-to-connect gesture.
package interaction

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/actions"
	"github.com/vantagesec/hypergraph-cli/internal/expr"
	"github.com/vantagesec/hypergraph-cli/internal/graphstore"
	"github.com/vantagesec/hypergraph-cli/internal/layout"
)

// Store is the slice of the graph session the controller drives.
type Store interface {
	Node(id string) (schemas.Node, bool)
	Hyperedge(id string) (schemas.Hyperedge, bool)
	HyperedgeByEndpoints(participantIDs []string) (schemas.Hyperedge, bool)
	CreateNode(kind string) (schemas.Node, error)
	CommitNode(ctx context.Context, node schemas.Node) (schemas.Node, error)
	UpdateNode(ctx context.Context, node schemas.Node) (schemas.Node, error)
	DeleteNode(ctx context.Context, id string, callBackend bool) error
	CreateHyperedge(ctx context.Context, endpoints graphstore.Endpoints) (schemas.Hyperedge, error)
	UpdateHyperedge(ctx context.Context, edge schemas.Hyperedge) (schemas.Hyperedge, error)
	DeleteHyperedge(ctx context.Context, id string) error
	SetNodePosition(id string, p schemas.Point) error
	LoadNodeActions(ctx context.Context, nodeID string) ([]schemas.WireAction, error)
	SaveNodeActions(ctx context.Context, nodeID string, actions []schemas.WireAction) ([]schemas.WireAction, error)
}

var _ Store = (*graphstore.Session)(nil)

// DialogRequest asks the UI to open the node edit dialog. IDEditable is
// false once the node has been committed; the backend owns its id then.
type DialogRequest struct {
	Node       schemas.Node
	IDEditable bool
}

// Controller owns selection state and the event-to-mutation mapping.
type Controller struct {
	store Store
	log   *zap.Logger

	selectedNodes  []string
	selectedEdge   string
	modifierHeld   bool
	connectPending string
}

// NewController wires the controller to a session.
func NewController(store Store, logger *zap.Logger) *Controller {
	return &Controller{store: store, log: logger.Named("Interaction")}
}

// SelectedNodes returns the current node selection.
func (c *Controller) SelectedNodes() []string {
	return append([]string(nil), c.selectedNodes...)
}

// SelectedEdge returns the selected hyperedge key, or "".
func (c *Controller) SelectedEdge() string { return c.selectedEdge }

// SetModifier records the modifier-key state. Releasing the modifier
// abandons a half-finished click-to-connect gesture.
func (c *Controller) SetModifier(held bool) {
	c.modifierHeld = held
	if !held {
		c.connectPending = ""
	}
}

// ClickNode selects a node and clears any edge selection. With the
// modifier held, the second distinct node clicked completes a connect
// gesture and the new hyperedge is created.
func (c *Controller) ClickNode(ctx context.Context, id string) (*schemas.Hyperedge, error) {
	c.selectedNodes = []string{id}
	c.selectedEdge = ""

	if !c.modifierHeld {
		c.connectPending = ""
		return nil, nil
	}
	if c.connectPending == "" || c.connectPending == id {
		c.connectPending = id
		return nil, nil
	}
	source := c.connectPending
	c.connectPending = ""
	edge, err := c.Connect(ctx, source, id)
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// ClickEdge selects a hyperedge and clears the node selection.
func (c *Controller) ClickEdge(key string) {
	c.selectedEdge = key
	c.selectedNodes = nil
}

// SelectNodes replaces the node selection, for marquee multi-select.
func (c *Controller) SelectNodes(ids []string) {
	c.selectedNodes = append([]string(nil), ids...)
	c.selectedEdge = ""
}

// DoubleClickNode requests the edit dialog for a node.
func (c *Controller) DoubleClickNode(id string) (DialogRequest, bool) {
	node, ok := c.store.Node(id)
	if !ok {
		return DialogRequest{}, false
	}
	return DialogRequest{
		Node:       node,
		IDEditable: node.State == schemas.LifecyclePending,
	}, true
}

// DragStop persists the new canvas position locally. No backend sync
// happens on drag; coordinates ride along on the next explicit save.
func (c *Controller) DragStop(id string, p schemas.Point) error {
	return c.store.SetNodePosition(id, p)
}

// Connect derives a two-participant hyperedge from a drag-connect or
// click-to-connect gesture.
func (c *Controller) Connect(ctx context.Context, sourceID, targetID string) (schemas.Hyperedge, error) {
	c.log.Debug("Connect gesture",
		zap.String("source", sourceID), zap.String("target", targetID))
	return c.store.CreateHyperedge(ctx, graphstore.Endpoints{
		Source: []string{sourceID},
		Target: []string{targetID},
	})
}

// DeleteNodes deletes the given nodes with backend confirmation, fanned
// out concurrently, and returns the visual edge set with the deleted
// nodes bridged out. The bridging is cosmetic and applies immediately,
// regardless of how the individual deletes resolve.
func (c *Controller) DeleteNodes(ctx context.Context, ids []string, edges []layout.Edge) ([]layout.Edge, error) {
	rewired := layout.ReconnectAfterNodeDeletion(ids, edges)

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			if err := c.store.DeleteNode(ctx, id, true); err != nil {
				c.log.Warn("Node delete failed",
					zap.String("node_id", id), zap.Error(err))
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	c.selectedNodes = nil
	return rewired, err
}

// DeleteSelection deletes whatever is selected: the selected nodes, or
// the selected hyperedge. Used by the delete-key handler.
func (c *Controller) DeleteSelection(ctx context.Context, edges []layout.Edge) ([]layout.Edge, error) {
	if len(c.selectedNodes) > 0 {
		return c.DeleteNodes(ctx, c.selectedNodes, edges)
	}
	if c.selectedEdge != "" {
		key := c.selectedEdge
		c.selectedEdge = ""
		return edges, c.store.DeleteHyperedge(ctx, key)
	}
	return edges, nil
}

// ConfirmEdgeConditions is the OK handler of the hyperedge condition
// dialog: it compiles the constructed clause list and stores the result
// on the hyperedge. A compile error leaves the hyperedge untouched.
func (c *Controller) ConfirmEdgeConditions(ctx context.Context, key string, clauses []expr.Clause, ops []string) (schemas.Hyperedge, error) {
	edge, ok := c.store.Hyperedge(key)
	if !ok {
		return schemas.Hyperedge{}, fmt.Errorf("hyperedge %q not found", key)
	}
	compiled, err := expr.Compile(clauses, ops)
	if err != nil {
		return schemas.Hyperedge{}, err
	}
	edge.Expressions = &compiled
	return c.store.UpdateHyperedge(ctx, edge)
}

// EditNodeActions is the open handler of the node action dialog: it
// pulls the node's stored actions and lifts them into an editable model.
func (c *Controller) EditNodeActions(ctx context.Context, id string) (*actions.Model, error) {
	wire, err := c.store.LoadNodeActions(ctx, id)
	if err != nil {
		return nil, err
	}
	return actions.NewModelFromWire(actions.MaxActions, wire, c.log), nil
}

// ConfirmNodeActions is the OK handler of the node action dialog: it
// serializes the edited model and replaces the node's action set.
func (c *Controller) ConfirmNodeActions(ctx context.Context, id string, model *actions.Model) ([]schemas.WireAction, error) {
	wire, err := actions.Marshal(model.Records())
	if err != nil {
		return nil, err
	}
	return c.store.SaveNodeActions(ctx, id, wire)
}

// DeleteEdge resolves a visual edge back to its hyperedge and deletes it.
func (c *Controller) DeleteEdge(ctx context.Context, edge layout.Edge) error {
	key := edge.Key
	if key == "" {
		// A synthesized bridging edge has no backing hyperedge; try the
		// canonical key of its endpoints.
		if h, ok := c.store.HyperedgeByEndpoints([]string{edge.Source, edge.Target}); ok {
			key = h.ID
		} else {
			return nil
		}
	}
	return c.store.DeleteHyperedge(ctx, key)
}
