// File: internal/graphstore/store.go

// Package graphstore owns the canonical in-memory hypergraph for a
// (group, appId) editing session and mediates every mutation through the
// remote backend with optimistic apply and rollback.
package graphstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/config"
)

// Backend is the remote API surface the store mediates mutations through.
// apiclient.Client satisfies it; tests substitute a fake.
type Backend interface {
	FetchEntities(ctx context.Context, appID string) (map[string]schemas.WireEntity, error)
	CreateEntities(ctx context.Context, appID string, entities []schemas.WireEntity) ([]schemas.WireEntity, error)
	UpdateEntity(ctx context.Context, appID string, entity schemas.WireEntity) (string, error)
	DeleteEntity(ctx context.Context, appID, entityID string) (schemas.StatusResponse, error)

	FetchAssocs(ctx context.Context, appID string) (map[string]schemas.WireAssoc, error)
	CreateAssocs(ctx context.Context, appID string, assocs []schemas.WireAssoc) ([]schemas.WireAssoc, error)
	UpdateAssoc(ctx context.Context, appID string, assoc schemas.WireAssoc) (string, error)
	DeleteAssoc(ctx context.Context, appID, assocID string) (schemas.StatusResponse, error)

	FetchEntityActions(ctx context.Context, appID, entityID string) ([]schemas.WireAction, error)
	CreateEntityActions(ctx context.Context, appID, entityID string, actions []schemas.WireAction) ([]schemas.WireAction, error)
	DeleteEntityActions(ctx context.Context, appID, entityID string) (schemas.StatusResponse, error)
}

// Endpoints names the participant sets of a hyperedge under construction.
type Endpoints struct {
	Source []string
	Target []string
	Other  []string
}

// Service opens and closes editing sessions. One Service is shared across
// the process; each Open returns an independent Session.
type Service struct {
	backend Backend
	cfg     config.GraphConfig
	log     *zap.Logger
}

// NewService creates the session factory.
func NewService(backend Backend, cfg config.GraphConfig, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		cfg:     cfg,
		log:     logger.Named("GraphStore"),
	}
}

// Open starts a session for the (group, appId) scope and performs the
// initial load: entities first, then associations. A network failure
// aborts the open; a malformed payload degrades to an empty collection.
func (s *Service) Open(ctx context.Context, group, appID string) (*Session, error) {
	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		group:      group,
		appID:      appID,
		backend:    s.backend,
		cfg:        s.cfg,
		log:        s.log.With(zap.String("group", group), zap.String("app_id", appID)),
		ctx:        sessCtx,
		cancel:     cancel,
		nodes:      make(map[string]schemas.Node),
		hyperedges: make(map[string]schemas.Hyperedge),
		inflight:   make(map[string]struct{}),
		subs:       make(map[int]chan schemas.Graph),
	}
	if err := sess.load(ctx); err != nil {
		cancel()
		return nil, err
	}
	sess.log.Info("Session opened",
		zap.Int("nodes", len(sess.nodes)),
		zap.Int("hyperedges", len(sess.hyperedges)))
	return sess, nil
}

// Session is the single source of truth for one app's hypergraph. All
// mutations are funneled through it; renderers only consume snapshots.
type Session struct {
	group   string
	appID   string
	backend Backend
	cfg     config.GraphConfig
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	closed     bool
	nodes      map[string]schemas.Node
	hyperedges map[string]schemas.Hyperedge
	inflight   map[string]struct{}
	subs       map[int]chan schemas.Graph
	nextSubID  int
}

// Group returns the session's group scope.
func (s *Session) Group() string { return s.group }

// AppID returns the session's application id.
func (s *Session) AppID() string { return s.appID }

// Close tears the session down. In-flight backend calls observe
// cancellation and no state is updated afterwards. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.cancel()
	s.log.Info("Session closed")
}

// load performs the initial fetch. Associations are fetched only after
// entities succeed; they reference entity ids.
func (s *Session) load(ctx context.Context) error {
	ctx, done := s.opCtx(ctx)
	defer done()

	entities, err := s.backend.FetchEntities(ctx, s.appID)
	if err != nil {
		cerr := classifyBackendErr("Open", "", err)
		if cerr.Kind != KindMalformedPayload {
			return cerr
		}
		s.log.Warn("Entity payload malformed, starting with empty graph", zap.Error(err))
		entities = nil
	}

	assocs, err := s.backend.FetchAssocs(ctx, s.appID)
	if err != nil {
		cerr := classifyBackendErr("Open", "", err)
		if cerr.Kind != KindMalformedPayload {
			return cerr
		}
		s.log.Warn("Assoc payload malformed, starting with empty collection", zap.Error(err))
		assocs = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindClosed, Op: "Open"}
	}
	for id, e := range entities {
		s.nodes[id] = schemas.EntityToNode(e)
	}
	for id, a := range assocs {
		s.hyperedges[id] = schemas.AssocToHyperedge(a)
	}
	return nil
}

// -- Snapshots --

// Snapshot returns a deep copy of the current graph state.
func (s *Session) Snapshot() schemas.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() schemas.Graph {
	g := schemas.Graph{
		Group:      s.group,
		AppID:      s.appID,
		Nodes:      make(map[string]schemas.Node, len(s.nodes)),
		Hyperedges: make(map[string]schemas.Hyperedge, len(s.hyperedges)),
	}
	for id, n := range s.nodes {
		g.Nodes[id] = copyNode(n)
	}
	for id, h := range s.hyperedges {
		g.Hyperedges[id] = copyHyperedge(h)
	}
	return g
}

// Subscribe registers a snapshot channel. The channel holds at most the
// latest snapshot; a slow consumer only ever misses intermediate states.
// The returned func unsubscribes and must be called on teardown.
func (s *Session) Subscribe() (<-chan schemas.Graph, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan schemas.Graph, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// publishLocked pushes the current snapshot to every subscriber,
// replacing any stale snapshot still sitting in a channel.
func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// -- Accessors --

// Node returns a copy of the node with the given id.
func (s *Session) Node(id string) (schemas.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return schemas.Node{}, false
	}
	return copyNode(n), true
}

// Hyperedge returns a copy of the hyperedge with the given id.
func (s *Session) Hyperedge(id string) (schemas.Hyperedge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hyperedges[id]
	if !ok {
		return schemas.Hyperedge{}, false
	}
	return copyHyperedge(h), true
}

// HyperedgeByEndpoints resolves a hyperedge through the canonical key of
// the given participant set, regardless of participant order.
func (s *Session) HyperedgeByEndpoints(participantIDs []string) (schemas.Hyperedge, bool) {
	return s.Hyperedge(EncodeKey(participantIDs))
}

// -- Node Operations --

// CreateNode inserts a Pending draft node of the given kind at a random
// canvas position. No backend call happens until CommitNode; a canceled
// dialog discards the draft with DeleteNode(id, false).
func (s *Session) CreateNode(kind string) (schemas.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schemas.Node{}, &Error{Kind: KindClosed, Op: "CreateNode"}
	}
	node := schemas.Node{
		ID:         kind + "-" + uuid.NewString(),
		Kind:       kind,
		Attributes: make(map[string]string),
		Position:   s.randomPoint(),
		State:      schemas.LifecyclePending,
	}
	schemas.StorePosition(node.Attributes, node.Position)
	s.nodes[node.ID] = node
	s.publishLocked()
	s.log.Debug("Draft node created", zap.String("node_id", node.ID), zap.String("kind", kind))
	return copyNode(node), nil
}

// CommitNode pushes a Pending node to the backend. On success the
// backend's canonical entity is merged back and the node becomes
// Committed; on rejection the draft is removed (rollback).
func (s *Session) CommitNode(ctx context.Context, node schemas.Node) (schemas.Node, error) {
	const op = "CommitNode"
	if _, err := s.beginNodeMutation(op, node.ID, schemas.LifecyclePending); err != nil {
		return schemas.Node{}, err
	}
	defer s.endMutation(node.ID)

	// Apply the dialog's edits optimistically before the round trip.
	node.State = schemas.LifecyclePending
	if node.Attributes == nil {
		node.Attributes = make(map[string]string)
	}
	schemas.StorePosition(node.Attributes, node.Position)
	s.applyNode(node)

	ctx, done := s.opCtx(ctx)
	defer done()
	created, callErr := s.backend.CreateEntities(ctx, s.appID, []schemas.WireEntity{schemas.NodeToEntity(node)})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schemas.Node{}, &Error{Kind: KindClosed, Op: op, ID: node.ID}
	}
	if callErr != nil {
		delete(s.nodes, node.ID)
		s.publishLocked()
		return schemas.Node{}, classifyBackendErr(op, node.ID, callErr)
	}
	if len(created) != 1 {
		delete(s.nodes, node.ID)
		s.publishLocked()
		return schemas.Node{}, &Error{
			Kind: KindBackendRejection, Op: op, ID: node.ID,
			Err: fmt.Errorf("expected 1 created entity, got %d", len(created)),
		}
	}

	// The backend copy wins: it may normalize attributes or coordinates.
	canonical := schemas.EntityToNode(created[0])
	if canonical.ID != node.ID {
		delete(s.nodes, node.ID)
	}
	s.nodes[canonical.ID] = canonical
	s.publishLocked()
	s.log.Info("Node committed", zap.String("node_id", canonical.ID))
	return copyNode(canonical), nil
}

// UpdateNode persists edits to a node. A still-Pending node routes
// through CommitNode, so the first confirmation doubles as creation. A
// Committed node is updated optimistically and rolled back to its last
// committed copy on failure or on a response id mismatch.
func (s *Session) UpdateNode(ctx context.Context, node schemas.Node) (schemas.Node, error) {
	const op = "UpdateNode"
	s.mu.RLock()
	existing, ok := s.nodes[node.ID]
	s.mu.RUnlock()
	if !ok {
		return schemas.Node{}, &Error{Kind: KindNotFound, Op: op, ID: node.ID}
	}
	if existing.State == schemas.LifecyclePending {
		return s.CommitNode(ctx, node)
	}

	prev, err := s.beginNodeMutation(op, node.ID, schemas.LifecycleCommitted)
	if err != nil {
		return schemas.Node{}, err
	}
	defer s.endMutation(node.ID)

	node.State = schemas.LifecycleCommitted
	if node.Attributes == nil {
		node.Attributes = make(map[string]string)
	}
	schemas.StorePosition(node.Attributes, node.Position)
	s.applyNode(node)

	ctx, done := s.opCtx(ctx)
	defer done()
	returnedID, callErr := s.backend.UpdateEntity(ctx, s.appID, schemas.NodeToEntity(node))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Keep the map consistent even though nobody is subscribed anymore.
		s.nodes[node.ID] = prev
		return schemas.Node{}, &Error{Kind: KindClosed, Op: op, ID: node.ID}
	}
	if callErr != nil {
		s.nodes[node.ID] = prev
		s.publishLocked()
		return schemas.Node{}, classifyBackendErr(op, node.ID, callErr)
	}
	if returnedID != node.ID {
		// The backend confirmed a different id than we sent. Restore the
		// last committed copy rather than trusting either side.
		s.nodes[node.ID] = prev
		s.publishLocked()
		return schemas.Node{}, &Error{
			Kind: KindBackendRejection, Op: op, ID: node.ID,
			Err: fmt.Errorf("backend confirmed id %q", returnedID),
		}
	}
	s.publishLocked()
	return copyNode(s.nodes[node.ID]), nil
}

// DeleteNode removes a node. A node referenced by any hyperedge is
// refused. With callBackend false the removal is purely local, used to
// discard an unconfirmed draft; otherwise the node is removed only after
// the backend confirms the delete.
func (s *Session) DeleteNode(ctx context.Context, id string, callBackend bool) error {
	const op = "DeleteNode"
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &Error{Kind: KindClosed, Op: op, ID: id}
	}
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return &Error{Kind: KindNotFound, Op: op, ID: id}
	}
	if key := s.referencingHyperedgeLocked(id); key != "" {
		s.mu.Unlock()
		return &Error{
			Kind: KindInvariantViolation, Op: op, ID: id,
			Err: fmt.Errorf("node is referenced by hyperedge %s", key),
		}
	}
	if !callBackend {
		delete(s.nodes, id)
		s.publishLocked()
		s.mu.Unlock()
		s.log.Debug("Draft node discarded", zap.String("node_id", id))
		return nil
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return &Error{Kind: KindBusy, Op: op, ID: id}
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()
	defer s.endMutation(id)

	ctx, done := s.opCtx(ctx)
	defer done()
	status, callErr := s.backend.DeleteEntity(ctx, s.appID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindClosed, Op: op, ID: id}
	}
	if callErr != nil {
		return classifyBackendErr(op, id, callErr)
	}
	if !status.OK() {
		return &Error{
			Kind: KindBackendRejection, Op: op, ID: id,
			Err: fmt.Errorf("backend status %q: %s", status.Status, status.Message),
		}
	}
	delete(s.nodes, id)
	s.publishLocked()
	s.log.Info("Node deleted", zap.String("node_id", id))
	return nil
}

// SetNodePosition records a drag-stop coordinate locally. The backend is
// not called; positions persist on the next explicit node save.
func (s *Session) SetNodePosition(id string, p schemas.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindClosed, Op: "SetNodePosition", ID: id}
	}
	node, ok := s.nodes[id]
	if !ok {
		return &Error{Kind: KindNotFound, Op: "SetNodePosition", ID: id}
	}
	node = copyNode(node)
	node.Position = p
	schemas.StorePosition(node.Attributes, p)
	s.nodes[id] = node
	s.publishLocked()
	return nil
}

// -- Hyperedge Operations --

// CreateHyperedge inserts a Pending hyperedge for the endpoint sets and
// pushes it to the backend. A hyperedge over the same participant set, in
// any order, is rejected before any backend call. Every endpoint must
// name a known node.
func (s *Session) CreateHyperedge(ctx context.Context, endpoints Endpoints) (schemas.Hyperedge, error) {
	const op = "CreateHyperedge"
	key := HyperedgeKey(endpoints.Source, endpoints.Target, endpoints.Other)
	if key == "" {
		return schemas.Hyperedge{}, &Error{
			Kind: KindInvariantViolation, Op: op,
			Err: fmt.Errorf("hyperedge needs at least one participant"),
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schemas.Hyperedge{}, &Error{Kind: KindClosed, Op: op, ID: key}
	}
	if _, exists := s.hyperedges[key]; exists {
		s.mu.Unlock()
		s.log.Debug("Duplicate hyperedge rejected", zap.String("key", key))
		return schemas.Hyperedge{}, &Error{
			Kind: KindInvariantViolation, Op: op, ID: key,
			Err: fmt.Errorf("hyperedge already exists"),
		}
	}
	for _, pid := range append(append(append([]string(nil), endpoints.Source...), endpoints.Target...), endpoints.Other...) {
		if _, ok := s.nodes[pid]; !ok {
			s.mu.Unlock()
			return schemas.Hyperedge{}, &Error{
				Kind: KindInvariantViolation, Op: op, ID: key,
				Err: fmt.Errorf("unknown participant node %q", pid),
			}
		}
	}
	if _, busy := s.inflight[key]; busy {
		s.mu.Unlock()
		return schemas.Hyperedge{}, &Error{Kind: KindBusy, Op: op, ID: key}
	}
	edge := schemas.Hyperedge{
		ID:         key,
		Source:     append([]string(nil), endpoints.Source...),
		Target:     append([]string(nil), endpoints.Target...),
		Other:      append([]string(nil), endpoints.Other...),
		Attributes: make(map[string]string),
		State:      schemas.LifecyclePending,
	}
	s.hyperedges[key] = edge
	s.inflight[key] = struct{}{}
	s.publishLocked()
	s.mu.Unlock()
	defer s.endMutation(key)

	ctx, done := s.opCtx(ctx)
	defer done()
	created, callErr := s.backend.CreateAssocs(ctx, s.appID, []schemas.WireAssoc{schemas.HyperedgeToAssoc(edge)})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schemas.Hyperedge{}, &Error{Kind: KindClosed, Op: op, ID: key}
	}
	if callErr != nil {
		delete(s.hyperedges, key)
		s.publishLocked()
		return schemas.Hyperedge{}, classifyBackendErr(op, key, callErr)
	}
	if len(created) != 1 {
		delete(s.hyperedges, key)
		s.publishLocked()
		return schemas.Hyperedge{}, &Error{
			Kind: KindBackendRejection, Op: op, ID: key,
			Err: fmt.Errorf("expected 1 created assoc, got %d", len(created)),
		}
	}
	canonical := schemas.AssocToHyperedge(created[0])
	if canonical.ID == "" {
		canonical.ID = key
	}
	if canonical.ID != key {
		delete(s.hyperedges, key)
	}
	s.hyperedges[canonical.ID] = canonical
	s.publishLocked()
	s.log.Info("Hyperedge committed", zap.String("key", canonical.ID))
	return copyHyperedge(canonical), nil
}

// UpdateHyperedge persists edits to a hyperedge, including its compiled
// expressions. Pending hyperedges are re-pushed as creates; Committed
// ones update optimistically with rollback on failure or id mismatch.
func (s *Session) UpdateHyperedge(ctx context.Context, edge schemas.Hyperedge) (schemas.Hyperedge, error) {
	const op = "UpdateHyperedge"
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schemas.Hyperedge{}, &Error{Kind: KindClosed, Op: op, ID: edge.ID}
	}
	prev, ok := s.hyperedges[edge.ID]
	if !ok {
		s.mu.Unlock()
		return schemas.Hyperedge{}, &Error{Kind: KindNotFound, Op: op, ID: edge.ID}
	}
	if _, busy := s.inflight[edge.ID]; busy {
		s.mu.Unlock()
		return schemas.Hyperedge{}, &Error{Kind: KindBusy, Op: op, ID: edge.ID}
	}
	s.inflight[edge.ID] = struct{}{}
	pending := prev.State == schemas.LifecyclePending
	edge.State = prev.State
	if edge.Attributes == nil {
		edge.Attributes = make(map[string]string)
	}
	s.hyperedges[edge.ID] = copyHyperedge(edge)
	s.publishLocked()
	s.mu.Unlock()
	defer s.endMutation(edge.ID)

	ctx, done := s.opCtx(ctx)
	defer done()

	if pending {
		created, callErr := s.backend.CreateAssocs(ctx, s.appID, []schemas.WireAssoc{schemas.HyperedgeToAssoc(edge)})
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return schemas.Hyperedge{}, &Error{Kind: KindClosed, Op: op, ID: edge.ID}
		}
		if callErr != nil {
			delete(s.hyperedges, edge.ID)
			s.publishLocked()
			return schemas.Hyperedge{}, classifyBackendErr(op, edge.ID, callErr)
		}
		if len(created) != 1 {
			delete(s.hyperedges, edge.ID)
			s.publishLocked()
			return schemas.Hyperedge{}, &Error{
				Kind: KindBackendRejection, Op: op, ID: edge.ID,
				Err: fmt.Errorf("expected 1 created assoc, got %d", len(created)),
			}
		}
		canonical := schemas.AssocToHyperedge(created[0])
		if canonical.ID == "" {
			canonical.ID = edge.ID
		}
		s.hyperedges[canonical.ID] = canonical
		s.publishLocked()
		return copyHyperedge(canonical), nil
	}

	returnedID, callErr := s.backend.UpdateAssoc(ctx, s.appID, schemas.HyperedgeToAssoc(edge))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schemas.Hyperedge{}, &Error{Kind: KindClosed, Op: op, ID: edge.ID}
	}
	if callErr != nil {
		s.hyperedges[edge.ID] = prev
		s.publishLocked()
		return schemas.Hyperedge{}, classifyBackendErr(op, edge.ID, callErr)
	}
	if returnedID != edge.ID {
		s.hyperedges[edge.ID] = prev
		s.publishLocked()
		return schemas.Hyperedge{}, &Error{
			Kind: KindBackendRejection, Op: op, ID: edge.ID,
			Err: fmt.Errorf("backend confirmed id %q", returnedID),
		}
	}
	s.publishLocked()
	return copyHyperedge(s.hyperedges[edge.ID]), nil
}

// DeleteHyperedge removes a hyperedge after backend confirmation. A
// never-committed hyperedge should not normally be deleted here since
// CreateHyperedge rolls its own failures back, but a Pending edge is
// discarded locally without a backend call.
func (s *Session) DeleteHyperedge(ctx context.Context, id string) error {
	const op = "DeleteHyperedge"
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &Error{Kind: KindClosed, Op: op, ID: id}
	}
	edge, ok := s.hyperedges[id]
	if !ok {
		s.mu.Unlock()
		return &Error{Kind: KindNotFound, Op: op, ID: id}
	}
	if edge.State == schemas.LifecyclePending {
		delete(s.hyperedges, id)
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return &Error{Kind: KindBusy, Op: op, ID: id}
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()
	defer s.endMutation(id)

	ctx, done := s.opCtx(ctx)
	defer done()
	status, callErr := s.backend.DeleteAssoc(ctx, s.appID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindClosed, Op: op, ID: id}
	}
	if callErr != nil {
		return classifyBackendErr(op, id, callErr)
	}
	if !status.OK() {
		return &Error{
			Kind: KindBackendRejection, Op: op, ID: id,
			Err: fmt.Errorf("backend status %q: %s", status.Status, status.Message),
		}
	}
	delete(s.hyperedges, id)
	s.publishLocked()
	s.log.Info("Hyperedge deleted", zap.String("key", id))
	return nil
}

// -- Node Actions --

// LoadNodeActions fetches the action list attached to a node.
func (s *Session) LoadNodeActions(ctx context.Context, nodeID string) ([]schemas.WireAction, error) {
	const op = "LoadNodeActions"
	if _, ok := s.Node(nodeID); !ok {
		return nil, &Error{Kind: KindNotFound, Op: op, ID: nodeID}
	}
	ctx, done := s.opCtx(ctx)
	defer done()
	actions, err := s.backend.FetchEntityActions(ctx, s.appID, nodeID)
	if err != nil {
		return nil, classifyBackendErr(op, nodeID, err)
	}
	return actions, nil
}

// SaveNodeActions replaces the action list attached to a node. The list
// length is capped at the configured maximum.
func (s *Session) SaveNodeActions(ctx context.Context, nodeID string, actions []schemas.WireAction) ([]schemas.WireAction, error) {
	const op = "SaveNodeActions"
	if len(actions) > s.cfg.MaxActions {
		return nil, &Error{
			Kind: KindInvariantViolation, Op: op, ID: nodeID,
			Err: fmt.Errorf("%d actions exceeds maximum %d", len(actions), s.cfg.MaxActions),
		}
	}
	if _, ok := s.Node(nodeID); !ok {
		return nil, &Error{Kind: KindNotFound, Op: op, ID: nodeID}
	}
	if err := s.beginMutation(op, nodeID); err != nil {
		return nil, err
	}
	defer s.endMutation(nodeID)

	ctx, done := s.opCtx(ctx)
	defer done()
	saved, err := s.backend.CreateEntityActions(ctx, s.appID, nodeID, actions)
	if err != nil {
		return nil, classifyBackendErr(op, nodeID, err)
	}
	return saved, nil
}

// ClearNodeActions removes every action attached to a node.
func (s *Session) ClearNodeActions(ctx context.Context, nodeID string) error {
	const op = "ClearNodeActions"
	if _, ok := s.Node(nodeID); !ok {
		return &Error{Kind: KindNotFound, Op: op, ID: nodeID}
	}
	if err := s.beginMutation(op, nodeID); err != nil {
		return err
	}
	defer s.endMutation(nodeID)

	ctx, done := s.opCtx(ctx)
	defer done()
	status, err := s.backend.DeleteEntityActions(ctx, s.appID, nodeID)
	if err != nil {
		return classifyBackendErr(op, nodeID, err)
	}
	if !status.OK() {
		return &Error{
			Kind: KindBackendRejection, Op: op, ID: nodeID,
			Err: fmt.Errorf("backend status %q: %s", status.Status, status.Message),
		}
	}
	return nil
}

// -- Internals --

// beginMutation reserves the in-flight slot for an id, failing fast with
// Busy when another mutation on the same id has not finished.
func (s *Session) beginMutation(op, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindClosed, Op: op, ID: id}
	}
	if _, busy := s.inflight[id]; busy {
		return &Error{Kind: KindBusy, Op: op, ID: id}
	}
	s.inflight[id] = struct{}{}
	return nil
}

// beginNodeMutation additionally checks existence and the expected
// lifecycle state, returning the prior copy for rollback.
func (s *Session) beginNodeMutation(op, id string, want schemas.LifecycleState) (schemas.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schemas.Node{}, &Error{Kind: KindClosed, Op: op, ID: id}
	}
	node, ok := s.nodes[id]
	if !ok {
		return schemas.Node{}, &Error{Kind: KindNotFound, Op: op, ID: id}
	}
	if node.State != want {
		return schemas.Node{}, &Error{
			Kind: KindInvariantViolation, Op: op, ID: id,
			Err: fmt.Errorf("node is %s, expected %s", node.State, want),
		}
	}
	if _, busy := s.inflight[id]; busy {
		return schemas.Node{}, &Error{Kind: KindBusy, Op: op, ID: id}
	}
	s.inflight[id] = struct{}{}
	return copyNode(node), nil
}

func (s *Session) endMutation(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *Session) applyNode(node schemas.Node) {
	s.mu.Lock()
	s.nodes[node.ID] = copyNode(node)
	s.publishLocked()
	s.mu.Unlock()
}

// referencingHyperedgeLocked returns the key of any hyperedge touching
// the node, or "" when the node is free.
func (s *Session) referencingHyperedgeLocked(nodeID string) string {
	for key, h := range s.hyperedges {
		if h.References(nodeID) {
			return key
		}
	}
	return ""
}

// opCtx bounds a backend call by both the caller's context and the
// session lifetime, so Close aborts everything in flight.
func (s *Session) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) randomPoint() schemas.Point {
	span := s.cfg.CanvasMax - s.cfg.CanvasMin
	return schemas.Point{
		X: s.cfg.CanvasMin + rand.Float64()*span,
		Y: s.cfg.CanvasMin + rand.Float64()*span,
	}
}

func copyNode(n schemas.Node) schemas.Node {
	out := n
	out.Attributes = make(map[string]string, len(n.Attributes))
	for k, v := range n.Attributes {
		out.Attributes[k] = v
	}
	return out
}

func copyHyperedge(h schemas.Hyperedge) schemas.Hyperedge {
	out := h
	out.Source = append([]string(nil), h.Source...)
	out.Target = append([]string(nil), h.Target...)
	out.Other = append([]string(nil), h.Other...)
	out.Attributes = make(map[string]string, len(h.Attributes))
	for k, v := range h.Attributes {
		out.Attributes[k] = v
	}
	if h.Expressions != nil {
		expr := schemas.Expressions{
			Exprs:      append([]string(nil), h.Expressions.Exprs...),
			Ops:        append([]string(nil), h.Expressions.Ops...),
			Result:     h.Expressions.Result,
			ResultType: h.Expressions.ResultType,
		}
		out.Expressions = &expr
	}
	return out
}
