// File: internal/snapshot/postgres.go

// Package snapshot persists point-in-time copies of a session's graph to
// PostgreSQL for offline inspection and recovery. The backend API server
// remains the source of truth; snapshots are a local convenience.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes graph snapshots.
type Store struct {
	db  DB
	log *zap.Logger
}

// New wraps an open connection pool.
func New(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger.Named("SnapshotStore")}
}

// Init creates the snapshot tables when they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snapshot_nodes (
			grp      TEXT NOT NULL,
			app_id   TEXT NOT NULL,
			node_id  TEXT NOT NULL,
			payload  JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (grp, app_id, node_id)
		);
		CREATE TABLE IF NOT EXISTS snapshot_hyperedges (
			grp      TEXT NOT NULL,
			app_id   TEXT NOT NULL,
			edge_id  TEXT NOT NULL,
			payload  JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (grp, app_id, edge_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot for the graph's (group, appId) scope
// in a single transaction.
func (s *Store) Save(ctx context.Context, g schemas.Graph) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		// Rolling back after a successful commit reports a closed tx.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("Snapshot rollback failed", zap.Error(rbErr))
		}
	}()

	now := time.Now()
	if _, err := tx.Exec(ctx,
		`DELETE FROM snapshot_nodes WHERE grp = $1 AND app_id = $2;`, g.Group, g.AppID); err != nil {
		return fmt.Errorf("failed to clear node snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM snapshot_hyperedges WHERE grp = $1 AND app_id = $2;`, g.Group, g.AppID); err != nil {
		return fmt.Errorf("failed to clear hyperedge snapshot: %w", err)
	}

	for id, node := range g.Nodes {
		payload, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO snapshot_nodes (grp, app_id, node_id, payload, saved_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (grp, app_id, node_id) DO UPDATE SET
				payload = EXCLUDED.payload,
				saved_at = EXCLUDED.saved_at;
		`, g.Group, g.AppID, id, payload, now); err != nil {
			return fmt.Errorf("failed to store node %s: %w", id, err)
		}
	}
	for id, edge := range g.Hyperedges {
		payload, err := json.Marshal(edge)
		if err != nil {
			return fmt.Errorf("failed to marshal hyperedge %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO snapshot_hyperedges (grp, app_id, edge_id, payload, saved_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (grp, app_id, edge_id) DO UPDATE SET
				payload = EXCLUDED.payload,
				saved_at = EXCLUDED.saved_at;
		`, g.Group, g.AppID, id, payload, now); err != nil {
			return fmt.Errorf("failed to store hyperedge %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.log.Info("Snapshot saved",
		zap.String("group", g.Group),
		zap.String("app_id", g.AppID),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("hyperedges", len(g.Hyperedges)))
	return nil
}

// Load reads the stored snapshot for a (group, appId) scope. A scope
// with no rows yields an empty graph, not an error.
func (s *Store) Load(ctx context.Context, group, appID string) (schemas.Graph, error) {
	g := schemas.Graph{
		Group:      group,
		AppID:      appID,
		Nodes:      make(map[string]schemas.Node),
		Hyperedges: make(map[string]schemas.Hyperedge),
	}

	rows, err := s.db.Query(ctx,
		`SELECT node_id, payload FROM snapshot_nodes WHERE grp = $1 AND app_id = $2;`, group, appID)
	if err != nil {
		return schemas.Graph{}, fmt.Errorf("failed to query node snapshot: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return schemas.Graph{}, fmt.Errorf("failed to scan node row: %w", err)
		}
		var node schemas.Node
		if err := json.Unmarshal(payload, &node); err != nil {
			return schemas.Graph{}, fmt.Errorf("failed to unmarshal node %s: %w", id, err)
		}
		g.Nodes[id] = node
	}
	if err := rows.Err(); err != nil {
		return schemas.Graph{}, fmt.Errorf("node snapshot iteration failed: %w", err)
	}

	edgeRows, err := s.db.Query(ctx,
		`SELECT edge_id, payload FROM snapshot_hyperedges WHERE grp = $1 AND app_id = $2;`, group, appID)
	if err != nil {
		return schemas.Graph{}, fmt.Errorf("failed to query hyperedge snapshot: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var id string
		var payload []byte
		if err := edgeRows.Scan(&id, &payload); err != nil {
			return schemas.Graph{}, fmt.Errorf("failed to scan hyperedge row: %w", err)
		}
		var edge schemas.Hyperedge
		if err := json.Unmarshal(payload, &edge); err != nil {
			return schemas.Graph{}, fmt.Errorf("failed to unmarshal hyperedge %s: %w", id, err)
		}
		g.Hyperedges[id] = edge
	}
	if err := edgeRows.Err(); err != nil {
		return schemas.Graph{}, fmt.Errorf("hyperedge snapshot iteration failed: %w", err)
	}
	return g, nil
}

// Delete removes the stored snapshot for a (group, appId) scope.
func (s *Store) Delete(ctx context.Context, group, appID string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM snapshot_nodes WHERE grp = $1 AND app_id = $2;`, group, appID); err != nil {
		return fmt.Errorf("failed to delete node snapshot: %w", err)
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM snapshot_hyperedges WHERE grp = $1 AND app_id = $2;`, group, appID); err != nil {
		return fmt.Errorf("failed to delete hyperedge snapshot: %w", err)
	}
	return nil
}
