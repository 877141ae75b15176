// Package store provides storage backends for FlowCanvas flow graphs.
//
// This file implements the PostgreSQL-backed repository.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/FlowCanvas/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Repository backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore: failed to open connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore: ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore: migrations applied")

	return &PostgresStore{db: db}, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("PostgresStore.Close: closing database connection")
	return s.db.Close()
}

// CreateFlow inserts a flow container.
func (s *PostgresStore) CreateFlow(f models.Flow) error {
	_, err := s.db.Exec(`INSERT INTO flows (id, name, is_active, is_default) VALUES ($1, $2, $3, $4)`,
		f.ID, f.Name, f.IsActive, f.IsDefault)
	if err != nil {
		slog.Error("PostgresStore.CreateFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to insert flow %s: %w", f.ID, err)
	}
	return nil
}

// ListFlows returns all flow containers.
func (s *PostgresStore) ListFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT id, name, is_active, is_default FROM flows ORDER BY name`)
	if err != nil {
		slog.Error("PostgresStore.ListFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	return flows, nil
}

// LoadFlow returns the flow with its nodes (options inline) and edges.
func (s *PostgresStore) LoadFlow(flowID string) (*models.Graph, error) {
	row := s.db.QueryRow(`SELECT id, name, is_active, is_default FROM flows WHERE id = $1`, flowID)
	f, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flow %s: %w", flowID, models.ErrNotFound)
	}
	if err != nil {
		slog.Error("PostgresStore.LoadFlow flow query failed", "error", err, "flowID", flowID)
		return nil, err
	}
	g := &models.Graph{Flow: f}

	nodeRows, err := s.db.Query(`
		SELECT id, flow_id, kind, title, message_template, action_kind, action_config,
		       extract_fields, require_extraction, allow_freeform, pos_x, pos_y
		FROM flow_nodes WHERE flow_id = $1 ORDER BY id`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		n, err := scanNode(nodeRows)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node rows: %w", err)
	}

	optRows, err := s.db.Query(`
		SELECT o.id, o.node_id, o.label, o.value, o.sort_order
		FROM flow_options o JOIN flow_nodes n ON n.id = o.node_id
		WHERE n.flow_id = $1 ORDER BY o.node_id, o.sort_order`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		o, err := scanOption(optRows)
		if err != nil {
			return nil, err
		}
		if n, ok := g.NodeByID(o.NodeID); ok {
			n.Options = append(n.Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate option rows: %w", err)
	}

	edgeRows, err := s.db.Query(`
		SELECT id, flow_id, source_node_id, target_node_id, source_option_id, condition_kind, condition_value
		FROM flow_edges WHERE flow_id = $1 ORDER BY id`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		e, err := scanEdge(edgeRows)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edge rows: %w", err)
	}

	slog.Debug("PostgresStore.LoadFlow succeeded", "flowID", flowID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// CreateNode inserts a node and any inline options.
func (s *PostgresStore) CreateNode(n models.Node) error {
	args, err := nodeInsertArgs(n)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO flow_nodes (id, flow_id, kind, title, message_template, action_kind,
		                        action_config, extract_fields, require_extraction, allow_freeform, pos_x, pos_y)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, args...)
	if err != nil {
		slog.Error("PostgresStore.CreateNode failed", "error", err, "nodeID", n.ID)
		return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
	}
	for _, o := range n.Options {
		if err := s.CreateOption(o); err != nil {
			return err
		}
	}
	return nil
}

// UpdateNode rewrites a node's scalar fields.
func (s *PostgresStore) UpdateNode(n models.Node) error {
	args, err := nodeInsertArgs(n)
	if err != nil {
		return err
	}
	args = append(args[1:], n.ID)
	res, err := s.db.Exec(`
		UPDATE flow_nodes SET flow_id = $1, kind = $2, title = $3, message_template = $4, action_kind = $5,
		       action_config = $6, extract_fields = $7, require_extraction = $8, allow_freeform = $9, pos_x = $10, pos_y = $11
		WHERE id = $12`, args...)
	if err != nil {
		slog.Error("PostgresStore.UpdateNode failed", "error", err, "nodeID", n.ID)
		return fmt.Errorf("failed to update node %s: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("node %s: %w", n.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteNode removes a node row.
func (s *PostgresStore) DeleteNode(nodeID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_nodes WHERE id = $1`, nodeID)
	if err != nil {
		slog.Error("PostgresStore.DeleteNode failed", "error", err, "nodeID", nodeID)
		return fmt.Errorf("failed to delete node %s: %w", nodeID, err)
	}
	return nil
}

// CreateEdge inserts an edge.
func (s *PostgresStore) CreateEdge(e models.Edge) error {
	_, err := s.db.Exec(`
		INSERT INTO flow_edges (id, flow_id, source_node_id, target_node_id, source_option_id, condition_kind, condition_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.FlowID, e.SourceNodeID, e.TargetNodeID,
		nilIfEmpty(e.SourceOptionID), nilIfEmpty(string(e.ConditionKind)), nilIfEmpty(e.ConditionValue))
	if err != nil {
		slog.Error("PostgresStore.CreateEdge failed", "error", err, "edgeID", e.ID)
		return fmt.Errorf("failed to insert edge %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEdge removes an edge row.
func (s *PostgresStore) DeleteEdge(edgeID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_edges WHERE id = $1`, edgeID)
	if err != nil {
		slog.Error("PostgresStore.DeleteEdge failed", "error", err, "edgeID", edgeID)
		return fmt.Errorf("failed to delete edge %s: %w", edgeID, err)
	}
	return nil
}

// CreateOption inserts an option.
func (s *PostgresStore) CreateOption(o models.Option) error {
	_, err := s.db.Exec(`INSERT INTO flow_options (id, node_id, label, value, sort_order) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.NodeID, o.Label, o.Value, o.SortOrder)
	if err != nil {
		slog.Error("PostgresStore.CreateOption failed", "error", err, "optionID", o.ID)
		return fmt.Errorf("failed to insert option %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOption rewrites an option.
func (s *PostgresStore) UpdateOption(o models.Option) error {
	res, err := s.db.Exec(`UPDATE flow_options SET label = $1, value = $2, sort_order = $3 WHERE id = $4`,
		o.Label, o.Value, o.SortOrder, o.ID)
	if err != nil {
		slog.Error("PostgresStore.UpdateOption failed", "error", err, "optionID", o.ID)
		return fmt.Errorf("failed to update option %s: %w", o.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("option %s: %w", o.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteOption removes an option row.
func (s *PostgresStore) DeleteOption(optionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_options WHERE id = $1`, optionID)
	if err != nil {
		slog.Error("PostgresStore.DeleteOption failed", "error", err, "optionID", optionID)
		return fmt.Errorf("failed to delete option %s: %w", optionID, err)
	}
	return nil
}

// ReorderOptions rewrites a node's option sort order to match the id order.
func (s *PostgresStore) ReorderOptions(nodeID string, orderedOptionIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}
	for i, id := range orderedOptionIDs {
		if _, err := tx.Exec(`UPDATE flow_options SET sort_order = $1 WHERE id = $2 AND node_id = $3`, i, id, nodeID); err != nil {
			tx.Rollback()
			slog.Error("PostgresStore.ReorderOptions failed", "error", err, "nodeID", nodeID, "optionID", id)
			return fmt.Errorf("failed to reorder option %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// BatchUpdatePositions writes node positions in one transaction.
func (s *PostgresStore) BatchUpdatePositions(positions []NodePosition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin layout transaction: %w", err)
	}
	for _, p := range positions {
		if _, err := tx.Exec(`UPDATE flow_nodes SET pos_x = $1, pos_y = $2 WHERE id = $3`, p.X, p.Y, p.NodeID); err != nil {
			tx.Rollback()
			slog.Error("PostgresStore.BatchUpdatePositions failed", "error", err, "nodeID", p.NodeID)
			return fmt.Errorf("failed to update position for %s: %w", p.NodeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layout: %w", err)
	}
	slog.Debug("PostgresStore.BatchUpdatePositions succeeded", "count", len(positions))
	return nil
}
