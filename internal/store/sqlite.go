// Package store provides storage backends for FlowCanvas flow graphs.
//
// This file implements the SQLite-backed repository.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/FlowCanvas/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Repository backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore: failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore: ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("SQLiteStore.Close: closing database connection")
	return s.db.Close()
}

// CreateFlow inserts a flow container.
func (s *SQLiteStore) CreateFlow(f models.Flow) error {
	_, err := s.db.Exec(`INSERT INTO flows (id, name, is_active, is_default) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.IsActive, f.IsDefault)
	if err != nil {
		slog.Error("SQLiteStore.CreateFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to insert flow %s: %w", f.ID, err)
	}
	slog.Debug("SQLiteStore.CreateFlow succeeded", "flowID", f.ID)
	return nil
}

// ListFlows returns all flow containers.
func (s *SQLiteStore) ListFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT id, name, is_active, is_default FROM flows ORDER BY name`)
	if err != nil {
		slog.Error("SQLiteStore.ListFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListFlows scan failed", "error", err)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListFlows succeeded", "count", len(flows))
	return flows, nil
}

// LoadFlow returns the flow with its nodes (options inline) and edges.
func (s *SQLiteStore) LoadFlow(flowID string) (*models.Graph, error) {
	row := s.db.QueryRow(`SELECT id, name, is_active, is_default FROM flows WHERE id = ?`, flowID)
	f, err := scanFlow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flow %s: %w", flowID, models.ErrNotFound)
	}
	if err != nil {
		slog.Error("SQLiteStore.LoadFlow flow query failed", "error", err, "flowID", flowID)
		return nil, err
	}
	g := &models.Graph{Flow: f}

	nodeRows, err := s.db.Query(`
		SELECT id, flow_id, kind, title, message_template, action_kind, action_config,
		       extract_fields, require_extraction, allow_freeform, pos_x, pos_y
		FROM flow_nodes WHERE flow_id = ? ORDER BY id`, flowID)
	if err != nil {
		slog.Error("SQLiteStore.LoadFlow node query failed", "error", err, "flowID", flowID)
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
		WHERE n.flow_id = ? ORDER BY o.node_id, o.sort_order`, flowID)
	if err != nil {
		slog.Error("SQLiteStore.LoadFlow option query failed", "error", err, "flowID", flowID)
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
		FROM flow_edges WHERE flow_id = ? ORDER BY id`, flowID)
	if err != nil {
		slog.Error("SQLiteStore.LoadFlow edge query failed", "error", err, "flowID", flowID)
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

	slog.Debug("SQLiteStore.LoadFlow succeeded", "flowID", flowID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// CreateNode inserts a node and any inline options.
func (s *SQLiteStore) CreateNode(n models.Node) error {
	args, err := nodeInsertArgs(n)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO flow_nodes (id, flow_id, kind, title, message_template, action_kind,
		                        action_config, extract_fields, require_extraction, allow_freeform, pos_x, pos_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		slog.Error("SQLiteStore.CreateNode failed", "error", err, "nodeID", n.ID)
		return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
	}
	for _, o := range n.Options {
		if err := s.CreateOption(o); err != nil {
			return err
		}
	}
	slog.Debug("SQLiteStore.CreateNode succeeded", "nodeID", n.ID, "kind", n.Kind)
	return nil
}

// UpdateNode rewrites a node's scalar fields.
func (s *SQLiteStore) UpdateNode(n models.Node) error {
	args, err := nodeInsertArgs(n)
	if err != nil {
		return err
	}
	// Shift id to the WHERE position.
	args = append(args[1:], n.ID)
	res, err := s.db.Exec(`
		UPDATE flow_nodes SET flow_id = ?, kind = ?, title = ?, message_template = ?, action_kind = ?,
		       action_config = ?, extract_fields = ?, require_extraction = ?, allow_freeform = ?, pos_x = ?, pos_y = ?
		WHERE id = ?`, args...)
	if err != nil {
		slog.Error("SQLiteStore.UpdateNode failed", "error", err, "nodeID", n.ID)
		return fmt.Errorf("failed to update node %s: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("node %s: %w", n.ID, models.ErrNotFound)
	}
	slog.Debug("SQLiteStore.UpdateNode succeeded", "nodeID", n.ID)
	return nil
}

// DeleteNode removes a node row.
func (s *SQLiteStore) DeleteNode(nodeID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_nodes WHERE id = ?`, nodeID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteNode failed", "error", err, "nodeID", nodeID)
		return fmt.Errorf("failed to delete node %s: %w", nodeID, err)
	}
	slog.Debug("SQLiteStore.DeleteNode succeeded", "nodeID", nodeID)
	return nil
}

// CreateEdge inserts an edge.
func (s *SQLiteStore) CreateEdge(e models.Edge) error {
	_, err := s.db.Exec(`
		INSERT INTO flow_edges (id, flow_id, source_node_id, target_node_id, source_option_id, condition_kind, condition_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FlowID, e.SourceNodeID, e.TargetNodeID,
		nilIfEmpty(e.SourceOptionID), nilIfEmpty(string(e.ConditionKind)), nilIfEmpty(e.ConditionValue))
	if err != nil {
		slog.Error("SQLiteStore.CreateEdge failed", "error", err, "edgeID", e.ID)
		return fmt.Errorf("failed to insert edge %s: %w", e.ID, err)
	}
	slog.Debug("SQLiteStore.CreateEdge succeeded", "edgeID", e.ID)
	return nil
}

// DeleteEdge removes an edge row.
func (s *SQLiteStore) DeleteEdge(edgeID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_edges WHERE id = ?`, edgeID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteEdge failed", "error", err, "edgeID", edgeID)
		return fmt.Errorf("failed to delete edge %s: %w", edgeID, err)
	}
	slog.Debug("SQLiteStore.DeleteEdge succeeded", "edgeID", edgeID)
	return nil
}

// CreateOption inserts an option.
func (s *SQLiteStore) CreateOption(o models.Option) error {
	_, err := s.db.Exec(`INSERT INTO flow_options (id, node_id, label, value, sort_order) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.NodeID, o.Label, o.Value, o.SortOrder)
	if err != nil {
		slog.Error("SQLiteStore.CreateOption failed", "error", err, "optionID", o.ID)
		return fmt.Errorf("failed to insert option %s: %w", o.ID, err)
	}
	slog.Debug("SQLiteStore.CreateOption succeeded", "optionID", o.ID)
	return nil
}

// UpdateOption rewrites an option.
func (s *SQLiteStore) UpdateOption(o models.Option) error {
	res, err := s.db.Exec(`UPDATE flow_options SET label = ?, value = ?, sort_order = ? WHERE id = ?`,
		o.Label, o.Value, o.SortOrder, o.ID)
	if err != nil {
		slog.Error("SQLiteStore.UpdateOption failed", "error", err, "optionID", o.ID)
		return fmt.Errorf("failed to update option %s: %w", o.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("option %s: %w", o.ID, models.ErrNotFound)
	}
	slog.Debug("SQLiteStore.UpdateOption succeeded", "optionID", o.ID)
	return nil
}

// DeleteOption removes an option row.
func (s *SQLiteStore) DeleteOption(optionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_options WHERE id = ?`, optionID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteOption failed", "error", err, "optionID", optionID)
		return fmt.Errorf("failed to delete option %s: %w", optionID, err)
	}
	slog.Debug("SQLiteStore.DeleteOption succeeded", "optionID", optionID)
	return nil
}

// ReorderOptions rewrites a node's option sort order to match the id order.
func (s *SQLiteStore) ReorderOptions(nodeID string, orderedOptionIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}
	for i, id := range orderedOptionIDs {
		if _, err := tx.Exec(`UPDATE flow_options SET sort_order = ? WHERE id = ? AND node_id = ?`, i, id, nodeID); err != nil {
			tx.Rollback()
			slog.Error("SQLiteStore.ReorderOptions failed", "error", err, "nodeID", nodeID, "optionID", id)
			return fmt.Errorf("failed to reorder option %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	slog.Debug("SQLiteStore.ReorderOptions succeeded", "nodeID", nodeID, "count", len(orderedOptionIDs))
	return nil
}

// BatchUpdatePositions writes node positions in one transaction.
func (s *SQLiteStore) BatchUpdatePositions(positions []NodePosition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin layout transaction: %w", err)
	}
	for _, p := range positions {
		if _, err := tx.Exec(`UPDATE flow_nodes SET pos_x = ?, pos_y = ? WHERE id = ?`, p.X, p.Y, p.NodeID); err != nil {
			tx.Rollback()
			slog.Error("SQLiteStore.BatchUpdatePositions failed", "error", err, "nodeID", p.NodeID)
			return fmt.Errorf("failed to update position for %s: %w", p.NodeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layout: %w", err)
	}
	slog.Debug("SQLiteStore.BatchUpdatePositions succeeded", "count", len(positions))
	return nil
}
