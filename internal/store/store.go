// Package store provides storage backends for FlowCanvas flow graphs.
//
// It defines the Repository boundary the editor persists through, with
// in-memory, SQLite and PostgreSQL implementations. The repository preserves
// whatever referential integrity it is given; graph invariants are enforced
// client-side by the editor before writes are issued.
package store

import (
	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// NodePosition is one entry of a batched layout save.
type NodePosition struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Repository is the persistence boundary for flow graphs. All calls are
// keyed by the same ids the editor uses locally.
type Repository interface {
	CreateFlow(f models.Flow) error
	ListFlows() ([]models.Flow, error)
	// LoadFlow returns the flow, its nodes (with options inline, ordered by
	// sort order) and its edges.
	LoadFlow(flowID string) (*models.Graph, error)

	CreateNode(n models.Node) error
	UpdateNode(n models.Node) error
	DeleteNode(nodeID string) error

	CreateEdge(e models.Edge) error
	DeleteEdge(edgeID string) error

	CreateOption(o models.Option) error
	UpdateOption(o models.Option) error
	DeleteOption(optionID string) error
	ReorderOptions(nodeID string, orderedOptionIDs []string) error

	// BatchUpdatePositions persists node positions gathered by an explicit
	// save-layout action.
	BatchUpdatePositions(positions []NodePosition) error
}

// Opts holds configuration for store constructors.
type Opts struct {
	// DSN is the database connection string (file path for SQLite).
	DSN string
}

// Option configures store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
