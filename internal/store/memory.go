// Package store provides storage backends for FlowCanvas flow graphs.
//
// This file implements the in-memory repository used for ephemeral sessions
// and as the test double, including fault injection for repository-failure
// paths.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// MemoryRepository is a mutex-guarded, map-backed Repository.
type MemoryRepository struct {
	mu      sync.Mutex
	flows   map[string]models.Flow
	nodes   map[string]models.Node   // options not stored here
	options map[string]models.Option // keyed by option id
	edges   map[string]models.Edge

	failNext error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		flows:   make(map[string]models.Flow),
		nodes:   make(map[string]models.Node),
		options: make(map[string]models.Option),
		edges:   make(map[string]models.Edge),
	}
}

// FailNext makes the next write call return err. Test hook for exercising
// repository-failure handling.
func (r *MemoryRepository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

// takeFailure consumes a pending injected failure. Caller must hold mu.
func (r *MemoryRepository) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

// CreateFlow stores a new flow container.
func (r *MemoryRepository) CreateFlow(f models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	r.flows[f.ID] = f
	return nil
}

// ListFlows returns all flow containers sorted by name.
func (r *MemoryRepository) ListFlows() ([]models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LoadFlow assembles the full graph snapshot for one flow.
func (r *MemoryRepository) LoadFlow(flowID string) (*models.Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", flowID, models.ErrNotFound)
	}
	g := &models.Graph{Flow: f}
	for _, n := range r.nodes {
		if n.FlowID != flowID {
			continue
		}
		n.Options = r.optionsForNode(n.ID)
		g.Nodes = append(g.Nodes, n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	for _, e := range r.edges {
		if e.FlowID == flowID {
			g.Edges = append(g.Edges, e)
		}
	}
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })
	slog.Debug("MemoryRepository.LoadFlow: loaded", "flowID", flowID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// optionsForNode collects a node's options ordered by sort order. Caller
// must hold mu.
func (r *MemoryRepository) optionsForNode(nodeID string) []models.Option {
	var opts []models.Option
	for _, o := range r.options {
		if o.NodeID == nodeID {
			opts = append(opts, o)
		}
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].SortOrder < opts[j].SortOrder })
	return opts
}

// CreateNode stores a node. Inline options are stored individually.
func (r *MemoryRepository) CreateNode(n models.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	for _, o := range n.Options {
		r.options[o.ID] = o
	}
	n.Options = nil
	r.nodes[n.ID] = n
	return nil
}

// UpdateNode replaces a node's scalar fields.
func (r *MemoryRepository) UpdateNode(n models.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.nodes[n.ID]; !ok {
		return fmt.Errorf("node %s: %w", n.ID, models.ErrNotFound)
	}
	n.Options = nil
	r.nodes[n.ID] = n
	return nil
}

// DeleteNode removes a node row. Cascading is the editor's responsibility.
func (r *MemoryRepository) DeleteNode(nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	delete(r.nodes, nodeID)
	return nil
}

// CreateEdge stores an edge.
func (r *MemoryRepository) CreateEdge(e models.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	r.edges[e.ID] = e
	return nil
}

// DeleteEdge removes an edge row.
func (r *MemoryRepository) DeleteEdge(edgeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	delete(r.edges, edgeID)
	return nil
}

// CreateOption stores an option.
func (r *MemoryRepository) CreateOption(o models.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	r.options[o.ID] = o
	return nil
}

// UpdateOption replaces an option.
func (r *MemoryRepository) UpdateOption(o models.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.options[o.ID]; !ok {
		return fmt.Errorf("option %s: %w", o.ID, models.ErrNotFound)
	}
	r.options[o.ID] = o
	return nil
}

// DeleteOption removes an option row.
func (r *MemoryRepository) DeleteOption(optionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	delete(r.options, optionID)
	return nil
}

// ReorderOptions rewrites the sort order of a node's options to match the
// given id order.
func (r *MemoryRepository) ReorderOptions(nodeID string, orderedOptionIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	for i, id := range orderedOptionIDs {
		o, ok := r.options[id]
		if !ok || o.NodeID != nodeID {
			return fmt.Errorf("option %s on node %s: %w", id, nodeID, models.ErrNotFound)
		}
		o.SortOrder = i
		r.options[id] = o
	}
	return nil
}

// BatchUpdatePositions writes node positions.
func (r *MemoryRepository) BatchUpdatePositions(positions []NodePosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	for _, p := range positions {
		n, ok := r.nodes[p.NodeID]
		if !ok {
			continue
		}
		n.Position = models.Position{X: p.X, Y: p.Y}
		r.nodes[p.NodeID] = n
	}
	return nil
}
