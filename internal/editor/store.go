// Package editor implements the interactive editing session.
//
// GraphStore holds the in-memory authoritative copy of one flow's graph.
// Every mutation validates its preconditions, commits locally, and queues
// the matching repository write; structural violations are rejected before
// any state changes, while repository failures surface after the fact
// through the error handler (no automatic rollback).
package editor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/FlowCanvas/internal/models"
	"github.com/BTreeMap/FlowCanvas/internal/store"
	"github.com/BTreeMap/FlowCanvas/internal/util"
)

// duplicateOffset shifts a duplicated node so it doesn't cover the original.
const duplicateOffset = 32

// AvailabilitySlot is one auto-assignable condition for an edge leaving an
// availability-check action node.
type AvailabilitySlot struct {
	Kind  models.ConditionKind
	Value string
}

// DefaultAvailabilitySlotOrder is the first-available-slot policy applied
// when connecting availability action nodes: available, then unavailable,
// then a catch-all fallback. Configurable pending product confirmation.
var DefaultAvailabilitySlotOrder = []AvailabilitySlot{
	{Kind: models.ConditionAvailability, Value: models.AvailabilityAvailable},
	{Kind: models.ConditionAvailability, Value: models.AvailabilityUnavailable},
	{Kind: models.ConditionFallback},
}

// defaultTitles derives a new node's title from its kind.
var defaultTitles = map[models.NodeKind]string{
	models.NodeKindStart:     "Start",
	models.NodeKindMessage:   "New message",
	models.NodeKindQuestion:  "New question",
	models.NodeKindAction:    "New action",
	models.NodeKindCondition: "New condition",
	models.NodeKindEnd:       "End",
	models.NodeKindDelay:     "Delay",
	models.NodeKindTimer:     "Response timer",
}

// GraphStore is the editing session over one flow graph.
type GraphStore struct {
	mu          sync.Mutex
	graph       *models.Graph
	queue       *writeQueue
	undo        *UndoStack
	slotOrder   []AvailabilitySlot
	dirtyLayout bool
}

// GraphStoreOption configures a GraphStore.
type GraphStoreOption func(*graphStoreOpts)

type graphStoreOpts struct {
	slotOrder []AvailabilitySlot
	undoLimit int
	onError   WriteErrorHandler
}

// WithAvailabilitySlotOrder overrides the availability edge auto-assignment
// policy.
func WithAvailabilitySlotOrder(order []AvailabilitySlot) GraphStoreOption {
	return func(o *graphStoreOpts) { o.slotOrder = order }
}

// WithUndoLimit overrides the undo stack depth.
func WithUndoLimit(n int) GraphStoreOption {
	return func(o *graphStoreOpts) { o.undoLimit = n }
}

// WithWriteErrorHandler registers the callback notified when a queued
// repository write fails.
func WithWriteErrorHandler(fn WriteErrorHandler) GraphStoreOption {
	return func(o *graphStoreOpts) { o.onError = fn }
}

// NewGraphStore loads the flow from the repository and opens an editing
// session over it.
func NewGraphStore(repo store.Repository, flowID string, opts ...GraphStoreOption) (*GraphStore, error) {
	var cfg graphStoreOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	graph, err := repo.LoadFlow(flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	if cfg.slotOrder == nil {
		cfg.slotOrder = DefaultAvailabilitySlotOrder
	}
	slog.Info("GraphStore: session opened", "flowID", flowID, "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return &GraphStore{
		graph:     graph,
		queue:     newWriteQueue(repo, cfg.onError),
		undo:      NewUndoStack(cfg.undoLimit),
		slotOrder: cfg.slotOrder,
	}, nil
}

// Close discards the session, stopping the write queue after draining
// already-queued writes. In-flight repository writes are not awaited beyond
// that and never rolled back.
func (s *GraphStore) Close() {
	s.queue.close()
	slog.Info("GraphStore: session closed", "flowID", s.graph.Flow.ID)
}

// Flush blocks until all queued repository writes have been attempted.
// Intended for tests and explicit save points, not the editing hot path.
func (s *GraphStore) Flush() { s.queue.flush() }

// PendingWrites reports how many repository writes are queued or in flight.
func (s *GraphStore) PendingWrites() int { return s.queue.pendingWrites() }

// DirtyLayout reports whether node moves have not been persisted yet.
func (s *GraphStore) DirtyLayout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLayout
}

// Snapshot returns a deep copy of the graph, frozen for simulation.
func (s *GraphStore) Snapshot() *models.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// UndoDepth reports how many destructive actions can currently be undone.
func (s *GraphStore) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undo.Len()
}

// AddNode creates a node of the given kind at the given position, with a
// default title derived from the kind. Timer nodes atomically receive their
// fixed responded/timeout option pair.
func (s *GraphStore) AddNode(kind models.NodeKind, pos models.Position) (models.Node, error) {
	if !models.IsValidNodeKind(kind) {
		return models.Node{}, fmt.Errorf("add node: %w: %s", models.ErrInvalidKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == models.NodeKindStart {
		if _, exists := s.graph.StartNode(); exists {
			return models.Node{}, fmt.Errorf("add node: %w", models.ErrDuplicateStart)
		}
	}

	node := models.Node{
		ID:       util.GenerateNodeID(),
		FlowID:   s.graph.Flow.ID,
		Kind:     kind,
		Title:    defaultTitles[kind],
		Position: pos,
	}
	if kind == models.NodeKindTimer {
		node.Options = []models.Option{
			{ID: util.GenerateOptionID(), NodeID: node.ID, Label: "Responded", Value: models.TimerOptionResponded, SortOrder: 0},
			{ID: util.GenerateOptionID(), NodeID: node.ID, Label: "Timed out", Value: models.TimerOptionTimeout, SortOrder: 1},
		}
	}

	s.graph.Nodes = append(s.graph.Nodes, node)
	created := node
	s.queue.enqueue("create node", func(r store.Repository) error {
		return r.CreateNode(created)
	})
	slog.Debug("GraphStore.AddNode: node created", "nodeID", node.ID, "kind", kind)
	return node, nil
}

// DuplicateNode deep-copies a node's scalar fields and options under new
// ids. Incoming and outgoing edges are not copied.
func (s *GraphStore) DuplicateNode(nodeID string) (models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return models.Node{}, fmt.Errorf("duplicate node %s: %w", nodeID, models.ErrNotFound)
	}
	if src.Kind == models.NodeKindStart {
		// A second start node would break the uniqueness invariant.
		return models.Node{}, fmt.Errorf("duplicate node %s: %w", nodeID, models.ErrDuplicateStart)
	}

	cp := *src
	cp.ID = util.GenerateNodeID()
	cp.Title = src.Title + " (copy)"
	cp.Position = models.Position{X: src.Position.X + duplicateOffset, Y: src.Position.Y + duplicateOffset}
	cp.ExtractFields = append([]string(nil), src.ExtractFields...)
	cp.Options = make([]models.Option, len(src.Options))
	for i, opt := range src.Options {
		opt.ID = util.GenerateOptionID()
		opt.NodeID = cp.ID
		cp.Options[i] = opt
	}

	s.graph.Nodes = append(s.graph.Nodes, cp)
	created := cp
	s.queue.enqueue("duplicate node", func(r store.Repository) error {
		return r.CreateNode(created)
	})
	slog.Debug("GraphStore.DuplicateNode: node duplicated", "sourceID", nodeID, "nodeID", cp.ID)
	return cp, nil
}

// NodeUpdate carries the partial field edits UpdateNode merges. Nil pointers
// leave fields untouched; Kind may not change after creation.
type NodeUpdate struct {
	Kind                        *models.NodeKind
	Title                       *string
	MessageTemplate             *string
	ActionKind                  *models.ActionKind
	ActionConfig                models.ActionConfig
	ExtractFields               *[]string
	RequireExtraction           *bool
	AllowFreeformInterpretation *bool
}

// UpdateNode merges partial field edits into a node.
func (s *GraphStore) UpdateNode(nodeID string, upd NodeUpdate) (models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return models.Node{}, fmt.Errorf("update node %s: %w", nodeID, models.ErrNotFound)
	}
	if upd.Kind != nil && *upd.Kind != node.Kind {
		return models.Node{}, fmt.Errorf("update node %s: %w", nodeID, models.ErrKindImmutable)
	}
	if upd.ActionKind != nil && *upd.ActionKind != "" && !models.IsValidActionKind(*upd.ActionKind) {
		return models.Node{}, fmt.Errorf("update node %s: %w: %s", nodeID, models.ErrInvalidKind, *upd.ActionKind)
	}

	if upd.Title != nil {
		node.Title = *upd.Title
	}
	if upd.MessageTemplate != nil {
		node.MessageTemplate = *upd.MessageTemplate
	}
	if upd.ActionKind != nil {
		node.ActionKind = *upd.ActionKind
	}
	if upd.ActionConfig != nil {
		node.ActionConfig = upd.ActionConfig
	}
	if upd.ExtractFields != nil {
		node.ExtractFields = append([]string(nil), (*upd.ExtractFields)...)
	}
	if upd.RequireExtraction != nil {
		node.RequireExtraction = *upd.RequireExtraction
	}
	if upd.AllowFreeformInterpretation != nil {
		node.AllowFreeformInterpretation = *upd.AllowFreeformInterpretation
	}

	updated := *node
	updated.Options = nil
	s.queue.enqueue("update node", func(r store.Repository) error {
		return r.UpdateNode(updated)
	})
	slog.Debug("GraphStore.UpdateNode: node updated", "nodeID", nodeID)
	return *node, nil
}

// DeleteNode removes a node with full cascade: every touching edge and all
// of its options go in the same logical operation, captured as one undo
// record. The unique start node is protected.
func (s *GraphStore) DeleteNode(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("delete node %s: %w", nodeID, models.ErrNotFound)
	}
	if node.Kind == models.NodeKindStart {
		return fmt.Errorf("delete node %s: %w", nodeID, models.ErrProtectedNode)
	}

	plan, _ := gatherNodeDelete(s.graph, nodeID)
	s.undo.Push(UndoRecord{Kind: UndoDeleteNode, Node: plan.node, Options: plan.options, Edges: plan.edges})
	plan.apply(s.graph)

	edges := plan.edges
	options := plan.options
	s.queue.enqueue("delete node", func(r store.Repository) error {
		for _, e := range edges {
			if err := r.DeleteEdge(e.ID); err != nil {
				return err
			}
		}
		for _, o := range options {
			if err := r.DeleteOption(o.ID); err != nil {
				return err
			}
		}
		return r.DeleteNode(nodeID)
	})
	slog.Info("GraphStore.DeleteNode: node deleted with cascade", "nodeID", nodeID, "edges", len(edges), "options", len(options))
	return nil
}

// MoveNode updates a node's canvas position locally and marks the layout
// dirty. Positions persist only through SaveLayout.
func (s *GraphStore) MoveNode(nodeID string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("move node %s: %w", nodeID, models.ErrNotFound)
	}
	node.Position = models.Position{X: x, Y: y}
	s.dirtyLayout = true
	return nil
}

// SaveLayout batches all current node positions into one repository write
// and clears the dirty flag.
func (s *GraphStore) SaveLayout() {
	s.mu.Lock()
	positions := make([]store.NodePosition, 0, len(s.graph.Nodes))
	for _, n := range s.graph.Nodes {
		positions = append(positions, store.NodePosition{NodeID: n.ID, X: n.Position.X, Y: n.Position.Y})
	}
	s.dirtyLayout = false
	s.mu.Unlock()

	s.queue.enqueue("save layout", func(r store.Repository) error {
		return r.BatchUpdatePositions(positions)
	})
	slog.Debug("GraphStore.SaveLayout: layout queued", "positions", len(positions))
}

// AddEdge creates a transition from source to target, optionally keyed on a
// source option. The condition is auto-assigned: option edges match their
// option, timer options produce timeout conditions, availability action
// nodes follow the configured slot policy, and plain node-level edges become
// the fallback.
func (s *GraphStore) AddEdge(sourceNodeID, targetNodeID, sourceOptionID string) (models.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sourceNodeID == targetNodeID {
		return models.Edge{}, fmt.Errorf("add edge: %w", models.ErrSelfLoop)
	}
	source, ok := s.graph.NodeByID(sourceNodeID)
	if !ok {
		return models.Edge{}, fmt.Errorf("add edge: source %s: %w", sourceNodeID, models.ErrNotFound)
	}
	if _, ok := s.graph.NodeByID(targetNodeID); !ok {
		return models.Edge{}, fmt.Errorf("add edge: target %s: %w", targetNodeID, models.ErrNotFound)
	}

	var sourceOption *models.Option
	if sourceOptionID != "" {
		opt, ok := source.OptionByID(sourceOptionID)
		if !ok {
			return models.Edge{}, fmt.Errorf("add edge: option %s on node %s: %w", sourceOptionID, sourceNodeID, models.ErrNotFound)
		}
		sourceOption = &opt
	}

	for _, e := range s.graph.Edges {
		if e.SourceNodeID == sourceNodeID && e.TargetNodeID == targetNodeID && e.SourceOptionID == sourceOptionID {
			return models.Edge{}, fmt.Errorf("add edge: %w", models.ErrDuplicateEdge)
		}
		if sourceOptionID != "" && e.SourceNodeID == sourceNodeID && e.SourceOptionID == sourceOptionID {
			return models.Edge{}, fmt.Errorf("add edge: option already connected: %w", models.ErrDuplicateEdge)
		}
	}

	edge := models.Edge{
		ID:             util.GenerateEdgeID(),
		FlowID:         s.graph.Flow.ID,
		SourceNodeID:   sourceNodeID,
		TargetNodeID:   targetNodeID,
		SourceOptionID: sourceOptionID,
	}
	switch {
	case sourceOption != nil && source.Kind == models.NodeKindTimer:
		edge.ConditionKind = models.ConditionTimeout
		edge.ConditionValue = sourceOption.Value
	case sourceOption != nil:
		edge.ConditionKind = models.ConditionOptionSelected
		edge.ConditionValue = sourceOption.Value
	case source.Kind == models.NodeKindAction && source.ActionKind.ProducesAvailability():
		slot, ok := s.nextAvailabilitySlot(sourceNodeID)
		if !ok {
			return models.Edge{}, fmt.Errorf("add edge: availability slots exhausted: %w", models.ErrDuplicateEdge)
		}
		edge.ConditionKind = slot.Kind
		edge.ConditionValue = slot.Value
	default:
		if s.hasFallback(sourceNodeID) {
			return models.Edge{}, fmt.Errorf("add edge: fallback already present: %w", models.ErrDuplicateEdge)
		}
		edge.ConditionKind = models.ConditionFallback
	}

	s.graph.Edges = append(s.graph.Edges, edge)
	created := edge
	s.queue.enqueue("create edge", func(r store.Repository) error {
		return r.CreateEdge(created)
	})
	slog.Debug("GraphStore.AddEdge: edge created", "edgeID", edge.ID, "condition", edge.ConditionKind, "value", edge.ConditionValue)
	return edge, nil
}

// UpdateEdgeCondition rewrites an edge's condition, used to turn a node-level
// edge into a keyword match or back into a fallback. Per-option edges keep
// their assigned condition.
func (s *GraphStore) UpdateEdgeCondition(edgeID string, kind models.ConditionKind, value string) (models.Edge, error) {
	if !models.IsValidConditionKind(kind) {
		return models.Edge{}, fmt.Errorf("update edge %s: %w: %s", edgeID, models.ErrInvalidKind, kind)
	}
	if kind == models.ConditionOptionSelected {
		// Option conditions only exist on per-option edges, which AddEdge assigns.
		return models.Edge{}, fmt.Errorf("update edge %s: %w: %s requires a source option", edgeID, models.ErrInvalidKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.graph.EdgeByID(edgeID)
	if !ok {
		return models.Edge{}, fmt.Errorf("update edge %s: %w", edgeID, models.ErrNotFound)
	}
	if edge.SourceOptionID != "" {
		return models.Edge{}, fmt.Errorf("update edge %s: per-option edges have fixed conditions: %w", edgeID, models.ErrDuplicateEdge)
	}
	if (kind == models.ConditionFallback || kind == models.ConditionNone) && !edge.IsFallback() && s.hasFallback(edge.SourceNodeID) {
		return models.Edge{}, fmt.Errorf("update edge %s: fallback already present: %w", edgeID, models.ErrDuplicateEdge)
	}
	if kind == models.ConditionAvailability {
		for _, e := range s.graph.Edges {
			if e.ID != edge.ID && e.SourceNodeID == edge.SourceNodeID &&
				e.ConditionKind == kind && e.ConditionValue == value {
				return models.Edge{}, fmt.Errorf("update edge %s: availability slot %q taken: %w", edgeID, value, models.ErrDuplicateEdge)
			}
		}
	}

	edge.ConditionKind = kind
	edge.ConditionValue = value

	// The repository has no edge update; recreate under the same id.
	updated := *edge
	s.queue.enqueue("update edge", func(r store.Repository) error {
		if err := r.DeleteEdge(updated.ID); err != nil {
			return err
		}
		return r.CreateEdge(updated)
	})
	slog.Debug("GraphStore.UpdateEdgeCondition: condition updated", "edgeID", edgeID, "kind", kind, "value", value)
	return *edge, nil
}

// DeleteEdge removes an edge, capturing it for undo.
func (s *GraphStore) DeleteEdge(edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.graph.EdgeByID(edgeID)
	if !ok {
		return fmt.Errorf("delete edge %s: %w", edgeID, models.ErrNotFound)
	}
	s.undo.Push(UndoRecord{Kind: UndoDeleteEdge, Edges: []models.Edge{*edge}})

	plan := deletePlan{edges: []models.Edge{*edge}}
	plan.apply(s.graph)
	s.queue.enqueue("delete edge", func(r store.Repository) error {
		return r.DeleteEdge(edgeID)
	})
	slog.Debug("GraphStore.DeleteEdge: edge deleted", "edgeID", edgeID)
	return nil
}

// AddOption appends a selectable option to a node with the next sort order.
// Timer nodes keep their fixed pair.
func (s *GraphStore) AddOption(nodeID, label, value string) (models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return models.Option{}, fmt.Errorf("add option: node %s: %w", nodeID, models.ErrNotFound)
	}
	if node.Kind == models.NodeKindTimer {
		return models.Option{}, fmt.Errorf("add option: node %s: %w", nodeID, models.ErrTimerOptionsFixed)
	}

	next := 0
	for _, o := range node.Options {
		if o.SortOrder >= next {
			next = o.SortOrder + 1
		}
	}
	opt := models.Option{
		ID:        util.GenerateOptionID(),
		NodeID:    nodeID,
		Label:     label,
		Value:     value,
		SortOrder: next,
	}
	node.Options = append(node.Options, opt)

	created := opt
	s.queue.enqueue("create option", func(r store.Repository) error {
		return r.CreateOption(created)
	})
	slog.Debug("GraphStore.AddOption: option created", "optionID", opt.ID, "nodeID", nodeID)
	return opt, nil
}

// OptionUpdate carries partial option edits.
type OptionUpdate struct {
	Label *string
	Value *string
}

// UpdateOption merges partial edits into an option. The machine values of a
// timer node's fixed pair cannot change.
func (s *GraphStore) UpdateOption(optionID string, upd OptionUpdate) (models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, opt, ok := s.graph.OptionOwner(optionID)
	if !ok {
		return models.Option{}, fmt.Errorf("update option %s: %w", optionID, models.ErrNotFound)
	}
	if upd.Value != nil && *upd.Value != opt.Value && node.Kind == models.NodeKindTimer {
		return models.Option{}, fmt.Errorf("update option %s: %w", optionID, models.ErrTimerOptionsFixed)
	}

	if upd.Label != nil {
		opt.Label = *upd.Label
	}
	if upd.Value != nil {
		opt.Value = *upd.Value
	}

	updated := *opt
	s.queue.enqueue("update option", func(r store.Repository) error {
		return r.UpdateOption(updated)
	})
	slog.Debug("GraphStore.UpdateOption: option updated", "optionID", optionID)
	return *opt, nil
}

// DeleteOption removes an option and cascades to any edge keyed on it, as a
// single reversible unit. Timer options cannot be removed.
func (s *GraphStore) DeleteOption(optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, _, ok := s.graph.OptionOwner(optionID)
	if !ok {
		return fmt.Errorf("delete option %s: %w", optionID, models.ErrNotFound)
	}
	if node.Kind == models.NodeKindTimer {
		return fmt.Errorf("delete option %s: %w", optionID, models.ErrTimerOptionsFixed)
	}

	plan, _ := gatherOptionDelete(s.graph, optionID)
	s.undo.Push(UndoRecord{Kind: UndoDeleteOption, Options: plan.options, Edges: plan.edges})
	plan.apply(s.graph)

	edges := plan.edges
	s.queue.enqueue("delete option", func(r store.Repository) error {
		for _, e := range edges {
			if err := r.DeleteEdge(e.ID); err != nil {
				return err
			}
		}
		return r.DeleteOption(optionID)
	})
	slog.Debug("GraphStore.DeleteOption: option deleted with cascade", "optionID", optionID, "edges", len(edges))
	return nil
}

// ReorderOptions re-derives contiguous sort order from the given id order.
// The id set must exactly match the node's current options.
func (s *GraphStore) ReorderOptions(nodeID string, orderedOptionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		return fmt.Errorf("reorder options: node %s: %w", nodeID, models.ErrNotFound)
	}
	if node.Kind == models.NodeKindTimer {
		return fmt.Errorf("reorder options: node %s: %w", nodeID, models.ErrTimerOptionsFixed)
	}
	if len(orderedOptionIDs) != len(node.Options) {
		return fmt.Errorf("reorder options: node %s: %w", nodeID, models.ErrSetMismatch)
	}
	current := make(map[string]bool, len(node.Options))
	for _, o := range node.Options {
		current[o.ID] = true
	}
	for _, id := range orderedOptionIDs {
		if !current[id] {
			return fmt.Errorf("reorder options: unknown option %s: %w", id, models.ErrSetMismatch)
		}
		delete(current, id)
	}

	reordered := make([]models.Option, 0, len(node.Options))
	for i, id := range orderedOptionIDs {
		opt, _ := node.OptionByID(id)
		opt.SortOrder = i
		reordered = append(reordered, opt)
	}
	node.Options = reordered

	ids := append([]string(nil), orderedOptionIDs...)
	s.queue.enqueue("reorder options", func(r store.Repository) error {
		return r.ReorderOptions(nodeID, ids)
	})
	slog.Debug("GraphStore.ReorderOptions: options reordered", "nodeID", nodeID, "count", len(ids))
	return nil
}

// Undo replays the inverse of the most recent destructive mutation,
// re-creating the captured entities locally and through the repository so
// the reversal is itself persisted. Returns false when there is nothing to
// undo.
func (s *GraphStore) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.undo.Pop()
	if !ok {
		slog.Debug("GraphStore.Undo: nothing to undo")
		return false
	}

	switch record.Kind {
	case UndoDeleteNode:
		node := *record.Node
		s.graph.Nodes = append(s.graph.Nodes, node)
		created := node
		s.queue.enqueue("undo delete node", func(r store.Repository) error {
			return r.CreateNode(created)
		})
	case UndoDeleteOption:
		for _, opt := range record.Options {
			if node, ok := s.graph.NodeByID(opt.NodeID); ok {
				node.Options = append(node.Options, opt)
			}
			created := opt
			s.queue.enqueue("undo delete option", func(r store.Repository) error {
				return r.CreateOption(created)
			})
		}
	}
	for _, edge := range record.Edges {
		s.graph.Edges = append(s.graph.Edges, edge)
		created := edge
		s.queue.enqueue("undo delete edge", func(r store.Repository) error {
			return r.CreateEdge(created)
		})
	}
	slog.Info("GraphStore.Undo: restored", "kind", record.Kind, "edges", len(record.Edges))
	return true
}

// nextAvailabilitySlot returns the first policy slot not yet used by edges
// leaving the node. Caller must hold mu.
func (s *GraphStore) nextAvailabilitySlot(nodeID string) (AvailabilitySlot, bool) {
	for _, slot := range s.slotOrder {
		taken := false
		for _, e := range s.graph.Edges {
			if e.SourceNodeID != nodeID {
				continue
			}
			if slot.Kind == models.ConditionFallback && e.IsFallback() {
				taken = true
				break
			}
			if e.ConditionKind == slot.Kind && e.ConditionValue == slot.Value {
				taken = true
				break
			}
		}
		if !taken {
			return slot, true
		}
	}
	return AvailabilitySlot{}, false
}

// hasFallback reports whether the node already has a node-level fallback
// edge. Caller must hold mu.
func (s *GraphStore) hasFallback(nodeID string) bool {
	for _, e := range s.graph.Edges {
		if e.SourceNodeID == nodeID && e.IsFallback() {
			return true
		}
	}
	return false
}
