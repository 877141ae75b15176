// Package models defines the core data structures for FlowCanvas.
//
// This file defines the graph container and its structural invariants.
package models

import (
	"fmt"
)

// Graph is a complete snapshot of one flow: the container plus its node and
// edge sets. Options live inline on their owning nodes.
type Graph struct {
	Flow  Flow   `json:"flow"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EdgeByID returns the edge with the given id.
func (g *Graph) EdgeByID(id string) (*Edge, bool) {
	for i := range g.Edges {
		if g.Edges[i].ID == id {
			return &g.Edges[i], true
		}
	}
	return nil, false
}

// StartNode returns the flow's unique start node.
func (g *Graph) StartNode() (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == NodeKindStart {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EdgesFrom returns all edges whose source is the given node, in stored order.
func (g *Graph) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// OptionOwner returns the node owning the option with the given id.
func (g *Graph) OptionOwner(optionID string) (*Node, *Option, bool) {
	for i := range g.Nodes {
		for j := range g.Nodes[i].Options {
			if g.Nodes[i].Options[j].ID == optionID {
				return &g.Nodes[i], &g.Nodes[i].Options[j], true
			}
		}
	}
	return nil, nil, false
}

// Clone returns a deep copy of the graph, safe to hand to a simulator while
// the original keeps mutating.
func (g *Graph) Clone() *Graph {
	out := &Graph{Flow: g.Flow}
	out.Nodes = make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		cp := n
		if n.Options != nil {
			cp.Options = make([]Option, len(n.Options))
			copy(cp.Options, n.Options)
		}
		if n.ExtractFields != nil {
			cp.ExtractFields = make([]string, len(n.ExtractFields))
			copy(cp.ExtractFields, n.ExtractFields)
		}
		out.Nodes[i] = cp
	}
	out.Edges = make([]Edge, len(g.Edges))
	copy(out.Edges, g.Edges)
	return out
}

// Validate asserts the structural invariants of the graph: exactly one start
// node with no inbound edges, referential integrity of edges and options,
// per-option edge uniqueness, a single fallback per source node, the timer
// option pair, and availability edge limits.
func (g *Graph) Validate() error {
	nodes := make(map[string]*Node, len(g.Nodes))
	starts := 0
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !IsValidNodeKind(n.Kind) {
			return fmt.Errorf("node %s: %w: %s", n.ID, ErrInvalidKind, n.Kind)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		nodes[n.ID] = n
		if n.Kind == NodeKindStart {
			starts++
		}
		if n.Kind == NodeKindTimer {
			if err := validateTimerOptions(n); err != nil {
				return err
			}
		}
		for _, opt := range n.Options {
			if opt.NodeID != n.ID {
				return fmt.Errorf("option %s: owner mismatch (%s != %s)", opt.ID, opt.NodeID, n.ID)
			}
		}
	}
	if starts != 1 {
		return fmt.Errorf("flow %s: expected exactly one start node, found %d", g.Flow.ID, starts)
	}

	perOption := make(map[string]bool)
	fallbacks := make(map[string]bool)
	availability := make(map[string]map[string]bool)
	for i := range g.Edges {
		e := &g.Edges[i]
		src, ok := nodes[e.SourceNodeID]
		if !ok {
			return fmt.Errorf("edge %s: source node %s: %w", e.ID, e.SourceNodeID, ErrNotFound)
		}
		if _, ok := nodes[e.TargetNodeID]; !ok {
			return fmt.Errorf("edge %s: target node %s: %w", e.ID, e.TargetNodeID, ErrNotFound)
		}
		if tgt := nodes[e.TargetNodeID]; tgt.Kind == NodeKindStart {
			return fmt.Errorf("edge %s: start node cannot have inbound edges", e.ID)
		}
		if src.Kind == NodeKindEnd {
			return fmt.Errorf("edge %s: end node cannot have outbound edges", e.ID)
		}
		if e.SourceOptionID != "" {
			if _, ok := src.OptionByID(e.SourceOptionID); !ok {
				return fmt.Errorf("edge %s: option %s: %w", e.ID, e.SourceOptionID, ErrNotFound)
			}
			key := e.SourceNodeID + "/" + e.SourceOptionID
			if perOption[key] {
				return fmt.Errorf("edge %s: %w", e.ID, ErrDuplicateEdge)
			}
			perOption[key] = true
		}
		if e.IsFallback() {
			if fallbacks[e.SourceNodeID] {
				return fmt.Errorf("edge %s: second fallback from node %s: %w", e.ID, e.SourceNodeID, ErrDuplicateEdge)
			}
			fallbacks[e.SourceNodeID] = true
		}
		if e.ConditionKind == ConditionAvailability {
			if availability[e.SourceNodeID] == nil {
				availability[e.SourceNodeID] = make(map[string]bool)
			}
			if availability[e.SourceNodeID][e.ConditionValue] {
				return fmt.Errorf("edge %s: duplicate availability slot %q: %w", e.ID, e.ConditionValue, ErrDuplicateEdge)
			}
			availability[e.SourceNodeID][e.ConditionValue] = true
		}
	}
	return nil
}

// validateTimerOptions checks the fixed responded/timeout option pair.
func validateTimerOptions(n *Node) error {
	if len(n.Options) != 2 {
		return fmt.Errorf("timer node %s: expected 2 fixed options, found %d: %w", n.ID, len(n.Options), ErrTimerOptionsFixed)
	}
	if n.Options[0].Value != TimerOptionResponded || n.Options[1].Value != TimerOptionTimeout {
		return fmt.Errorf("timer node %s: options must be %s/%s: %w", n.ID, TimerOptionResponded, TimerOptionTimeout, ErrTimerOptionsFixed)
	}
	return nil
}
