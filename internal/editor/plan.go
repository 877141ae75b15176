// Package editor implements the interactive editing session.
//
// This file computes cascade delete plans. A plan gathers everything a
// delete will remove before anything is mutated, so the commit is atomic and
// the inverse is trivially available for the undo stack.
package editor

import (
	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// deletePlan is the full subgraph a destructive operation removes: at most
// one node, its options, and every touching edge.
type deletePlan struct {
	node    *models.Node
	options []models.Option
	edges   []models.Edge
}

// gatherNodeDelete collects the node, all its options and every edge
// referencing it as source or target.
func gatherNodeDelete(g *models.Graph, nodeID string) (deletePlan, bool) {
	node, ok := g.NodeByID(nodeID)
	if !ok {
		return deletePlan{}, false
	}
	cp := *node
	cp.Options = append([]models.Option(nil), node.Options...)

	plan := deletePlan{node: &cp, options: cp.Options}
	for _, e := range g.Edges {
		if e.SourceNodeID == nodeID || e.TargetNodeID == nodeID {
			plan.edges = append(plan.edges, e)
		}
	}
	return plan, true
}

// gatherOptionDelete collects the option and any edge keyed on it.
func gatherOptionDelete(g *models.Graph, optionID string) (deletePlan, bool) {
	_, opt, ok := g.OptionOwner(optionID)
	if !ok {
		return deletePlan{}, false
	}
	plan := deletePlan{options: []models.Option{*opt}}
	for _, e := range g.Edges {
		if e.SourceOptionID == optionID {
			plan.edges = append(plan.edges, e)
		}
	}
	return plan, true
}

// apply removes the planned entities from the graph in one pass.
func (p deletePlan) apply(g *models.Graph) {
	if len(p.edges) > 0 {
		doomed := make(map[string]bool, len(p.edges))
		for _, e := range p.edges {
			doomed[e.ID] = true
		}
		kept := g.Edges[:0]
		for _, e := range g.Edges {
			if !doomed[e.ID] {
				kept = append(kept, e)
			}
		}
		g.Edges = kept
	}
	if p.node != nil {
		kept := g.Nodes[:0]
		for _, n := range g.Nodes {
			if n.ID != p.node.ID {
				kept = append(kept, n)
			}
		}
		g.Nodes = kept
		return
	}
	for _, opt := range p.options {
		if node, ok := g.NodeByID(opt.NodeID); ok {
			keptOpts := node.Options[:0]
			for _, o := range node.Options {
				if o.ID != opt.ID {
					keptOpts = append(keptOpts, o)
				}
			}
			node.Options = keptOpts
		}
	}
}
