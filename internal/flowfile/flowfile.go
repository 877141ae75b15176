// Package flowfile serializes flow graphs to a YAML document for backup and
// hand editing. Import re-validates the graph invariants before the snapshot
// is trusted.
package flowfile

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// fileVersion guards against future format changes.
const fileVersion = 1

// document is the YAML layout of an exported flow.
type document struct {
	Version int       `yaml:"version"`
	Flow    flowDoc   `yaml:"flow"`
	Nodes   []nodeDoc `yaml:"nodes"`
	Edges   []edgeDoc `yaml:"edges,omitempty"`
}

type flowDoc struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	IsActive  bool   `yaml:"is_active"`
	IsDefault bool   `yaml:"is_default"`
}

type nodeDoc struct {
	ID                string      `yaml:"id"`
	Kind              string      `yaml:"kind"`
	Title             string      `yaml:"title"`
	MessageTemplate   string      `yaml:"message_template,omitempty"`
	ActionKind        string      `yaml:"action_kind,omitempty"`
	ActionConfig      string      `yaml:"action_config,omitempty"`
	ExtractFields     string      `yaml:"extract_fields,omitempty"`
	RequireExtraction bool        `yaml:"require_extraction,omitempty"`
	AllowFreeform     bool        `yaml:"allow_freeform,omitempty"`
	X                 float64     `yaml:"x"`
	Y                 float64     `yaml:"y"`
	Options           []optionDoc `yaml:"options,omitempty"`
}

type optionDoc struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

type edgeDoc struct {
	ID             string `yaml:"id"`
	Source         string `yaml:"source"`
	Target         string `yaml:"target"`
	SourceOptionID string `yaml:"source_option_id,omitempty"`
	ConditionKind  string `yaml:"condition_kind,omitempty"`
	ConditionValue string `yaml:"condition_value,omitempty"`
}

// Marshal serializes a graph snapshot to its YAML document form.
func Marshal(g *models.Graph) ([]byte, error) {
	doc := document{
		Version: fileVersion,
		Flow: flowDoc{
			ID:        g.Flow.ID,
			Name:      g.Flow.Name,
			IsActive:  g.Flow.IsActive,
			IsDefault: g.Flow.IsDefault,
		},
	}
	for _, n := range g.Nodes {
		cfg, err := models.MarshalActionConfig(n.ActionConfig)
		if err != nil {
			return nil, fmt.Errorf("export node %s: %w", n.ID, err)
		}
		nd := nodeDoc{
			ID:                n.ID,
			Kind:              string(n.Kind),
			Title:             n.Title,
			MessageTemplate:   n.MessageTemplate,
			ActionKind:        string(n.ActionKind),
			ActionConfig:      cfg,
			ExtractFields:     models.JoinExtractFields(n.ExtractFields),
			RequireExtraction: n.RequireExtraction,
			AllowFreeform:     n.AllowFreeformInterpretation,
			X:                 n.Position.X,
			Y:                 n.Position.Y,
		}
		for _, o := range n.Options {
			nd.Options = append(nd.Options, optionDoc{ID: o.ID, Label: o.Label, Value: o.Value})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, edgeDoc{
			ID:             e.ID,
			Source:         e.SourceNodeID,
			Target:         e.TargetNodeID,
			SourceOptionID: e.SourceOptionID,
			ConditionKind:  string(e.ConditionKind),
			ConditionValue: e.ConditionValue,
		})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal flow document: %w", err)
	}
	slog.Debug("flowfile.Marshal: exported", "flowID", g.Flow.ID, "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return out, nil
}

// Unmarshal parses a YAML document back into a graph snapshot and validates
// the graph invariants.
func Unmarshal(data []byte) (*models.Graph, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse flow document: %w", err)
	}
	if doc.Version != fileVersion {
		return nil, fmt.Errorf("unsupported flow document version %d", doc.Version)
	}

	g := &models.Graph{
		Flow: models.Flow{
			ID:        doc.Flow.ID,
			Name:      doc.Flow.Name,
			IsActive:  doc.Flow.IsActive,
			IsDefault: doc.Flow.IsDefault,
		},
	}
	for _, nd := range doc.Nodes {
		kind := models.NodeKind(nd.Kind)
		actionKind := models.ActionKind(nd.ActionKind)
		cfg, err := models.UnmarshalActionConfig(kind, actionKind, nd.ActionConfig)
		if err != nil {
			return nil, fmt.Errorf("import node %s: %w", nd.ID, err)
		}
		node := models.Node{
			ID:                          nd.ID,
			FlowID:                      g.Flow.ID,
			Kind:                        kind,
			Title:                       nd.Title,
			MessageTemplate:             nd.MessageTemplate,
			ActionKind:                  actionKind,
			ActionConfig:                cfg,
			ExtractFields:               models.SplitExtractFields(nd.ExtractFields),
			RequireExtraction:           nd.RequireExtraction,
			AllowFreeformInterpretation: nd.AllowFreeform,
			Position:                    models.Position{X: nd.X, Y: nd.Y},
		}
		for i, od := range nd.Options {
			node.Options = append(node.Options, models.Option{
				ID:        od.ID,
				NodeID:    nd.ID,
				Label:     od.Label,
				Value:     od.Value,
				SortOrder: i,
			})
		}
		g.Nodes = append(g.Nodes, node)
	}
	for _, ed := range doc.Edges {
		g.Edges = append(g.Edges, models.Edge{
			ID:             ed.ID,
			FlowID:         g.Flow.ID,
			SourceNodeID:   ed.Source,
			TargetNodeID:   ed.Target,
			SourceOptionID: ed.SourceOptionID,
			ConditionKind:  models.ConditionKind(ed.ConditionKind),
			ConditionValue: ed.ConditionValue,
		})
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("imported flow failed validation: %w", err)
	}
	slog.Debug("flowfile.Unmarshal: imported", "flowID", g.Flow.ID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}
