package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanFlow scans a Flow row.
func scanFlow(row rowScanner) (models.Flow, error) {
	var f models.Flow
	if err := row.Scan(&f.ID, &f.Name, &f.IsActive, &f.IsDefault); err != nil {
		return f, fmt.Errorf("scan flow failed: %w", err)
	}
	return f, nil
}

// scanNode scans a Node row and decodes its action configuration.
func scanNode(row rowScanner) (models.Node, error) {
	var n models.Node
	var messageTemplate, actionKind, actionConfig, extractFields sql.NullString
	err := row.Scan(
		&n.ID, &n.FlowID, &n.Kind, &n.Title, &messageTemplate, &actionKind,
		&actionConfig, &extractFields, &n.RequireExtraction,
		&n.AllowFreeformInterpretation, &n.Position.X, &n.Position.Y,
	)
	if err != nil {
		return n, fmt.Errorf("scan node failed: %w", err)
	}
	n.MessageTemplate = messageTemplate.String
	n.ActionKind = models.ActionKind(actionKind.String)
	n.ExtractFields = models.SplitExtractFields(extractFields.String)
	cfg, err := models.UnmarshalActionConfig(n.Kind, n.ActionKind, actionConfig.String)
	if err != nil {
		return n, fmt.Errorf("decode node %s config: %w", n.ID, err)
	}
	n.ActionConfig = cfg
	return n, nil
}

// scanOption scans an Option row.
func scanOption(row rowScanner) (models.Option, error) {
	var o models.Option
	if err := row.Scan(&o.ID, &o.NodeID, &o.Label, &o.Value, &o.SortOrder); err != nil {
		return o, fmt.Errorf("scan option failed: %w", err)
	}
	return o, nil
}

// scanEdge scans an Edge row.
func scanEdge(row rowScanner) (models.Edge, error) {
	var e models.Edge
	var sourceOptionID, conditionKind, conditionValue sql.NullString
	err := row.Scan(
		&e.ID, &e.FlowID, &e.SourceNodeID, &e.TargetNodeID,
		&sourceOptionID, &conditionKind, &conditionValue,
	)
	if err != nil {
		return e, fmt.Errorf("scan edge failed: %w", err)
	}
	e.SourceOptionID = sourceOptionID.String
	e.ConditionKind = models.ConditionKind(conditionKind.String)
	e.ConditionValue = conditionValue.String
	return e, nil
}

// nodeInsertArgs prepares the column values for a node insert or update.
func nodeInsertArgs(n models.Node) ([]interface{}, error) {
	cfg, err := models.MarshalActionConfig(n.ActionConfig)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		n.ID, n.FlowID, string(n.Kind), n.Title,
		nilIfEmpty(n.MessageTemplate), nilIfEmpty(string(n.ActionKind)),
		nilIfEmpty(cfg), nilIfEmpty(models.JoinExtractFields(n.ExtractFields)),
		n.RequireExtraction, n.AllowFreeformInterpretation,
		n.Position.X, n.Position.Y,
	}, nil
}
