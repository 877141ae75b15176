// Package flow implements transition resolution and preview simulation for
// conversation-flow graphs.
//
// Resolution is a pure function over the edge set: given the current node
// and a stimulus it picks the next node deterministically, with explicit
// option selection always winning over keyword matches and fallback edges
// always losing to anything more specific.
package flow

import (
	"strings"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// Resolve decides which edge to follow from the current node for the given
// stimulus. It returns the target node id, or ok=false when no scripted
// transition matches and the caller must defer to external handling.
//
// Match order, first match wins, no backtracking:
//  1. explicit option selection (per-option edge)
//  2. timer / availability condition value
//  3. keyword match (case-insensitive substring of the free text)
//  4. fallback edge
func Resolve(edges []models.Edge, currentNodeID string, st models.Stimulus) (string, bool) {
	switch s := st.(type) {
	case models.OptionStimulus:
		for _, e := range edges {
			if e.SourceNodeID == currentNodeID && e.SourceOptionID == s.OptionID && s.OptionID != "" {
				return e.TargetNodeID, true
			}
		}
	case models.TimerStimulus:
		if target, ok := matchCondition(edges, currentNodeID, models.ConditionTimeout, string(s.Event)); ok {
			return target, true
		}
	case models.AvailabilityStimulus:
		if target, ok := matchCondition(edges, currentNodeID, models.ConditionAvailability, string(s.Result)); ok {
			return target, true
		}
	case models.TextStimulus:
		text := strings.ToLower(s.Text)
		for _, e := range edges {
			if e.SourceNodeID != currentNodeID || e.ConditionKind != models.ConditionKeywordMatch {
				continue
			}
			keyword := strings.ToLower(strings.TrimSpace(e.ConditionValue))
			if keyword != "" && strings.Contains(text, keyword) {
				return e.TargetNodeID, true
			}
		}
	}

	// Last resort: the node-level fallback edge.
	for _, e := range edges {
		if e.SourceNodeID == currentNodeID && e.IsFallback() {
			return e.TargetNodeID, true
		}
	}
	return "", false
}

// matchCondition finds the edge from the node whose condition kind and value
// both match.
func matchCondition(edges []models.Edge, nodeID string, kind models.ConditionKind, value string) (string, bool) {
	for _, e := range edges {
		if e.SourceNodeID == nodeID && e.ConditionKind == kind && e.ConditionValue == value {
			return e.TargetNodeID, true
		}
	}
	return "", false
}
