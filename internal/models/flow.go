// Package models defines the core data structures for FlowCanvas.
//
// It includes the conversation-flow graph entities (flows, nodes, edges,
// options) and the invariants relating them, which are shared across modules.
package models

import (
	"errors"
	"strings"
)

// NodeKind identifies the behavior of a step in a conversation flow.
type NodeKind string

const (
	// NodeKindStart is the unique entry point of a flow. It has no inbound edges.
	NodeKindStart NodeKind = "start"
	// NodeKindMessage emits a message and advances without expecting a reply.
	NodeKindMessage NodeKind = "message"
	// NodeKindQuestion emits a message and waits for an option pick or free text.
	NodeKindQuestion NodeKind = "question"
	// NodeKindAction performs a configured side action (media, availability check, ...).
	NodeKindAction NodeKind = "action"
	// NodeKindCondition branches on its outgoing edge conditions without emitting.
	NodeKindCondition NodeKind = "condition"
	// NodeKindEnd terminates the conversation. It has no outbound edges.
	NodeKindEnd NodeKind = "end"
	// NodeKindDelay pauses the conversation for a configured duration.
	NodeKindDelay NodeKind = "delay"
	// NodeKindTimer waits for a reply with a deadline; owns the fixed
	// responded/timeout option pair.
	NodeKindTimer NodeKind = "timer"
)

// ConditionKind identifies how an edge decides whether it matches a stimulus.
type ConditionKind string

const (
	// ConditionOptionSelected matches an explicit option pick.
	ConditionOptionSelected ConditionKind = "option_selected"
	// ConditionKeywordMatch matches free text containing the condition value.
	ConditionKeywordMatch ConditionKind = "keyword_match"
	// ConditionFallback matches when nothing more specific does.
	ConditionFallback ConditionKind = "fallback"
	// ConditionTimeout matches a timer event (responded/timeout).
	ConditionTimeout ConditionKind = "timeout"
	// ConditionAvailability matches an availability check result.
	ConditionAvailability ConditionKind = "availability"
	// ConditionNone marks an edge with no explicit condition; it behaves as a
	// fallback when its SourceOptionID is empty.
	ConditionNone ConditionKind = ""
)

// Timer node option values, fixed at node creation.
const (
	// TimerOptionResponded is the value of the option taken when the user replies in time.
	TimerOptionResponded = "responded"
	// TimerOptionTimeout is the value of the option taken when the deadline passes.
	TimerOptionTimeout = "timeout"
)

// Availability edge condition values.
const (
	// AvailabilityAvailable marks the edge taken when the check succeeds.
	AvailabilityAvailable = "available"
	// AvailabilityUnavailable marks the edge taken when the check fails.
	AvailabilityUnavailable = "unavailable"
)

// Error variables for the editing and resolution taxonomy.
var (
	ErrNotFound          = errors.New("referenced entity not found")
	ErrInvalidKind       = errors.New("invalid node kind")
	ErrProtectedNode     = errors.New("start node cannot be deleted")
	ErrDuplicateEdge     = errors.New("duplicate edge for source and option")
	ErrSetMismatch       = errors.New("reorder id set does not match stored options")
	ErrRepositoryFailure = errors.New("repository write failed")
	ErrTimerOptionsFixed = errors.New("timer node options are fixed")
	ErrKindImmutable     = errors.New("node kind cannot change after creation")
	ErrDuplicateStart    = errors.New("flow already has a start node")
	ErrSelfLoop          = errors.New("edge source and target must differ")
)

// IsValidNodeKind checks if the given node kind is supported.
func IsValidNodeKind(k NodeKind) bool {
	switch k {
	case NodeKindStart, NodeKindMessage, NodeKindQuestion, NodeKindAction,
		NodeKindCondition, NodeKindEnd, NodeKindDelay, NodeKindTimer:
		return true
	default:
		return false
	}
}

// IsValidConditionKind checks if the given condition kind is supported.
func IsValidConditionKind(k ConditionKind) bool {
	switch k {
	case ConditionOptionSelected, ConditionKeywordMatch, ConditionFallback,
		ConditionTimeout, ConditionAvailability, ConditionNone:
		return true
	default:
		return false
	}
}

// Position is a node's location in canvas coordinate space. Presentation
// only; persisted but never semantically load-bearing.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Option represents a selectable reply attached to a question-like node.
type Option struct {
	ID        string `json:"id"`
	NodeID    string `json:"node_id"`
	Label     string `json:"label"` // shown to the end user
	Value     string `json:"value"` // machine token
	SortOrder int    `json:"sort_order"`
}

// Node represents a single step in a conversation flow.
type Node struct {
	ID                          string       `json:"id"`
	FlowID                      string       `json:"flow_id"`
	Kind                        NodeKind     `json:"kind"`
	Title                       string       `json:"title"`
	MessageTemplate             string       `json:"message_template,omitempty"` // may contain {variable} placeholders
	ActionKind                  ActionKind   `json:"action_kind,omitempty"`      // populated only for action nodes
	ActionConfig                ActionConfig `json:"-"`
	ExtractFields               []string     `json:"extract_fields,omitempty"` // semantically a set, comma-joined in storage
	RequireExtraction           bool         `json:"require_extraction,omitempty"`
	AllowFreeformInterpretation bool         `json:"allow_freeform_interpretation,omitempty"`
	Position                    Position     `json:"position"`
	Options                     []Option     `json:"options,omitempty"`
}

// OptionByID returns the node's option with the given id.
func (n *Node) OptionByID(id string) (Option, bool) {
	for _, opt := range n.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// EmitsMessage reports whether the node kind produces a message turn.
func (n *Node) EmitsMessage() bool {
	switch n.Kind {
	case NodeKindStart, NodeKindMessage, NodeKindQuestion, NodeKindTimer:
		return true
	default:
		return false
	}
}

// Edge represents a directed, conditionally-selected transition between nodes.
type Edge struct {
	ID             string        `json:"id"`
	FlowID         string        `json:"flow_id"`
	SourceNodeID   string        `json:"source_node_id"`
	TargetNodeID   string        `json:"target_node_id"`
	SourceOptionID string        `json:"source_option_id,omitempty"` // empty for node-level transitions
	ConditionKind  ConditionKind `json:"condition_kind,omitempty"`
	ConditionValue string        `json:"condition_value,omitempty"`
}

// IsFallback reports whether the edge acts as the last-resort transition for
// its source node.
func (e *Edge) IsFallback() bool {
	return e.SourceOptionID == "" &&
		(e.ConditionKind == ConditionFallback || e.ConditionKind == ConditionNone)
}

// Flow is the container for one conversation script.
type Flow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
}

// JoinExtractFields serializes an extract-field set to its comma-joined
// storage form, dropping empties and duplicates while preserving order.
func JoinExtractFields(fields []string) string {
	seen := make(map[string]bool, len(fields))
	var kept []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		kept = append(kept, f)
	}
	return strings.Join(kept, ",")
}

// SplitExtractFields parses the comma-joined storage form back into a slice.
func SplitExtractFields(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
