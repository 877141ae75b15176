// Package editor implements the interactive editing session.
//
// This file implements the bounded undo stack for destructive mutations.
// Records carry the deleted entities verbatim, original ids included, so
// references created elsewhere in the session stay valid after an undo.
package editor

import (
	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// DefaultUndoLimit is how many destructive actions are kept for undo.
const DefaultUndoLimit = 20

// UndoKind tags what a reversible record restores.
type UndoKind string

const (
	// UndoDeleteNode restores a node with its options and touching edges.
	UndoDeleteNode UndoKind = "delete_node"
	// UndoDeleteEdge restores a single edge.
	UndoDeleteEdge UndoKind = "delete_edge"
	// UndoDeleteOption restores an option and any edge keyed on it.
	UndoDeleteOption UndoKind = "delete_option"
)

// UndoRecord is one reversible destructive action.
type UndoRecord struct {
	Kind    UndoKind
	Node    *models.Node // nil unless Kind == UndoDeleteNode; Options inline
	Options []models.Option
	Edges   []models.Edge
}

// UndoStack is a bounded LIFO of reversible actions. Strictly single-level
// per action, no redo.
type UndoStack struct {
	limit   int
	records []UndoRecord
}

// NewUndoStack creates a stack bounded to the given record count.
func NewUndoStack(limit int) *UndoStack {
	if limit <= 0 {
		limit = DefaultUndoLimit
	}
	return &UndoStack{limit: limit}
}

// Push records a reversible action, evicting the oldest record when full.
func (s *UndoStack) Push(r UndoRecord) {
	if len(s.records) >= s.limit {
		copy(s.records, s.records[1:])
		s.records = s.records[:len(s.records)-1]
	}
	s.records = append(s.records, r)
}

// Pop removes and returns the most recent record.
func (s *UndoStack) Pop() (UndoRecord, bool) {
	if len(s.records) == 0 {
		return UndoRecord{}, false
	}
	r := s.records[len(s.records)-1]
	s.records = s.records[:len(s.records)-1]
	return r, true
}

// Len reports how many records are held.
func (s *UndoStack) Len() int { return len(s.records) }
