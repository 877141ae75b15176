// Package flow implements transition resolution and preview simulation.
//
// The simulator replays a frozen graph snapshot against scripted stimuli so
// an operator can test a flow without touching a real conversation. It never
// mutates the editing session and persists nothing.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// OptionLineFormat is the format string for rendering one selectable option.
const OptionLineFormat = "\n%d. %s"

// NoMatchNotice is appended to the transcript when no scripted transition
// matches a stimulus.
const NoMatchNotice = "external handling would occur here"

// LoopNotice is appended to the transcript when auto-advance revisits a node,
// which means the graph contains a fallback cycle of non-waiting nodes.
const LoopNotice = "flow loops without waiting for input"

// TurnDirection tells who produced a transcript turn.
type TurnDirection string

const (
	// TurnBot is a message emitted by a flow node.
	TurnBot TurnDirection = "bot"
	// TurnUser is a simulated operator input.
	TurnUser TurnDirection = "user"
	// TurnNotice is a simulator annotation, not part of the conversation.
	TurnNotice TurnDirection = "notice"
)

// Turn is one entry in the simulated conversation transcript.
type Turn struct {
	Direction TurnDirection `json:"direction"`
	NodeID    string        `json:"node_id,omitempty"`
	Body      string        `json:"body"`
}

// Simulator replays the transition resolver against a frozen graph snapshot.
type Simulator struct {
	graph         *models.Graph
	vars          map[string]string
	currentNodeID string
	transcript    []Turn
	halted        bool

	typingDelay time.Duration
	timer       Timer
	onTurn      func(Turn)
	pendingIDs  []string

	classifier Classifier
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithVariables supplies bindings for {variable} placeholders in message
// templates. Unknown placeholders render verbatim.
func WithVariables(vars map[string]string) SimulatorOption {
	return func(s *Simulator) { s.vars = vars }
}

// WithTypingDelay delivers emitted turns to the callback after an artificial
// delay, scheduled on the given timer. The transcript itself stays
// synchronous; only the callback is delayed, and Reset cancels it.
func WithTypingDelay(d time.Duration, t Timer, onTurn func(Turn)) SimulatorOption {
	return func(s *Simulator) {
		s.typingDelay = d
		s.timer = t
		s.onTurn = onTurn
	}
}

// WithClassifier lets the simulator interpret free text as an option pick on
// nodes that allow freeform interpretation, mirroring the production runtime.
func WithClassifier(c Classifier) SimulatorOption {
	return func(s *Simulator) { s.classifier = c }
}

// NewSimulator creates a Simulator over the given snapshot. The caller is
// expected to pass a frozen copy (see the editor's Snapshot operation).
func NewSimulator(graph *models.Graph, opts ...SimulatorOption) *Simulator {
	s := &Simulator{graph: graph}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start positions the simulator at the flow's start node and emits its
// message, auto-advancing through non-waiting nodes.
func (s *Simulator) Start() error {
	start, ok := s.graph.StartNode()
	if !ok {
		return fmt.Errorf("simulator start: flow %s has no start node: %w", s.graph.Flow.ID, models.ErrNotFound)
	}
	s.transcript = nil
	s.halted = false
	s.currentNodeID = start.ID
	slog.Debug("Simulator.Start: positioned at start node", "flowID", s.graph.Flow.ID, "nodeID", start.ID)
	s.emit(start)
	s.autoAdvance()
	return nil
}

// Input applies a simulated stimulus at the current node. On no match the
// transcript gains an external-handling notice and the simulator stops
// advancing until Reset.
func (s *Simulator) Input(st models.Stimulus) {
	if s.halted || s.currentNodeID == "" {
		return
	}
	s.recordInput(st)
	st = s.interpret(st)

	target, ok := Resolve(s.graph.Edges, s.currentNodeID, st)
	if !ok {
		slog.Debug("Simulator.Input: no scripted transition", "nodeID", s.currentNodeID)
		s.transcript = append(s.transcript, Turn{Direction: TurnNotice, NodeID: s.currentNodeID, Body: NoMatchNotice})
		s.halted = true
		return
	}
	s.enter(target)
}

// Reset discards the transcript, cancels any pending delayed emission and
// returns to the start node without emitting.
func (s *Simulator) Reset() {
	if s.timer != nil {
		for _, id := range s.pendingIDs {
			_ = s.timer.Cancel(id)
		}
	}
	s.pendingIDs = nil
	s.transcript = nil
	s.halted = false
	s.currentNodeID = ""
	if start, ok := s.graph.StartNode(); ok {
		s.currentNodeID = start.ID
	}
	slog.Debug("Simulator.Reset: transcript discarded", "flowID", s.graph.Flow.ID)
}

// CurrentNodeID returns the node the simulator is waiting at.
func (s *Simulator) CurrentNodeID() string { return s.currentNodeID }

// Halted reports whether the last stimulus found no scripted transition.
func (s *Simulator) Halted() bool { return s.halted }

// Transcript returns the turns recorded so far.
func (s *Simulator) Transcript() []Turn {
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// interpret upgrades free text to an option pick when the current node allows
// freeform interpretation and the classifier recognizes one. A classified
// option resolves with option precedence; unrecognized text resolves as-is.
func (s *Simulator) interpret(st models.Stimulus) models.Stimulus {
	text, isText := st.(models.TextStimulus)
	if !isText || s.classifier == nil {
		return st
	}
	node, ok := s.graph.NodeByID(s.currentNodeID)
	if !ok || !node.AllowFreeformInterpretation || len(node.Options) == 0 {
		return st
	}
	optionID, matched, err := s.classifier.Classify(context.Background(), *node, text.Text)
	if err != nil {
		slog.Error("Simulator.interpret: classifier failed", "nodeID", node.ID, "error", err)
		return st
	}
	if !matched {
		return st
	}
	slog.Debug("Simulator.interpret: text classified as option", "nodeID", node.ID, "optionID", optionID)
	return models.OptionStimulus{OptionID: optionID}
}

// enter moves to the target node, emits its message and auto-advances.
func (s *Simulator) enter(nodeID string) {
	node, ok := s.graph.NodeByID(nodeID)
	if !ok {
		// Dangling target; treat like a dead end.
		s.transcript = append(s.transcript, Turn{Direction: TurnNotice, Body: NoMatchNotice})
		s.halted = true
		return
	}
	s.currentNodeID = node.ID
	s.emit(node)
	s.autoAdvance()
}

// autoAdvance follows fallback transitions through nodes that never wait for
// input: start, condition, delay, action nodes, and message nodes with no
// options. Stops at question/timer/end nodes or when no fallback exists.
// Revisiting a node means the non-waiting nodes form a fallback cycle, which
// graph validation cannot rule out; the advance stops there with a notice
// instead of looping forever.
func (s *Simulator) autoAdvance() {
	visited := map[string]bool{s.currentNodeID: true}
	for {
		node, ok := s.graph.NodeByID(s.currentNodeID)
		if !ok {
			return
		}
		switch node.Kind {
		case models.NodeKindStart, models.NodeKindAction, models.NodeKindCondition, models.NodeKindDelay:
			// fall through below
		case models.NodeKindMessage:
			if len(node.Options) > 0 {
				return
			}
		default:
			return
		}
		target, ok := fallbackTarget(s.graph.Edges, node.ID)
		if !ok {
			return
		}
		next, ok := s.graph.NodeByID(target)
		if !ok {
			return
		}
		if visited[next.ID] {
			slog.Warn("Simulator.autoAdvance: fallback cycle detected", "flowID", s.graph.Flow.ID, "nodeID", next.ID)
			s.transcript = append(s.transcript, Turn{Direction: TurnNotice, NodeID: node.ID, Body: LoopNotice})
			s.halted = true
			return
		}
		visited[next.ID] = true
		s.currentNodeID = next.ID
		s.emit(next)
	}
}

// emit renders the node's message (template plus numbered options) into the
// transcript.
func (s *Simulator) emit(node *models.Node) {
	if node.MessageTemplate == "" && len(node.Options) == 0 {
		return
	}
	body := RenderTemplate(node.MessageTemplate, s.vars)
	for i, opt := range node.Options {
		body += fmt.Sprintf(OptionLineFormat, i+1, opt.Label)
	}
	turn := Turn{Direction: TurnBot, NodeID: node.ID, Body: body}
	s.transcript = append(s.transcript, turn)
	s.deliver(turn)
}

// recordInput appends a user turn describing the stimulus.
func (s *Simulator) recordInput(st models.Stimulus) {
	var body string
	switch v := st.(type) {
	case models.OptionStimulus:
		body = v.OptionID
		if node, ok := s.graph.NodeByID(s.currentNodeID); ok {
			if opt, ok := node.OptionByID(v.OptionID); ok {
				body = opt.Label
			}
		}
	case models.TextStimulus:
		body = v.Text
	case models.TimerStimulus:
		body = fmt.Sprintf("[timer: %s]", v.Event)
	case models.AvailabilityStimulus:
		body = fmt.Sprintf("[availability: %s]", v.Result)
	}
	s.transcript = append(s.transcript, Turn{Direction: TurnUser, NodeID: s.currentNodeID, Body: body})
}

// deliver hands the turn to the callback, after the typing delay if one is
// configured.
func (s *Simulator) deliver(turn Turn) {
	if s.onTurn == nil {
		return
	}
	if s.typingDelay <= 0 || s.timer == nil {
		s.onTurn(turn)
		return
	}
	id, err := s.timer.ScheduleAfter(s.typingDelay, func() { s.onTurn(turn) })
	if err != nil {
		slog.Error("Simulator.deliver: schedule failed, delivering immediately", "error", err)
		s.onTurn(turn)
		return
	}
	s.pendingIDs = append(s.pendingIDs, id)
}

// fallbackTarget finds the node-level fallback edge target.
func fallbackTarget(edges []models.Edge, nodeID string) (string, bool) {
	for _, e := range edges {
		if e.SourceNodeID == nodeID && e.IsFallback() {
			return e.TargetNodeID, true
		}
	}
	return "", false
}

// RenderTemplate substitutes {variable} placeholders from the bindings,
// leaving unknown placeholders verbatim so the operator can see what the
// runtime would need.
func RenderTemplate(template string, vars map[string]string) string {
	if template == "" || len(vars) == 0 {
		return template
	}
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
