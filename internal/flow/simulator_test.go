package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// previewGraph builds a small flow: start greets, a question offers two
// options plus a keyword edge, and both branches terminate in end nodes.
func previewGraph() *models.Graph {
	return &models.Graph{
		Flow: models.Flow{ID: "f1", Name: "Agendamento"},
		Nodes: []models.Node{
			{ID: "n_start", FlowID: "f1", Kind: models.NodeKindStart, Title: "Start", MessageTemplate: "Olá {name}, bem-vindo!"},
			{ID: "n_q", FlowID: "f1", Kind: models.NodeKindQuestion, Title: "Confirmar", MessageTemplate: "Escolha uma opção:",
				Options: []models.Option{
					{ID: "o1", NodeID: "n_q", Label: "Sim", Value: "yes", SortOrder: 0},
					{ID: "o2", NodeID: "n_q", Label: "Não", Value: "no", SortOrder: 1},
				}},
			{ID: "n_yes", FlowID: "f1", Kind: models.NodeKindEnd, Title: "End", MessageTemplate: "Confirmado, até breve."},
			{ID: "n_no", FlowID: "f1", Kind: models.NodeKindEnd, Title: "End", MessageTemplate: "Sem problemas."},
		},
		Edges: []models.Edge{
			{ID: "e_start", FlowID: "f1", SourceNodeID: "n_start", TargetNodeID: "n_q", ConditionKind: models.ConditionFallback},
			{ID: "e_yes", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_yes", SourceOptionID: "o1", ConditionKind: models.ConditionOptionSelected, ConditionValue: "yes"},
			{ID: "e_no", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_no", SourceOptionID: "o2", ConditionKind: models.ConditionOptionSelected, ConditionValue: "no"},
		},
	}
}

func TestSimulatorScriptedRun(t *testing.T) {
	sim := NewSimulator(previewGraph(), WithVariables(map[string]string{"name": "Ana"}))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Start auto-advances into the question and waits there.
	if sim.CurrentNodeID() != "n_q" {
		t.Fatalf("expected simulator to wait at n_q, at %q", sim.CurrentNodeID())
	}
	transcript := sim.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("expected 2 bot turns after start, got %d: %+v", len(transcript), transcript)
	}
	if transcript[0].Body != "Olá Ana, bem-vindo!" {
		t.Errorf("template variable not substituted: %q", transcript[0].Body)
	}
	if !strings.Contains(transcript[1].Body, "1. Sim") || !strings.Contains(transcript[1].Body, "2. Não") {
		t.Errorf("question turn should list numbered options: %q", transcript[1].Body)
	}

	sim.Input(models.OptionStimulus{OptionID: "o1"})
	if sim.CurrentNodeID() != "n_yes" {
		t.Fatalf("expected option pick to land on n_yes, at %q", sim.CurrentNodeID())
	}
	if sim.Halted() {
		t.Error("matched input must not halt the simulator")
	}

	transcript = sim.Transcript()
	last := transcript[len(transcript)-1]
	if last.Direction != TurnBot || last.Body != "Confirmado, até breve." {
		t.Errorf("unexpected final turn: %+v", last)
	}
	// The user turn records the option label, not its id.
	userTurn := transcript[len(transcript)-2]
	if userTurn.Direction != TurnUser || userTurn.Body != "Sim" {
		t.Errorf("user turn should carry the option label: %+v", userTurn)
	}
}

func TestSimulatorNoMatchHalts(t *testing.T) {
	sim := NewSimulator(previewGraph())
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sim.Input(models.TextStimulus{Text: "quero falar com humano"})
	if !sim.Halted() {
		t.Fatal("unmatched input must halt the simulator")
	}
	transcript := sim.Transcript()
	last := transcript[len(transcript)-1]
	if last.Direction != TurnNotice || last.Body != NoMatchNotice {
		t.Fatalf("expected external-handling notice, got %+v", last)
	}

	// Further input is ignored until Reset.
	before := len(sim.Transcript())
	sim.Input(models.OptionStimulus{OptionID: "o1"})
	if len(sim.Transcript()) != before {
		t.Error("halted simulator must ignore input")
	}

	sim.Reset()
	if sim.Halted() || len(sim.Transcript()) != 0 {
		t.Error("Reset must clear halt state and transcript")
	}
	if sim.CurrentNodeID() != "n_start" {
		t.Errorf("Reset should return to the start node, at %q", sim.CurrentNodeID())
	}
}

func TestSimulatorUnknownVariableRendersVerbatim(t *testing.T) {
	sim := NewSimulator(previewGraph(), WithVariables(map[string]string{"other": "x"}))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := sim.Transcript()[0].Body; got != "Olá {name}, bem-vindo!" {
		t.Fatalf("unknown placeholder must render verbatim, got %q", got)
	}
}

func TestSimulatorTypingDelayDelivery(t *testing.T) {
	delivered := make(chan Turn, 4)
	timer := NewSimpleTimer()
	defer timer.Stop()
	sim := NewSimulator(previewGraph(),
		WithTypingDelay(5*time.Millisecond, timer, func(turn Turn) { delivered <- turn }))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The transcript is synchronous regardless of delivery delay.
	if len(sim.Transcript()) != 2 {
		t.Fatalf("transcript should be recorded synchronously, got %d turns", len(sim.Transcript()))
	}

	select {
	case turn := <-delivered:
		if turn.Direction != TurnBot {
			t.Errorf("delayed delivery should carry a bot turn, got %+v", turn)
		}
	case <-time.After(time.Second):
		t.Fatal("delayed turn was never delivered")
	}
}

func TestSimulatorStopsOnFallbackCycle(t *testing.T) {
	// start -> A -> B -> A: a fallback cycle of option-less message nodes.
	// No self loop, valid per graph validation, yet it never waits for input.
	g := &models.Graph{
		Flow: models.Flow{ID: "f1", Name: "loop"},
		Nodes: []models.Node{
			{ID: "n_start", FlowID: "f1", Kind: models.NodeKindStart},
			{ID: "n_a", FlowID: "f1", Kind: models.NodeKindMessage, MessageTemplate: "A"},
			{ID: "n_b", FlowID: "f1", Kind: models.NodeKindMessage, MessageTemplate: "B"},
		},
		Edges: []models.Edge{
			{ID: "e1", FlowID: "f1", SourceNodeID: "n_start", TargetNodeID: "n_a", ConditionKind: models.ConditionFallback},
			{ID: "e2", FlowID: "f1", SourceNodeID: "n_a", TargetNodeID: "n_b", ConditionKind: models.ConditionFallback},
			{ID: "e3", FlowID: "f1", SourceNodeID: "n_b", TargetNodeID: "n_a", ConditionKind: models.ConditionFallback},
		},
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("cycle fixture must be structurally valid: %v", err)
	}

	sim := NewSimulator(g)
	done := make(chan error, 1)
	go func() { done <- sim.Start() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return on a fallback cycle")
	}

	if !sim.Halted() {
		t.Fatal("a fallback cycle must halt the simulator")
	}
	transcript := sim.Transcript()
	last := transcript[len(transcript)-1]
	if last.Direction != TurnNotice || last.Body != LoopNotice {
		t.Fatalf("expected loop notice, got %+v", last)
	}
	// Each node is emitted at most once; the transcript stays bounded.
	if len(transcript) > len(g.Nodes)+1 {
		t.Fatalf("transcript grew beyond one emission per node: %d turns", len(transcript))
	}
}

func TestSimulatorResetCancelsAllPendingDeliveries(t *testing.T) {
	delivered := make(chan Turn, 8)
	timer := NewSimpleTimer()
	defer timer.Stop()

	// Start emits two turns here (greeting plus question), so two delayed
	// deliveries are pending at once.
	sim := NewSimulator(previewGraph(),
		WithTypingDelay(100*time.Millisecond, timer, func(turn Turn) { delivered <- turn }))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sim.Transcript()) != 2 {
		t.Fatalf("fixture should emit 2 turns on start, got %d", len(sim.Transcript()))
	}
	sim.Reset()

	select {
	case turn := <-delivered:
		t.Fatalf("delivery after reset: %+v", turn)
	case <-time.After(200 * time.Millisecond):
	}
}

// mapClassifier classifies text by exact lookup.
type mapClassifier map[string]string

func (m mapClassifier) Classify(_ context.Context, _ models.Node, text string) (string, bool, error) {
	id, ok := m[text]
	return id, ok, nil
}

func TestSimulatorClassifierInterpretation(t *testing.T) {
	g := previewGraph()
	q, _ := g.NodeByID("n_q")
	q.AllowFreeformInterpretation = true

	sim := NewSimulator(g, WithClassifier(mapClassifier{"claro que sim": "o1"}))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sim.Input(models.TextStimulus{Text: "claro que sim"})
	if sim.Halted() || sim.CurrentNodeID() != "n_yes" {
		t.Fatalf("classified text should follow the option edge, at %q halted=%v", sim.CurrentNodeID(), sim.Halted())
	}
}

func TestSimulatorNoopClassifierNeverMatches(t *testing.T) {
	g := previewGraph()
	q, _ := g.NodeByID("n_q")
	q.AllowFreeformInterpretation = true

	sim := NewSimulator(g, WithClassifier(NoopClassifier{}))
	if err := sim.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sim.Input(models.TextStimulus{Text: "claro que sim"})
	if !sim.Halted() {
		t.Fatal("noop classifier must leave unmatched text to halt")
	}
}

func TestRenderTemplate(t *testing.T) {
	vars := map[string]string{"name": "Rui", "service": "corte"}
	got := RenderTemplate("Oi {name}, confirmar {service}? {missing}", vars)
	want := "Oi Rui, confirmar corte? {missing}"
	if got != want {
		t.Fatalf("RenderTemplate = %q, want %q", got, want)
	}
	if RenderTemplate("", vars) != "" {
		t.Error("empty template must stay empty")
	}
}
