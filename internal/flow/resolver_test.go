package flow

import (
	"testing"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// edgesFixture builds a node with every edge category the resolver knows:
// a per-option edge, a keyword edge, timer/availability condition edges and
// a fallback.
func edgesFixture() []models.Edge {
	return []models.Edge{
		{ID: "e_opt", SourceNodeID: "n1", TargetNodeID: "t_opt", SourceOptionID: "o1", ConditionKind: models.ConditionOptionSelected, ConditionValue: "yes"},
		{ID: "e_kw", SourceNodeID: "n1", TargetNodeID: "t_kw", ConditionKind: models.ConditionKeywordMatch, ConditionValue: "Pricing"},
		{ID: "e_timeout", SourceNodeID: "n1", TargetNodeID: "t_timeout", ConditionKind: models.ConditionTimeout, ConditionValue: models.TimerOptionTimeout},
		{ID: "e_avail", SourceNodeID: "n1", TargetNodeID: "t_avail", ConditionKind: models.ConditionAvailability, ConditionValue: models.AvailabilityAvailable},
		{ID: "e_fb", SourceNodeID: "n1", TargetNodeID: "t_fb", ConditionKind: models.ConditionFallback},
	}
}

func TestResolveOptionSelection(t *testing.T) {
	edges := edgesFixture()

	target, ok := Resolve(edges, "n1", models.OptionStimulus{OptionID: "o1"})
	if !ok || target != "t_opt" {
		t.Fatalf("expected option edge target t_opt, got %q (ok=%v)", target, ok)
	}

	// An unknown option falls through to the fallback, never to a keyword edge.
	target, ok = Resolve(edges, "n1", models.OptionStimulus{OptionID: "o_unknown"})
	if !ok || target != "t_fb" {
		t.Errorf("unknown option should hit fallback, got %q (ok=%v)", target, ok)
	}
}

func TestResolveKeywordMatch(t *testing.T) {
	edges := edgesFixture()

	// Case-insensitive substring match.
	target, ok := Resolve(edges, "n1", models.TextStimulus{Text: "tell me about PRICING please"})
	if !ok || target != "t_kw" {
		t.Fatalf("expected keyword edge target t_kw, got %q (ok=%v)", target, ok)
	}

	// Non-matching text takes the fallback.
	target, ok = Resolve(edges, "n1", models.TextStimulus{Text: "something else"})
	if !ok || target != "t_fb" {
		t.Errorf("non-matching text should hit fallback, got %q (ok=%v)", target, ok)
	}
}

func TestResolveTimerAndAvailability(t *testing.T) {
	edges := edgesFixture()

	target, ok := Resolve(edges, "n1", models.TimerStimulus{Event: models.TimerEventTimeout})
	if !ok || target != "t_timeout" {
		t.Fatalf("expected timeout edge target t_timeout, got %q (ok=%v)", target, ok)
	}

	target, ok = Resolve(edges, "n1", models.AvailabilityStimulus{Result: models.AvailabilityResultAvailable})
	if !ok || target != "t_avail" {
		t.Fatalf("expected availability edge target t_avail, got %q (ok=%v)", target, ok)
	}

	// An unmatched condition value drops to the fallback.
	target, ok = Resolve(edges, "n1", models.AvailabilityStimulus{Result: models.AvailabilityResultUnavailable})
	if !ok || target != "t_fb" {
		t.Errorf("unmatched availability should hit fallback, got %q (ok=%v)", target, ok)
	}
}

func TestResolveFallbackLosesToSpecificMatch(t *testing.T) {
	// Fallback listed before the keyword edge must still lose to it.
	edges := []models.Edge{
		{ID: "e_fb", SourceNodeID: "n1", TargetNodeID: "t_fb", ConditionKind: models.ConditionFallback},
		{ID: "e_kw", SourceNodeID: "n1", TargetNodeID: "t_kw", ConditionKind: models.ConditionKeywordMatch, ConditionValue: "help"},
	}
	target, ok := Resolve(edges, "n1", models.TextStimulus{Text: "I need help"})
	if !ok || target != "t_kw" {
		t.Fatalf("keyword match must win over fallback regardless of edge order, got %q (ok=%v)", target, ok)
	}
}

func TestResolveNoMatch(t *testing.T) {
	edges := []models.Edge{
		{ID: "e_kw", SourceNodeID: "n1", TargetNodeID: "t_kw", ConditionKind: models.ConditionKeywordMatch, ConditionValue: "help"},
	}
	if target, ok := Resolve(edges, "n1", models.TextStimulus{Text: "hello"}); ok {
		t.Fatalf("expected no match without a fallback edge, got %q", target)
	}

	// Edges from other nodes never match.
	if target, ok := Resolve(edges, "n2", models.TextStimulus{Text: "help"}); ok {
		t.Errorf("edges of other nodes must not match, got %q", target)
	}
}

func TestResolveNoneConditionActsAsFallback(t *testing.T) {
	edges := []models.Edge{
		{ID: "e_none", SourceNodeID: "n1", TargetNodeID: "t_next"},
	}
	target, ok := Resolve(edges, "n1", models.TextStimulus{Text: "anything"})
	if !ok || target != "t_next" {
		t.Fatalf("condition-less node edge should act as fallback, got %q (ok=%v)", target, ok)
	}
}
