package models

import (
	"errors"
	"testing"
)

// validGraph builds the smallest interesting valid graph: start, question
// with one option, timer, and an end.
func validGraph() *Graph {
	return &Graph{
		Flow: Flow{ID: "f1", Name: "test"},
		Nodes: []Node{
			{ID: "n_start", FlowID: "f1", Kind: NodeKindStart},
			{ID: "n_q", FlowID: "f1", Kind: NodeKindQuestion, Options: []Option{
				{ID: "o1", NodeID: "n_q", Label: "Sim", Value: "yes"},
			}},
			{ID: "n_timer", FlowID: "f1", Kind: NodeKindTimer, Options: []Option{
				{ID: "ot1", NodeID: "n_timer", Label: "Responded", Value: TimerOptionResponded, SortOrder: 0},
				{ID: "ot2", NodeID: "n_timer", Label: "Timed out", Value: TimerOptionTimeout, SortOrder: 1},
			}},
			{ID: "n_end", FlowID: "f1", Kind: NodeKindEnd},
		},
		Edges: []Edge{
			{ID: "e1", FlowID: "f1", SourceNodeID: "n_start", TargetNodeID: "n_q", ConditionKind: ConditionFallback},
			{ID: "e2", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_end", SourceOptionID: "o1", ConditionKind: ConditionOptionSelected, ConditionValue: "yes"},
		},
	}
}

func TestValidateAcceptsValidGraph(t *testing.T) {
	if err := validGraph().Validate(); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}
}

func TestValidateStartUniqueness(t *testing.T) {
	g := validGraph()
	g.Nodes = append(g.Nodes, Node{ID: "n_start2", FlowID: "f1", Kind: NodeKindStart})
	if err := g.Validate(); err == nil {
		t.Fatal("second start node must be rejected")
	}

	g = validGraph()
	g.Nodes[0].Kind = NodeKindMessage
	if err := g.Validate(); err == nil {
		t.Fatal("zero start nodes must be rejected")
	}
}

func TestValidateStartHasNoInbound(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_bad", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_start", ConditionKind: ConditionFallback})
	if err := g.Validate(); err == nil {
		t.Fatal("inbound edge to start must be rejected")
	}
}

func TestValidateEndHasNoOutbound(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_bad", FlowID: "f1", SourceNodeID: "n_end", TargetNodeID: "n_q", ConditionKind: ConditionFallback})
	if err := g.Validate(); err == nil {
		t.Fatal("outbound edge from end must be rejected")
	}
}

func TestValidateReferentialIntegrity(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_bad", FlowID: "f1", SourceNodeID: "n_missing", TargetNodeID: "n_end"})
	if err := g.Validate(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dangling source should fail with ErrNotFound, got %v", err)
	}

	g = validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_bad", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_end", SourceOptionID: "o_missing"})
	if err := g.Validate(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dangling option should fail with ErrNotFound, got %v", err)
	}
}

func TestValidatePerOptionEdgeUniqueness(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_dup", FlowID: "f1", SourceNodeID: "n_q", TargetNodeID: "n_timer", SourceOptionID: "o1", ConditionKind: ConditionOptionSelected, ConditionValue: "yes"})
	if err := g.Validate(); !errors.Is(err, ErrDuplicateEdge) {
		t.Fatalf("second edge per option should fail with ErrDuplicateEdge, got %v", err)
	}
}

func TestValidateSingleFallback(t *testing.T) {
	g := validGraph()
	g.Edges = append(g.Edges, Edge{ID: "e_fb2", FlowID: "f1", SourceNodeID: "n_start", TargetNodeID: "n_timer"})
	if err := g.Validate(); !errors.Is(err, ErrDuplicateEdge) {
		t.Fatalf("second fallback should fail with ErrDuplicateEdge, got %v", err)
	}
}

func TestValidateTimerOptionPair(t *testing.T) {
	g := validGraph()
	timer, _ := g.NodeByID("n_timer")
	timer.Options = timer.Options[:1]
	if err := g.Validate(); !errors.Is(err, ErrTimerOptionsFixed) {
		t.Fatalf("incomplete timer pair should fail, got %v", err)
	}

	g = validGraph()
	timer, _ = g.NodeByID("n_timer")
	timer.Options[0].Value = "custom"
	if err := g.Validate(); !errors.Is(err, ErrTimerOptionsFixed) {
		t.Fatalf("wrong timer option value should fail, got %v", err)
	}
}

func TestValidateAvailabilitySlotUniqueness(t *testing.T) {
	g := validGraph()
	g.Nodes = append(g.Nodes,
		Node{ID: "n_act", FlowID: "f1", Kind: NodeKindAction, ActionKind: ActionCheckAvailability},
		Node{ID: "n_a", FlowID: "f1", Kind: NodeKindMessage},
		Node{ID: "n_b", FlowID: "f1", Kind: NodeKindMessage})
	g.Edges = append(g.Edges,
		Edge{ID: "e_a1", FlowID: "f1", SourceNodeID: "n_act", TargetNodeID: "n_a", ConditionKind: ConditionAvailability, ConditionValue: AvailabilityAvailable},
		Edge{ID: "e_a2", FlowID: "f1", SourceNodeID: "n_act", TargetNodeID: "n_b", ConditionKind: ConditionAvailability, ConditionValue: AvailabilityAvailable})
	if err := g.Validate(); !errors.Is(err, ErrDuplicateEdge) {
		t.Fatalf("duplicate availability slot should fail, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := validGraph()
	cp := g.Clone()

	node, _ := cp.NodeByID("n_q")
	node.Title = "changed"
	node.Options[0].Label = "changed"
	cp.Edges[0].TargetNodeID = "changed"

	orig, _ := g.NodeByID("n_q")
	if orig.Title == "changed" || orig.Options[0].Label == "changed" {
		t.Fatal("clone shares node state with the original")
	}
	if g.Edges[0].TargetNodeID == "changed" {
		t.Fatal("clone shares edge state with the original")
	}
}

func TestIsFallback(t *testing.T) {
	cases := []struct {
		edge Edge
		want bool
	}{
		{Edge{ConditionKind: ConditionFallback}, true},
		{Edge{ConditionKind: ConditionNone}, true},
		{Edge{ConditionKind: ConditionFallback, SourceOptionID: "o1"}, false},
		{Edge{ConditionKind: ConditionKeywordMatch, ConditionValue: "hi"}, false},
	}
	for i, c := range cases {
		if got := c.edge.IsFallback(); got != c.want {
			t.Errorf("case %d: IsFallback = %v, want %v", i, got, c.want)
		}
	}
}

func TestExtractFieldsRoundTrip(t *testing.T) {
	joined := JoinExtractFields([]string{" name ", "phone", "", "name", "date"})
	if joined != "name,phone,date" {
		t.Fatalf("JoinExtractFields = %q", joined)
	}
	fields := SplitExtractFields(joined)
	if len(fields) != 3 || fields[0] != "name" || fields[2] != "date" {
		t.Fatalf("SplitExtractFields = %v", fields)
	}
	if SplitExtractFields("  ") != nil {
		t.Error("blank storage form should split to nil")
	}
}
