package editor

import (
	"math"
	"testing"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// fakeMutator records the canvas-driven mutations.
type fakeMutator struct {
	moves   []models.Position
	moveIDs []string
	edges   [][3]string
	edgeErr error
}

func (m *fakeMutator) MoveNode(nodeID string, x, y float64) error {
	m.moveIDs = append(m.moveIDs, nodeID)
	m.moves = append(m.moves, models.Position{X: x, Y: y})
	return nil
}

func (m *fakeMutator) AddEdge(sourceNodeID, targetNodeID, sourceOptionID string) (models.Edge, error) {
	if m.edgeErr != nil {
		return models.Edge{}, m.edgeErr
	}
	m.edges = append(m.edges, [3]string{sourceNodeID, targetNodeID, sourceOptionID})
	return models.Edge{ID: "e_new", SourceNodeID: sourceNodeID, TargetNodeID: targetNodeID, SourceOptionID: sourceOptionID}, nil
}

func TestCanvasPanLifecycle(t *testing.T) {
	c := NewCanvas(&fakeMutator{})
	if c.State() != StateIdle {
		t.Fatalf("new canvas should be idle, got %s", c.State())
	}

	c.PressBackground(100, 100)
	if c.State() != StatePanning {
		t.Fatalf("background press should start panning, got %s", c.State())
	}
	c.Move(130, 80)
	if x, y := c.Pan(); x != 30 || y != -20 {
		t.Errorf("pan delta wrong: %v,%v", x, y)
	}
	c.Release()
	if c.State() != StateIdle {
		t.Errorf("release should return to idle, got %s", c.State())
	}
	if x, y := c.Pan(); x != 30 || y != -20 {
		t.Errorf("pan offset must survive release: %v,%v", x, y)
	}
}

func TestCanvasNodeDragUsesGrabOffset(t *testing.T) {
	m := &fakeMutator{}
	c := NewCanvas(m)

	// Grab a node at (200,150) with the pointer 10,5 inside it.
	c.PressNodeHeader("n1", models.Position{X: 200, Y: 150}, 210, 155)
	if c.State() != StateDraggingNode {
		t.Fatalf("node press should start dragging, got %s", c.State())
	}

	c.Move(260, 175)
	if len(m.moves) != 1 || m.moveIDs[0] != "n1" {
		t.Fatalf("drag should move n1 once, got %v", m.moveIDs)
	}
	// Node position follows the pointer minus the grab offset.
	if m.moves[0].X != 250 || m.moves[0].Y != 170 {
		t.Errorf("dragged position wrong: %+v", m.moves[0])
	}

	c.Release()
	if c.State() != StateIdle {
		t.Errorf("release should end dragging, got %s", c.State())
	}
}

func TestCanvasDragAccountsForTransform(t *testing.T) {
	m := &fakeMutator{}
	c := NewCanvas(m)
	c.Wheel(50, -30)
	c.Pinch(0.5)

	// Node at canvas (100,100); compute its device position under the
	// transform to press exactly on its corner.
	deviceX := 100*c.Zoom() + 50
	deviceY := 100*c.Zoom() - 30
	c.PressNodeHeader("n1", models.Position{X: 100, Y: 100}, deviceX, deviceY)
	c.Move(deviceX+10, deviceY+10)

	// A 10-device-pixel move at zoom 0.5 is 20 canvas units.
	if math.Abs(m.moves[0].X-120) > 1e-9 || math.Abs(m.moves[0].Y-120) > 1e-9 {
		t.Fatalf("transformed drag wrong: %+v", m.moves[0])
	}
}

func TestCanvasToCanvasInvertsTransform(t *testing.T) {
	c := NewCanvas(&fakeMutator{})
	c.Wheel(40, 60)
	c.Pinch(1.5)

	x, y := c.ToCanvas(40+15*c.Zoom(), 60+25*c.Zoom())
	if math.Abs(x-15) > 1e-9 || math.Abs(y-25) > 1e-9 {
		t.Fatalf("ToCanvas inversion wrong: %v,%v", x, y)
	}
}

func TestCanvasZoomClamp(t *testing.T) {
	c := NewCanvas(&fakeMutator{})

	c.Pinch(0.01)
	if c.Zoom() != MinZoom {
		t.Errorf("zoom should clamp to %v, got %v", MinZoom, c.Zoom())
	}
	c.Pinch(1000)
	if c.Zoom() != MaxZoom {
		t.Errorf("zoom should clamp to %v, got %v", MaxZoom, c.Zoom())
	}
	c.Pinch(-1)
	if c.Zoom() != MaxZoom {
		t.Errorf("non-positive factor must be ignored, got %v", c.Zoom())
	}
}

func TestCanvasConnectionLifecycle(t *testing.T) {
	m := &fakeMutator{}
	c := NewCanvas(m)

	c.StartConnection("n1", "o1")
	if c.State() != StateConnecting {
		t.Fatalf("expected connecting state, got %s", c.State())
	}

	// A connection survives pointer release.
	c.Release()
	if c.State() != StateConnecting {
		t.Fatalf("release must not abort a pending connection, got %s", c.State())
	}

	edge, made, err := c.TapNode("n2")
	if err != nil || !made {
		t.Fatalf("TapNode failed: made=%v err=%v", made, err)
	}
	if edge.SourceNodeID != "n1" || edge.TargetNodeID != "n2" || edge.SourceOptionID != "o1" {
		t.Errorf("edge endpoints wrong: %+v", edge)
	}
	if c.State() != StateIdle {
		t.Errorf("completing a connection should return to idle, got %s", c.State())
	}

	// Tapping outside a connection does nothing.
	if _, made, _ := c.TapNode("n3"); made {
		t.Error("TapNode outside connecting state must be a no-op")
	}
}

func TestCanvasConnectionCancel(t *testing.T) {
	m := &fakeMutator{}
	c := NewCanvas(m)

	c.StartConnection("n1", "")
	c.Cancel()
	if c.State() != StateIdle {
		t.Fatalf("cancel should return to idle, got %s", c.State())
	}
	if _, made, _ := c.TapNode("n2"); made {
		t.Error("cancelled connection must not complete")
	}
	if len(m.edges) != 0 {
		t.Errorf("no edge should exist after cancel, got %v", m.edges)
	}
}

func TestCanvasConnectionRejection(t *testing.T) {
	m := &fakeMutator{edgeErr: models.ErrDuplicateEdge}
	c := NewCanvas(m)

	c.StartConnection("n1", "")
	_, made, err := c.TapNode("n2")
	if made || err == nil {
		t.Fatalf("rejected edge should surface the error, made=%v err=%v", made, err)
	}
	if c.State() != StateIdle {
		t.Errorf("rejection still ends the gesture, got %s", c.State())
	}
}

func TestCanvasGestureExclusivity(t *testing.T) {
	c := NewCanvas(&fakeMutator{})

	c.PressNodeHeader("n1", models.Position{}, 0, 0)
	// While dragging, other gesture starts are ignored.
	c.PressBackground(10, 10)
	if c.State() != StateDraggingNode {
		t.Errorf("background press during drag must be ignored, got %s", c.State())
	}
	c.StartConnection("n2", "")
	if c.State() != StateDraggingNode {
		t.Errorf("connection start during drag must be ignored, got %s", c.State())
	}

	// Wheel pans only when no node gesture claims the pointer.
	x0, y0 := c.Pan()
	c.Wheel(5, 5)
	if x, y := c.Pan(); x != x0 || y != y0 {
		t.Error("wheel during node drag must be ignored")
	}
}
