// Package editor implements the interactive editing session.
//
// This file models the canvas interaction state machine. The original
// editor kept drag/pan/connect state as scattered component-local variables;
// here it is an explicit machine with named states so canvas behavior is
// testable without any rendering.
package editor

import (
	"log/slog"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// Zoom clamp bounds.
const (
	MinZoom = 0.25
	MaxZoom = 2.0
)

// CanvasState names the interaction mode the canvas is in.
type CanvasState string

const (
	// StateIdle means no gesture is in progress.
	StateIdle CanvasState = "idle"
	// StatePanning means a pointer drag on empty background is translating the view.
	StatePanning CanvasState = "panning"
	// StateDraggingNode means a node follows the pointer.
	StateDraggingNode CanvasState = "draggingNode"
	// StateConnecting means an output handle was activated and the next
	// node tap completes an edge.
	StateConnecting CanvasState = "connecting"
)

// GraphMutator is the slice of the graph store the canvas drives.
type GraphMutator interface {
	MoveNode(nodeID string, x, y float64) error
	AddEdge(sourceNodeID, targetNodeID, sourceOptionID string) (models.Edge, error)
}

// Canvas turns pointer and touch events into graph store mutations while
// owning the transient pan/zoom/drag state. Pan and zoom are purely
// presentational and never persisted except indirectly through node
// positions.
type Canvas struct {
	store GraphMutator

	state CanvasState
	panX  float64
	panY  float64
	zoom  float64

	lastDeviceX float64
	lastDeviceY float64

	dragNodeID  string
	grabOffsetX float64
	grabOffsetY float64

	connectSourceNodeID   string
	connectSourceOptionID string
}

// NewCanvas creates an idle canvas at identity transform.
func NewCanvas(store GraphMutator) *Canvas {
	return &Canvas{store: store, state: StateIdle, zoom: 1.0}
}

// State returns the current interaction state.
func (c *Canvas) State() CanvasState { return c.state }

// Zoom returns the current zoom scalar.
func (c *Canvas) Zoom() float64 { return c.zoom }

// Pan returns the current translation offset in device coordinates.
func (c *Canvas) Pan() (x, y float64) { return c.panX, c.panY }

// ToCanvas converts device coordinates to canvas space by inverting the
// current pan/zoom transform.
func (c *Canvas) ToCanvas(deviceX, deviceY float64) (x, y float64) {
	return (deviceX - c.panX) / c.zoom, (deviceY - c.panY) / c.zoom
}

// PressBackground starts panning: the pointer landed on empty canvas.
// Only effective from idle.
func (c *Canvas) PressBackground(deviceX, deviceY float64) {
	if c.state != StateIdle {
		return
	}
	c.state = StatePanning
	c.lastDeviceX, c.lastDeviceY = deviceX, deviceY
	slog.Debug("Canvas.PressBackground: panning started")
}

// PressNodeHeader starts dragging the node. The pointer's offset inside the
// node is captured so the node follows without snapping to the pointer.
func (c *Canvas) PressNodeHeader(nodeID string, nodePos models.Position, deviceX, deviceY float64) {
	if c.state != StateIdle {
		return
	}
	cx, cy := c.ToCanvas(deviceX, deviceY)
	c.state = StateDraggingNode
	c.dragNodeID = nodeID
	c.grabOffsetX = cx - nodePos.X
	c.grabOffsetY = cy - nodePos.Y
	slog.Debug("Canvas.PressNodeHeader: dragging started", "nodeID", nodeID)
}

// StartConnection arms a pending connection from a node's (or option's)
// output handle.
func (c *Canvas) StartConnection(sourceNodeID, sourceOptionID string) {
	if c.state != StateIdle {
		return
	}
	c.state = StateConnecting
	c.connectSourceNodeID = sourceNodeID
	c.connectSourceOptionID = sourceOptionID
	slog.Debug("Canvas.StartConnection: connecting", "sourceNodeID", sourceNodeID, "sourceOptionID", sourceOptionID)
}

// TapNode completes a pending connection: while connecting, any node's whole
// body is a drop target. Returns the created edge when one was made.
func (c *Canvas) TapNode(targetNodeID string) (models.Edge, bool, error) {
	if c.state != StateConnecting {
		return models.Edge{}, false, nil
	}
	source, option := c.connectSourceNodeID, c.connectSourceOptionID
	c.reset()
	edge, err := c.store.AddEdge(source, targetNodeID, option)
	if err != nil {
		slog.Debug("Canvas.TapNode: connection rejected", "error", err)
		return models.Edge{}, false, err
	}
	return edge, true, nil
}

// Move handles pointer movement for the active gesture: panning translates
// the view, dragging moves the grabbed node in canvas space.
func (c *Canvas) Move(deviceX, deviceY float64) {
	switch c.state {
	case StatePanning:
		c.panX += deviceX - c.lastDeviceX
		c.panY += deviceY - c.lastDeviceY
		c.lastDeviceX, c.lastDeviceY = deviceX, deviceY
	case StateDraggingNode:
		cx, cy := c.ToCanvas(deviceX, deviceY)
		if err := c.store.MoveNode(c.dragNodeID, cx-c.grabOffsetX, cy-c.grabOffsetY); err != nil {
			slog.Error("Canvas.Move: move rejected", "nodeID", c.dragNodeID, "error", err)
		}
	}
}

// Wheel translates the view. Active only when no node gesture is claiming
// the pointer.
func (c *Canvas) Wheel(deltaX, deltaY float64) {
	if c.state != StateIdle && c.state != StatePanning {
		return
	}
	c.panX += deltaX
	c.panY += deltaY
}

// Pinch scales the zoom by the given factor, clamped to [MinZoom, MaxZoom].
func (c *Canvas) Pinch(factor float64) {
	if factor <= 0 {
		return
	}
	c.zoom *= factor
	if c.zoom < MinZoom {
		c.zoom = MinZoom
	}
	if c.zoom > MaxZoom {
		c.zoom = MaxZoom
	}
}

// Release ends the active drag or pan gesture. A pending connection
// survives release; it completes on the next node tap or cancels explicitly.
func (c *Canvas) Release() {
	if c.state == StatePanning || c.state == StateDraggingNode {
		c.reset()
	}
}

// Cancel aborts any gesture, including a pending connection.
func (c *Canvas) Cancel() {
	c.reset()
}

func (c *Canvas) reset() {
	c.state = StateIdle
	c.dragNodeID = ""
	c.grabOffsetX, c.grabOffsetY = 0, 0
	c.connectSourceNodeID, c.connectSourceOptionID = "", ""
}
