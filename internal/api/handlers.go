// Package api provides HTTP handlers for flow graph editing.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/FlowCanvas/internal/editor"
	"github.com/BTreeMap/FlowCanvas/internal/flowfile"
	"github.com/BTreeMap/FlowCanvas/internal/models"
	"github.com/BTreeMap/FlowCanvas/internal/store"
	"github.com/BTreeMap/FlowCanvas/internal/util"
)

// listFlowsHandler handles GET /flows.
func (s *Server) listFlowsHandler(w http.ResponseWriter, r *http.Request) {
	flows, err := s.repo.ListFlows()
	if err != nil {
		slog.Error("listFlowsHandler failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flows))
}

// createFlowRequest is the payload for POST /flows.
type createFlowRequest struct {
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
}

// createFlowHandler handles POST /flows. A new flow starts with its start node.
func (s *Server) createFlowHandler(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("name is required"))
		return
	}

	flow := models.Flow{
		ID:        util.GenerateFlowID(),
		Name:      req.Name,
		IsActive:  req.IsActive,
		IsDefault: req.IsDefault,
	}
	if err := s.repo.CreateFlow(flow); err != nil {
		slog.Error("createFlowHandler create flow failed", "error", err)
		writeError(w, fmt.Errorf("%w: %v", models.ErrRepositoryFailure, err))
		return
	}
	start := models.Node{
		ID:     util.GenerateNodeID(),
		FlowID: flow.ID,
		Kind:   models.NodeKindStart,
		Title:  "Start",
	}
	if err := s.repo.CreateNode(start); err != nil {
		slog.Error("createFlowHandler create start node failed", "error", err, "flowID", flow.ID)
		writeError(w, fmt.Errorf("%w: %v", models.ErrRepositoryFailure, err))
		return
	}
	slog.Info("createFlowHandler: flow created", "flowID", flow.ID, "name", flow.Name)
	writeJSONResponse(w, http.StatusCreated, models.Success(flow))
}

// getFlowHandler handles GET /flows/{flowID}, returning the session's
// current graph snapshot.
func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session.Snapshot()))
}

// addNodeRequest is the payload for POST /flows/{flowID}/nodes.
type addNodeRequest struct {
	Kind models.NodeKind `json:"kind"`
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
}

// addNodeHandler handles POST /flows/{flowID}/nodes.
func (s *Server) addNodeHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	node, err := session.AddNode(req.Kind, models.Position{X: req.X, Y: req.Y})
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("add_node")
	writeJSONResponse(w, http.StatusCreated, models.Success(node))
}

// duplicateNodeHandler handles POST /nodes/{nodeID}/duplicate.
func (s *Server) duplicateNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	session, err := s.sessionForNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	node, err := session.DuplicateNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("duplicate_node")
	writeJSONResponse(w, http.StatusCreated, models.Success(node))
}

// updateNodeRequest carries partial node edits.
type updateNodeRequest struct {
	Kind                        *models.NodeKind   `json:"kind,omitempty"`
	Title                       *string            `json:"title,omitempty"`
	MessageTemplate             *string            `json:"message_template,omitempty"`
	ActionKind                  *models.ActionKind `json:"action_kind,omitempty"`
	ActionConfig                *json.RawMessage   `json:"action_config,omitempty"`
	ExtractFields               *[]string          `json:"extract_fields,omitempty"`
	RequireExtraction           *bool              `json:"require_extraction,omitempty"`
	AllowFreeformInterpretation *bool              `json:"allow_freeform_interpretation,omitempty"`
}

// updateNodeHandler handles PATCH /nodes/{nodeID}.
func (s *Server) updateNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	session, err := s.sessionForNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	upd := editor.NodeUpdate{
		Kind:                        req.Kind,
		Title:                       req.Title,
		MessageTemplate:             req.MessageTemplate,
		ActionKind:                  req.ActionKind,
		ExtractFields:               req.ExtractFields,
		RequireExtraction:           req.RequireExtraction,
		AllowFreeformInterpretation: req.AllowFreeformInterpretation,
	}
	if req.ActionConfig != nil {
		snapshot := session.Snapshot()
		node, ok := snapshot.NodeByID(nodeID)
		if !ok {
			writeError(w, fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound))
			return
		}
		actionKind := node.ActionKind
		if req.ActionKind != nil {
			actionKind = *req.ActionKind
		}
		cfg, err := models.UnmarshalActionConfig(node.Kind, actionKind, string(*req.ActionConfig))
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		upd.ActionConfig = cfg
	}

	node, err := session.UpdateNode(nodeID, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("update_node")
	writeJSONResponse(w, http.StatusOK, models.Success(node))
}

// deleteNodeHandler handles DELETE /nodes/{nodeID}.
func (s *Server) deleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	session, err := s.sessionForNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.DeleteNode(nodeID); err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("delete_node")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("node deleted", nil))
}

// saveLayoutRequest carries moved node positions.
type saveLayoutRequest struct {
	Positions []store.NodePosition `json:"positions"`
}

// saveLayoutHandler handles PUT /flows/{flowID}/layout: applies the given
// positions locally and batches a single durable write.
func (s *Server) saveLayoutHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req saveLayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	for _, p := range req.Positions {
		if err := session.MoveNode(p.NodeID, p.X, p.Y); err != nil {
			writeError(w, err)
			return
		}
	}
	session.SaveLayout()
	s.countMutation("save_layout")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("layout saved", nil))
}

// addEdgeRequest is the payload for POST /flows/{flowID}/edges.
type addEdgeRequest struct {
	SourceNodeID   string `json:"source_node_id"`
	TargetNodeID   string `json:"target_node_id"`
	SourceOptionID string `json:"source_option_id,omitempty"`
}

// addEdgeHandler handles POST /flows/{flowID}/edges.
func (s *Server) addEdgeHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req addEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	edge, err := session.AddEdge(req.SourceNodeID, req.TargetNodeID, req.SourceOptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("add_edge")
	writeJSONResponse(w, http.StatusCreated, models.Success(edge))
}

// updateEdgeRequest rewrites an edge's condition.
type updateEdgeRequest struct {
	ConditionKind  models.ConditionKind `json:"condition_kind"`
	ConditionValue string               `json:"condition_value"`
}

// updateEdgeHandler handles PATCH /edges/{edgeID}.
func (s *Server) updateEdgeHandler(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")
	session, err := s.sessionForEdge(edgeID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	edge, err := session.UpdateEdgeCondition(edgeID, req.ConditionKind, req.ConditionValue)
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("update_edge")
	writeJSONResponse(w, http.StatusOK, models.Success(edge))
}

// deleteEdgeHandler handles DELETE /edges/{edgeID}.
func (s *Server) deleteEdgeHandler(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")
	session, err := s.sessionForEdge(edgeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.DeleteEdge(edgeID); err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("delete_edge")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("edge deleted", nil))
}

// addOptionRequest is the payload for POST /nodes/{nodeID}/options.
type addOptionRequest struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// addOptionHandler handles POST /nodes/{nodeID}/options.
func (s *Server) addOptionHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	session, err := s.sessionForNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	opt, err := session.AddOption(nodeID, req.Label, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("add_option")
	writeJSONResponse(w, http.StatusCreated, models.Success(opt))
}

// updateOptionRequest carries partial option edits.
type updateOptionRequest struct {
	Label *string `json:"label,omitempty"`
	Value *string `json:"value,omitempty"`
}

// updateOptionHandler handles PATCH /options/{optionID}.
func (s *Server) updateOptionHandler(w http.ResponseWriter, r *http.Request) {
	optionID := chi.URLParam(r, "optionID")
	session, err := s.sessionForOption(optionID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	opt, err := session.UpdateOption(optionID, editor.OptionUpdate{Label: req.Label, Value: req.Value})
	if err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("update_option")
	writeJSONResponse(w, http.StatusOK, models.Success(opt))
}

// deleteOptionHandler handles DELETE /options/{optionID}.
func (s *Server) deleteOptionHandler(w http.ResponseWriter, r *http.Request) {
	optionID := chi.URLParam(r, "optionID")
	session, err := s.sessionForOption(optionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.DeleteOption(optionID); err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("delete_option")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("option deleted", nil))
}

// reorderOptionsRequest is the payload for PUT /nodes/{nodeID}/options/order.
type reorderOptionsRequest struct {
	OptionIDs []string `json:"option_ids"`
}

// reorderOptionsHandler handles PUT /nodes/{nodeID}/options/order.
func (s *Server) reorderOptionsHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	session, err := s.sessionForNode(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reorderOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := session.ReorderOptions(nodeID, req.OptionIDs); err != nil {
		writeError(w, err)
		return
	}
	s.countMutation("reorder_options")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("options reordered", nil))
}

// undoHandler handles POST /flows/{flowID}/undo.
func (s *Server) undoHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !session.Undo() {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("nothing to undo", nil))
		return
	}
	s.countMutation("undo")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("restored", session.Snapshot()))
}

// exportFlowHandler handles GET /flows/{flowID}/export, returning the YAML
// snapshot.
func (s *Server) exportFlowHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := flowfile.Marshal(session.Snapshot())
	if err != nil {
		slog.Error("exportFlowHandler marshal failed", "error", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("exportFlowHandler write failed", "error", err)
	}
}

// importFlowHandler handles POST /flows/import: parses a YAML snapshot,
// validates it and persists every entity under its original ids.
func (s *Server) importFlowHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("failed to read request body"))
		return
	}
	g, err := flowfile.Unmarshal(data)
	if err != nil {
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
		return
	}

	if err := s.repo.CreateFlow(g.Flow); err != nil {
		writeError(w, fmt.Errorf("%w: %v", models.ErrRepositoryFailure, err))
		return
	}
	for _, n := range g.Nodes {
		if err := s.repo.CreateNode(n); err != nil {
			writeError(w, fmt.Errorf("%w: %v", models.ErrRepositoryFailure, err))
			return
		}
	}
	for _, e := range g.Edges {
		if err := s.repo.CreateEdge(e); err != nil {
			writeError(w, fmt.Errorf("%w: %v", models.ErrRepositoryFailure, err))
			return
		}
	}
	slog.Info("importFlowHandler: flow imported", "flowID", g.Flow.ID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	writeJSONResponse(w, http.StatusCreated, models.Success(g.Flow))
}

// sessionForNode locates the open session owning the node. Editing always
// starts by loading a flow, so the lookup only scans open sessions.
func (s *Server) sessionForNode(nodeID string) (*editor.GraphStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if _, ok := session.Snapshot().NodeByID(nodeID); ok {
			return session, nil
		}
	}
	return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
}

// sessionForEdge locates the open session owning the edge.
func (s *Server) sessionForEdge(edgeID string) (*editor.GraphStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if _, ok := session.Snapshot().EdgeByID(edgeID); ok {
			return session, nil
		}
	}
	return nil, fmt.Errorf("edge %s: %w", edgeID, models.ErrNotFound)
}

// sessionForOption locates the open session owning the option.
func (s *Server) sessionForOption(optionID string) (*editor.GraphStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if _, _, ok := session.Snapshot().OptionOwner(optionID); ok {
			return session, nil
		}
	}
	return nil, fmt.Errorf("option %s: %w", optionID, models.ErrNotFound)
}
