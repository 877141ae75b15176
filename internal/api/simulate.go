// Package api provides the scripted preview simulation endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/FlowCanvas/internal/flow"
	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// stimulusDoc is one scripted input. Exactly one field should be set; the
// first non-empty field wins in the order option, timer, availability, text.
type stimulusDoc struct {
	OptionID     string `json:"option_id,omitempty"`
	Text         string `json:"text,omitempty"`
	TimerEvent   string `json:"timer_event,omitempty"`
	Availability string `json:"availability,omitempty"`
}

// toStimulus converts the document form to the resolver's stimulus union.
func (d stimulusDoc) toStimulus() models.Stimulus {
	switch {
	case d.OptionID != "":
		return models.OptionStimulus{OptionID: d.OptionID}
	case d.TimerEvent != "":
		return models.TimerStimulus{Event: models.TimerEvent(d.TimerEvent)}
	case d.Availability != "":
		return models.AvailabilityStimulus{Result: models.AvailabilityResult(d.Availability)}
	default:
		return models.TextStimulus{Text: d.Text}
	}
}

// simulateRequest is the payload for POST /flows/{flowID}/simulate.
type simulateRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
	Stimuli   []stimulusDoc     `json:"stimuli,omitempty"`
}

// simulateResponse is the transcript and final simulator position.
type simulateResponse struct {
	Transcript    []flow.Turn `json:"transcript"`
	CurrentNodeID string      `json:"current_node_id"`
	Halted        bool        `json:"halted"`
}

// simulateHandler handles POST /flows/{flowID}/simulate: replays the scripted
// stimuli against a frozen snapshot of the flow and returns the transcript.
// The editing session itself is never touched.
func (s *Server) simulateHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	sim := flow.NewSimulator(session.Snapshot(), flow.WithVariables(req.Variables))
	if err := sim.Start(); err != nil {
		writeError(w, err)
		return
	}
	for _, doc := range req.Stimuli {
		sim.Input(doc.toStimulus())
		if sim.Halted() {
			break
		}
	}

	writeJSONResponse(w, http.StatusOK, models.Success(simulateResponse{
		Transcript:    sim.Transcript(),
		CurrentNodeID: sim.CurrentNodeID(),
		Halted:        sim.Halted(),
	}))
}
