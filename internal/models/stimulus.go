// Package models defines the core data structures for FlowCanvas.
//
// This file defines the stimulus union that drives transition resolution.
package models

// TimerEvent is the outcome of a timer node's wait.
type TimerEvent string

const (
	// TimerEventResponded indicates the user replied before the deadline.
	TimerEventResponded TimerEvent = TimerOptionResponded
	// TimerEventTimeout indicates the deadline passed without a reply.
	TimerEventTimeout TimerEvent = TimerOptionTimeout
)

// AvailabilityResult is the outcome of an availability-check action.
type AvailabilityResult string

const (
	// AvailabilityResultAvailable indicates the check found availability.
	AvailabilityResultAvailable AvailabilityResult = AvailabilityAvailable
	// AvailabilityResultUnavailable indicates the check found none.
	AvailabilityResultUnavailable AvailabilityResult = AvailabilityUnavailable
)

// Stimulus is the input event that drives transition resolution: an explicit
// option pick, free text, a timer event, or an availability result. Exactly
// one variant implements it per event.
type Stimulus interface {
	stimulus()
}

// OptionStimulus carries an explicit option selection.
type OptionStimulus struct {
	OptionID string `json:"option_id"`
}

func (OptionStimulus) stimulus() {}

// TextStimulus carries unstructured free-text input.
type TextStimulus struct {
	Text string `json:"text"`
}

func (TextStimulus) stimulus() {}

// TimerStimulus carries a timer node outcome.
type TimerStimulus struct {
	Event TimerEvent `json:"event"`
}

func (TimerStimulus) stimulus() {}

// AvailabilityStimulus carries an availability check outcome.
type AvailabilityStimulus struct {
	Result AvailabilityResult `json:"result"`
}

func (AvailabilityStimulus) stimulus() {}
