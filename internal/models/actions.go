// Package models defines the core data structures for FlowCanvas.
//
// This file defines the action kinds and their configuration payloads.
package models

import (
	"encoding/json"
	"fmt"
)

// ActionKind identifies the side effect an action node performs.
type ActionKind string

const (
	// ActionSendMedia sends an image, audio or document attachment.
	ActionSendMedia ActionKind = "send_media"
	// ActionCheckAvailability checks calendar availability for a booking.
	ActionCheckAvailability ActionKind = "check_availability"
	// ActionCheckStaffAvailability checks whether any staff member is on shift.
	ActionCheckStaffAvailability ActionKind = "check_staff_availability"
	// ActionHandoff hands the conversation to a human operator.
	ActionHandoff ActionKind = "handoff"
	// ActionDisableBot stops automated replies for the conversation.
	ActionDisableBot ActionKind = "disable_bot"
	// ActionQualify asks the runtime to qualify the lead with extra context.
	ActionQualify ActionKind = "qualify"
)

// IsValidActionKind checks if the given action kind is supported.
func IsValidActionKind(k ActionKind) bool {
	switch k {
	case ActionSendMedia, ActionCheckAvailability, ActionCheckStaffAvailability,
		ActionHandoff, ActionDisableBot, ActionQualify:
		return true
	default:
		return false
	}
}

// ProducesAvailability reports whether the action kind yields an
// available/unavailable outcome that availability edges key on.
func (k ActionKind) ProducesAvailability() bool {
	return k == ActionCheckAvailability || k == ActionCheckStaffAvailability
}

// ActionConfig is the configuration payload of a node, with one concrete
// shape per (node kind, action kind) tag so each configuration is
// exhaustively checkable.
type ActionConfig interface {
	configKind() string
}

// DelayConfig configures a delay node.
type DelayConfig struct {
	DelaySeconds int `json:"delay_seconds"`
}

func (DelayConfig) configKind() string { return "delay" }

// TimerConfig configures a timer node's response deadline.
type TimerConfig struct {
	TimeoutMinutes int `json:"timeout_minutes"`
}

func (TimerConfig) configKind() string { return "timer" }

// MediaConfig configures a send-media action.
type MediaConfig struct {
	MediaURL string `json:"media_url"`
	Caption  string `json:"caption,omitempty"`
}

func (MediaConfig) configKind() string { return "media" }

// QualifyConfig configures a qualify action.
type QualifyConfig struct {
	QualifyContext string `json:"qualify_context"`
}

func (QualifyConfig) configKind() string { return "qualify" }

// AvailabilityConfig configures an availability-check action.
type AvailabilityConfig struct {
	CalendarID string `json:"calendar_id,omitempty"`
}

func (AvailabilityConfig) configKind() string { return "availability" }

// MarshalActionConfig serializes a node's configuration to its JSON storage
// form. A nil config serializes to the empty string.
func MarshalActionConfig(cfg ActionConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal action config: %w", err)
	}
	return string(data), nil
}

// UnmarshalActionConfig parses the stored JSON form into the concrete shape
// selected by the node kind and action kind. Unknown tags yield a nil config
// rather than an untyped map.
func UnmarshalActionConfig(kind NodeKind, actionKind ActionKind, data string) (ActionConfig, error) {
	if data == "" {
		return nil, nil
	}
	var cfg ActionConfig
	switch {
	case kind == NodeKindDelay:
		cfg = &DelayConfig{}
	case kind == NodeKindTimer:
		cfg = &TimerConfig{}
	case kind == NodeKindAction && actionKind == ActionSendMedia:
		cfg = &MediaConfig{}
	case kind == NodeKindAction && actionKind == ActionQualify:
		cfg = &QualifyConfig{}
	case kind == NodeKindAction && actionKind.ProducesAvailability():
		cfg = &AvailabilityConfig{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("unmarshal action config for kind %s: %w", kind, err)
	}
	return cfg, nil
}
