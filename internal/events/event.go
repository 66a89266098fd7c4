// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"smartsales_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Qualification Events
// =============================================================================

// LeadScored is published after a lead's score and status were written.
type LeadScored struct {
	BaseEvent
	RunID          string `json:"runId"`
	LeadID         string `json:"leadId"`
	Score          int    `json:"score"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
}

func (e LeadScored) EventName() string { return "leads.scored" }

// LeadFailed is published when a lead could not be processed in a run.
type LeadFailed struct {
	BaseEvent
	RunID  string `json:"runId"`
	LeadID string `json:"leadId"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (e LeadFailed) EventName() string { return "leads.failed" }

// BatchCompleted is published once every lead of a run has a result.
type BatchCompleted struct {
	BaseEvent
	RunID     string `json:"runId"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

func (e BatchCompleted) EventName() string { return "leads.batch.completed" }

// =============================================================================
// Follow-Up Events
// =============================================================================

// FollowUpDue is published when a scheduled follow-up fires for the status it
// was scheduled for.
type FollowUpDue struct {
	BaseEvent
	LeadID  string    `json:"leadId"`
	Kind    string    `json:"kind"`
	Status  string    `json:"status"`
	Token   string    `json:"token"`
	FiredAt time.Time `json:"firedAt"`
}

func (e FollowUpDue) EventName() string { return "followups.due" }
