package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one immutable audit record. Seq is assigned by the log on
// append and orders entries for the same lead.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	LeadID    string          `json:"leadId"`
	RunID     string          `json:"runId,omitempty"`
	Stage     string          `json:"stage"`
	Outcome   string          `json:"outcome"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewHistoryEntry builds an entry with a snapshot of payload. The payload is
// marshalled immediately so later changes to the source value are not seen.
func NewHistoryEntry(leadID, runID, stage, outcome string, payload any) (HistoryEntry, error) {
	if !IsKnownStage(stage) {
		return HistoryEntry{}, fmt.Errorf("unknown history stage %q", stage)
	}
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		RunID:     runID,
		Stage:     stage,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return HistoryEntry{}, fmt.Errorf("marshal %s payload: %w", stage, err)
		}
		entry.Payload = raw
	}
	return entry, nil
}

// Decode unmarshals the payload snapshot into v.
func (e HistoryEntry) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("history entry %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// ScoringSnapshot is the payload of a scoring history entry.
type ScoringSnapshot struct {
	Score      int            `json:"score"`
	Status     Status         `json:"status"`
	Breakdown  map[string]int `json:"breakdown"`
	Reasons    []string       `json:"reasons,omitempty"`
	Thresholds ThresholdTable `json:"thresholds"`
}
