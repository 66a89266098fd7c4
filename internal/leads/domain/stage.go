package domain

// Stage names used in history entries and logs.
const (
	StageEnrichment = "enrichment"
	StageScoring    = "scoring"
	StageOutreach   = "outreach"
	StageScheduling = "scheduling"

	// StageFollowUp records follow-up lifecycle events outside the batch (fire, cancel, stale).
	StageFollowUp = "followup"
	// StageFailure records a per-lead failure marker.
	StageFailure = "failure"

	// StageStatusChange records a manual status change after the batch.
	StageStatusChange = "status_change"
)

// PipelineStages lists the batch stages in the order they run for one lead.
var PipelineStages = []string{
	StageEnrichment,
	StageScoring,
	StageOutreach,
	StageScheduling,
}

var knownStages = map[string]struct{}{
	StageEnrichment: {},
	StageScoring:    {},
	StageOutreach:   {},
	StageScheduling: {},
	StageFollowUp:   {},
	StageFailure:    {},

	StageStatusChange: {},
}

// IsKnownStage reports whether stage may be recorded in the history log.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// Outcome values recorded with history entries.
const (
	OutcomeCompleted  = "completed"
	OutcomeIncomplete = "incomplete"
	OutcomeSkipped    = "skipped"
	OutcomeScheduled  = "scheduled"
	OutcomeCancelled  = "cancelled"
	OutcomeFired      = "fired"
	OutcomeStale      = "stale"
	OutcomeFailed     = "failed"
)
