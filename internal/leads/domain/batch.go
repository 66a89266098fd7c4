package domain

import "time"

// Failure is the per-lead error marker reported in a batch result.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// LeadOutcome is one input row's result: a record snapshot or a failure.
type LeadOutcome struct {
	Row      int         `json:"row"`
	LeadID   string      `json:"leadId"`
	Record   *LeadRecord `json:"record,omitempty"`
	Failure  *Failure    `json:"failure,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// BatchResult lists every input row of a run in input order.
type BatchResult struct {
	RunID      string         `json:"runId"`
	Thresholds ThresholdTable `json:"thresholds"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Leads      []LeadOutcome  `json:"leads"`
}

// Predictions maps every successfully processed lead to its status.
func (b BatchResult) Predictions() map[string]Status {
	out := make(map[string]Status, len(b.Leads))
	for _, l := range b.Leads {
		if l.Record != nil && l.Record.Status.IsKnown() {
			out[l.LeadID] = l.Record.Status
		}
	}
	return out
}

// Failed counts the rows that carry a failure marker.
func (b BatchResult) Failed() int {
	n := 0
	for _, l := range b.Leads {
		if l.Failure != nil {
			n++
		}
	}
	return n
}
