package transport

import (
	"smartsales_backend/internal/evaluation"
	"smartsales_backend/internal/leads/domain"
)

// ThresholdsRequest overrides the status boundaries for one batch.
type ThresholdsRequest struct {
	Qualified int `json:"qualified" validate:"gte=0,lte=100"`
	Nurture   int `json:"nurture" validate:"gte=0,lte=100,ltefield=Qualified"`
}

func (t *ThresholdsRequest) Table() *domain.ThresholdTable {
	if t == nil {
		return nil
	}
	return &domain.ThresholdTable{Qualified: t.Qualified, Nurture: t.Nurture}
}

// QualifyBatchRequest submits lead rows to the pipeline. Rows are not
// validated individually here; an invalid row becomes a failure marker in
// the result instead of rejecting the batch.
type QualifyBatchRequest struct {
	Leads      []domain.InputRow  `json:"leads" validate:"required,min=1,max=5000"`
	Thresholds *ThresholdsRequest `json:"thresholds"`
	Labels     map[string]string  `json:"labels"`
}

// QualifyBatchResponse is the batch result, plus metrics when labels were sent.
type QualifyBatchResponse struct {
	domain.BatchResult
	Metrics *evaluation.Metrics `json:"metrics,omitempty"`
}

type ListLeadsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=qualified nurture disqualified"`
}

type ListLeadsResponse struct {
	Items []domain.LeadRecord `json:"items"`
	Total int                 `json:"total"`
}

type HistoryResponse struct {
	LeadID string                `json:"leadId"`
	Items  []domain.HistoryEntry `json:"items"`
}

type CancelFollowUpResponse struct {
	LeadID    string `json:"leadId"`
	Cancelled bool   `json:"cancelled"`
}

// ChangeStatusRequest moves a lead to another status outside a batch.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=qualified nurture disqualified"`
}

// EvaluateRequest compares labels with predictions. Without predictions the
// statuses currently in the record store are used.
type EvaluateRequest struct {
	Labels      map[string]string `json:"labels" validate:"required,min=1"`
	Predictions map[string]string `json:"predictions"`
}
