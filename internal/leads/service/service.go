// Package service exposes the qualification pipeline and lead queries to the
// HTTP layer.
package service

import (
	"context"
	"fmt"
	"time"

	"smartsales_backend/internal/evaluation"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/internal/leads/transport"
	"smartsales_backend/internal/scheduler"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/retry"
)

// FollowUpManager reschedules and cancels a lead's follow-up.
type FollowUpManager interface {
	FollowUpScheduler
	Cancel(ctx context.Context, leadID string) (bool, error)
}

type Service struct {
	orchestrator *Orchestrator
	store        repository.RecordStore
	history      repository.HistoryLog
	followups    FollowUpManager
	statusRetry  retry.Policy
}

func New(orchestrator *Orchestrator, store repository.RecordStore, history repository.HistoryLog, followups FollowUpManager) *Service {
	return &Service{
		orchestrator: orchestrator,
		store:        store,
		history:      history,
		followups:    followups,
		statusRetry:  retry.NewPolicy(3, 5*time.Millisecond, 50*time.Millisecond),
	}
}

// Qualify runs a batch and, when labels are supplied, evaluates it.
func (s *Service) Qualify(ctx context.Context, req transport.QualifyBatchRequest) (transport.QualifyBatchResponse, error) {
	result, err := s.orchestrator.Run(ctx, req.Leads, RunOptions{Thresholds: req.Thresholds.Table()})
	if err != nil {
		return transport.QualifyBatchResponse{}, err
	}

	resp := transport.QualifyBatchResponse{BatchResult: result}
	if len(req.Labels) > 0 {
		m := evaluation.Evaluate(result.Predictions(), evaluation.ParseLabels(req.Labels))
		resp.Metrics = &m
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.LeadRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.ListLeadsResponse, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return transport.ListLeadsResponse{}, err
	}

	items := make([]domain.LeadRecord, 0, len(records))
	for _, rec := range records {
		if req.Status != "" && string(rec.Status) != req.Status {
			continue
		}
		items = append(items, rec)
	}
	return transport.ListLeadsResponse{Items: items, Total: len(items)}, nil
}

// History returns the lead's entries in append order. A lead that was never
// seen is reported as not found.
func (s *Service) History(ctx context.Context, id string) (transport.HistoryResponse, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return transport.HistoryResponse{}, err
	}

	items := []domain.HistoryEntry{}
	for entry, err := range s.history.QueryByLead(ctx, id) {
		if err != nil {
			return transport.HistoryResponse{}, err
		}
		items = append(items, entry)
	}
	return transport.HistoryResponse{LeadID: id, Items: items}, nil
}

func (s *Service) CancelFollowUp(ctx context.Context, id string) (transport.CancelFollowUpResponse, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return transport.CancelFollowUpResponse{}, err
	}
	cancelled, err := s.followups.Cancel(ctx, id)
	if err != nil {
		return transport.CancelFollowUpResponse{}, err
	}
	return transport.CancelFollowUpResponse{LeadID: id, Cancelled: cancelled}, nil
}

// ChangeStatus moves a lead to next with a compare-and-set against the status
// it was read with. A concurrent change makes the swap fail with a store
// conflict; the record is then re-read and the swap retried a bounded number
// of times. On success the follow-up is rescheduled for the new status, which
// cancels the old one, and a status change entry is appended to the history.
func (s *Service) ChangeStatus(ctx context.Context, id string, next domain.Status) (domain.LeadRecord, error) {
	if !next.IsKnown() {
		return domain.LeadRecord{}, apperr.Validation(fmt.Sprintf("unknown status %q", next))
	}

	var (
		from    domain.Status
		updated domain.LeadRecord
	)
	attempts, err := s.statusRetry.Do(ctx, func(ctx context.Context, _ int) error {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		if from == next {
			updated = cur
			return nil
		}
		updated, err = s.store.CompareAndSetStatus(ctx, id, from, next)
		if apperr.Is(err, apperr.KindStoreConflict) {
			return retry.Retryable(err)
		}
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindStoreConflict) {
			return domain.LeadRecord{}, apperr.Wrap(apperr.KindStoreConflict,
				fmt.Sprintf("lead %q status kept changing", id), err)
		}
		return domain.LeadRecord{}, err
	}
	if from == next {
		return updated, nil
	}

	followUp, err := s.followups.Schedule(ctx, scheduler.ScheduleRequest{
		LeadID: id,
		Status: next,
		Delays: s.orchestrator.policies.Current().FollowUp,
	})
	if err != nil {
		return domain.LeadRecord{}, err
	}
	updated.FollowUp = &followUp

	entry, err := domain.NewHistoryEntry(id, "", domain.StageStatusChange, domain.OutcomeCompleted, map[string]any{
		"from":     from,
		"to":       next,
		"attempts": attempts,
	})
	if err != nil {
		return domain.LeadRecord{}, err
	}
	if _, err := s.history.Append(ctx, entry); err != nil {
		return domain.LeadRecord{}, err
	}
	return updated, nil
}

func (s *Service) Evaluate(ctx context.Context, req transport.EvaluateRequest) (evaluation.Metrics, error) {
	predictions := make(map[string]domain.Status)
	if len(req.Predictions) > 0 {
		for id, value := range req.Predictions {
			status, ok := domain.ParseStatus(value)
			if !ok {
				return evaluation.Metrics{}, apperr.Validation(fmt.Sprintf("prediction for %q is not a known status: %q", id, value))
			}
			predictions[id] = status
		}
	} else {
		records, err := s.store.List(ctx)
		if err != nil {
			return evaluation.Metrics{}, err
		}
		for _, rec := range records {
			if rec.Status.IsKnown() {
				predictions[rec.ID] = rec.Status
			}
		}
	}
	return evaluation.Evaluate(predictions, evaluation.ParseLabels(req.Labels)), nil
}
