package service

import (
	"context"
	"testing"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/internal/leads/transport"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/retry"
)

func newQueryService(t *testing.T) (*Service, *pipelineFixture) {
	t.Helper()
	f := newPipeline(t, nil, 2)
	return New(f.orch, f.store, f.history, f.followups), f
}

func TestQualifyWithLabelsReportsMetrics(t *testing.T) {
	svc, _ := newQueryService(t)

	resp, err := svc.Qualify(context.Background(), transport.QualifyBatchRequest{
		Leads:  []domain.InputRow{acmeRow, shopRightRow},
		Labels: map[string]string{"L1": "qualified", "L2": "Qualified "},
	})
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	m := resp.Metrics
	if m == nil {
		t.Fatal("expected metrics when labels are supplied")
	}
	if m.TruePositives != 1 || m.FalseNegatives != 1 || m.Precision != 1 || m.Recall != 0.5 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestQualifyWithoutLabelsHasNoMetrics(t *testing.T) {
	svc, _ := newQueryService(t)

	resp, err := svc.Qualify(context.Background(), transport.QualifyBatchRequest{Leads: []domain.InputRow{acmeRow}})
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if resp.Metrics != nil || len(resp.Leads) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _ := newQueryService(t)
	ctx := context.Background()
	if _, err := svc.Qualify(ctx, transport.QualifyBatchRequest{Leads: []domain.InputRow{acmeRow, shopRightRow}}); err != nil {
		t.Fatalf("qualify: %v", err)
	}

	all, err := svc.List(ctx, transport.ListLeadsRequest{})
	if err != nil || all.Total != 2 {
		t.Fatalf("expected 2 leads, got %d (%v)", all.Total, err)
	}
	nurture, err := svc.List(ctx, transport.ListLeadsRequest{Status: "nurture"})
	if err != nil || nurture.Total != 1 || nurture.Items[0].ID != "L2" {
		t.Fatalf("expected only L2, got %+v (%v)", nurture, err)
	}
}

func TestHistoryOfUnknownLeadIsNotFound(t *testing.T) {
	svc, _ := newQueryService(t)
	if _, err := svc.History(context.Background(), "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelFollowUpThroughService(t *testing.T) {
	svc, f := newQueryService(t)
	ctx := context.Background()
	if _, err := svc.Qualify(ctx, transport.QualifyBatchRequest{Leads: []domain.InputRow{acmeRow}}); err != nil {
		t.Fatalf("qualify: %v", err)
	}

	first, err := svc.CancelFollowUp(ctx, "L1")
	if err != nil || !first.Cancelled {
		t.Fatalf("expected cancellation, got %+v (%v)", first, err)
	}
	second, err := svc.CancelFollowUp(ctx, "L1")
	if err != nil || second.Cancelled {
		t.Fatalf("second cancel must be a no-op, got %+v (%v)", second, err)
	}
	if _, ok := f.followups.Active("L1"); ok {
		t.Fatal("follow-up still active after cancel")
	}

	history, err := svc.History(ctx, "L1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := history.Items[len(history.Items)-1]
	if last.Stage != domain.StageFollowUp || last.Outcome != domain.OutcomeCancelled {
		t.Fatalf("expected a cancellation entry last, got %s/%s", last.Stage, last.Outcome)
	}
}

func TestEvaluateUsesStoreWhenNoPredictions(t *testing.T) {
	svc, _ := newQueryService(t)
	ctx := context.Background()
	if _, err := svc.Qualify(ctx, transport.QualifyBatchRequest{Leads: []domain.InputRow{acmeRow, shopRightRow}}); err != nil {
		t.Fatalf("qualify: %v", err)
	}

	m, err := svc.Evaluate(ctx, transport.EvaluateRequest{Labels: map[string]string{"L1": "qualified", "L2": "nurture", "L9": "qualified"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m.TruePositives != 1 || m.TrueNegatives != 1 || m.FalseNegatives != 1 || len(m.Unpredicted) != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}

	if _, err := svc.Evaluate(ctx, transport.EvaluateRequest{
		Labels:      map[string]string{"L1": "qualified"},
		Predictions: map[string]string{"L1": "hot"},
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown prediction, got %v", err)
	}
}

// racingStore lets another writer change the status right before the first
// compare-and-set, so that swap sees a stale expected status.
type racingStore struct {
	*repository.MemoryStore
	concurrent domain.Status
	raced      bool
	conflicts  int
}

func (s *racingStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) (domain.LeadRecord, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.Upsert(ctx, id, func(rec *domain.LeadRecord) error {
			rec.Status = s.concurrent
			return nil
		}); err != nil {
			return domain.LeadRecord{}, err
		}
	}
	rec, err := s.MemoryStore.CompareAndSetStatus(ctx, id, expected, next)
	if apperr.Is(err, apperr.KindStoreConflict) {
		s.conflicts++
	}
	return rec, err
}

func TestChangeStatusRetriesAfterConcurrentChange(t *testing.T) {
	f := newPipeline(t, nil, 2)
	ctx := context.Background()
	if _, err := f.orch.Run(ctx, []domain.InputRow{acmeRow}, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	old, ok := f.followups.Active("L1")
	if !ok || old.ForStatus != domain.StatusQualified {
		t.Fatalf("expected a first-touch follow-up, got %+v", old)
	}

	store := &racingStore{MemoryStore: f.store, concurrent: domain.StatusNurture}
	svc := New(f.orch, store, f.history, f.followups)

	rec, err := svc.ChangeStatus(ctx, "L1", domain.StatusDisqualified)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if store.conflicts != 1 {
		t.Fatalf("expected exactly one conflict, got %d", store.conflicts)
	}
	if rec.Status != domain.StatusDisqualified {
		t.Fatalf("expected disqualified, got %s", rec.Status)
	}
	if _, ok := f.followups.Active("L1"); ok {
		t.Fatal("old follow-up still active")
	}
	if rec.FollowUp == nil || !rec.FollowUp.Cancelled || rec.FollowUp.State != domain.FollowUpUnscheduled {
		t.Fatalf("expected the old follow-up cancelled, got %+v", rec.FollowUp)
	}
	if err := f.followups.Fire(ctx, "L1", old.Token); err != nil {
		t.Fatalf("firing the replaced token must be a no-op: %v", err)
	}

	entries := f.historyOf(t, "L1")
	last := entries[len(entries)-1]
	if last.Stage != domain.StageStatusChange {
		t.Fatalf("expected a status change entry last, got %s", last.Stage)
	}
	var change struct {
		From     domain.Status `json:"from"`
		To       domain.Status `json:"to"`
		Attempts int           `json:"attempts"`
	}
	if err := last.Decode(&change); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if change.From != domain.StatusNurture || change.To != domain.StatusDisqualified || change.Attempts != 2 {
		t.Fatalf("unexpected status change payload %+v", change)
	}
}

func TestChangeStatusReschedulesFollowUp(t *testing.T) {
	svc, f := newQueryService(t)
	ctx := context.Background()
	if _, err := svc.Qualify(ctx, transport.QualifyBatchRequest{Leads: []domain.InputRow{shopRightRow}}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	old, _ := f.followups.Active("L2")

	rec, err := svc.ChangeStatus(ctx, "L2", domain.StatusQualified)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	now, ok := f.followups.Active("L2")
	if !ok || now.Token == old.Token || now.Kind != domain.ActionFirstTouch {
		t.Fatalf("expected a new first-touch follow-up, got %+v", now)
	}
	if rec.FollowUp == nil || rec.FollowUp.Token != now.Token {
		t.Fatalf("record does not carry the new follow-up: %+v", rec.FollowUp)
	}

	same, err := svc.ChangeStatus(ctx, "L2", domain.StatusQualified)
	if err != nil || same.FollowUp.Token != now.Token {
		t.Fatalf("unchanged status must not reschedule, got %+v (%v)", same.FollowUp, err)
	}
}

func TestChangeStatusErrors(t *testing.T) {
	svc, f := newQueryService(t)
	ctx := context.Background()

	if _, err := svc.ChangeStatus(ctx, "missing", domain.StatusNurture); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, "L1", domain.Status("hot")); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.orch.Run(ctx, []domain.InputRow{acmeRow}, RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	always := &flappingStore{MemoryStore: f.store}
	svc = New(f.orch, always, f.history, f.followups)
	svc.statusRetry = retry.NewPolicy(3, 0, 0)
	if _, err := svc.ChangeStatus(ctx, "L1", domain.StatusNurture); !apperr.Is(err, apperr.KindStoreConflict) {
		t.Fatalf("expected store conflict after exhausting retries, got %v", err)
	}
	if always.calls != 3 {
		t.Fatalf("expected 3 swap attempts, got %d", always.calls)
	}
}

// flappingStore fails every swap as if the status changed underneath it.
type flappingStore struct {
	*repository.MemoryStore
	calls int
}

func (s *flappingStore) CompareAndSetStatus(context.Context, string, domain.Status, domain.Status) (domain.LeadRecord, error) {
	s.calls++
	return domain.LeadRecord{}, apperr.StoreConflict("status changed")
}
