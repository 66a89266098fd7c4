package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartsales_backend/internal/events"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/outreach"
	"smartsales_backend/internal/leads/policy"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/internal/leads/scoring"
	"smartsales_backend/internal/scheduler"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Enricher derives company signals for one input row.
type Enricher interface {
	Enrich(ctx context.Context, row domain.InputRow) (domain.Enrichment, error)
}

// FollowUpScheduler replaces a lead's follow-up to match its status.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, req scheduler.ScheduleRequest) (domain.FollowUp, error)
}

// Deps are the collaborators of the Orchestrator.
type Deps struct {
	Enricher  Enricher
	Store     repository.RecordStore
	History   repository.HistoryAppender
	Scheduler FollowUpScheduler
	Drafter   *outreach.Drafter
	Policies  *policy.Holder
	Validator *validator.Validator
	Bus       events.Bus
	Log       *logger.Logger
	Workers   int

	// Reasoner replaces the keyword reasoning built from the active policy.
	Reasoner scoring.ReasoningStrategy
}

// RunOptions tune a single batch. A nil Thresholds uses the active policy's
// table; a zero delay in FollowUp keeps the policy's delay for that status.
type RunOptions struct {
	Thresholds *domain.ThresholdTable
	FollowUp   policy.FollowUpDelays
}

// Orchestrator drives a batch of leads through enrichment, scoring, outreach
// and scheduling. Leads run concurrently on a bounded pool; stages of one
// lead run in order, and one lead's failure never aborts the others.
type Orchestrator struct {
	enricher  Enricher
	store     repository.RecordStore
	history   repository.HistoryAppender
	scheduler FollowUpScheduler
	drafter   *outreach.Drafter
	policies  *policy.Holder
	val       *validator.Validator
	bus       events.Bus
	log       *logger.Logger
	workers   int
	reasoner  scoring.ReasoningStrategy

	// leads currently being processed, keyed by id, valued by run id
	activeRuns map[string]string
	runsMu     sync.Mutex
}

func NewOrchestrator(d Deps) *Orchestrator {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		enricher:   d.Enricher,
		store:      d.Store,
		history:    d.History,
		scheduler:  d.Scheduler,
		drafter:    d.Drafter,
		policies:   d.Policies,
		val:        d.Validator,
		bus:        d.Bus,
		log:        d.Log,
		workers:    workers,
		reasoner:   d.Reasoner,
		activeRuns: make(map[string]string),
	}
}

// markRunning claims a lead for runID. It fails if another run holds it.
func (o *Orchestrator) markRunning(leadID, runID string) bool {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()

	if _, busy := o.activeRuns[leadID]; busy {
		return false
	}
	o.activeRuns[leadID] = runID
	return true
}

func (o *Orchestrator) markComplete(leadID string) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	delete(o.activeRuns, leadID)
}

// run is the immutable per-batch context shared by the lead tasks.
type run struct {
	id         string
	pol        policy.Policy
	thresholds domain.ThresholdTable
	engine     *scoring.Engine
	log        *logger.Logger
}

// Run processes rows and returns a result for every row. Only an empty batch
// or invalid thresholds fail the whole call; a cancelled ctx returns the
// partial result together with the context error.
func (o *Orchestrator) Run(ctx context.Context, rows []domain.InputRow, opts RunOptions) (domain.BatchResult, error) {
	if len(rows) == 0 {
		return domain.BatchResult{}, apperr.Validation("batch has no rows")
	}

	pol := o.policies.Current()
	thresholds := pol.Thresholds
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	if err := thresholds.Validate(); err != nil {
		return domain.BatchResult{}, apperr.Wrap(apperr.KindValidation, "invalid thresholds", err)
	}

	if opts.FollowUp.Qualified > 0 {
		pol.FollowUp.Qualified = opts.FollowUp.Qualified
	}
	if opts.FollowUp.Nurture > 0 {
		pol.FollowUp.Nurture = opts.FollowUp.Nurture
	}

	reasoner := o.reasoner
	if reasoner == nil {
		reasoner = scoring.NewKeywordReasoner(pol.Reasoning)
	}

	r := run{
		id:         uuid.NewString(),
		pol:        pol,
		thresholds: thresholds,
		engine:     scoring.NewEngine(pol.Weights, reasoner, o.val),
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, r.id)
	r.log = o.log.WithContext(ctx)

	result := domain.BatchResult{
		RunID:      r.id,
		Thresholds: thresholds,
		StartedAt:  time.Now().UTC(),
		Leads:      make([]domain.LeadOutcome, len(rows)),
	}

	seen := make(map[string]int, len(rows))
	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, raw := range rows {
		row := raw.Normalized()
		result.Leads[i] = domain.LeadOutcome{Row: i, LeadID: row.ID}

		if err := o.checkRow(row, seen, i); err != nil {
			r.log.Warn("skipping invalid lead row", "row", i, "leadId", row.ID, "error", err)
			result.Leads[i].Failure = failureOf(err)
			continue
		}

		g.Go(func() error {
			result.Leads[i] = o.processLead(ctx, r, i, row)
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = time.Now().UTC()
	failed := result.Failed()
	r.log.Info("batch completed", "total", len(rows), "failed", failed)
	o.publish(ctx, events.BatchCompleted{
		BaseEvent: events.NewBaseEvent(),
		RunID:     r.id,
		Total:     len(rows),
		Succeeded: len(rows) - failed,
		Failed:    failed,
	})

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// checkRow rejects rows without an id, rows that fail field validation and
// repeated ids. The first occurrence of an id wins.
func (o *Orchestrator) checkRow(row domain.InputRow, seen map[string]int, idx int) error {
	if row.ID == "" {
		return apperr.InvalidRecord(fmt.Sprintf("row %d has no id", idx))
	}
	if err := o.val.Struct(row); err != nil {
		return apperr.InvalidRecord(fmt.Sprintf("row %d: %s", idx, validator.Describe(err)))
	}
	if first, dup := seen[row.ID]; dup {
		return apperr.InvalidRecord(fmt.Sprintf("duplicate id %q, first seen in row %d", row.ID, first))
	}
	seen[row.ID] = idx
	return nil
}

func (o *Orchestrator) processLead(ctx context.Context, r run, idx int, row domain.InputRow) domain.LeadOutcome {
	out := domain.LeadOutcome{Row: idx, LeadID: row.ID}
	log := r.log.WithLead(row.ID)

	if err := ctx.Err(); err != nil {
		out.Failure = failureOf(err)
		return out
	}

	if !o.markRunning(row.ID, r.id) {
		err := apperr.StoreConflict(fmt.Sprintf("lead %q is already being processed by another run", row.ID))
		o.recordFailure(ctx, r, row.ID, domain.StageEnrichment, err, log)
		out.Failure = failureOf(err)
		return out
	}
	defer o.markComplete(row.ID)

	rec, warnings, stage, err := o.runStages(ctx, r, row, log)
	out.Warnings = warnings
	if err != nil {
		o.recordFailure(ctx, r, row.ID, stage, err, log)
		out.Failure = failureOf(err)
		return out
	}
	out.Record = &rec
	return out
}

// runStages applies the four stages in order. On error it reports the stage
// that failed.
func (o *Orchestrator) runStages(ctx context.Context, r run, row domain.InputRow, log *logger.Logger) (domain.LeadRecord, []string, string, error) {
	var warnings []string

	// Enrichment
	enrichment, err := o.enricher.Enrich(ctx, row)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.LeadRecord{}, warnings, domain.StageEnrichment, ctxErr
		}
		log.Warn("enrichment incomplete, continuing", "error", err)
		warnings = append(warnings, err.Error())
		enrichment.Status = domain.EnrichmentIncomplete
	}
	rec, err := o.store.Upsert(ctx, row.ID, func(rec *domain.LeadRecord) error {
		rec.ApplyInput(row)
		e := enrichment
		rec.Enrichment = &e
		rec.LastRunID = r.id
		return nil
	})
	if err != nil {
		return domain.LeadRecord{}, warnings, domain.StageEnrichment, err
	}
	outcome := domain.OutcomeCompleted
	if enrichment.Incomplete() {
		outcome = domain.OutcomeIncomplete
	}
	if err := o.appendHistory(ctx, row.ID, r.id, domain.StageEnrichment, outcome, enrichment); err != nil {
		return domain.LeadRecord{}, warnings, domain.StageEnrichment, err
	}
	log.StageCompleted(row.ID, domain.StageEnrichment, outcome)

	// Scoring
	scored := r.engine.Score(rec, r.thresholds)
	var previous domain.Status
	rec, err = o.store.Upsert(ctx, row.ID, func(rec *domain.LeadRecord) error {
		previous = rec.Status
		rec.Score = scored.Score
		rec.Status = scored.Status
		rec.ScoreBreakdown = scored.Breakdown
		rec.Reasons = scored.Reasons
		return nil
	})
	if err != nil {
		return domain.LeadRecord{}, warnings, domain.StageScoring, err
	}
	if err := o.appendHistory(ctx, row.ID, r.id, domain.StageScoring, domain.OutcomeCompleted, scored.Snapshot(r.thresholds)); err != nil {
		return domain.LeadRecord{}, warnings, domain.StageScoring, err
	}
	log.StageCompleted(row.ID, domain.StageScoring, domain.OutcomeCompleted)
	o.publish(ctx, events.LeadScored{
		BaseEvent:      events.NewBaseEvent(),
		RunID:          r.id,
		LeadID:         row.ID,
		Score:          scored.Score,
		Status:         string(scored.Status),
		PreviousStatus: string(previous),
	})

	// Outreach
	var draft *domain.Outreach
	outcome = domain.OutcomeSkipped
	var payload any = map[string]string{"reason": "no outreach for status " + string(rec.Status)}
	if rec.Status == domain.StatusQualified || rec.Status == domain.StatusNurture {
		d, err := o.drafter.Draft(rec)
		if err != nil {
			return domain.LeadRecord{}, warnings, domain.StageOutreach, err
		}
		draft = &d
		payload = d
		outcome = domain.OutcomeCompleted
	}
	if _, err = o.store.Upsert(ctx, row.ID, func(rec *domain.LeadRecord) error {
		rec.Outreach = draft
		return nil
	}); err != nil {
		return domain.LeadRecord{}, warnings, domain.StageOutreach, err
	}
	if err := o.appendHistory(ctx, row.ID, r.id, domain.StageOutreach, outcome, payload); err != nil {
		return domain.LeadRecord{}, warnings, domain.StageOutreach, err
	}
	log.StageCompleted(row.ID, domain.StageOutreach, outcome)

	// Scheduling
	if _, err := o.scheduler.Schedule(ctx, scheduler.ScheduleRequest{
		RunID:  r.id,
		LeadID: row.ID,
		Status: rec.Status,
		Delays: r.pol.FollowUp,
	}); err != nil {
		return domain.LeadRecord{}, warnings, domain.StageScheduling, err
	}

	final, err := o.store.Get(ctx, row.ID)
	if err != nil {
		return domain.LeadRecord{}, warnings, domain.StageScheduling, err
	}
	return final, warnings, "", nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, r run, leadID, stage string, cause error, log *logger.Logger) {
	f := failureOf(cause)
	log.Error("lead failed", "stage", stage, "kind", f.Kind, "error", cause)

	// The failure marker is written even when the run's context is gone.
	bg := context.WithoutCancel(ctx)
	if err := o.appendHistory(bg, leadID, r.id, domain.StageFailure, domain.OutcomeFailed, f); err != nil {
		log.Error("failed to record lead failure", "error", err)
	}
	o.publish(bg, events.LeadFailed{
		BaseEvent: events.NewBaseEvent(),
		RunID:     r.id,
		LeadID:    leadID,
		Kind:      f.Kind,
		Reason:    f.Message,
	})
}

func (o *Orchestrator) appendHistory(ctx context.Context, leadID, runID, stage, outcome string, payload any) error {
	entry, err := domain.NewHistoryEntry(leadID, runID, stage, outcome, payload)
	if err != nil {
		return err
	}
	if _, err := o.history.Append(ctx, entry); err != nil {
		o.log.StorageError("append_history", err)
		return err
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.bus != nil {
		o.bus.Publish(ctx, event)
	}
}

func failureOf(err error) *domain.Failure {
	kind := apperr.GetKind(err).String()
	switch {
	case errors.Is(err, context.Canceled):
		kind = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	}
	return &domain.Failure{Kind: kind, Message: err.Error()}
}
