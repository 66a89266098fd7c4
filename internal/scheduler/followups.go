// Package scheduler owns the follow-up timetable: it schedules, cancels and
// fires deferred actions tied to a lead's current status.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"smartsales_backend/internal/events"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/policy"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/logger"

	"github.com/google/uuid"
)

// Action is one deferred follow-up. Token identifies this particular
// scheduling; a fire carrying any other token is ignored.
type Action struct {
	LeadID    string            `json:"leadId"`
	RunID     string            `json:"runId,omitempty"`
	Token     string            `json:"token"`
	Kind      domain.ActionKind `json:"kind"`
	ForStatus domain.Status     `json:"forStatus"`
	FireAt    time.Time         `json:"fireAt"`
	Active    bool              `json:"active"`
}

// ScheduleRequest asks for the follow-up that matches a lead's status.
type ScheduleRequest struct {
	RunID  string
	LeadID string
	Status domain.Status
	Delays policy.FollowUpDelays
}

type slot struct {
	action Action
	disarm Disarm
}

// Service is the follow-up scheduler. At most one action per lead is active;
// the timetable lock is never held while dispatching or writing records.
type Service struct {
	store      repository.RecordStore
	history    repository.HistoryAppender
	bus        events.Bus
	dispatcher Dispatcher
	log        *logger.Logger
	now        func() time.Time

	mu      sync.Mutex
	actions map[string]*slot
}

// New creates a scheduler. A nil dispatcher leaves firing to FireOverdue.
func New(store repository.RecordStore, history repository.HistoryAppender, bus events.Bus, dispatcher Dispatcher, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		history:    history,
		bus:        bus,
		dispatcher: dispatcher,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		actions:    make(map[string]*slot),
	}
}

func kindFor(status domain.Status) domain.ActionKind {
	if status == domain.StatusQualified {
		return domain.ActionFirstTouch
	}
	return domain.ActionNurtureCheckIn
}

// Schedule replaces any active action for the lead with one derived from
// req.Status. Disqualified leads end up with no active action. The record's
// follow-up metadata and one scheduling history entry are written either way.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (domain.FollowUp, error) {
	delay, wants := req.Delays.For(req.Status)
	now := s.now()

	var next *slot
	if wants {
		next = &slot{action: Action{
			LeadID:    req.LeadID,
			RunID:     req.RunID,
			Token:     uuid.NewString(),
			Kind:      kindFor(req.Status),
			ForStatus: req.Status,
			FireAt:    now.Add(delay),
			Active:    true,
		}}
	}

	s.mu.Lock()
	prior := s.actions[req.LeadID]
	if next != nil {
		s.actions[req.LeadID] = next
	} else {
		delete(s.actions, req.LeadID)
	}
	s.mu.Unlock()

	var replaced string
	if prior != nil {
		replaced = prior.action.Token
		if prior.disarm != nil {
			prior.disarm()
		}
	}

	followUp := domain.FollowUp{State: domain.FollowUpUnscheduled, Cancelled: prior != nil}
	outcome := domain.OutcomeSkipped
	if next != nil {
		fireAt := next.action.FireAt
		followUp = domain.FollowUp{
			State:     domain.FollowUpScheduled,
			Kind:      next.action.Kind,
			ForStatus: req.Status,
			FireAt:    &fireAt,
			Token:     next.action.Token,
		}
		outcome = domain.OutcomeScheduled
	}

	if _, err := s.store.Upsert(ctx, req.LeadID, func(rec *domain.LeadRecord) error {
		fu := followUp
		rec.FollowUp = &fu
		return nil
	}); err != nil {
		s.forget(req.LeadID, next)
		return domain.FollowUp{}, err
	}

	payload := map[string]any{"status": req.Status, "followup": followUp}
	if replaced != "" {
		payload["replacedToken"] = replaced
	}
	if err := s.appendHistory(ctx, req.LeadID, req.RunID, domain.StageScheduling, outcome, payload); err != nil {
		return domain.FollowUp{}, err
	}

	if next != nil && s.dispatcher != nil {
		disarm, err := s.dispatcher.Arm(ctx, next.action, s.fireFromTimer)
		if err != nil {
			// The action stays in the timetable so the overdue sweep still fires it.
			s.log.WithContext(ctx).Warn("follow-up dispatch failed", "leadId", req.LeadID, "error", err)
		} else {
			s.mu.Lock()
			if s.actions[req.LeadID] == next {
				next.disarm = disarm
				disarm = nil
			}
			s.mu.Unlock()
			if disarm != nil {
				disarm()
			}
		}
	}

	s.log.WithContext(ctx).StageCompleted(req.LeadID, domain.StageScheduling, outcome)
	return followUp, nil
}

// forget drops sl from the timetable if it is still the lead's action.
func (s *Service) forget(leadID string, sl *slot) {
	if sl == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actions[leadID] == sl {
		delete(s.actions, leadID)
	}
}

// Cancel deactivates the lead's action. Cancelling when nothing is active is
// a no-op and reports false.
func (s *Service) Cancel(ctx context.Context, leadID string) (bool, error) {
	s.mu.Lock()
	sl := s.actions[leadID]
	delete(s.actions, leadID)
	s.mu.Unlock()

	if sl == nil {
		return false, nil
	}
	if sl.disarm != nil {
		sl.disarm()
	}

	if _, err := s.store.Upsert(ctx, leadID, func(rec *domain.LeadRecord) error {
		if rec.FollowUp == nil || rec.FollowUp.Token != sl.action.Token {
			return nil
		}
		rec.FollowUp.State = domain.FollowUpCancelled
		rec.FollowUp.Cancelled = true
		return nil
	}); err != nil {
		return true, err
	}

	if err := s.appendHistory(ctx, leadID, sl.action.RunID, domain.StageFollowUp, domain.OutcomeCancelled, map[string]any{
		"token": sl.action.Token,
		"kind":  sl.action.Kind,
	}); err != nil {
		return true, err
	}
	s.log.Info("follow-up cancelled", "leadId", leadID, "token", sl.action.Token)
	return true, nil
}

// Active returns the lead's active action, if any.
func (s *Service) Active(leadID string) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.actions[leadID]
	if !ok {
		return Action{}, false
	}
	return sl.action, true
}

// Pending lists every active action ordered by fire time.
func (s *Service) Pending() []Action {
	s.mu.Lock()
	out := make([]Action, 0, len(s.actions))
	for _, sl := range s.actions {
		out = append(out, sl.action)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

func (s *Service) fireFromTimer(ctx context.Context, leadID, token string) {
	if err := s.Fire(ctx, leadID, token); err != nil && !apperr.Is(err, apperr.KindSchedulingConflict) {
		s.log.Error("follow-up fire failed", "leadId", leadID, "error", err)
	}
}

// Fire runs the action identified by token. A token that is no longer the
// lead's active action is ignored. Otherwise the record must still carry the
// status the action was scheduled for; if it changed, nothing is written to
// the follow-up metadata, a stale entry is logged and a scheduling conflict
// is returned.
func (s *Service) Fire(ctx context.Context, leadID, token string) error {
	s.mu.Lock()
	sl := s.actions[leadID]
	if sl == nil || sl.action.Token != token {
		s.mu.Unlock()
		s.log.Debug("ignoring superseded follow-up", "leadId", leadID, "token", token)
		return nil
	}
	delete(s.actions, leadID)
	s.mu.Unlock()

	action := sl.action
	firedAt := s.now()
	var observed domain.Status
	_, err := s.store.Upsert(ctx, leadID, func(rec *domain.LeadRecord) error {
		observed = rec.Status
		if rec.Status != action.ForStatus {
			return apperr.SchedulingConflict(fmt.Sprintf("lead %q is %s, follow-up was for %s", leadID, rec.Status, action.ForStatus))
		}
		if rec.FollowUp == nil || rec.FollowUp.Token != token {
			return apperr.SchedulingConflict(fmt.Sprintf("lead %q follow-up was rescheduled", leadID))
		}
		rec.FollowUp.State = domain.FollowUpFired
		rec.FollowUp.Due = true
		rec.FollowUp.FiredAt = &firedAt
		return nil
	})
	if apperr.Is(err, apperr.KindSchedulingConflict) {
		s.log.Warn("stale follow-up skipped", "leadId", leadID, "token", token,
			"scheduledFor", action.ForStatus, "current", observed)
		if herr := s.appendHistory(ctx, leadID, action.RunID, domain.StageFollowUp, domain.OutcomeStale, map[string]any{
			"token":        token,
			"scheduledFor": action.ForStatus,
			"current":      observed,
		}); herr != nil {
			return herr
		}
		return err
	}
	if err != nil {
		return err
	}

	if err := s.appendHistory(ctx, leadID, action.RunID, domain.StageFollowUp, domain.OutcomeFired, map[string]any{
		"token":   token,
		"kind":    action.Kind,
		"firedAt": firedAt,
	}); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.FollowUpDue{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Kind:      string(action.Kind),
			Status:    string(action.ForStatus),
			Token:     token,
			FiredAt:   firedAt,
		})
	}
	s.log.Info("follow-up due", "leadId", leadID, "kind", action.Kind)
	return nil
}

// FireOverdue fires every action whose time has passed and returns how many
// were attempted. It backs up the dispatcher when a timer or task was lost.
func (s *Service) FireOverdue(ctx context.Context, now time.Time) int {
	var due []Action
	s.mu.Lock()
	for _, sl := range s.actions {
		if !sl.action.FireAt.After(now) {
			due = append(due, sl.action)
		}
	}
	s.mu.Unlock()

	for _, a := range due {
		s.fireFromTimer(ctx, a.LeadID, a.Token)
	}
	return len(due)
}

func (s *Service) appendHistory(ctx context.Context, leadID, runID, stage, outcome string, payload any) error {
	entry, err := domain.NewHistoryEntry(leadID, runID, stage, outcome, payload)
	if err != nil {
		return err
	}
	if _, err := s.history.Append(ctx, entry); err != nil {
		s.log.StorageError("append_history", err)
		return err
	}
	return nil
}
