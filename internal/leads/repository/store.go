// Package repository holds lead state and the stage history that produced it.
package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
)

type recordSlot struct {
	mu  sync.Mutex
	rec *domain.LeadRecord
}

// MemoryStore is a concurrency-safe record store. Each lead has its own
// mutex so writers to different leads never wait on each other; the map lock
// is only held to find or create a slot.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*recordSlot
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]*recordSlot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) slot(id string, create bool) *recordSlot {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if ok || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[id]; ok {
		return sl
	}
	sl = &recordSlot{}
	s.slots[id] = sl
	return sl
}

// Upsert runs mutate on a copy of the record (a fresh one on first sight) and
// commits it only if mutate and validation succeed. The whole
// read-modify-write holds the lead's lock.
func (s *MemoryStore) Upsert(ctx context.Context, id string, mutate Mutator) (domain.LeadRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.LeadRecord{}, apperr.InvalidRecord("lead id is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.LeadRecord{}, err
	}

	sl := s.slot(id, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := s.now()
	var working domain.LeadRecord
	if sl.rec != nil {
		working = sl.rec.Clone()
	} else {
		working = domain.LeadRecord{ID: id, CreatedAt: now}
	}

	if err := mutate(&working); err != nil {
		return domain.LeadRecord{}, err
	}
	if working.ID != id {
		return domain.LeadRecord{}, apperr.Validation(fmt.Sprintf("mutation changed lead id %q to %q", id, working.ID))
	}
	if err := working.Validate(); err != nil {
		return domain.LeadRecord{}, apperr.Wrap(apperr.KindValidation, "lead record rejected", err)
	}

	working.Version++
	working.UpdatedAt = now
	sl.rec = &working
	return working.Clone(), nil
}

// Get returns a snapshot of the current record.
func (s *MemoryStore) Get(ctx context.Context, id string) (domain.LeadRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.LeadRecord{}, err
	}
	sl := s.slot(strings.TrimSpace(id), false)
	if sl == nil {
		return domain.LeadRecord{}, apperr.NotFound(fmt.Sprintf("lead %q not found", id))
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.rec == nil {
		return domain.LeadRecord{}, apperr.NotFound(fmt.Sprintf("lead %q not found", id))
	}
	return sl.rec.Clone(), nil
}

// CompareAndSetStatus moves the status from expected to next, failing with a
// store conflict when the current status differs.
func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) (domain.LeadRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return domain.LeadRecord{}, err
	}
	return s.Upsert(ctx, id, func(rec *domain.LeadRecord) error {
		if rec.Status != expected {
			return apperr.StoreConflict(fmt.Sprintf("lead %q status is %q, expected %q", id, rec.Status, expected)).
				WithDetails(map[string]string{"current": string(rec.Status), "expected": string(expected)})
		}
		rec.Status = next
		return nil
	})
}

// List returns snapshots of every record ordered by id.
func (s *MemoryStore) List(ctx context.Context) ([]domain.LeadRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	slots := make([]*recordSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	out := make([]domain.LeadRecord, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.rec != nil {
			out = append(out, sl.rec.Clone())
		}
		sl.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b domain.LeadRecord) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
