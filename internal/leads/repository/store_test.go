package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
)

func TestUpsertCreatesAndPreservesFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.CompanyName = "AcmePay"
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.Score = 75
		rec.Status = domain.StatusQualified
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CompanyName != "AcmePay" || got.Score != 75 || got.Version != 2 {
		t.Fatalf("unexpected record after update: %+v", got)
	}
}

func TestUpsertDiscardsFailedMutation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.Score = 40
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	abort := errors.New("abort")
	_, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.Score = 99
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	_, err = store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.Score = 101
		return nil
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for out-of-range score, got %v", err)
	}

	got, err := store.Get(ctx, "L1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 40 || got.Version != 1 {
		t.Fatalf("expected untouched record, got score=%d version=%d", got.Score, got.Version)
	}
}

func TestGetReturnsDetachedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.ScoreBreakdown = map[string]int{"base": 20}
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap, _ := store.Get(ctx, "L1")
	snap.ScoreBreakdown["base"] = 0

	again, _ := store.Get(ctx, "L1")
	if again.ScoreBreakdown["base"] != 20 {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "nope")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Upsert(ctx, "L1", func(rec *domain.LeadRecord) error {
		rec.Status = domain.StatusNurture
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.CompareAndSetStatus(ctx, "L1", domain.StatusQualified, domain.StatusDisqualified); !apperr.Is(err, apperr.KindStoreConflict) {
		t.Fatalf("expected store conflict, got %v", err)
	}
	got, err := store.CompareAndSetStatus(ctx, "L1", domain.StatusNurture, domain.StatusQualified)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if got.Status != domain.StatusQualified {
		t.Fatalf("expected qualified, got %s", got.Status)
	}
	if _, err := store.CompareAndSetStatus(ctx, "missing", domain.StatusNurture, domain.StatusQualified); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentUpsertsLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	const leads, writers = 10, 50

	var wg sync.WaitGroup
	for l := range leads {
		id := fmt.Sprintf("L%d", l)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Upsert(ctx, id, func(rec *domain.LeadRecord) error {
					rec.Score++
					return nil
				})
				if err != nil {
					t.Errorf("upsert %s: %v", id, err)
				}
			}()
		}
	}
	wg.Wait()

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != leads {
		t.Fatalf("expected %d records, got %d", leads, len(all))
	}
	for _, rec := range all {
		if rec.Score != writers || rec.Version != writers {
			t.Fatalf("lead %s: expected %d increments, got score=%d version=%d", rec.ID, writers, rec.Score, rec.Version)
		}
	}
}
