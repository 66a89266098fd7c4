package repository

import (
	"context"
	"iter"
	"strings"
	"sync"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
)

// MemoryHistory is an in-process append-only history log.
type MemoryHistory struct {
	mu     sync.RWMutex
	seq    int64
	byLead map[string][]domain.HistoryEntry
}

// NewMemoryHistory creates an empty log.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byLead: make(map[string][]domain.HistoryEntry)}
}

// Append stores a copy of entry and returns it with its sequence number.
func (h *MemoryHistory) Append(_ context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if strings.TrimSpace(entry.LeadID) == "" {
		return domain.HistoryEntry{}, apperr.Validation("history entry has no lead id")
	}
	entry.Payload = append([]byte(nil), entry.Payload...)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	entry.Seq = h.seq
	h.byLead[entry.LeadID] = append(h.byLead[entry.LeadID], entry)
	return entry, nil
}

// QueryByLead yields the lead's entries in append order. Each pass sees the
// entries that existed when it started.
func (h *MemoryHistory) QueryByLead(ctx context.Context, leadID string) iter.Seq2[domain.HistoryEntry, error] {
	return func(yield func(domain.HistoryEntry, error) bool) {
		h.mu.RLock()
		entries := h.byLead[leadID]
		n := len(entries)
		entries = entries[:n:n]
		h.mu.RUnlock()

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				yield(domain.HistoryEntry{}, err)
				return
			}
			e.Payload = append([]byte(nil), e.Payload...)
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Collect drains a history sequence into a slice.
func Collect(seq iter.Seq2[domain.HistoryEntry, error]) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
