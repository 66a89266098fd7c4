package repository

import (
	"context"
	"iter"

	"smartsales_backend/internal/leads/domain"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// Mutator edits a working copy of a record. Returning an error discards the copy.
type Mutator func(rec *domain.LeadRecord) error

// RecordReader provides read-only access to current lead state.
type RecordReader interface {
	Get(ctx context.Context, id string) (domain.LeadRecord, error)
	List(ctx context.Context) ([]domain.LeadRecord, error)
}

// RecordWriter applies atomic per-lead mutations.
type RecordWriter interface {
	Upsert(ctx context.Context, id string, mutate Mutator) (domain.LeadRecord, error)
}

// StatusSwapper guards actions that depend on a lead's current status.
type StatusSwapper interface {
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) (domain.LeadRecord, error)
}

// RecordStore is the full record store contract.
type RecordStore interface {
	RecordReader
	RecordWriter
	StatusSwapper
}

// HistoryAppender records stage actions.
type HistoryAppender interface {
	Append(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error)
}

// HistoryReader replays a lead's audit trail. The sequence is lazy and can be
// ranged over more than once; each pass starts from the first entry.
type HistoryReader interface {
	QueryByLead(ctx context.Context, leadID string) iter.Seq2[domain.HistoryEntry, error]
}

// HistoryLog is the append-only audit log contract.
type HistoryLog interface {
	HistoryAppender
	HistoryReader
}
