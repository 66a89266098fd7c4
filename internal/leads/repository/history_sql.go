package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/db"
)

// historyPageSize bounds how many rows one query of QueryByLead pulls.
const historyPageSize = 256

// SQLHistory persists the history log in the lead_history table.
type SQLHistory struct {
	db *db.DB
}

// NewSQLHistory wraps an opened and migrated database.
func NewSQLHistory(d *db.DB) *SQLHistory {
	return &SQLHistory{db: d}
}

// Append inserts the entry. The sequence number comes from the table.
func (h *SQLHistory) Append(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if strings.TrimSpace(entry.LeadID) == "" {
		return domain.HistoryEntry{}, apperr.Validation("history entry has no lead id")
	}

	var payload any
	if len(entry.Payload) > 0 {
		payload = string(entry.Payload)
	}

	query := h.db.Rebind(`
		INSERT INTO lead_history (id, lead_id, run_id, stage, outcome, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`)
	err := h.db.QueryRowContext(ctx, query,
		entry.ID, entry.LeadID, entry.RunID, entry.Stage, entry.Outcome, payload, entry.Timestamp.UnixNano(),
	).Scan(&entry.Seq)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history for %s: %w", entry.LeadID, err)
	}
	return entry, nil
}

// QueryByLead pages through the lead's rows in sequence order. Each pass
// reads only rows that existed when it started.
func (h *SQLHistory) QueryByLead(ctx context.Context, leadID string) iter.Seq2[domain.HistoryEntry, error] {
	return func(yield func(domain.HistoryEntry, error) bool) {
		var ceiling int64
		maxQuery := h.db.Rebind(`SELECT COALESCE(MAX(seq), 0) FROM lead_history WHERE lead_id = ?`)
		if err := h.db.QueryRowContext(ctx, maxQuery, leadID).Scan(&ceiling); err != nil {
			yield(domain.HistoryEntry{}, fmt.Errorf("query history for %s: %w", leadID, err))
			return
		}

		var after int64
		for after < ceiling {
			page, err := h.page(ctx, leadID, after, ceiling)
			if err != nil {
				yield(domain.HistoryEntry{}, err)
				return
			}
			if len(page) == 0 {
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			after = page[len(page)-1].Seq
		}
	}
}

func (h *SQLHistory) page(ctx context.Context, leadID string, after, ceiling int64) ([]domain.HistoryEntry, error) {
	query := h.db.Rebind(`
		SELECT seq, id, lead_id, run_id, stage, outcome, payload, created_at
		FROM lead_history
		WHERE lead_id = ? AND seq > ? AND seq <= ?
		ORDER BY seq ASC
		LIMIT ?`)
	rows, err := h.db.QueryContext(ctx, query, leadID, after, ceiling, historyPageSize)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", leadID, err)
	}
	defer rows.Close()

	items := make([]domain.HistoryEntry, 0, historyPageSize)
	for rows.Next() {
		var (
			e       domain.HistoryEntry
			payload sql.NullString
			created int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.LeadID, &e.RunID, &e.Stage, &e.Outcome, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan history for %s: %w", leadID, err)
		}
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		e.Timestamp = time.Unix(0, created).UTC()
		items = append(items, e)
	}
	return items, rows.Err()
}
