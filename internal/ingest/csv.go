// Package ingest reads lead rows from CSV and writes qualified records back out.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"smartsales_backend/internal/leads/domain"
)

// Columns is the input header in canonical order.
var Columns = []string{"id", "company_name", "contact_name", "contact_email", "website", "notes"}

var ErrMissingIDColumn = errors.New("csv header has no id column")

// ReadRows parses a CSV with a header row. Columns are matched by name,
// case-insensitively and in any order; unknown columns are ignored and
// missing optional columns read as empty strings.
func ReadRows(r io.Reader) ([]domain.InputRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	if _, ok := index["id"]; !ok {
		return nil, ErrMissingIDColumn
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []domain.InputRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", len(rows)+2, err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, domain.InputRow{
			ID:           field(record, "id"),
			CompanyName:  field(record, "company_name"),
			ContactName:  field(record, "contact_name"),
			ContactEmail: field(record, "contact_email"),
			Website:      field(record, "website"),
			Notes:        field(record, "notes"),
		}.Normalized())
	}
	return rows, nil
}

// ReadFile opens path and parses it with ReadRows.
func ReadFile(path string) ([]domain.InputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var resultColumns = []string{"id", "company_name", "score", "status", "outreach_subject", "followup_state", "followup_fire_at"}

// WriteRecords writes one CSV line per record with its qualification outcome.
func WriteRecords(w io.Writer, records []domain.LeadRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(resultColumns); err != nil {
		return err
	}
	for _, rec := range records {
		var subject, state, fireAt string
		if rec.Outreach != nil {
			subject = rec.Outreach.Subject
		}
		if rec.FollowUp != nil {
			state = string(rec.FollowUp.State)
			if rec.FollowUp.FireAt != nil {
				fireAt = rec.FollowUp.FireAt.UTC().Format(time.RFC3339)
			}
		}
		if err := writer.Write([]string{
			rec.ID,
			rec.CompanyName,
			strconv.Itoa(rec.Score),
			string(rec.Status),
			subject,
			state,
			fireAt,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
