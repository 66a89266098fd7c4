package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smartsales_backend/internal/leads/domain"
)

func TestReadRowsMapsHeaderByName(t *testing.T) {
	input := "Notes,ID,company_name,website,extra\n" +
		"\"Series A, hiring\",L1,AcmePay,acmepay.com,x\n" +
		",,,,\n" +
		",L2,ShopRight,shopright.pk\n"

	rows, err := ReadRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != "L1" || rows[0].Notes != "Series A, hiring" || rows[0].Website != "acmepay.com" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].ID != "L2" || rows[1].Notes != "" || rows[1].ContactEmail != "" {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}

func TestReadRowsRequiresIDColumn(t *testing.T) {
	_, err := ReadRows(strings.NewReader("company_name,website\nAcme,acme.com\n"))
	if !errors.Is(err, ErrMissingIDColumn) {
		t.Fatalf("expected missing id column error, got %v", err)
	}
}

func TestReadRowsKeepsRowsWithoutID(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("id,company_name\n,Nameless\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "" || rows[0].CompanyName != "Nameless" {
		t.Fatalf("row without id must still be returned, got %+v", rows)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	if err := os.WriteFile(path, []byte(strings.Join(Columns, ",")+"\nL1,AcmePay,Ali,ali@acmepay.com,acmepay.com,Series A\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if len(rows) != 1 || rows[0].ContactName != "Ali" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestWriteRecords(t *testing.T) {
	fireAt := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteRecords(&buf, []domain.LeadRecord{{
		ID:          "L1",
		CompanyName: "AcmePay",
		Score:       75,
		Status:      domain.StatusQualified,
		Outreach:    &domain.Outreach{Subject: "Hi", Body: "Body"},
		FollowUp:    &domain.FollowUp{State: domain.FollowUpScheduled, FireAt: &fireAt},
	}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one line, got %q", buf.String())
	}
	if lines[1] != "L1,AcmePay,75,qualified,Hi,scheduled,2026-03-04T09:00:00Z" {
		t.Fatalf("unexpected line %q", lines[1])
	}
}
