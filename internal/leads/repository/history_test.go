package repository

import (
	"context"
	"path/filepath"
	"testing"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/db"
)

func appendStages(t *testing.T, log HistoryLog, leadID string, stages ...string) {
	t.Helper()
	for _, stage := range stages {
		entry, err := domain.NewHistoryEntry(leadID, "run-1", stage, domain.OutcomeCompleted, map[string]string{"stage": stage})
		if err != nil {
			t.Fatalf("build entry: %v", err)
		}
		if _, err := log.Append(context.Background(), entry); err != nil {
			t.Fatalf("append %s: %v", stage, err)
		}
	}
}

func stagesOf(t *testing.T, log HistoryLog, leadID string) []string {
	t.Helper()
	entries, err := Collect(log.QueryByLead(context.Background(), leadID))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Stage)
	}
	return out
}

func exerciseHistoryLog(t *testing.T, log HistoryLog) {
	appendStages(t, log, "L1", domain.PipelineStages...)
	appendStages(t, log, "L2", domain.StageEnrichment)

	got := stagesOf(t, log, "L1")
	if len(got) != len(domain.PipelineStages) {
		t.Fatalf("expected %d entries, got %v", len(domain.PipelineStages), got)
	}
	for i, stage := range domain.PipelineStages {
		if got[i] != stage {
			t.Fatalf("entry %d: expected %s, got %s", i, stage, got[i])
		}
	}

	seq := log.QueryByLead(context.Background(), "L1")
	first, _ := Collect(seq)
	second, _ := Collect(seq)
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Fatalf("expected the sequence to be restartable")
	}

	var payload map[string]string
	if err := first[1].Decode(&payload); err != nil || payload["stage"] != domain.StageScoring {
		t.Fatalf("unexpected payload %v (err %v)", payload, err)
	}

	if len(stagesOf(t, log, "missing")) != 0 {
		t.Fatalf("expected no entries for unknown lead")
	}
}

func TestMemoryHistory(t *testing.T) {
	exerciseHistoryLog(t, NewMemoryHistory())
}

func TestMemoryHistoryIterationIgnoresLaterAppends(t *testing.T) {
	log := NewMemoryHistory()
	appendStages(t, log, "L1", domain.StageEnrichment)

	count := 0
	for _, err := range log.QueryByLead(context.Background(), "L1") {
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		count++
		appendStages(t, log, "L1", domain.StageScoring)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry in the pass, got %d", count)
	}
}

func TestSQLHistoryOnSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := db.RunMigrations(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exerciseHistoryLog(t, NewSQLHistory(conn))
}
