package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithContextTagsRunAndRequest(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RunIDKey, "run-7")
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")
	log.WithContext(ctx).StageCompleted("L1", "scoring", "completed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["runId"] != "run-7" || line["requestId"] != "req-9" || line["leadId"] != "L1" {
		t.Fatalf("missing context attributes: %v", line)
	}
}

func TestWithContextWithoutValues(t *testing.T) {
	log := Discard()
	if got := log.WithContext(context.Background()); got != log {
		t.Fatal("a bare context should return the same logger")
	}
}
