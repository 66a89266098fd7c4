package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/validator"
)

func writePolicy(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(validator.New()); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestFollowUpDelaysFor(t *testing.T) {
	d := Default().FollowUp
	if got, ok := d.For(domain.StatusQualified); !ok || got != 48*time.Hour {
		t.Fatalf("qualified delay = %v, %v", got, ok)
	}
	if got, ok := d.For(domain.StatusNurture); !ok || got != 24*time.Hour {
		t.Fatalf("nurture delay = %v, %v", got, ok)
	}
	if _, ok := d.For(domain.StatusDisqualified); ok {
		t.Fatal("disqualified leads must not get a delay")
	}
}

func TestLoadKeepsDefaultsForMissingSections(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "thresholds:\n  qualified: 80\n  nurture: 50\nfollowup:\n  qualified: 36h\n  nurture: 12h\n")

	p, err := Load(path, validator.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Thresholds.Qualified != 80 || p.Thresholds.Nurture != 50 {
		t.Fatalf("thresholds not applied: %+v", p.Thresholds)
	}
	if p.FollowUp.Qualified != 36*time.Hour || p.FollowUp.Nurture != 12*time.Hour {
		t.Fatalf("delays not applied: %+v", p.FollowUp)
	}
	if !reflect.DeepEqual(p.Weights, Default().Weights) {
		t.Fatalf("weights should keep defaults, got %+v", p.Weights)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"inverted thresholds": "thresholds:\n  qualified: 30\n  nurture: 60\n",
		"unknown key":         "threshold:\n  qualified: 70\n",
		"out of range weight": "weights:\n  base: 500\n",
		"industry weight":     "weights:\n  industries:\n    FinTech: 300\n",
		"blank keyword":       "reasoning:\n  max_adjustment: 10\n  rules:\n    - keyword: \"\"\n      adjustment: 5\n",
	}
	for name, body := range cases {
		path := writePolicy(t, t.TempDir(), body)
		if _, err := Load(path, validator.New()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestHolderSnapshotIsStable(t *testing.T) {
	h := NewHolder(Default())
	snapshot := h.Current()

	next := Default()
	next.Thresholds = domain.ThresholdTable{Qualified: 90, Nurture: 10}
	h.Replace(next)

	if snapshot.Thresholds != domain.DefaultThresholds() {
		t.Fatalf("snapshot changed after replace: %+v", snapshot.Thresholds)
	}
	if h.Current().Thresholds.Qualified != 90 {
		t.Fatalf("replace not visible: %+v", h.Current().Thresholds)
	}
}

func TestWatchReloadsPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "thresholds:\n  qualified: 70\n  nurture: 40\n")
	h := NewHolder(Default())

	ctx, cancel := context.WithCancel(context.Background())
	done, err := h.Watch(ctx, path, validator.New(), logger.Discard())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer func() {
		cancel()
		<-done
	}()

	writePolicy(t, dir, "thresholds:\n  qualified: 85\n  nurture: 45\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.Current().Thresholds.Qualified == 85 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("policy not reloaded, thresholds %+v", h.Current().Thresholds)
}

func TestLoadAddsIndustryWeights(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "weights:\n  industries:\n    HealthTech: 15\n")

	p, err := Load(path, validator.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Weights.Industry("healthtech") != 15 || p.Weights.Industry("FinTech") != 10 {
		t.Fatalf("unexpected industries %v", p.Weights.Industries)
	}
}
