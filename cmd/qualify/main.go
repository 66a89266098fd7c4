// Command qualify runs one batch of leads through the pipeline and prints the
// resulting records, optionally scored against true labels.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartsales_backend/internal/evaluation"
	"smartsales_backend/internal/events"
	"smartsales_backend/internal/ingest"
	"smartsales_backend/internal/leads"
	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/policy"
	"smartsales_backend/internal/leads/repository"
	"smartsales_backend/internal/leads/service"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/validator"
)

var demoLeads = []domain.InputRow{
	{ID: "L1", CompanyName: "AcmePay", ContactName: "Ali", ContactEmail: "ali@acmepay.com", Website: "acmepay.com", Notes: "Series A"},
	{ID: "L2", CompanyName: "ShopRight", ContactName: "Ayesha", ContactEmail: "ayesha@shopright.pk", Website: "shopright.pk", Notes: ""},
}

var demoLabels = map[string]string{"L1": "qualified", "L2": "nurture"}

type report struct {
	RunID    string               `json:"runId"`
	Failed   int                  `json:"failed"`
	Metrics  *evaluation.Metrics  `json:"metrics,omitempty"`
	Leads    []domain.LeadOutcome `json:"leads"`
	Snapshot []domain.LeadRecord  `json:"snapshot"`
}

func main() {
	input := flag.String("input", "sample_leads.csv", "CSV file with id,company_name,contact_name,contact_email,website,notes")
	labelsPath := flag.String("labels", "", "JSON file mapping lead id to true label")
	out := flag.String("out", "", "write a CSV summary of the records to this file")
	wait := flag.Duration("wait", 0, "keep running this long so due follow-ups can fire")
	qualifiedDelay := flag.Duration("qualified-delay", 0, "override the follow-up delay for qualified leads")
	nurtureDelay := flag.Duration("nurture-delay", 0, "override the follow-up delay for nurture leads")
	flag.Parse()

	if err := run(*input, *labelsPath, *out, *wait, *qualifiedDelay, *nurtureDelay); err != nil {
		fmt.Fprintln(os.Stderr, "qualify:", err)
		os.Exit(1)
	}
}

func run(input, labelsPath, out string, wait, qualifiedDelay, nurtureDelay time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows, labels, err := loadInput(input, labelsPath)
	if err != nil {
		return err
	}

	history, conn, err := repository.OpenHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}

	bus := events.NewInMemoryBus(log)
	module, err := leads.NewModule(cfg, history, bus, validator.New(), log)
	if err != nil {
		return err
	}
	defer module.Close()

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	if err := module.Start(bgCtx); err != nil {
		return err
	}

	// Delay overrides are per run, so a policy file reload cannot drop them.
	result, err := module.Orchestrator().Run(ctx, rows, service.RunOptions{
		FollowUp: policy.FollowUpDelays{Qualified: qualifiedDelay, Nurture: nurtureDelay},
	})
	if err != nil {
		return err
	}

	if wait > 0 {
		log.Info("waiting for follow-ups", "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	bus.Wait()

	snapshot, err := module.Store().List(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	rep := report{
		RunID:    result.RunID,
		Failed:   result.Failed(),
		Leads:    result.Leads,
		Snapshot: snapshot,
	}
	if len(labels) > 0 {
		m := evaluation.Evaluate(result.Predictions(), labels)
		rep.Metrics = &m
	}

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := ingest.WriteRecords(f, snapshot); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// loadInput reads the CSV and labels. A missing input file falls back to the
// two demo leads and their labels.
func loadInput(input, labelsPath string) ([]domain.InputRow, map[string]string, error) {
	rows, err := ingest.ReadFile(input)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s not found, using demo leads\n", input)
		return demoLeads, demoLabels, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", input, err)
	}

	if labelsPath == "" {
		return rows, nil, nil
	}
	raw, err := os.ReadFile(labelsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read labels: %w", err)
	}
	var labels map[string]string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, nil, fmt.Errorf("parse labels: %w", err)
	}
	return rows, evaluation.ParseLabels(labels), nil
}
