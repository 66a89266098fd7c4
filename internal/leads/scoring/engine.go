// Package scoring turns an enriched lead into a 0-100 score and a status.
package scoring

import (
	"maps"
	"strconv"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/internal/leads/policy"
)

// Factor keys recorded in the score breakdown.
const (
	FactorBase                 = "base"
	FactorContactEmail         = "contact_email"
	FactorFundingSignal        = "funding_signal"
	FactorDomainValid          = "domain_valid"
	FactorCompanySize          = "company_size"
	FactorIndustry             = "industry"
	FactorIncompleteEnrichment = "incomplete_enrichment"
	FactorReasoning            = "reasoning"
)

// EmailChecker decides whether a contact address is usable.
type EmailChecker interface {
	IsEmail(value string) bool
}

// Result is the outcome of scoring one lead.
type Result struct {
	Score     int
	Status    domain.Status
	Breakdown map[string]int
	Reasons   []string
}

// Snapshot converts the result into its history payload.
func (r Result) Snapshot(thresholds domain.ThresholdTable) domain.ScoringSnapshot {
	return domain.ScoringSnapshot{
		Score:      r.Score,
		Status:     r.Status,
		Breakdown:  maps.Clone(r.Breakdown),
		Reasons:    append([]string(nil), r.Reasons...),
		Thresholds: thresholds,
	}
}

// Engine combines rule-based features with a reasoning strategy.
type Engine struct {
	weights  policy.Weights
	reasoner ReasoningStrategy
	emails   EmailChecker
}

// NewEngine creates a scoring engine.
func NewEngine(weights policy.Weights, reasoner ReasoningStrategy, emails EmailChecker) *Engine {
	return &Engine{weights: weights, reasoner: reasoner, emails: emails}
}

// Score computes score and status from the record's input fields and
// enrichment. It does not read or write any other state.
func (e *Engine) Score(rec domain.LeadRecord, thresholds domain.ThresholdTable) Result {
	factors := make(map[string]int)
	var reasons []string
	w := e.weights

	score := addFactor(factors, FactorBase, w.Base)

	// Email weights are neutral in the default policy.
	if e.emails.IsEmail(rec.ContactEmail) {
		if n := addFactor(factors, FactorContactEmail, w.ContactEmail); n != 0 {
			score += n
			reasons = append(reasons, "contact email is valid")
		}
	} else if n := addFactor(factors, FactorContactEmail, w.InvalidEmail); n != 0 {
		score += n
		reasons = append(reasons, "contact email missing or invalid")
	}

	if stage, ok := domain.DetectFundingStage(rec.Notes); ok {
		score += addFactor(factors, FactorFundingSignal, w.FundingSignal)
		reasons = append(reasons, "funding signal: "+stage)
	}

	if rec.Enrichment.Incomplete() {
		score += addFactor(factors, FactorIncompleteEnrichment, w.IncompleteEnrichment)
		reasons = append(reasons, "enrichment incomplete, company signals ignored")
	} else {
		if v, _ := rec.Enrichment.Signal(domain.SignalDomainValid); v == "true" {
			score += addFactor(factors, FactorDomainValid, w.DomainValid)
			reasons = append(reasons, "company domain is valid")
		}
		if v, ok := rec.Enrichment.Signal(domain.SignalIndustry); ok {
			if n := addFactor(factors, FactorIndustry, w.Industry(v)); n != 0 {
				score += n
				reasons = append(reasons, "industry match: "+v)
			}
		}
		if v, ok := rec.Enrichment.Signal(domain.SignalEmployeeEstimate); ok {
			if n, err := strconv.Atoi(v); err == nil && n >= w.CompanySizeMin {
				score += addFactor(factors, FactorCompanySize, w.CompanySize)
				reasons = append(reasons, "estimated headcount "+v)
			}
		}
	}

	if e.reasoner != nil {
		a := e.reasoner.Assess(rec.Notes)
		score += addFactor(factors, FactorReasoning, a.Adjustment)
		reasons = append(reasons, a.Reasons...)
	}

	final := clamp(score, 0, 100)
	return Result{
		Score:     final,
		Status:    thresholds.Classify(final),
		Breakdown: factors,
		Reasons:   reasons,
	}
}

func addFactor(factors map[string]int, key string, value int) int {
	if value == 0 {
		return 0
	}
	factors[key] = value
	return value
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
