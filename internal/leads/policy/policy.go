// Package policy holds the business policy that drives qualification:
// feature weights, status thresholds, reasoning keywords and follow-up delays.
package policy

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"
	"smartsales_backend/platform/validator"
)

// Weights are the fixed contributions of each rule-based feature.
type Weights struct {
	Base                 int `yaml:"base" json:"base" validate:"gte=0,lte=100"`
	ContactEmail         int `yaml:"contact_email" json:"contactEmail" validate:"gte=-100,lte=100"`
	InvalidEmail         int `yaml:"invalid_email" json:"invalidEmail" validate:"gte=-100,lte=100"`
	FundingSignal        int `yaml:"funding_signal" json:"fundingSignal" validate:"gte=-100,lte=100"`
	DomainValid          int `yaml:"domain_valid" json:"domainValid" validate:"gte=-100,lte=100"`
	CompanySize          int `yaml:"company_size" json:"companySize" validate:"gte=-100,lte=100"`
	CompanySizeMin       int `yaml:"company_size_min" json:"companySizeMin" validate:"gte=0"`
	IncompleteEnrichment int `yaml:"incomplete_enrichment" json:"incompleteEnrichment" validate:"gte=-100,lte=100"`

	// Industries rewards target industries, matched case-insensitively
	// against the enrichment's industry signal.
	Industries map[string]int `yaml:"industries" json:"industries" validate:"dive,keys,required,endkeys,gte=-100,lte=100"`
}

// Industry returns the weight for an enriched industry, or 0.
func (w Weights) Industry(industry string) int {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return 0
	}
	for name, weight := range w.Industries {
		if strings.EqualFold(name, industry) {
			return weight
		}
	}
	return 0
}

// KeywordRule adjusts the reasoning confidence when Keyword occurs in notes.
type KeywordRule struct {
	Keyword    string `yaml:"keyword" json:"keyword" validate:"required"`
	Adjustment int    `yaml:"adjustment" json:"adjustment" validate:"gte=-100,lte=100"`
}

// Reasoning configures the keyword pass over free-text notes.
type Reasoning struct {
	// MaxAdjustment bounds the total adjustment in both directions.
	MaxAdjustment int           `yaml:"max_adjustment" json:"maxAdjustment" validate:"gte=0,lte=100"`
	Rules         []KeywordRule `yaml:"rules" json:"rules" validate:"dive"`
}

// FollowUpDelays is the wait before a follow-up fires, per status.
// Disqualified leads never get a follow-up.
type FollowUpDelays struct {
	Qualified time.Duration `yaml:"qualified" json:"qualified" validate:"gt=0"`
	Nurture   time.Duration `yaml:"nurture" json:"nurture" validate:"gt=0"`
}

// For returns the delay for status and whether one applies.
func (d FollowUpDelays) For(status domain.Status) (time.Duration, bool) {
	switch status {
	case domain.StatusQualified:
		return d.Qualified, true
	case domain.StatusNurture:
		return d.Nurture, true
	default:
		return 0, false
	}
}

// Policy is the complete qualification policy.
type Policy struct {
	Weights    Weights               `yaml:"weights" json:"weights"`
	Thresholds domain.ThresholdTable `yaml:"thresholds" json:"thresholds"`
	Reasoning  Reasoning             `yaml:"reasoning" json:"reasoning"`
	FollowUp   FollowUpDelays        `yaml:"followup" json:"followup"`
}

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		Weights: Weights{
			Base:                 20,
			FundingSignal:        20,
			DomainValid:          15,
			CompanySize:          5,
			CompanySizeMin:       50,
			IncompleteEnrichment: -5,
			Industries: map[string]int{
				"FinTech":    10,
				"E-commerce": 10,
				"SaaS":       5,
			},
		},
		Thresholds: domain.DefaultThresholds(),
		Reasoning: Reasoning{
			MaxAdjustment: 15,
			Rules: []KeywordRule{
				{Keyword: "series", Adjustment: 5},
				{Keyword: "funding", Adjustment: 5},
				{Keyword: "raised", Adjustment: 5},
				{Keyword: "hiring", Adjustment: 5},
				{Keyword: "expansion", Adjustment: 5},
				{Keyword: "scale-up", Adjustment: 5},
				{Keyword: "budget approved", Adjustment: 5},
				{Keyword: "demo request", Adjustment: 5},
				{Keyword: "no budget", Adjustment: -10},
				{Keyword: "not interested", Adjustment: -15},
				{Keyword: "student", Adjustment: -10},
				{Keyword: "competitor", Adjustment: -10},
			},
		},
		FollowUp: FollowUpDelays{
			Qualified: 48 * time.Hour,
			Nurture:   24 * time.Hour,
		},
	}
}

// Validate checks struct tags and the threshold ordering.
func (p Policy) Validate(v *validator.Validator) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid policy: %s", validator.Describe(err))
	}
	if err := p.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	for _, rule := range p.Reasoning.Rules {
		if strings.TrimSpace(rule.Keyword) == "" {
			return fmt.Errorf("invalid policy: blank reasoning keyword")
		}
	}
	return nil
}

// Load reads a policy file. Sections missing from the file keep their defaults.
func Load(path string, v *validator.Validator) (Policy, error) {
	p := Default()
	if err := config.LoadYAML(path, &p); err != nil {
		return Policy{}, err
	}
	if err := p.Validate(v); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Holder publishes the active policy. Readers take a snapshot per batch so
// a reload never changes the rules halfway through a run.
type Holder struct {
	current atomic.Pointer[Policy]
}

// NewHolder creates a holder with an initial policy.
func NewHolder(p Policy) *Holder {
	h := &Holder{}
	h.current.Store(&p)
	return h
}

// Current returns the active policy.
func (h *Holder) Current() Policy {
	return *h.current.Load()
}

// Replace swaps in a new policy.
func (h *Holder) Replace(p Policy) {
	h.current.Store(&p)
}

// Watch reloads path into the holder whenever the file changes. Invalid files
// are logged and ignored, leaving the previous policy active.
func (h *Holder) Watch(ctx context.Context, path string, v *validator.Validator, log *logger.Logger) (<-chan struct{}, error) {
	w := config.NewFileWatcher(path, log, func(p string) error {
		next, err := Load(p, v)
		if err != nil {
			return err
		}
		h.Replace(next)
		return nil
	})
	return w.Start(ctx)
}
