package scoring

import (
	"fmt"
	"strings"

	"smartsales_backend/internal/leads/policy"
)

// Assessment is the output of a reasoning pass over a lead's notes.
type Assessment struct {
	Adjustment int
	Reasons    []string
}

// ReasoningStrategy produces a bounded confidence adjustment from free text.
// Implementations must be pure: the same notes always give the same result.
type ReasoningStrategy interface {
	Assess(notes string) Assessment
}

// KeywordReasoner scores notes by matching configured keywords.
type KeywordReasoner struct {
	rules []policy.KeywordRule
	bound int
}

// NewKeywordReasoner builds a reasoner from the policy's reasoning section.
func NewKeywordReasoner(cfg policy.Reasoning) *KeywordReasoner {
	rules := make([]policy.KeywordRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || r.Adjustment == 0 {
			continue
		}
		rules = append(rules, policy.KeywordRule{Keyword: kw, Adjustment: r.Adjustment})
	}
	return &KeywordReasoner{rules: rules, bound: cfg.MaxAdjustment}
}

// Assess sums the adjustments of every matching keyword, each counted once,
// and clamps the total to the configured bound.
func (k *KeywordReasoner) Assess(notes string) Assessment {
	text := strings.ToLower(strings.TrimSpace(notes))
	if text == "" {
		return Assessment{}
	}

	total := 0
	var reasons []string
	for _, r := range k.rules {
		if !strings.Contains(text, r.Keyword) {
			continue
		}
		total += r.Adjustment
		reasons = append(reasons, fmt.Sprintf("notes mention %q (%+d)", r.Keyword, r.Adjustment))
	}
	return Assessment{Adjustment: clamp(total, -k.bound, k.bound), Reasons: reasons}
}
