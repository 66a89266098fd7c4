// Package domain provides core business rules for the lead qualification pipeline.
package domain

import (
	"fmt"
	"strings"
)

// Status is the qualification classification of a lead.
type Status string

const (
	// StatusUnknown is the zero value: the lead has not been scored yet.
	StatusUnknown      Status = ""
	StatusQualified    Status = "qualified"
	StatusNurture      Status = "nurture"
	StatusDisqualified Status = "disqualified"
)

var knownStatuses = map[Status]struct{}{
	StatusQualified:    {},
	StatusNurture:      {},
	StatusDisqualified: {},
}

// IsKnown reports whether s is one of the three classification values.
func (s Status) IsKnown() bool {
	_, ok := knownStatuses[s]
	return ok
}

// ParseStatus maps a label such as "Qualified " to a Status.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	return s, s.IsKnown()
}

// ThresholdTable maps a score to a status. It is business policy, so callers
// always pass one in; DefaultThresholds is only the fallback.
type ThresholdTable struct {
	// Qualified is the inclusive lower bound for StatusQualified.
	Qualified int `json:"qualified" yaml:"qualified" validate:"gte=0,lte=100"`
	// Nurture is the inclusive lower bound for StatusNurture.
	Nurture int `json:"nurture" yaml:"nurture" validate:"gte=0,lte=100"`
}

// DefaultThresholds returns score >= 70 qualified, 40..69 nurture, < 40 disqualified.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{Qualified: 70, Nurture: 40}
}

// Validate checks the bounds are ordered and inside [0,100].
func (t ThresholdTable) Validate() error {
	if t.Qualified < 0 || t.Qualified > 100 || t.Nurture < 0 || t.Nurture > 100 {
		return fmt.Errorf("thresholds must be within [0,100], got qualified=%d nurture=%d", t.Qualified, t.Nurture)
	}
	if t.Nurture > t.Qualified {
		return fmt.Errorf("nurture threshold %d exceeds qualified threshold %d", t.Nurture, t.Qualified)
	}
	return nil
}

// Classify derives the status from a score. It is the only way a status is produced.
func (t ThresholdTable) Classify(score int) Status {
	switch {
	case score >= t.Qualified:
		return StatusQualified
	case score >= t.Nurture:
		return StatusNurture
	default:
		return StatusDisqualified
	}
}
