// Package evaluation scores predicted lead statuses against true labels.
// "qualified" is the positive class; every other status is negative.
package evaluation

import (
	"maps"
	"slices"
	"strings"

	"smartsales_backend/internal/leads/domain"
)

// Metrics is the confusion matrix over the labelled leads and the two
// ratios derived from it. A ratio with an empty denominator is 0.
type Metrics struct {
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	TruePositives  int      `json:"tp"`
	FalsePositives int      `json:"fp"`
	TrueNegatives  int      `json:"tn"`
	FalseNegatives int      `json:"fn"`
	Labelled       int      `json:"labelled"`
	Unpredicted    []string `json:"unpredicted,omitempty"`
}

// Evaluate compares predictions with labels. Only labelled leads count. A
// labelled lead without a prediction is treated as nurture and listed in
// Unpredicted.
func Evaluate(predictions map[string]domain.Status, labels map[string]string) Metrics {
	var m Metrics
	for _, id := range slices.Sorted(maps.Keys(labels)) {
		label, _ := domain.ParseStatus(labels[id])
		predicted, ok := predictions[id]
		if !ok {
			predicted = domain.StatusNurture
			m.Unpredicted = append(m.Unpredicted, id)
		}
		m.Labelled++

		wantPositive := label == domain.StatusQualified
		gotPositive := predicted == domain.StatusQualified
		switch {
		case gotPositive && wantPositive:
			m.TruePositives++
		case gotPositive:
			m.FalsePositives++
		case wantPositive:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}

	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	return m
}

// ParseLabels normalises label strings and drops blank ids.
func ParseLabels(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for id, label := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = strings.ToLower(strings.TrimSpace(label))
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
