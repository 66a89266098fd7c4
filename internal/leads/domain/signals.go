package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// Funding stage labels returned by DetectFundingStage.
const (
	FundingSeed    = "seed"
	FundingSeriesA = "series_a"
	FundingSeriesB = "series_b"
	FundingSeriesC = "series_c_plus"
	FundingScaleUp = "scale_up"
	FundingIPO     = "ipo"
	FundingRaised  = "raised"
)

type fundingPattern struct {
	stage string
	re    *regexp.Regexp
}

// Ordered most specific first.
var fundingPatterns = []fundingPattern{
	{FundingIPO, regexp.MustCompile(`(?i)\b(ipo|went public)\b`)},
	{FundingSeriesC, regexp.MustCompile(`(?i)\bseries\s+[c-z]\b`)},
	{FundingSeriesB, regexp.MustCompile(`(?i)\bseries\s+b\b`)},
	{FundingSeriesA, regexp.MustCompile(`(?i)\bseries\s+a\b`)},
	{FundingSeed, regexp.MustCompile(`(?i)\b(pre-?seed|seed)\s+(round|funding|stage)\b`)},
	{FundingScaleUp, regexp.MustCompile(`(?i)\bscale-?up\b`)},
	{FundingRaised, regexp.MustCompile(`(?i)\b(raised|funding round|funded)\b`)},
}

// DetectFundingStage extracts a funding or growth signal from free-text notes.
func DetectFundingStage(notes string) (string, bool) {
	if strings.TrimSpace(notes) == "" {
		return "", false
	}
	for _, p := range fundingPatterns {
		if p.re.MatchString(notes) {
			return p.stage, true
		}
	}
	return "", false
}

// EmployeeEstimate maps a funding stage to a rough headcount.
func EmployeeEstimate(stage string) int {
	switch stage {
	case FundingSeriesA:
		return 75
	case FundingSeriesB, FundingSeriesC, FundingScaleUp, FundingIPO:
		return 120
	default:
		return 12
	}
}

// NormalizeDomain turns a website value such as "https://www.AcmePay.com/about"
// into "acmepay.com". It returns "" when nothing usable remains.
func NormalizeDomain(website string) string {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.ContainsAny(host, " _") {
		return ""
	}
	return host
}
