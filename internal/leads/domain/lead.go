package domain

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"smartsales_backend/platform/sanitize"

	"golang.org/x/crypto/blake2b"
)

// InputRow is one row of the tabular lead input.
type InputRow struct {
	ID           string `json:"id" csv:"id" validate:"required,max=128"`
	CompanyName  string `json:"company_name" csv:"company_name" validate:"max=256"`
	ContactName  string `json:"contact_name" csv:"contact_name" validate:"max=256"`
	ContactEmail string `json:"contact_email" csv:"contact_email" validate:"max=320"`
	Website      string `json:"website" csv:"website" validate:"max=2048"`
	Notes        string `json:"notes" csv:"notes" validate:"max=8000"`
}

// Normalized trims every field and strips markup from the free-text ones.
func (r InputRow) Normalized() InputRow {
	return InputRow{
		ID:           strings.TrimSpace(r.ID),
		CompanyName:  sanitize.Text(r.CompanyName),
		ContactName:  sanitize.Text(r.ContactName),
		ContactEmail: strings.TrimSpace(r.ContactEmail),
		Website:      strings.TrimSpace(r.Website),
		Notes:        sanitize.Text(r.Notes),
	}
}

// Fingerprint is a stable hash of the input fields. Identical rows share a
// fingerprint, which is what makes reprocessing idempotent and cacheable.
func (r InputRow) Fingerprint() string {
	n := r.Normalized()
	joined := strings.Join([]string{n.ID, n.CompanyName, n.ContactName, n.ContactEmail, n.Website, n.Notes}, "\x1f")
	sum := blake2b.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:16])
}

// EnrichmentStatus tells whether the enrichment signals are trustworthy.
type EnrichmentStatus string

const (
	EnrichmentComplete   EnrichmentStatus = "complete"
	EnrichmentIncomplete EnrichmentStatus = "incomplete"
)

// Signal names produced by the enrichment stage.
const (
	SignalDomain           = "domain"
	SignalDomainValid      = "domain_valid"
	SignalFundingStage     = "funding_stage"
	SignalIndustry         = "industry"
	SignalEmployeeEstimate = "employee_estimate"
	SignalTechStack        = "tech_stack"
	SignalRecentNews       = "recent_news"
)

// Enrichment holds derived company signals, or the incomplete marker when the
// lookup ran out of attempts.
type Enrichment struct {
	Status   EnrichmentStatus  `json:"status"`
	Signals  map[string]string `json:"signals,omitempty"`
	Attempts int               `json:"attempts"`
	Reason   string            `json:"reason,omitempty"`
}

// Incomplete reports whether downstream stages must treat the signals as missing.
func (e *Enrichment) Incomplete() bool {
	return e == nil || e.Status != EnrichmentComplete
}

// Signal returns a named signal if enrichment completed and produced it.
func (e *Enrichment) Signal(name string) (string, bool) {
	if e.Incomplete() {
		return "", false
	}
	v, ok := e.Signals[name]
	return v, ok
}

// Outreach is a drafted first-contact message.
type Outreach struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ActionKind names the deferred follow-up action.
type ActionKind string

const (
	ActionFirstTouch     ActionKind = "first_touch"
	ActionNurtureCheckIn ActionKind = "nurture_checkin"
)

// FollowUpState is the per-lead scheduler state.
type FollowUpState string

const (
	FollowUpUnscheduled FollowUpState = "unscheduled"
	FollowUpScheduled   FollowUpState = "scheduled"
	FollowUpFired       FollowUpState = "fired"
	FollowUpCancelled   FollowUpState = "cancelled"
)

// FollowUp is the follow-up metadata kept on the lead record.
type FollowUp struct {
	State     FollowUpState `json:"state"`
	Kind      ActionKind    `json:"kind,omitempty"`
	ForStatus Status        `json:"forStatus,omitempty"`
	FireAt    *time.Time    `json:"fireAt,omitempty"`
	Cancelled bool          `json:"cancelled"`
	Due       bool          `json:"due"`
	FiredAt   *time.Time    `json:"firedAt,omitempty"`
	Token     string        `json:"token,omitempty"`
}

// LeadRecord is the current state of one lead. Stages mutate it in place
// through the record store and only touch the fields they own.
type LeadRecord struct {
	ID           string `json:"id"`
	CompanyName  string `json:"companyName"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	Website      string `json:"website"`
	Notes        string `json:"notes"`
	Fingerprint  string `json:"fingerprint"`

	Enrichment     *Enrichment    `json:"enrichment,omitempty"`
	Score          int            `json:"score"`
	Status         Status         `json:"status"`
	ScoreBreakdown map[string]int `json:"scoreBreakdown,omitempty"`
	Reasons        []string       `json:"reasons,omitempty"`
	Outreach       *Outreach      `json:"outreach,omitempty"`
	FollowUp       *FollowUp      `json:"followup,omitempty"`

	LastRunID string    `json:"lastRunId,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplyInput copies the input-owned fields from a row.
func (r *LeadRecord) ApplyInput(row InputRow) {
	n := row.Normalized()
	r.CompanyName = n.CompanyName
	r.ContactName = n.ContactName
	r.ContactEmail = n.ContactEmail
	r.Website = n.Website
	r.Notes = n.Notes
	r.Fingerprint = n.Fingerprint()
}

// Validate enforces record invariants.
func (r LeadRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("lead record has no id")
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %d out of range [0,100]", r.Score)
	}
	if r.Status != StatusUnknown && !r.Status.IsKnown() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Outreach != nil && r.Status == StatusUnknown {
		return fmt.Errorf("outreach present before status is known")
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias store state.
func (r LeadRecord) Clone() LeadRecord {
	out := r
	if r.Enrichment != nil {
		e := *r.Enrichment
		e.Signals = maps.Clone(r.Enrichment.Signals)
		out.Enrichment = &e
	}
	out.ScoreBreakdown = maps.Clone(r.ScoreBreakdown)
	out.Reasons = slices.Clone(r.Reasons)
	if r.Outreach != nil {
		o := *r.Outreach
		out.Outreach = &o
	}
	if r.FollowUp != nil {
		f := *r.FollowUp
		if r.FollowUp.FireAt != nil {
			t := *r.FollowUp.FireAt
			f.FireAt = &t
		}
		if r.FollowUp.FiredAt != nil {
			t := *r.FollowUp.FiredAt
			f.FiredAt = &t
		}
		out.FollowUp = &f
	}
	return out
}
