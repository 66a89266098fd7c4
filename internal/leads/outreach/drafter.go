// Package outreach drafts first-contact messages for scored leads.
package outreach

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	fallbackContact  = "there"
	fallbackCompany  = "your company"
	fallbackIndustry = "tech"
	fallbackNews     = "your recent activities"
)

type draftData struct {
	Contact  string
	Company  string
	Industry string
	News     string
	Sender   string
}

// Drafter renders outreach drafts. It is safe for concurrent use.
type Drafter struct {
	sender string
}

// NewDrafter creates a drafter that signs messages with sender.
func NewDrafter(sender string) *Drafter {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = "The Sales Team"
	}
	return &Drafter{sender: sender}
}

// Draft produces the subject and body for a scored record. Qualified leads get
// a direct meeting ask, nurture leads a softer check-in. It reads only the
// snapshot it is given, so the same record always yields the same draft.
func (d *Drafter) Draft(rec domain.LeadRecord) (domain.Outreach, error) {
	var prefix string
	switch rec.Status {
	case domain.StatusQualified:
		prefix = "first_touch"
	case domain.StatusNurture:
		prefix = "nurture"
	case domain.StatusUnknown:
		return domain.Outreach{}, apperr.Validation(fmt.Sprintf("lead %q has no status yet", rec.ID))
	default:
		return domain.Outreach{}, apperr.Validation(fmt.Sprintf("no outreach for %s lead %q", rec.Status, rec.ID))
	}

	data := draftData{
		Contact:  displayName(rec.ContactName, fallbackContact),
		Company:  displayName(rec.CompanyName, fallbackCompany),
		Industry: fallbackIndustry,
		News:     fallbackNews,
		Sender:   d.sender,
	}
	if v, ok := rec.Enrichment.Signal(domain.SignalIndustry); ok && v != "" {
		data.Industry = v
	}
	if v, ok := rec.Enrichment.Signal(domain.SignalRecentNews); ok && v != "" {
		data.News = v
	}

	subject, err := render(prefix+".subject.tmpl", data)
	if err != nil {
		return domain.Outreach{}, err
	}
	body, err := render(prefix+".body.tmpl", data)
	if err != nil {
		return domain.Outreach{}, err
	}
	return domain.Outreach{Subject: subject, Body: body}, nil
}

func render(name string, data draftData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// displayName title-cases names typed all in one case ("ali" -> "Ali") and
// leaves mixed-case names such as "AcmePay" untouched.
func displayName(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if value != strings.ToLower(value) && value != strings.ToUpper(value) {
		return value
	}
	if !strings.ContainsFunc(value, unicode.IsLetter) {
		return value
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.English).String(value)
}
