package outreach

import (
	"bytes"
	"fmt"
	"time"

	"smartsales_backend/internal/leads/domain"
	"smartsales_backend/platform/apperr"

	gomail "github.com/wneessen/go-mail"
)

// Exporter renders drafts as RFC 5322 messages for review in a mail client.
// Nothing is sent.
type Exporter struct {
	fromName  string
	fromEmail string
}

// NewExporter creates an exporter with the given sender identity.
func NewExporter(fromName, fromEmail string) *Exporter {
	return &Exporter{fromName: fromName, fromEmail: fromEmail}
}

// Message builds the mail message for a record's outreach draft.
func (e *Exporter) Message(rec domain.LeadRecord) (*gomail.Msg, error) {
	if rec.Outreach == nil {
		return nil, apperr.NotFound(fmt.Sprintf("lead %q has no outreach draft", rec.ID))
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(e.fromName, e.fromEmail); err != nil {
		return nil, fmt.Errorf("draft from: %w", err)
	}
	if err := msg.To(rec.ContactEmail); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "lead has no usable contact email", err)
	}
	msg.Subject(rec.Outreach.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, rec.Outreach.Body)
	msg.SetMessageIDWithValue(fmt.Sprintf("%s.%s@outreach", rec.ID, rec.Fingerprint))
	msg.SetDateWithValue(rec.UpdatedAt.UTC().Truncate(time.Second))
	return msg, nil
}

// EML returns the serialized message.
func (e *Exporter) EML(rec domain.LeadRecord) ([]byte, error) {
	msg, err := e.Message(rec)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write draft: %w", err)
	}
	return buf.Bytes(), nil
}
