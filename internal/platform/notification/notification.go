// Package notification delivers outbound SMS and email rendered from named
// templates.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Template ids used by the hospital services.
const (
	TemplateLoginOTP      = "login-otp"
	TemplateHospitalID    = "hospital-id"
	TemplateStaffApproved = "staff-approved"
	TemplateStaffRejected = "staff-rejected"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type Template struct {
	ID      string
	Subject string
	Body    string
	Channel Channel
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{ID: TemplateLoginOTP, Channel: ChannelSMS, Body: "Your OTP for login is: {{otp}}"},
		{ID: TemplateHospitalID, Channel: ChannelSMS, Body: "Your Hospital ID: {{custom_id}}"},
		{
			ID:      TemplateStaffApproved,
			Channel: ChannelEmail,
			Subject: "Your {{role}} account has been approved",
			Body:    "Hello {{username}},\n\nAn administrator approved your {{role}} account. You can now log in.",
		},
		{
			ID:      TemplateStaffRejected,
			Channel: ChannelEmail,
			Subject: "Your {{role}} registration was not approved",
			Body:    "Hello {{username}},\n\nYour {{role}} registration was rejected and the account has been removed.",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render returns the template with data substituted. Placeholders without
// a value are left in place.
func (e *TemplateEngine) Render(id string, data map[string]string) (Template, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", id)
	}
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		t.Subject = strings.ReplaceAll(t.Subject, placeholder, v)
		t.Body = strings.ReplaceAll(t.Body, placeholder, v)
	}
	return t, nil
}

var ErrNoSender = errors.New("no sender configured for channel")

// Dispatcher renders a template and hands it to the sender for its channel.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger
}

func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Dispatcher{email: email, sms: sms, templates: tpl, logger: logger}
}

// Send delivers templateID to recipient. Failures are logged with the
// recipient masked and returned to the caller, which decides whether they
// are fatal.
func (d *Dispatcher) Send(ctx context.Context, templateID string, data map[string]string, recipient string) error {
	t, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}

	switch t.Channel {
	case ChannelSMS:
		if d.sms == nil {
			err = ErrNoSender
		} else {
			err = d.sms.SendSMS(ctx, recipient, t.Body)
		}
	case ChannelEmail:
		if d.email == nil {
			err = ErrNoSender
		} else {
			err = d.email.SendEmail(ctx, recipient, t.Subject, t.Body)
		}
	default:
		err = fmt.Errorf("unsupported channel %q", t.Channel)
	}

	if err != nil {
		d.logger.Warn().Err(err).
			Str("template", templateID).
			Str("channel", string(t.Channel)).
			Str("recipient", MaskRecipient(recipient)).
			Msg("notification delivery failed")
		return fmt.Errorf("send %s: %w", templateID, err)
	}
	return nil
}

// MaskRecipient keeps the last four characters of a phone number or the
// domain of an email address.
func MaskRecipient(r string) string {
	if at := strings.LastIndex(r, "@"); at > 0 {
		return "***" + r[at:]
	}
	if len(r) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(r)-4) + r[len(r)-4:]
}

// ---------------------------------------------------------------------------
// Mock Senders (test doubles)
// ---------------------------------------------------------------------------

type EmailCall struct {
	To      string
	Subject string
	Body    string
}

type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type SMSCall struct {
	To   string
	Body string
}

type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
