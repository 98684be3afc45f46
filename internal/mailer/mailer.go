// Package mailer delivers OTP emails through SES, SMTP or the log.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admin-auth/internal/config"
)

var ErrInvalidMessage = errors.New("invalid mail message")

type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

func (m Message) validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Dispatcher sends a single message synchronously.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMessage renders the sign-in email for code. The code is six digits so it
// needs no escaping.
func OTPMessage(to, subject, code string, ttl time.Duration) Message {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Message{
		To:      to,
		Subject: subject,
		TextBody: fmt.Sprintf("Your admin panel sign-in code is %s.\n"+
			"It expires in %d minutes.\n"+
			"If you did not request this code, you can ignore this email.\n", code, minutes),
		HTMLBody: fmt.Sprintf(`<h3>Admin panel sign-in</h3>
<p>Your sign-in code is <strong>%s</strong>.</p>
<p>It expires in %d minutes.</p>
<p>If you did not request this code, you can ignore this email.</p>`, code, minutes),
	}
}

// NewDispatcher builds the dispatcher for cfg.Backend. ses may be nil unless
// the SES backend is selected.
func NewDispatcher(cfg config.MailConfig, ses SESAPI) (Dispatcher, error) {
	switch cfg.Backend {
	case config.MailSES:
		if ses == nil {
			return nil, errors.New("ses client is required")
		}
		return NewSESDispatcher(ses, cfg.From, cfg.ConfigurationSet), nil
	case config.MailSMTP:
		return NewSMTPDispatcher(cfg.SMTP, cfg.From), nil
	case config.MailLog:
		return NewLogDispatcher(), nil
	default:
		return nil, fmt.Errorf("unsupported mail backend %q", cfg.Backend)
	}
}
