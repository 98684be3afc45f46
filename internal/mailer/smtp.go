package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"admin-auth/internal/config"
	"admin-auth/internal/util"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPDispatcher struct {
	sender Sender
	from   string
}

func NewSMTPDispatcher(cfg config.SMTPConfig, from string) *SMTPDispatcher {
	return NewSMTPDispatcherWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), from)
}

func NewSMTPDispatcherWithSender(sender Sender, from string) *SMTPDispatcher {
	return &SMTPDispatcher{sender: sender, from: from}
}

// Send dials per message. gomail has no context support, so cancellation is
// only honored before the dial.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	util.Debug("Email sent via SMTP", util.Identity(msg.To))
	return nil
}
