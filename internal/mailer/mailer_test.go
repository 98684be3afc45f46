package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"admin-auth/internal/config"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestOTPMessage(t *testing.T) {
	msg := OTPMessage("a@x.com", "Sign in", "123456", 5*time.Minute)

	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Sign in", msg.Subject)
	assert.Contains(t, msg.TextBody, "123456")
	assert.Contains(t, msg.TextBody, "5 minutes")
	assert.Contains(t, msg.HTMLBody, "<strong>123456</strong>")
}

func TestSESDispatcher_Send(t *testing.T) {
	ses := &fakeSES{}
	d := NewSESDispatcher(ses, "no-reply@example.com", "otp")

	require.NoError(t, d.Send(context.Background(), OTPMessage("a@x.com", "Sign in", "123456", 5*time.Minute)))

	in := ses.input
	require.NotNil(t, in)
	assert.Equal(t, "no-reply@example.com", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"a@x.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "otp", aws.ToString(in.ConfigurationSetName))
	assert.Equal(t, "Sign in", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Text.Data), "123456")
}

func TestSESDispatcher_Failure(t *testing.T) {
	ses := &fakeSES{err: errors.New("MessageRejected")}
	d := NewSESDispatcher(ses, "no-reply@example.com", "")

	err := d.Send(context.Background(), Message{To: "a@x.com", TextBody: "x"})
	assert.Error(t, err)
	assert.Nil(t, ses.input.ConfigurationSetName)
}

func TestSMTPDispatcher_Send(t *testing.T) {
	sender := &fakeSender{}
	d := NewSMTPDispatcherWithSender(sender, "no-reply@example.com")

	require.NoError(t, d.Send(context.Background(), OTPMessage("a@x.com", "Sign in", "654321", 5*time.Minute)))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"a@x.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@example.com"}, m.GetHeader("From"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "654321")
}

func TestSMTPDispatcher_CanceledContext(t *testing.T) {
	sender := &fakeSender{}
	d := NewSMTPDispatcherWithSender(sender, "no-reply@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Send(ctx, Message{To: "a@x.com", TextBody: "x"}), context.Canceled)
	assert.Empty(t, sender.sent)
}

func TestSMTPDispatcher_Failure(t *testing.T) {
	d := NewSMTPDispatcherWithSender(&fakeSender{err: errors.New("535 auth failed")}, "f@x.com")
	assert.Error(t, d.Send(context.Background(), Message{To: "a@x.com", TextBody: "x"}))
}

func TestMessageValidation(t *testing.T) {
	d := NewLogDispatcher()
	assert.ErrorIs(t, d.Send(context.Background(), Message{TextBody: "x"}), ErrInvalidMessage)
	assert.ErrorIs(t, d.Send(context.Background(), Message{To: "a@x.com"}), ErrInvalidMessage)
	assert.NoError(t, d.Send(context.Background(), Message{To: "a@x.com", TextBody: "x"}))
}

func TestNewDispatcher(t *testing.T) {
	cfg := config.NewDefaultConfig().Mail

	d, err := NewDispatcher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogDispatcher{}, d)

	cfg.Backend = config.MailSES
	_, err = NewDispatcher(cfg, nil)
	assert.Error(t, err)
	d, err = NewDispatcher(cfg, &fakeSES{})
	require.NoError(t, err)
	assert.IsType(t, &SESDispatcher{}, d)

	cfg.Backend = config.MailSMTP
	d, err = NewDispatcher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPDispatcher{}, d)

	cfg.Backend = "pigeon"
	_, err = NewDispatcher(cfg, nil)
	assert.Error(t, err)
}
