// Package notify holds the outbound reminder channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"usaha/internal/reminder"
)

// DefaultSender is the From address used when none is configured.
const DefaultSender = "Manajer Usaha <onboarding@resend.dev>"

// emailSender is the slice of the Resend emails service we use.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Email sends reminders through Resend. Owners without an address are
// skipped.
type Email struct {
	from   string
	sender emailSender
}

var _ reminder.Notifier = (*Email)(nil)

func NewEmail(apiKey, from string) (*Email, error) {
	if apiKey == "" {
		return nil, errors.New("missing Resend API key")
	}
	return newEmail(resend.NewClient(apiKey).Emails, from), nil
}

func newEmail(sender emailSender, from string) *Email {
	if from == "" {
		from = DefaultSender
	}
	return &Email{from: from, sender: sender}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, to reminder.Recipient, msg reminder.Message) error {
	if to.Email == "" {
		return nil
	}
	_, err := e.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{to.Email},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
