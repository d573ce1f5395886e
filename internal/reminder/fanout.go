package reminder

import (
	"context"

	"usaha/internal/log"
)

// Recipient is where an owner wants reminders delivered. Empty fields opt out
// of that channel.
type Recipient struct {
	Email  string
	ChatID int64
}

// Recipients resolves the contact details of an owner.
type Recipients interface {
	Recipient(ctx context.Context, owner string) (Recipient, error)
}

// Notifier delivers a rendered message over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, to Recipient, msg Message) error
}

// Fanout is a Sink that renders an event and hands it to every notifier.
// Notifier failures are logged and swallowed so one broken channel never
// blocks the others, and the event still counts as delivered.
type Fanout struct {
	recipients Recipients
	notifiers  []Notifier
	logger     *log.Logger
}

func NewFanout(recipients Recipients, logger *log.Logger, notifiers ...Notifier) *Fanout {
	if logger == nil {
		logger = log.Discard()
	}
	return &Fanout{recipients: recipients, notifiers: notifiers, logger: logger.WithComponent(log.ComponentNotify)}
}

func (f *Fanout) Deliver(ctx context.Context, owner string, ev Event) error {
	to, err := f.recipients.Recipient(ctx, owner)
	if err != nil {
		return err
	}
	msg := Render(ev)
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, to, msg); err != nil {
			f.logger.WarnContext(ctx, "Notifier failed", "notifier", n.Name(),
				log.FieldReminderKey, ev.Key, log.FieldError, err.Error())
		}
	}
	return nil
}
