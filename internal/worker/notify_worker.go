package worker

import (
	"context"
	"time"

	"usaha/internal/amqp"
	"usaha/internal/log"
	"usaha/internal/reminder"
)

// NotifyWorker turns queued reminder messages into notifications.
type NotifyWorker struct {
	sink   reminder.Sink
	now    func() time.Time
	logger *log.Logger
}

func NewNotifyWorker(sink reminder.Sink, logger *log.Logger) *NotifyWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &NotifyWorker{
		sink:   sink,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReminderMessage delivers one message. Reminders whose deadline
// passed while queued are dropped without error.
func (w *NotifyWorker) HandleReminderMessage(ctx context.Context, msg *amqp.ReminderMessage) error {
	ev := msg.Event
	if !ev.Deadline.IsZero() && !ev.Deadline.After(w.now()) {
		w.logger.InfoContext(ctx, "Dropping stale reminder",
			log.FieldOwner, msg.Owner, log.FieldReminderKey, ev.Key, "deadline", ev.Deadline)
		return nil
	}
	return w.sink.Deliver(ctx, msg.Owner, ev)
}
