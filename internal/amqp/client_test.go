package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/reminder"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("attempt %d: backoff %v, want %v", attempt, got, d)
		}
	}
	for _, attempt := range []int{5, 9, 40} {
		if got := exponentialBackoff(attempt); got != maxBackoff {
			t.Errorf("attempt %d: backoff %v, want cap %v", attempt, got, maxBackoff)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	retryable := []error{
		fmt.Errorf("publish reminder: %w", amqp091.ErrClosed),
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
		errors.New("write: broken pipe"),
		errors.New("Exception (504) Reason: \"channel/connection is not open\""),
	}
	for _, err := range retryable {
		if !isConnectionError(err) {
			t.Errorf("%q should be retried", err)
		}
	}
	for _, err := range []error{nil, errors.New("reminder message missing owner or key"), context.DeadlineExceeded} {
		if isConnectionError(err) {
			t.Errorf("%v should not be retried", err)
		}
	}
}

func TestCircuitBreakerCycle(t *testing.T) {
	c := &Client{exchangeName: "usaha", queueName: "reminders"}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("open after %d failures, threshold is %d", maxFailures-1, maxFailures)
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should open at the failure threshold")
	}

	// once the open window has passed a single probe is allowed
	c.mu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	c.mu.Unlock()
	if c.isCircuitOpen() || atomic.LoadInt32(&c.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", atomic.LoadInt32(&c.state))
	}

	// a failed probe reopens immediately
	c.recordFailure()
	if atomic.LoadInt32(&c.state) != StateOpen {
		t.Fatalf("state = %d, want open after failed probe", atomic.LoadInt32(&c.state))
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success should close the circuit and clear failures")
	}
}

func TestPublishShortCircuits(t *testing.T) {
	ev := reminder.Event{Key: "notified-j1-2024-01-12", JobID: "j1"}

	open := &Client{exchangeName: "usaha", queueName: "reminders", state: StateOpen, lastFailure: time.Now()}
	if err := open.PublishReminder(context.Background(), "alice", ev); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit: err = %v, want ErrCircuitOpen", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	closed := &Client{exchangeName: "usaha", queueName: "reminders"}
	if err := closed.Deliver(ctx, "alice", ev); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: err = %v, want context.Canceled", err)
	}
}

type recordingAck struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *recordingAck) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *recordingAck) Reject(uint64, bool) error { return nil }

func TestHandleAcknowledgement(t *testing.T) {
	valid, _ := NewReminderMessage("alice", reminder.Event{Key: "notified-j1-2024-01-12"}).ToJSON()
	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{"delivered", valid, false, nil, true, false},
		{"undecodable is dropped", []byte("{"), false, nil, false, false},
		{"first failure requeues", valid, false, errors.New("smtp down"), false, true},
		{"second failure is dropped", valid, true, errors.New("smtp down"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{logger: log.Discard()}
			ack := &recordingAck{}
			d := amqp091.Delivery{Acknowledger: ack, Body: tt.body, Redelivered: tt.redelivered}
			c.handle(context.Background(), d, func(context.Context, *ReminderMessage) error { return tt.handlerErr })

			if tt.wantAck != (ack.acks == 1) || tt.wantAck == (ack.nacks == 1) {
				t.Fatalf("acks %d nacks %d, want ack=%v", ack.acks, ack.nacks, tt.wantAck)
			}
			if ack.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestNewReminderMessage(t *testing.T) {
	ev := reminder.Event{Key: "notified-j1-2024-01-12", JobID: "j1", JobTitle: "Cake", DaysUntil: 2}
	msg := NewReminderMessage("alice", ev)

	if msg.Owner != "alice" || msg.Event.Key != ev.Key {
		t.Errorf("NewReminderMessage() = %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestReminderMessage_JSON(t *testing.T) {
	ev := reminder.Event{
		Key:            "notified-j1-2024-01-12",
		JobID:          "j1",
		JobTitle:       "Cake",
		BusinessName:   "Bakery",
		OccurrenceDate: core.NewDate(2024, 1, 12),
		Deadline:       time.Date(2024, 1, 12, 2, 0, 0, 0, time.UTC),
		DaysUntil:      2,
	}
	msg := &ReminderMessage{Owner: "alice", Event: ev, Timestamp: time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)}

	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(raw), `"occurrenceDate":"2024-01-12"`) {
		t.Errorf("occurrence date should be a plain date: %s", raw)
	}

	got, err := ReminderMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("ReminderMessageFromJSON() error = %v", err)
	}
	if got.Owner != "alice" || got.Event.DaysUntil != 2 || !got.Event.OccurrenceDate.Equal(ev.OccurrenceDate) {
		t.Errorf("decoded = %+v", got)
	}
	if !got.Event.Deadline.Equal(ev.Deadline) {
		t.Errorf("Deadline = %v, want %v", got.Event.Deadline, ev.Deadline)
	}
}

func TestReminderMessage_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":    `{"owner": 1`,
		"no owner":    `{"event":{"key":"k"}}`,
		"no key":      `{"owner":"alice","event":{}}`,
		"wrong types": `{"owner":"alice","event":{"key":"k","daysUntil":"two"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReminderMessageFromJSON([]byte(body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
