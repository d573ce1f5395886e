package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"usaha/internal/reminder"
)

// RoutingKey is used for every reminder message.
const RoutingKey = "reminder.due"

// ReminderMessage carries one due reminder from the scanner to the
// notification worker.
type ReminderMessage struct {
	Owner     string         `json:"owner"`
	Event     reminder.Event `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewReminderMessage(owner string, ev reminder.Event) *ReminderMessage {
	return &ReminderMessage{
		Owner:     owner,
		Event:     ev,
		Timestamp: time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON decodes a message and rejects ones without an
// owner or reminder key.
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Owner == "" || msg.Event.Key == "" {
		return nil, errors.New("reminder message missing owner or key")
	}
	return &msg, nil
}
