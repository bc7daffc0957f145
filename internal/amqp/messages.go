package amqp

import (
	"encoding/json"
	"time"
)

// RecordEventMessage is the lightweight envelope published on record
// lifecycle changes. It carries only the id and event name; consumers
// fetch the current record from storage so stale messages cannot export
// stale data.
type RecordEventMessage struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEventMessage(id int64, event string) *RecordEventMessage {
	return &RecordEventMessage{
		ID:        id,
		Event:     event,
		Timestamp: time.Now(),
	}
}

func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
