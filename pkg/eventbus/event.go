package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message crossing the bus. The ID doubles as
// the correlation identifier for acknowledgement flows: peers acknowledging an
// event reference it by this ID.
type Event struct {
	ID          string          `json:"id"`
	EventName   string          `json:"event_name"`
	AggregateID string          `json:"aggregate_id"`
	Version     int             `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEvent creates an event with a generated ID and current timestamp.
func NewEvent(eventName, aggregateID, source string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New().String(),
		EventName:   eventName,
		AggregateID: aggregateID,
		Version:     1,
		Timestamp:   time.Now().UTC(),
		Source:      source,
		Payload:     payloadBytes,
	}, nil
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// DecodePayload deserializes the event payload into the given target.
func (e *Event) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
