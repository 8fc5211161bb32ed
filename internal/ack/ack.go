// Package ack implements the event acknowledgment protocol: after
// publishing a domain event, the initiator waits until a known set of peer
// services have each reported success or failure for that event, or a
// deadline elapses.
package ack

import (
	"context"
	"fmt"

	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// Topic is the shared topic all services publish acknowledgments to.
const Topic = "event_acks"

// Ack statuses.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Ack is the wire shape of an acknowledgment message.
type Ack struct {
	OriginalEventID string `json:"original_event_id"`
	Status          string `json:"status"`
	Service         string `json:"service"`
	Error           string `json:"error,omitempty"`
}

// Processed builds a success ack for the given event from the given service.
func Processed(originalEventID, service string) Ack {
	return Ack{
		OriginalEventID: originalEventID,
		Status:          StatusProcessed,
		Service:         service,
	}
}

// Failed builds a failure ack carrying the handler's error message.
func Failed(originalEventID, service string, err error) Ack {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Ack{
		OriginalEventID: originalEventID,
		Status:          StatusFailed,
		Service:         service,
		Error:           msg,
	}
}

// Publish sends the ack on the shared acknowledgment topic. Peers call this
// exactly once per event id they handle.
func Publish(ctx context.Context, bus eventbus.Bus, a Ack) error {
	event, err := eventbus.NewEvent("EventAck", a.OriginalEventID, a.Service, a)
	if err != nil {
		return fmt.Errorf("build ack event: %w", err)
	}
	if err := bus.Publish(ctx, Topic, event); err != nil {
		return fmt.Errorf("publish ack for %s: %w", a.OriginalEventID, err)
	}
	return nil
}
