// Package event defines the review domain events, their producer, and the
// peer-side rating handlers that acknowledge review publication.
package event

import (
	"fmt"
	"time"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// Topic carries every review domain event.
const Topic = "review_events"

// Source identifier for events originating from the review service.
const Source = "review-management"

// Peer services that must acknowledge a review before it publishes.
const (
	PeerUserManagement    = "user-management"
	PeerServiceManagement = "service-management"
)

// Event names on the review topic.
const (
	NameReviewCreated   = "ReviewCreatedEvent"
	NameReviewPublished = "ReviewPublishedEvent"
)

// ReviewEvent is the closed set of events on the review topic.
type ReviewEvent interface {
	isReviewEvent()
}

// ReviewCreated announces a review entering publication. Peers recalculate
// the affected ratings and acknowledge against the envelope's event id.
type ReviewCreated struct {
	ReviewID      string        `json:"review_id"`
	OrderID       string        `json:"order_id"`
	ClientID      string        `json:"client_id"`
	ArtisanID     string        `json:"artisan_id"`
	ServiceID     string        `json:"service_id"`
	ArtisanRating domain.Rating `json:"artisan_rating"`
	ServiceRating domain.Rating `json:"service_rating"`
}

// ReviewPublished announces that all peers acknowledged and the review is
// now visible.
type ReviewPublished struct {
	ReviewID    string    `json:"review_id"`
	ArtisanID   string    `json:"artisan_id"`
	ServiceID   string    `json:"service_id"`
	PublishedAt time.Time `json:"published_at"`
}

func (ReviewCreated) isReviewEvent()   {}
func (ReviewPublished) isReviewEvent() {}

// DecodeReviewEvent maps an envelope from the review topic to its concrete
// variant. An unknown event name is an error, not a silent fallthrough.
func DecodeReviewEvent(e *eventbus.Event) (ReviewEvent, error) {
	decode := func(dst ReviewEvent) (ReviewEvent, error) {
		if err := e.DecodePayload(dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.EventName, err)
		}
		return dst, nil
	}

	switch e.EventName {
	case NameReviewCreated:
		return decode(&ReviewCreated{})
	case NameReviewPublished:
		return decode(&ReviewPublished{})
	default:
		return nil, fmt.Errorf("unknown review event %q", e.EventName)
	}
}
