package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// Producer publishes review domain events.
type Producer struct {
	bus    eventbus.Bus
	logger *slog.Logger
}

// NewProducer creates an event producer for the review service.
func NewProducer(bus eventbus.Bus, logger *slog.Logger) *Producer {
	return &Producer{bus: bus, logger: logger}
}

// NewReviewCreatedEvent builds the publication-triggering envelope without
// publishing it. The saga subscribes for acknowledgments against the
// envelope's event id before the event goes out, so construction and
// publication are separate steps; each publication attempt gets a fresh id.
func (p *Producer) NewReviewCreatedEvent(rv *domain.Review) (*eventbus.Event, error) {
	event, err := eventbus.NewEvent(NameReviewCreated, rv.ID, Source, ReviewCreated{
		ReviewID:      rv.ID,
		OrderID:       rv.OrderID,
		ClientID:      rv.ClientID,
		ArtisanID:     rv.ArtisanID,
		ServiceID:     rv.ServiceID,
		ArtisanRating: rv.ArtisanRating,
		ServiceRating: rv.ServiceRating,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", NameReviewCreated, err)
	}
	return event, nil
}

// PublishEvent sends a previously built envelope on the review topic.
func (p *Producer) PublishEvent(ctx context.Context, event *eventbus.Event) error {
	if err := p.bus.Publish(ctx, Topic, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventName, err)
	}
	p.logger.DebugContext(ctx, "published review event",
		slog.String("event_id", event.ID),
		slog.String("event_name", event.EventName),
	)
	return nil
}

// PublishReviewPublished announces the review becoming visible.
func (p *Producer) PublishReviewPublished(ctx context.Context, rv *domain.Review, publishedAt time.Time) error {
	event, err := eventbus.NewEvent(NameReviewPublished, rv.ID, Source, ReviewPublished{
		ReviewID:    rv.ID,
		ArtisanID:   rv.ArtisanID,
		ServiceID:   rv.ServiceID,
		PublishedAt: publishedAt,
	})
	if err != nil {
		return fmt.Errorf("build %s: %w", NameReviewPublished, err)
	}
	if err := p.bus.Publish(ctx, Topic, event); err != nil {
		return fmt.Errorf("publish %s: %w", NameReviewPublished, err)
	}
	p.logger.DebugContext(ctx, "published review published event",
		slog.String("review_id", rv.ID),
	)
	return nil
}
