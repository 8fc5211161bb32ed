package event

import (
	"context"
	"log/slog"

	"github.com/Colauncha/Fixserv-sub001/internal/ack"
	"github.com/Colauncha/Fixserv-sub001/internal/profile"
	"github.com/Colauncha/Fixserv-sub001/internal/review/repository"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// RatingHandler is the peer side of review publication: it recalculates a
// profile's average rating when a review enters publication and
// acknowledges the triggering event. One handler instance stands in for one
// peer service.
type RatingHandler struct {
	peer   string
	bus    eventbus.Bus
	logger *slog.Logger
	recalc func(ctx context.Context, ev *ReviewCreated) error
}

// NewArtisanRatingHandler builds the user-management peer: it refreshes the
// artisan's average rating on each review publication.
func NewArtisanRatingHandler(reviews repository.ReviewRepository, profiles profile.Client, bus eventbus.Bus, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{
		peer:   PeerUserManagement,
		bus:    bus,
		logger: logger,
		recalc: func(ctx context.Context, ev *ReviewCreated) error {
			avg, _, err := reviews.ArtisanAverage(ctx, ev.ArtisanID)
			if err != nil {
				return err
			}
			return profiles.UpdateArtisanRating(ctx, ev.ArtisanID, avg)
		},
	}
}

// NewServiceRatingHandler builds the service-management peer: it refreshes
// the service's average rating on each review publication.
func NewServiceRatingHandler(reviews repository.ReviewRepository, profiles profile.Client, bus eventbus.Bus, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{
		peer:   PeerServiceManagement,
		bus:    bus,
		logger: logger,
		recalc: func(ctx context.Context, ev *ReviewCreated) error {
			avg, _, err := reviews.ServiceAverage(ctx, ev.ServiceID)
			if err != nil {
				return err
			}
			return profiles.UpdateServiceRating(ctx, ev.ServiceID, avg)
		},
	}
}

// Handler returns the bus handler, deduplicating deliveries through store.
// Every handled ReviewCreated produces exactly one ack: processed when the
// rating refresh succeeded, failed with the error message otherwise.
func (h *RatingHandler) Handler(store eventbus.IdempotencyStore) eventbus.Handler {
	return eventbus.IdempotentHandler(store, h.logger, func(ctx context.Context, e *eventbus.Event) error {
		decoded, err := DecodeReviewEvent(e)
		if err != nil {
			return err
		}

		created, ok := decoded.(*ReviewCreated)
		if !ok {
			// ReviewPublished is informational; peers only act on creation.
			return nil
		}

		if err := h.recalc(ctx, created); err != nil {
			h.logger.ErrorContext(ctx, "rating refresh failed",
				slog.String("peer", h.peer),
				slog.String("review_id", created.ReviewID),
				slog.String("error", err.Error()),
			)
			// The failed ack is the error signal; returning the error as
			// well would only trigger pointless redelivery of an event id
			// the store already recorded.
			return ack.Publish(ctx, h.bus, ack.Failed(e.ID, h.peer, err))
		}

		return ack.Publish(ctx, h.bus, ack.Processed(e.ID, h.peer))
	})
}
