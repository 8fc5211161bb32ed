// Package service implements the review commands and the publication saga.
// A submitted review is persisted immediately but only becomes visible
// after the dependent profile services acknowledge it; until then it sits
// in pending or processing and every failed attempt is recorded on the
// review itself.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Colauncha/Fixserv-sub001/internal/ack"
	"github.com/Colauncha/Fixserv-sub001/internal/profile"
	reviewcache "github.com/Colauncha/Fixserv-sub001/internal/review/cache"
	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/internal/review/event"
	"github.com/Colauncha/Fixserv-sub001/internal/review/repository"
	"github.com/Colauncha/Fixserv-sub001/pkg/cache"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// DefaultAckTimeout bounds how long a publication attempt waits for peer
// acknowledgments.
const DefaultAckTimeout = 15 * time.Second

const recoverBatch = 100

// EventPublisher is the producer surface the service needs.
type EventPublisher interface {
	NewReviewCreatedEvent(rv *domain.Review) (*eventbus.Event, error)
	PublishEvent(ctx context.Context, event *eventbus.Event) error
	PublishReviewPublished(ctx context.Context, rv *domain.Review, publishedAt time.Time) error
}

// ReviewService implements review submission, moderation, and the
// publication saga.
type ReviewService struct {
	reviews     repository.ReviewRepository
	profiles    profile.Client
	producer    EventPublisher
	correlator  *ack.Correlator
	invalidator *reviewcache.Invalidator
	store       cache.Store
	logger      *slog.Logger

	ackTimeout time.Duration
	now        func() time.Time

	// sagas tracks in-flight publication attempts per review id; a second
	// submission for the same review joins the running attempt instead of
	// racing it.
	sagas singleflight.Group
}

// NewReviewService creates the review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	profiles profile.Client,
	producer EventPublisher,
	correlator *ack.Correlator,
	invalidator *reviewcache.Invalidator,
	store cache.Store,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:     reviews,
		profiles:    profiles,
		producer:    producer,
		correlator:  correlator,
		invalidator: invalidator,
		store:       store,
		logger:      logger,
		ackTimeout:  DefaultAckTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetAckTimeout overrides how long a publication attempt waits for peer
// acknowledgments.
func (s *ReviewService) SetAckTimeout(d time.Duration) {
	s.ackTimeout = d
}

// SubmitReviewInput holds the parameters for submitting a review.
type SubmitReviewInput struct {
	OrderID       string
	ClientID      string
	ArtisanID     string
	ServiceID     string
	ArtisanRating domain.Rating
	ServiceRating domain.Rating
	Feedback      domain.Feedback
}

// SubmitReview validates the referenced profiles, persists the review in
// pending, and launches the publication saga in the background. The caller
// gets the pending review back immediately; saga failures are recorded on
// the review, not returned here.
func (s *ReviewService) SubmitReview(ctx context.Context, input SubmitReviewInput) (*domain.Review, error) {
	if input.OrderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}
	if input.ClientID == "" {
		return nil, apperrors.InvalidInput("client_id is required")
	}
	if input.ArtisanID == "" {
		return nil, apperrors.InvalidInput("artisan_id is required")
	}
	if input.ServiceID == "" {
		return nil, apperrors.InvalidInput("service_id is required")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.profiles.GetArtisan(gctx, input.ArtisanID)
		return err
	})
	g.Go(func() error {
		_, err := s.profiles.GetService(gctx, input.ServiceID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	review, err := domain.NewReview(uuid.New().String(), input.OrderID, input.ClientID,
		input.ArtisanID, input.ServiceID, input.ArtisanRating, input.ServiceRating,
		input.Feedback, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	// The submit response does not wait on peer acknowledgments. The saga
	// keeps the request's trace and logger but outlives its cancellation.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.runSaga(bgCtx, review.ID); err != nil {
			s.logger.WarnContext(bgCtx, "review publication failed",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return review, nil
}

// UpdateReviewInput holds the parameters for editing a published review.
type UpdateReviewInput struct {
	ArtisanRating domain.Rating
	ServiceRating domain.Rating
	Feedback      domain.Feedback
}

// UpdateReview rewrites a published review's content, resets it to pending,
// and re-runs the publication saga synchronously. The updated content is
// durable even when re-publication fails; the failure is both returned and
// recorded on the review.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID string, input UpdateReviewInput) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := review.Edit(input.ArtisanRating, input.ServiceRating, input.Feedback, s.now()); err != nil {
		return nil, err
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}
	// The previously published content just left the published set.
	if err := s.invalidator.InvalidateReview(ctx, review.ArtisanID, review.ServiceID); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed after review edit",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.runSaga(ctx, review.ID); err != nil {
		return nil, err
	}
	return s.reviews.GetByID(ctx, reviewID)
}

// DeleteReview removes a review. Only pending and flagged reviews are
// deletable unless the caller holds an administrative override.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID string, adminOverride bool) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if !review.Deletable(adminOverride) {
		return apperrors.InvalidTransition("review", review.Status, "DELETED",
			"only pending or flagged reviews can be deleted")
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}

	if err := s.invalidator.InvalidateReview(ctx, review.ArtisanID, review.ServiceID); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed after review delete",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// FlagReview marks a review for moderation and removes it from the
// published listings.
func (s *ReviewService) FlagReview(ctx context.Context, reviewID, note string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := review.Flag(note, s.now()); err != nil {
		return nil, err
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}

	if err := s.invalidator.InvalidateReview(ctx, review.ArtisanID, review.ServiceID); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed after review flag",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return review, nil
}

// GetReview retrieves a review by id.
func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	return s.reviews.GetByID(ctx, reviewID)
}

// publishedListing is the cached shape of a published-review page.
type publishedListing struct {
	Reviews []domain.Review `json:"reviews"`
	Total   int             `json:"total"`
}

// ListPublishedByArtisan returns a page of the artisan's published reviews,
// cache-aside.
func (s *ReviewService) ListPublishedByArtisan(ctx context.Context, artisanID string, page, perPage int) ([]domain.Review, int, error) {
	key := reviewcache.PageKey(reviewcache.ArtisanPublishedPrefix(artisanID), page, perPage)
	return s.listPublished(ctx, key, func() ([]domain.Review, int, error) {
		return s.reviews.ListPublishedByArtisan(ctx, artisanID, page, perPage)
	})
}

// ListPublishedByService returns a page of the service's published reviews,
// cache-aside.
func (s *ReviewService) ListPublishedByService(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error) {
	key := reviewcache.PageKey(reviewcache.ServicePublishedPrefix(serviceID), page, perPage)
	return s.listPublished(ctx, key, func() ([]domain.Review, int, error) {
		return s.reviews.ListPublishedByService(ctx, serviceID, page, perPage)
	})
}

func (s *ReviewService) listPublished(ctx context.Context, key string, load func() ([]domain.Review, int, error)) ([]domain.Review, int, error) {
	var cached publishedListing
	if found, err := s.store.Get(ctx, key, &cached); err == nil && found {
		return cached.Reviews, cached.Total, nil
	}

	reviews, total, err := load()
	if err != nil {
		return nil, 0, err
	}

	if err := s.store.SetWithTTL(ctx, key, publishedListing{Reviews: reviews, Total: total}, reviewcache.PublishedTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache published listing",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return reviews, total, nil
}

// ratingSummary is the cached shape of an average rating.
type ratingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ArtisanAverage returns the artisan's average published rating, cache-aside.
func (s *ReviewService) ArtisanAverage(ctx context.Context, artisanID string) (float64, int, error) {
	return s.average(ctx, reviewcache.ArtisanRatingKey(artisanID), func() (float64, int, error) {
		return s.reviews.ArtisanAverage(ctx, artisanID)
	})
}

// ServiceAverage returns the service's average published rating, cache-aside.
func (s *ReviewService) ServiceAverage(ctx context.Context, serviceID string) (float64, int, error) {
	return s.average(ctx, reviewcache.ServiceRatingKey(serviceID), func() (float64, int, error) {
		return s.reviews.ServiceAverage(ctx, serviceID)
	})
}

func (s *ReviewService) average(ctx context.Context, key string, load func() (float64, int, error)) (float64, int, error) {
	var cached ratingSummary
	if found, err := s.store.Get(ctx, key, &cached); err == nil && found {
		return cached.Average, cached.Count, nil
	}

	avg, count, err := load()
	if err != nil {
		return 0, 0, err
	}

	if err := s.store.SetWithTTL(ctx, key, ratingSummary{Average: avg, Count: count}, reviewcache.RatingTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache rating summary",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return avg, count, nil
}

// RecoverInterrupted resets reviews stranded in processing by a crash back
// to pending with the interruption recorded. It does not redrive them: the
// ack subscription died with the process, and re-submitting without
// operator intent risks publishing twice against peers that already acked.
func (s *ReviewService) RecoverInterrupted(ctx context.Context) error {
	stranded, err := s.reviews.ListByStatus(ctx, domain.StatusProcessing, recoverBatch)
	if err != nil {
		return fmt.Errorf("list interrupted reviews: %w", err)
	}

	for i := range stranded {
		review := &stranded[i]
		if err := review.MarkFailed("publication interrupted by service restart", s.now()); err != nil {
			s.logger.ErrorContext(ctx, "failed to reset interrupted review",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.reviews.Update(ctx, review); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist interrupted review reset",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.InfoContext(ctx, "reset interrupted review to pending",
			slog.String("review_id", review.ID),
		)
	}
	return nil
}

// runSaga executes processReview for the review, joining an already running
// attempt for the same id instead of starting a second publisher.
func (s *ReviewService) runSaga(ctx context.Context, reviewID string) error {
	_, err, _ := s.sagas.Do(reviewID, func() (any, error) {
		return nil, s.processReview(ctx, reviewID)
	})
	return err
}

// processReview is one publication attempt: mark processing, subscribe for
// acknowledgments, publish the triggering event, and wait for quorum. On
// success the review publishes and derived caches are invalidated; on
// failure or timeout it returns to pending with the error appended.
func (s *ReviewService) processReview(ctx context.Context, reviewID string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if err := review.MarkProcessing(s.now()); err != nil {
		return err
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return err
	}

	triggering, err := s.producer.NewReviewCreatedEvent(review)
	if err != nil {
		return s.failAttempt(ctx, review, err)
	}

	// Subscribe before publishing so a fast peer's ack cannot be missed.
	pending, err := s.correlator.Expect(triggering.ID, []string{event.PeerUserManagement, event.PeerServiceManagement})
	if err != nil {
		return s.failAttempt(ctx, review, err)
	}

	if err := s.producer.PublishEvent(ctx, triggering); err != nil {
		pending.Wait(ctx, 0) // tear down the subscription
		return s.failAttempt(ctx, review, err)
	}

	outcome := pending.Wait(ctx, s.ackTimeout)
	if err := outcome.Err(); err != nil {
		return s.failAttempt(ctx, review, err)
	}

	now := s.now()
	if err := review.MarkPublished(now); err != nil {
		return err
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return err
	}

	if err := s.invalidator.InvalidateReview(ctx, review.ArtisanID, review.ServiceID); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed after publication",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishReviewPublished(ctx, review, now); err != nil {
		s.logger.WarnContext(ctx, "failed to publish review published event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// failAttempt returns the review to pending with the failure recorded and
// hands the original error back for classification by the caller.
func (s *ReviewService) failAttempt(ctx context.Context, review *domain.Review, cause error) error {
	if err := review.MarkFailed(cause.Error(), s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to record publication failure",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
		return cause
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist publication failure",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return cause
}
