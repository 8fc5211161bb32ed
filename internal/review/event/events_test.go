package event

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colauncha/Fixserv-sub001/internal/ack"
	"github.com/Colauncha/Fixserv-sub001/internal/profile"
	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDecodeReviewEventCreated(t *testing.T) {
	e, err := eventbus.NewEvent(NameReviewCreated, "review-1", Source, ReviewCreated{
		ReviewID:      "review-1",
		OrderID:       "order-1",
		ClientID:      "client-1",
		ArtisanID:     "artisan-1",
		ServiceID:     "service-1",
		ArtisanRating: domain.Rating{Overall: 4.5},
		ServiceRating: domain.Rating{Overall: 4},
	})
	require.NoError(t, err)

	decoded, err := DecodeReviewEvent(e)
	require.NoError(t, err)

	created, ok := decoded.(*ReviewCreated)
	require.True(t, ok)
	assert.Equal(t, "artisan-1", created.ArtisanID)
	assert.Equal(t, 4.5, created.ArtisanRating.Overall)
}

func TestDecodeReviewEventPublished(t *testing.T) {
	publishedAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	e, err := eventbus.NewEvent(NameReviewPublished, "review-1", Source, ReviewPublished{
		ReviewID:    "review-1",
		ArtisanID:   "artisan-1",
		ServiceID:   "service-1",
		PublishedAt: publishedAt,
	})
	require.NoError(t, err)

	decoded, err := DecodeReviewEvent(e)
	require.NoError(t, err)

	published, ok := decoded.(*ReviewPublished)
	require.True(t, ok)
	assert.Equal(t, publishedAt, published.PublishedAt)
}

func TestDecodeReviewEventUnknownName(t *testing.T) {
	e, err := eventbus.NewEvent("SomethingElseEvent", "review-1", Source, map[string]string{})
	require.NoError(t, err)

	_, err = DecodeReviewEvent(e)
	assert.Error(t, err)
}

func sampleReview(t *testing.T) *domain.Review {
	t.Helper()
	rv, err := domain.NewReview("review-1", "order-1", "client-1", "artisan-1", "service-1",
		domain.Rating{Overall: 4.5}, domain.Rating{Overall: 4},
		domain.Feedback{Comment: "Solid work."},
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return rv
}

func TestNewReviewCreatedEventBuildsWithoutPublishing(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	producer := NewProducer(bus, logger)

	var published int
	_, err := bus.Subscribe(Topic, func(context.Context, *eventbus.Event) error {
		published++
		return nil
	})
	require.NoError(t, err)

	first, err := producer.NewReviewCreatedEvent(sampleReview(t))
	require.NoError(t, err)
	second, err := producer.NewReviewCreatedEvent(sampleReview(t))
	require.NoError(t, err)

	assert.Equal(t, NameReviewCreated, first.EventName)
	assert.Equal(t, "review-1", first.AggregateID)
	assert.NotEqual(t, first.ID, second.ID, "each attempt carries a fresh envelope id")

	require.NoError(t, bus.Close())
	assert.Zero(t, published, "building an event must not publish it")
}

func TestPublishEventDeliversEnvelope(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	producer := NewProducer(bus, logger)

	var mu sync.Mutex
	var got *eventbus.Event
	_, err := bus.Subscribe(Topic, func(_ context.Context, e *eventbus.Event) error {
		mu.Lock()
		got = e
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	built, err := producer.NewReviewCreatedEvent(sampleReview(t))
	require.NoError(t, err)
	require.NoError(t, producer.PublishEvent(context.Background(), built))
	require.NoError(t, bus.Close())

	require.NotNil(t, got)
	assert.Equal(t, built.ID, got.ID)

	decoded, err := DecodeReviewEvent(got)
	require.NoError(t, err)
	created := decoded.(*ReviewCreated)
	assert.Equal(t, "review-1", created.ReviewID)
}

// --- Rating handler fakes ---

type avgRepo struct {
	artisanAvg float64
	serviceAvg float64
	err        error
	calls      int
}

func (r *avgRepo) ArtisanAverage(context.Context, string) (float64, int, error) {
	r.calls++
	return r.artisanAvg, 3, r.err
}

func (r *avgRepo) ServiceAverage(context.Context, string) (float64, int, error) {
	r.calls++
	return r.serviceAvg, 3, r.err
}

func (r *avgRepo) Create(context.Context, *domain.Review) error { return nil }
func (r *avgRepo) Update(context.Context, *domain.Review) error { return nil }
func (r *avgRepo) Delete(context.Context, string) error         { return nil }
func (r *avgRepo) GetByID(context.Context, string) (*domain.Review, error) {
	return nil, errors.New("not implemented")
}

func (r *avgRepo) ListPublishedByArtisan(context.Context, string, int, int) ([]domain.Review, int, error) {
	return nil, 0, nil
}

func (r *avgRepo) ListPublishedByService(context.Context, string, int, int) ([]domain.Review, int, error) {
	return nil, 0, nil
}

func (r *avgRepo) ListByStatus(context.Context, string, int) ([]domain.Review, error) {
	return nil, nil
}

type ratingRecorder struct {
	artisanRatings map[string]float64
	serviceRatings map[string]float64
}

func newRatingRecorder() *ratingRecorder {
	return &ratingRecorder{
		artisanRatings: make(map[string]float64),
		serviceRatings: make(map[string]float64),
	}
}

func (r *ratingRecorder) GetArtisan(ctx context.Context, id string) (*profile.Artisan, error) {
	return &profile.Artisan{ID: id}, nil
}

func (r *ratingRecorder) GetService(ctx context.Context, id string) (*profile.Service, error) {
	return &profile.Service{ID: id}, nil
}

func (r *ratingRecorder) GetClient(ctx context.Context, id string) (*profile.ClientProfile, error) {
	return &profile.ClientProfile{ID: id}, nil
}

func (r *ratingRecorder) UpdateArtisanRating(_ context.Context, id string, rating float64) error {
	r.artisanRatings[id] = rating
	return nil
}

func (r *ratingRecorder) UpdateServiceRating(_ context.Context, id string, rating float64) error {
	r.serviceRatings[id] = rating
	return nil
}

// collectAcks subscribes to the ack topic and returns the collected acks
// after the bus has been drained with Close.
func collectAcks(t *testing.T, bus *eventbus.MemoryBus) *[]ack.Ack {
	t.Helper()
	var mu sync.Mutex
	acks := &[]ack.Ack{}
	_, err := bus.Subscribe(ack.Topic, func(_ context.Context, e *eventbus.Event) error {
		var a ack.Ack
		if err := e.DecodePayload(&a); err != nil {
			return err
		}
		mu.Lock()
		*acks = append(*acks, a)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return acks
}

func createdEnvelope(t *testing.T) *eventbus.Event {
	t.Helper()
	e, err := eventbus.NewEvent(NameReviewCreated, "review-1", Source, ReviewCreated{
		ReviewID:      "review-1",
		OrderID:       "order-1",
		ClientID:      "client-1",
		ArtisanID:     "artisan-1",
		ServiceID:     "service-1",
		ArtisanRating: domain.Rating{Overall: 4.5},
		ServiceRating: domain.Rating{Overall: 4},
	})
	require.NoError(t, err)
	return e
}

func TestArtisanRatingHandlerAcksProcessed(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	repo := &avgRepo{artisanAvg: 4.2}
	profiles := newRatingRecorder()
	acks := collectAcks(t, bus)

	handler := NewArtisanRatingHandler(repo, profiles, bus, logger).
		Handler(eventbus.NewMemoryIdempotencyStore(time.Minute))

	e := createdEnvelope(t)
	require.NoError(t, handler(context.Background(), e))
	require.NoError(t, bus.Close())

	assert.Equal(t, 4.2, profiles.artisanRatings["artisan-1"])
	require.Len(t, *acks, 1)
	got := (*acks)[0]
	assert.Equal(t, e.ID, got.OriginalEventID)
	assert.Equal(t, ack.StatusProcessed, got.Status)
	assert.Equal(t, PeerUserManagement, got.Service)
}

func TestServiceRatingHandlerAcksFailedOnRecalcError(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	repo := &avgRepo{err: errors.New("connection refused")}
	profiles := newRatingRecorder()
	acks := collectAcks(t, bus)

	handler := NewServiceRatingHandler(repo, profiles, bus, logger).
		Handler(eventbus.NewMemoryIdempotencyStore(time.Minute))

	e := createdEnvelope(t)
	require.NoError(t, handler(context.Background(), e), "the failed ack is the error signal")
	require.NoError(t, bus.Close())

	assert.Empty(t, profiles.serviceRatings)
	require.Len(t, *acks, 1)
	got := (*acks)[0]
	assert.Equal(t, ack.StatusFailed, got.Status)
	assert.Equal(t, PeerServiceManagement, got.Service)
	assert.Contains(t, got.Error, "connection refused")
}

func TestRatingHandlerSkipsDuplicateDelivery(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	repo := &avgRepo{artisanAvg: 4.2}
	acks := collectAcks(t, bus)

	handler := NewArtisanRatingHandler(repo, newRatingRecorder(), bus, logger).
		Handler(eventbus.NewMemoryIdempotencyStore(time.Minute))

	e := createdEnvelope(t)
	require.NoError(t, handler(context.Background(), e))
	require.NoError(t, handler(context.Background(), e))
	require.NoError(t, bus.Close())

	assert.Equal(t, 1, repo.calls, "duplicate delivery must not recalculate")
	assert.Len(t, *acks, 1, "duplicate delivery must not re-ack")
}

func TestRatingHandlerIgnoresPublishedEvents(t *testing.T) {
	logger := testLogger()
	bus := eventbus.NewMemoryBus(logger)
	repo := &avgRepo{}
	acks := collectAcks(t, bus)

	handler := NewArtisanRatingHandler(repo, newRatingRecorder(), bus, logger).
		Handler(eventbus.NewMemoryIdempotencyStore(time.Minute))

	e, err := eventbus.NewEvent(NameReviewPublished, "review-1", Source, ReviewPublished{
		ReviewID:  "review-1",
		ArtisanID: "artisan-1",
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), e))
	require.NoError(t, bus.Close())

	assert.Zero(t, repo.calls)
	assert.Empty(t, *acks)
}
