package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var reviewCols = []string{
	"id", "order_id", "client_id", "artisan_id", "service_id", "artisan_rating",
	"service_rating", "feedback", "status", "processing_errors", "created_at",
	"updated_at",
}

func sampleReview(t *testing.T) *domain.Review {
	t.Helper()
	rv, err := domain.NewReview("review-1", "order-1", "client-1", "artisan-1", "service-1",
		domain.Rating{Overall: 4.5}, domain.Rating{Overall: 4},
		domain.Feedback{Comment: "Fixed my generator quickly."}, now)
	require.NoError(t, err)
	return rv
}

func reviewRow(rv *domain.Review) []any {
	artisanJSON, _ := json.Marshal(rv.ArtisanRating)
	serviceJSON, _ := json.Marshal(rv.ServiceRating)
	feedbackJSON, _ := json.Marshal(rv.Feedback)
	procErrors := rv.ProcessingErrors
	if procErrors == nil {
		procErrors = []string{}
	}
	errorsJSON, _ := json.Marshal(procErrors)
	return []any{
		rv.ID, rv.OrderID, rv.ClientID, rv.ArtisanID, rv.ServiceID, artisanJSON,
		serviceJSON, feedbackJSON, rv.Status, errorsJSON, rv.CreatedAt,
		rv.UpdatedAt,
	}
}

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	artisanJSON, _ := json.Marshal(rv.ArtisanRating)
	serviceJSON, _ := json.Marshal(rv.ServiceRating)
	feedbackJSON, _ := json.Marshal(rv.Feedback)
	errorsJSON, _ := json.Marshal([]string{})

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(
			rv.ID, rv.OrderID, rv.ClientID, rv.ArtisanID, rv.ServiceID,
			artisanJSON, serviceJSON, feedbackJSON, rv.Status, errorsJSON,
			rv.CreatedAt, rv.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), rv)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(rv)...))

	result, err := repo.GetByID(context.Background(), rv.ID)
	require.NoError(t, err)
	assert.Equal(t, rv.ID, result.ID)
	assert.Equal(t, domain.StatusPending, result.Status)
	assert.Equal(t, 4.5, result.ArtisanRating.Overall)
	assert.Equal(t, "Fixed my generator quickly.", result.Feedback.Comment)
	assert.Nil(t, result.ProcessingErrors)
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "missing-id")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_Update_PersistsSagaFields(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	require.NoError(t, rv.MarkProcessing(now))
	require.NoError(t, rv.MarkFailed("ack timeout", now))

	artisanJSON, _ := json.Marshal(rv.ArtisanRating)
	serviceJSON, _ := json.Marshal(rv.ServiceRating)
	feedbackJSON, _ := json.Marshal(rv.Feedback)
	errorsJSON, _ := json.Marshal(rv.ProcessingErrors)

	mock.ExpectExec("UPDATE reviews").
		WithArgs(
			rv.ID, artisanJSON, serviceJSON, feedbackJSON,
			domain.StatusPending, errorsJSON, rv.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), rv)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	mock.ExpectExec("UPDATE reviews").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), rv)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_Delete(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews").
		WithArgs("review-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, repo.Delete(context.Background(), "review-1"))

	mock.ExpectExec("DELETE FROM reviews").
		WithArgs("missing-id").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing-id"), apperrors.ErrNotFound)
}

func TestReviewRepository_ListPublishedByArtisan(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	require.NoError(t, rv.MarkProcessing(now))
	require.NoError(t, rv.MarkPublished(now))

	cols := append(append([]string{}, reviewCols...), "total_count")
	row := append(reviewRow(rv), 7)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE artisan_id").
		WithArgs("artisan-1", domain.StatusPublished, 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(row...))

	reviews, total, err := repo.ListPublishedByArtisan(context.Background(), "artisan-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, reviews, 1)
	assert.Equal(t, domain.StatusPublished, reviews[0].Status)
}

func TestReviewRepository_ListPublishedByService_Empty(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	cols := append(append([]string{}, reviewCols...), "total_count")
	mock.ExpectQuery("SELECT .+ FROM reviews WHERE service_id").
		WithArgs("service-9", domain.StatusPublished, 10, 10).
		WillReturnRows(pgxmock.NewRows(cols))

	reviews, total, err := repo.ListPublishedByService(context.Background(), "service-9", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)
}

func TestReviewRepository_ListByStatus(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	rv := sampleReview(t)
	require.NoError(t, rv.MarkProcessing(now))

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE status").
		WithArgs(domain.StatusProcessing, 50).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(rv)...))

	reviews, err := repo.ListByStatus(context.Background(), domain.StatusProcessing, 50)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, domain.StatusProcessing, reviews[0].Status)
}

func TestReviewRepository_ArtisanAverage(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COALESCE\\(AVG").
		WithArgs("artisan-1", domain.StatusPublished).
		WillReturnRows(pgxmock.NewRows([]string{"avg", "count"}).AddRow(4.25, 8))

	avg, count, err := repo.ArtisanAverage(context.Background(), "artisan-1")
	require.NoError(t, err)
	assert.Equal(t, 4.25, avg)
	assert.Equal(t, 8, count)
}

func TestReviewRepository_ServiceAverage_NoReviews(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COALESCE\\(AVG").
		WithArgs("service-1", domain.StatusPublished).
		WillReturnRows(pgxmock.NewRows([]string{"avg", "count"}).AddRow(0.0, 0))

	avg, count, err := repo.ServiceAverage(context.Background(), "service-1")
	require.NoError(t, err)
	assert.Zero(t, avg)
	assert.Zero(t, count)
}
