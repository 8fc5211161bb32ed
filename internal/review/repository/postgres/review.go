// Package postgres implements review persistence on PostgreSQL. Ratings,
// feedback and the processing error log are stored as jsonb; listing and
// averaging only ever consider published rows.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, order_id, client_id, artisan_id, service_id, artisan_rating,
			service_rating, feedback, status, processing_errors, created_at, updated_at`

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	artisanJSON, serviceJSON, feedbackJSON, errorsJSON, err := marshalReviewJSON(rv)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		rv.ID,
		rv.OrderID,
		rv.ClientID,
		rv.ArtisanID,
		rv.ServiceID,
		artisanJSON,
		serviceJSON,
		feedbackJSON,
		rv.Status,
		errorsJSON,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by id.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review %s: %w", id, err)
	}
	return rv, nil
}

// Update persists the review's mutable fields.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	artisanJSON, serviceJSON, feedbackJSON, errorsJSON, err := marshalReviewJSON(rv)
	if err != nil {
		return err
	}

	query := `
		UPDATE reviews
		SET artisan_rating = $2, service_rating = $3, feedback = $4,
			status = $5, processing_errors = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		rv.ID,
		artisanJSON,
		serviceJSON,
		feedbackJSON,
		rv.Status,
		errorsJSON,
		rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update review %s: %w", rv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}
	return nil
}

// Delete removes a review permanently.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// ListPublishedByArtisan returns published reviews for an artisan, newest
// first, with the total published count.
func (r *ReviewRepository) ListPublishedByArtisan(ctx context.Context, artisanID string, page, perPage int) ([]domain.Review, int, error) {
	return r.listPublished(ctx, "artisan_id", artisanID, page, perPage)
}

// ListPublishedByService returns published reviews for a service, newest
// first, with the total published count.
func (r *ReviewRepository) ListPublishedByService(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error) {
	return r.listPublished(ctx, "service_id", serviceID, page, perPage)
}

func (r *ReviewRepository) listPublished(ctx context.Context, column, id string, page, perPage int) ([]domain.Review, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	query := fmt.Sprintf(`
		SELECT `+reviewColumns+`, count(*) OVER() AS total_count
		FROM reviews
		WHERE %s = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, column)

	rows, err := r.pool.Query(ctx, query, id, domain.StatusPublished, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list published reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews []domain.Review
		total   int
	)
	for rows.Next() {
		rv, err := scanReviewWithTotal(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reviews: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, total, nil
}

// ListByStatus returns up to limit reviews in the given status, oldest first.
func (r *ReviewRepository) ListByStatus(ctx context.Context, status string, limit int) ([]domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE status = $1
		ORDER BY updated_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews by status: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}

// ArtisanAverage returns the average overall artisan rating across
// published reviews together with the review count.
func (r *ReviewRepository) ArtisanAverage(ctx context.Context, artisanID string) (float64, int, error) {
	return r.average(ctx, "artisan_id", "artisan_rating", artisanID)
}

// ServiceAverage returns the average overall service rating across
// published reviews together with the review count.
func (r *ReviewRepository) ServiceAverage(ctx context.Context, serviceID string) (float64, int, error) {
	return r.average(ctx, "service_id", "service_rating", serviceID)
}

func (r *ReviewRepository) average(ctx context.Context, column, ratingColumn, id string) (float64, int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(AVG((%s->>'overall')::float), 0), COUNT(*)
		FROM reviews
		WHERE %s = $1 AND status = $2`, ratingColumn, column)

	var (
		avg   float64
		count int
	)
	if err := r.pool.QueryRow(ctx, query, id, domain.StatusPublished).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("average rating: %w", err)
	}
	return avg, count, nil
}

func marshalReviewJSON(rv *domain.Review) (artisanJSON, serviceJSON, feedbackJSON, errorsJSON []byte, err error) {
	if artisanJSON, err = json.Marshal(rv.ArtisanRating); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal artisan rating: %w", err)
	}
	if serviceJSON, err = json.Marshal(rv.ServiceRating); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal service rating: %w", err)
	}
	if feedbackJSON, err = json.Marshal(rv.Feedback); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal feedback: %w", err)
	}

	procErrors := rv.ProcessingErrors
	if procErrors == nil {
		procErrors = []string{}
	}
	if errorsJSON, err = json.Marshal(procErrors); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal processing errors: %w", err)
	}
	return artisanJSON, serviceJSON, feedbackJSON, errorsJSON, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	return scanReviewInto(row, nil)
}

func scanReviewWithTotal(row pgx.Row, total *int) (*domain.Review, error) {
	return scanReviewInto(row, total)
}

func scanReviewInto(row pgx.Row, total *int) (*domain.Review, error) {
	var (
		rv           domain.Review
		artisanJSON  []byte
		serviceJSON  []byte
		feedbackJSON []byte
		errorsJSON   []byte
	)

	dest := []any{
		&rv.ID,
		&rv.OrderID,
		&rv.ClientID,
		&rv.ArtisanID,
		&rv.ServiceID,
		&artisanJSON,
		&serviceJSON,
		&feedbackJSON,
		&rv.Status,
		&errorsJSON,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
	if total != nil {
		dest = append(dest, total)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(artisanJSON, &rv.ArtisanRating); err != nil {
		return nil, fmt.Errorf("unmarshal artisan rating: %w", err)
	}
	if err := json.Unmarshal(serviceJSON, &rv.ServiceRating); err != nil {
		return nil, fmt.Errorf("unmarshal service rating: %w", err)
	}
	if err := json.Unmarshal(feedbackJSON, &rv.Feedback); err != nil {
		return nil, fmt.Errorf("unmarshal feedback: %w", err)
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &rv.ProcessingErrors); err != nil {
			return nil, fmt.Errorf("unmarshal processing errors: %w", err)
		}
		if len(rv.ProcessingErrors) == 0 {
			rv.ProcessingErrors = nil
		}
	}

	return &rv, nil
}
