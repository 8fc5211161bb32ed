package repository

import (
	"context"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
)

// ReviewRepository defines review persistence operations.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id string) error

	// ListPublishedByArtisan returns published reviews for an artisan,
	// newest first, with the total published count.
	ListPublishedByArtisan(ctx context.Context, artisanID string, page, perPage int) ([]domain.Review, int, error)
	ListPublishedByService(ctx context.Context, serviceID string, page, perPage int) ([]domain.Review, int, error)

	// ListByStatus returns up to limit reviews in the given status,
	// oldest first. Used by startup recovery.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Review, error)

	// ArtisanAverage returns the average overall artisan rating across
	// published reviews together with the review count.
	ArtisanAverage(ctx context.Context, artisanID string) (float64, int, error)
	ServiceAverage(ctx context.Context, serviceID string) (float64, int, error)
}
