package repository

import (
	"context"
	"time"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	ClientID  *string
	ArtisanID *string
	Status    *string
	Page      int
	PerPage   int
}

// OrderRepository defines order persistence operations.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by id.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// Update persists the aggregate's current state.
	Update(ctx context.Context, order *domain.Order) error

	// List returns orders matching the filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// ListExpiredPending returns unanswered orders whose response deadline
	// is at or before asOf, for the expiry sweep.
	ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]domain.Order, error)
}

// EscrowRepository persists the denormalized escrow audit records.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *domain.Escrow) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Escrow, error)
	Update(ctx context.Context, escrow *domain.Escrow) error
}
