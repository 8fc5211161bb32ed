package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// EscrowRepository implements repository.EscrowRepository using PostgreSQL.
type EscrowRepository struct {
	pool database.DBTX
}

// NewEscrowRepository creates a PostgreSQL-backed escrow repository.
func NewEscrowRepository(pool database.DBTX) *EscrowRepository {
	return &EscrowRepository{pool: pool}
}

// Create inserts the escrow audit record.
func (r *EscrowRepository) Create(ctx context.Context, e *domain.Escrow) error {
	query := `
		INSERT INTO escrows (order_id, payment_reference, amount, status, released_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		e.OrderID,
		e.PaymentReference,
		e.Amount,
		e.Status,
		e.ReleasedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

// GetByOrderID retrieves the escrow record for an order.
func (r *EscrowRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Escrow, error) {
	query := `
		SELECT order_id, payment_reference, amount, status, released_at, created_at, updated_at
		FROM escrows WHERE order_id = $1`

	var e domain.Escrow
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&e.OrderID,
		&e.PaymentReference,
		&e.Amount,
		&e.Status,
		&e.ReleasedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("escrow", orderID)
		}
		return nil, fmt.Errorf("get escrow %s: %w", orderID, err)
	}
	return &e, nil
}

// Update persists the record's status fields.
func (r *EscrowRepository) Update(ctx context.Context, e *domain.Escrow) error {
	query := `
		UPDATE escrows
		SET status = $2, released_at = $3, updated_at = $4
		WHERE order_id = $1`

	tag, err := r.pool.Exec(ctx, query, e.OrderID, e.Status, e.ReleasedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update escrow %s: %w", e.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("escrow", e.OrderID)
	}
	return nil
}
