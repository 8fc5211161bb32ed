package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/internal/order/repository"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, client_id, artisan_id, service_id, price, client_address, status,
		escrow_status, payment_reference, uploaded_products, artisan_response,
		dispute_id, response_deadline, created_at, updated_at, completed_at`

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	productsJSON, responseJSON, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.ClientID,
		o.ArtisanID,
		o.ServiceID,
		o.Price,
		o.ClientAddress,
		o.Status,
		o.EscrowStatus,
		o.PaymentReference,
		productsJSON,
		responseJSON,
		o.DisputeID,
		o.ResponseDeadline,
		o.CreatedAt,
		o.UpdatedAt,
		o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// Update persists the aggregate's mutable fields.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	productsJSON, responseJSON, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET status = $2, escrow_status = $3, payment_reference = $4,
			uploaded_products = $5, artisan_response = $6, dispute_id = $7,
			updated_at = $8, completed_at = $9
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		o.ID,
		o.Status,
		o.EscrowStatus,
		o.PaymentReference,
		productsJSON,
		responseJSON,
		o.DisputeID,
		o.UpdatedAt,
		o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return nil
}

// List returns orders matching the filter and the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.ArtisanID != nil {
		args = append(args, *filter.ArtisanID)
		conditions = append(conditions, fmt.Sprintf("artisan_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(
		`SELECT `+orderColumns+` FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, total, nil
}

// ListExpiredPending returns unanswered orders past their deadline.
func (r *OrderRepository) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND response_deadline <= $2
		ORDER BY response_deadline
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusPendingArtisanResponse, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired pending orders: %w", err)
	}

	return orders, nil
}

func marshalOrderJSON(o *domain.Order) (productsJSON, responseJSON []byte, err error) {
	products := o.UploadedProducts
	if products == nil {
		products = []domain.Attachment{}
	}
	productsJSON, err = json.Marshal(products)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal uploaded products: %w", err)
	}

	if o.ArtisanResponse != nil {
		responseJSON, err = json.Marshal(o.ArtisanResponse)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal artisan response: %w", err)
		}
	}
	return productsJSON, responseJSON, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o            domain.Order
		productsJSON []byte
		responseJSON []byte
	)

	err := row.Scan(
		&o.ID,
		&o.ClientID,
		&o.ArtisanID,
		&o.ServiceID,
		&o.Price,
		&o.ClientAddress,
		&o.Status,
		&o.EscrowStatus,
		&o.PaymentReference,
		&productsJSON,
		&responseJSON,
		&o.DisputeID,
		&o.ResponseDeadline,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(productsJSON) > 0 {
		if err := json.Unmarshal(productsJSON, &o.UploadedProducts); err != nil {
			return nil, fmt.Errorf("unmarshal uploaded products: %w", err)
		}
	}
	if len(responseJSON) > 0 {
		if err := json.Unmarshal(responseJSON, &o.ArtisanResponse); err != nil {
			return nil, fmt.Errorf("unmarshal artisan response: %w", err)
		}
	}

	return &o, nil
}
