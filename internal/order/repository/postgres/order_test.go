package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/internal/order/repository"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func strPtr(s string) *string { return &s }

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var orderCols = []string{
	"id", "client_id", "artisan_id", "service_id", "price", "client_address",
	"status", "escrow_status", "payment_reference", "uploaded_products",
	"artisan_response", "dispute_id", "response_deadline", "created_at",
	"updated_at", "completed_at",
}

func sampleOrder() *domain.Order {
	return domain.NewOrder("order-1", "client-1", "artisan-1", "service-1", 5000, "12 Allen Ave, Lagos",
		[]domain.Attachment{{Name: "broken-hinge.jpg", URL: "https://cdn.fixserv.co/p/1.jpg"}}, now)
}

func orderRow(o *domain.Order) []any {
	productsJSON, _ := json.Marshal(o.UploadedProducts)
	var responseJSON []byte
	if o.ArtisanResponse != nil {
		responseJSON, _ = json.Marshal(o.ArtisanResponse)
	}
	return []any{
		o.ID, o.ClientID, o.ArtisanID, o.ServiceID, o.Price, o.ClientAddress,
		o.Status, o.EscrowStatus, o.PaymentReference, productsJSON,
		responseJSON, o.DisputeID, o.ResponseDeadline, o.CreatedAt,
		o.UpdatedAt, o.CompletedAt,
	}
}

func TestOrderRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()
	productsJSON, _ := json.Marshal(o.UploadedProducts)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.ClientID, o.ArtisanID, o.ServiceID, o.Price, o.ClientAddress,
			o.Status, o.EscrowStatus, o.PaymentReference, productsJSON,
			[]byte(nil), o.DisputeID, o.ResponseDeadline, o.CreatedAt,
			o.UpdatedAt, o.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))

	result, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, result.ID)
	assert.Equal(t, domain.StatusPendingArtisanResponse, result.Status)
	assert.Equal(t, domain.EscrowNotPaid, result.EscrowStatus)
	require.Len(t, result.UploadedProducts, 1)
	assert.Equal(t, "broken-hinge.jpg", result.UploadedProducts[0].Name)
	assert.Nil(t, result.ArtisanResponse)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "missing-id")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepository_Update_PersistsTransitionFields(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()
	require.NoError(t, o.Accept(now.Add(time.Hour), nil))
	productsJSON, _ := json.Marshal(o.UploadedProducts)
	responseJSON, _ := json.Marshal(o.ArtisanResponse)

	mock.ExpectExec("UPDATE orders").
		WithArgs(
			o.ID, o.Status, o.EscrowStatus, o.PaymentReference,
			productsJSON, responseJSON, o.DisputeID, o.UpdatedAt, o.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()
	mock.ExpectExec("UPDATE orders").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), o)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepository_List_FiltersByClientAndStatus(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("client-1", domain.StatusPendingArtisanResponse).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .+ FROM orders WHERE client_id").
		WithArgs("client-1", domain.StatusPendingArtisanResponse, 20, 0).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{
		ClientID: strPtr("client-1"),
		Status:   strPtr(domain.StatusPendingArtisanResponse),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
}

func TestOrderRepository_ListExpiredPending(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	o := sampleOrder()
	asOf := now.Add(25 * time.Hour)

	mock.ExpectQuery("SELECT .+ FROM orders").
		WithArgs(domain.StatusPendingArtisanResponse, asOf, 100).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow(o)...))

	orders, err := repo.ListExpiredPending(context.Background(), asOf, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
}

func TestEscrowRepository_RoundTrip(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewEscrowRepository(mock)

	e := domain.NewEscrow("order-1", "fixserv-order-1-1750075200000", 5000, now)

	mock.ExpectExec("INSERT INTO escrows").
		WithArgs(e.OrderID, e.PaymentReference, e.Amount, e.Status, e.ReleasedAt, e.CreatedAt, e.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), e))

	mock.ExpectQuery("SELECT .+ FROM escrows WHERE order_id").
		WithArgs(e.OrderID).
		WillReturnRows(pgxmock.NewRows([]string{
			"order_id", "payment_reference", "amount", "status", "released_at", "created_at", "updated_at",
		}).AddRow(e.OrderID, e.PaymentReference, e.Amount, e.Status, e.ReleasedAt, e.CreatedAt, e.UpdatedAt))

	got, err := repo.GetByOrderID(context.Background(), e.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowInEscrow, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowRepository_GetByOrderID_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewEscrowRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM escrows WHERE order_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByOrderID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEscrowRepository_Update(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewEscrowRepository(mock)

	e := domain.NewEscrow("order-1", "ref", 5000, now)
	e.MarkReleased(now.Add(time.Hour))

	mock.ExpectExec("UPDATE escrows").
		WithArgs(e.OrderID, e.Status, e.ReleasedAt, e.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_QueryError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("connection refused"))

	_, _, err := repo.List(context.Background(), repository.OrderFilter{})
	assert.Error(t, err)
}
