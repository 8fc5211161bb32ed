// Package service implements the order lifecycle: creation with a funds
// hold, the artisan response protocol, work progression, escrow release,
// disputes, and deadline expiry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/internal/order/repository"
	"github.com/Colauncha/Fixserv-sub001/internal/profile"
	"github.com/Colauncha/Fixserv-sub001/internal/wallet"
	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// expireSweepBatch bounds how many lapsed orders one sweep pass processes.
const expireSweepBatch = 100

// EventPublisher is the slice of the order event producer the service needs.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *domain.Order) error
	PublishPaymentInitiated(ctx context.Context, o *domain.Order) error
	PublishOrderAccepted(ctx context.Context, o *domain.Order) error
	PublishOrderRejected(ctx context.Context, o *domain.Order) error
	PublishOrderExpired(ctx context.Context, o *domain.Order) error
	PublishOrderCompleted(ctx context.Context, o *domain.Order) error
	PublishPaymentReleased(ctx context.Context, o *domain.Order) error
	PublishOrderDisputed(ctx context.Context, o *domain.Order) error
}

// OrderService implements the business logic for order operations.
type OrderService struct {
	orders   repository.OrderRepository
	escrows  repository.EscrowRepository
	wallet   wallet.Client
	profiles profile.Client
	producer EventPublisher
	logger   *slog.Logger

	now func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	escrows repository.EscrowRepository,
	walletClient wallet.Client,
	profiles profile.Client,
	producer EventPublisher,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		escrows:  escrows,
		wallet:   walletClient,
		profiles: profiles,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	ClientID      string
	ArtisanID     string
	ServiceID     string
	Price         int64
	ClientAddress string
	Attachments   []domain.Attachment
}

// CreateOrder validates the referenced profiles, holds the client's funds,
// and persists a new order awaiting the artisan's response. No order exists
// without a funds hold: a failed hold aborts creation, and a failed persist
// releases the hold again.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.ClientID == "" {
		return nil, apperrors.InvalidInput("client_id is required")
	}
	if input.ArtisanID == "" {
		return nil, apperrors.InvalidInput("artisan_id is required")
	}
	if input.ServiceID == "" {
		return nil, apperrors.InvalidInput("service_id is required")
	}
	if input.Price <= 0 {
		return nil, apperrors.InvalidInput("price must be positive")
	}
	if input.ClientAddress == "" {
		return nil, apperrors.InvalidInput("client_address is required")
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
	g.Go(func() error {
		_, err := s.profiles.GetClient(gctx, input.ClientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	order := domain.NewOrder(uuid.New().String(), input.ClientID, input.ArtisanID, input.ServiceID,
		input.Price, input.ClientAddress, input.Attachments, now)

	if err := s.wallet.LockFunds(ctx, order.ClientID, order.ID, order.Price); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		// The hold exists but the order does not; give the money back.
		s.releaseFunds(ctx, order)
		return nil, err
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// InitiatePayment marks the held funds as in escrow, derives the payment
// reference, and writes the escrow audit record.
func (s *OrderService) InitiatePayment(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reference := domain.NewPaymentReference(order.ID, now)
	if err := order.MarkPaidInEscrow(reference, now); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if err := s.escrows.Create(ctx, domain.NewEscrow(order.ID, reference, order.Price, now)); err != nil {
		return nil, err
	}

	if err := s.producer.PublishPaymentInitiated(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment initiated event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// AcceptOrder records the artisan's acceptance. Past the response deadline
// the order is lazily expired instead.
func (s *OrderService) AcceptOrder(ctx context.Context, orderID string, estimatedCompletion *time.Time) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Accept(s.now(), estimatedCompletion); err != nil {
		if errors.Is(err, apperrors.ErrExpired) {
			s.expireLapsed(ctx, order)
		}
		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	if err := s.producer.PublishOrderAccepted(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order accepted event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// RejectOrder records the artisan's rejection and releases the client's
// held funds.
func (s *OrderService) RejectOrder(ctx context.Context, orderID, reason, note string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Reject(s.now(), reason, note); err != nil {
		if errors.Is(err, apperrors.ErrExpired) {
			s.expireLapsed(ctx, order)
		}
		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if err := s.releaseFunds(ctx, order); err != nil {
		return nil, err
	}

	if err := s.producer.PublishOrderRejected(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order rejected event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// StartWork moves an accepted order into progress.
func (s *OrderService) StartWork(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, func(o *domain.Order) error {
		return o.StartWork(s.now())
	}, nil)
}

// MarkWorkCompleted records the artisan finishing the work.
func (s *OrderService) MarkWorkCompleted(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, func(o *domain.Order) error {
		return o.MarkWorkCompleted(s.now())
	}, nil)
}

// CompleteOrder records client confirmation of the finished work.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, func(o *domain.Order) error {
		return o.Complete(s.now())
	}, s.producer.PublishOrderCompleted)
}

// ReleasePayment pays the artisan out of escrow. Escrow can only release on
// a completed order; the wallet moves the money before the state is
// persisted, so a wallet failure leaves the escrow untouched.
func (s *OrderService) ReleasePayment(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := order.ReleasePayment(now); err != nil {
		return nil, err
	}

	if err := s.wallet.ReleaseFunds(ctx, order.ID, order.ArtisanID); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if escrow, escErr := s.escrows.GetByOrderID(ctx, order.ID); escErr == nil {
		escrow.MarkReleased(now)
		if err := s.escrows.Update(ctx, escrow); err != nil {
			s.logger.ErrorContext(ctx, "failed to update escrow record after release",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishPaymentReleased(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment released event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// MarkDisputed freezes the escrow under a dispute and cancels the order.
func (s *OrderService) MarkDisputed(ctx context.Context, orderID, disputeID string) (*domain.Order, error) {
	if disputeID == "" {
		return nil, apperrors.InvalidInput("dispute_id is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := order.MarkDisputed(disputeID, now); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if escrow, escErr := s.escrows.GetByOrderID(ctx, order.ID); escErr == nil {
		escrow.MarkDisputed(now)
		if err := s.escrows.Update(ctx, escrow); err != nil {
			s.logger.ErrorContext(ctx, "failed to update escrow record after dispute",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderDisputed(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order disputed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// ExpireOrder expires an unanswered order past its deadline and releases the
// client's held funds. Calling it on an already-expired order is a no-op.
func (s *OrderService) ExpireOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	changed, err := order.Expire(s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	if err := s.releaseFunds(ctx, order); err != nil {
		return nil, err
	}

	if err := s.producer.PublishOrderExpired(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order expired event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// ExpirePending is the background sweep companion to the lazy expiry check.
// Both paths call the same aggregate guard, so racing them is harmless.
func (s *OrderService) ExpirePending(ctx context.Context) error {
	lapsed, err := s.orders.ListExpiredPending(ctx, s.now(), expireSweepBatch)
	if err != nil {
		return err
	}

	for i := range lapsed {
		if _, err := s.ExpireOrder(ctx, lapsed[i].ID); err != nil {
			s.logger.ErrorContext(ctx, "expiry sweep failed for order",
				slog.String("order_id", lapsed[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// GetOrder retrieves an order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrders returns orders matching the filter with the total count.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	return s.orders.List(ctx, filter)
}

// GetEscrow retrieves the escrow audit record for an order.
func (s *OrderService) GetEscrow(ctx context.Context, orderID string) (*domain.Escrow, error) {
	return s.escrows.GetByOrderID(ctx, orderID)
}

func (s *OrderService) transition(
	ctx context.Context,
	orderID string,
	apply func(*domain.Order) error,
	publish func(context.Context, *domain.Order) error,
) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := apply(order); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	if publish != nil {
		if err := publish(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "failed to publish order event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return order, nil
}

// releaseFunds returns the client's hold. A failed release means the
// platform is sitting on money it must not keep, so it is escalated loudly
// and surfaced to the caller instead of being swallowed.
func (s *OrderService) releaseFunds(ctx context.Context, order *domain.Order) error {
	if err := s.wallet.ReleaseFunds(ctx, order.ID, order.ArtisanID); err != nil {
		s.logger.ErrorContext(ctx, "ALERT: failed to release held funds",
			slog.String("order_id", order.ID),
			slog.String("client_id", order.ClientID),
			slog.Int64("amount", order.Price),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// expireLapsed performs the lazy expiry triggered when an artisan response
// arrives past the deadline. Errors are logged; the caller still returns the
// original ExpiredError.
func (s *OrderService) expireLapsed(ctx context.Context, order *domain.Order) {
	changed, err := order.Expire(s.now())
	if err != nil || !changed {
		return
	}
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "lazy expiry persist failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	_ = s.releaseFunds(ctx, order)
	if err := s.producer.PublishOrderExpired(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order expired event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}
