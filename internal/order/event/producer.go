package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// Producer publishes order domain events.
type Producer struct {
	bus    eventbus.Bus
	logger *slog.Logger
}

// NewProducer creates an event producer for the order service.
func NewProducer(bus eventbus.Bus, logger *slog.Logger) *Producer {
	return &Producer{bus: bus, logger: logger}
}

func (p *Producer) publish(ctx context.Context, name, orderID string, payload any) error {
	event, err := eventbus.NewEvent(name, orderID, Source, payload)
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	if err := p.bus.Publish(ctx, Topic, event); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	p.logger.DebugContext(ctx, "published order event",
		slog.String("event_name", name),
		slog.String("order_id", orderID),
	)
	return nil
}

// PublishOrderCreated publishes the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, NameOrderCreated, o.ID, OrderCreated{
		OrderID:          o.ID,
		ClientID:         o.ClientID,
		ArtisanID:        o.ArtisanID,
		ServiceID:        o.ServiceID,
		Price:            o.Price,
		ClientAddress:    o.ClientAddress,
		UploadedProducts: o.UploadedProducts,
		ResponseDeadline: o.ResponseDeadline,
	})
}

// PublishPaymentInitiated announces funds entering escrow.
func (p *Producer) PublishPaymentInitiated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, NamePaymentInitiated, o.ID, PaymentInitiated{
		OrderID:          o.ID,
		PaymentReference: o.PaymentReference,
		Amount:           o.Price,
	})
}

// PublishOrderAccepted announces the artisan's acceptance.
func (p *Producer) PublishOrderAccepted(ctx context.Context, o *domain.Order) error {
	payload := OrderAccepted{OrderID: o.ID, ArtisanID: o.ArtisanID}
	if o.ArtisanResponse != nil {
		payload.EstimatedCompletionDate = o.ArtisanResponse.EstimatedCompletionDate
	}
	return p.publish(ctx, NameOrderAccepted, o.ID, payload)
}

// PublishOrderRejected announces the artisan's rejection.
func (p *Producer) PublishOrderRejected(ctx context.Context, o *domain.Order) error {
	payload := OrderRejected{OrderID: o.ID, ArtisanID: o.ArtisanID}
	if o.ArtisanResponse != nil {
		payload.RejectionReason = o.ArtisanResponse.RejectionReason
		payload.Note = o.ArtisanResponse.Note
	}
	return p.publish(ctx, NameOrderRejected, o.ID, payload)
}

// PublishOrderExpired announces a lapsed response window.
func (p *Producer) PublishOrderExpired(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, NameOrderExpired, o.ID, OrderExpired{
		OrderID:  o.ID,
		ClientID: o.ClientID,
		Deadline: o.ResponseDeadline,
	})
}

// PublishOrderCompleted announces client confirmation.
func (p *Producer) PublishOrderCompleted(ctx context.Context, o *domain.Order) error {
	payload := OrderCompleted{OrderID: o.ID, ArtisanID: o.ArtisanID}
	if o.CompletedAt != nil {
		payload.CompletedAt = *o.CompletedAt
	}
	return p.publish(ctx, NameOrderCompleted, o.ID, payload)
}

// PublishPaymentReleased announces escrow release.
func (p *Producer) PublishPaymentReleased(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, NamePaymentReleased, o.ID, PaymentReleased{
		OrderID:          o.ID,
		ArtisanID:        o.ArtisanID,
		PaymentReference: o.PaymentReference,
		Amount:           o.Price,
	})
}

// PublishOrderDisputed announces a dispute.
func (p *Producer) PublishOrderDisputed(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, NameOrderDisputed, o.ID, OrderDisputed{
		OrderID:   o.ID,
		DisputeID: o.DisputeID,
	})
}
