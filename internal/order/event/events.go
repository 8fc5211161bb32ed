// Package event defines the order domain events and their producer. Each
// topic carries a closed set of event variants; consumers decode through
// DecodeOrderEvent and switch on the concrete type instead of matching
// name strings.
package event

import (
	"fmt"
	"time"

	"github.com/Colauncha/Fixserv-sub001/internal/order/domain"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

// Topic carries every order domain event.
const Topic = "order_events"

// Source identifier for events originating from the order service.
const Source = "order-management"

// Event names on the order topic.
const (
	NameOrderCreated     = "OrderCreatedEvent"
	NamePaymentInitiated = "PaymentInitiatedEvent"
	NameOrderAccepted    = "OrderAcceptedEvent"
	NameOrderRejected    = "OrderRejectedEvent"
	NameOrderExpired     = "OrderExpiredEvent"
	NameOrderCompleted   = "OrderCompletedEvent"
	NamePaymentReleased  = "PaymentReleasedEvent"
	NameOrderDisputed    = "OrderDisputedEvent"
)

// OrderEvent is the closed set of events on the order topic. Only the
// variants below implement it.
type OrderEvent interface {
	isOrderEvent()
}

// OrderCreated carries the full order snapshot at creation.
type OrderCreated struct {
	OrderID          string              `json:"order_id"`
	ClientID         string              `json:"client_id"`
	ArtisanID        string              `json:"artisan_id"`
	ServiceID        string              `json:"service_id"`
	Price            int64               `json:"price"`
	ClientAddress    string              `json:"client_address"`
	UploadedProducts []domain.Attachment `json:"uploaded_products"`
	ResponseDeadline time.Time           `json:"response_deadline"`
}

// PaymentInitiated announces that the client's funds entered escrow.
type PaymentInitiated struct {
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
}

// OrderAccepted announces the artisan's acceptance.
type OrderAccepted struct {
	OrderID                 string     `json:"order_id"`
	ArtisanID               string     `json:"artisan_id"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
}

// OrderRejected announces the artisan's rejection with the reason.
type OrderRejected struct {
	OrderID         string `json:"order_id"`
	ArtisanID       string `json:"artisan_id"`
	RejectionReason string `json:"rejection_reason"`
	Note            string `json:"note,omitempty"`
}

// OrderExpired announces that the response window lapsed unanswered.
type OrderExpired struct {
	OrderID  string    `json:"order_id"`
	ClientID string    `json:"client_id"`
	Deadline time.Time `json:"deadline"`
}

// OrderCompleted announces client confirmation of the finished work.
type OrderCompleted struct {
	OrderID     string    `json:"order_id"`
	ArtisanID   string    `json:"artisan_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// PaymentReleased announces escrow release to the artisan.
type PaymentReleased struct {
	OrderID          string `json:"order_id"`
	ArtisanID        string `json:"artisan_id"`
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
}

// OrderDisputed announces a dispute freezing the escrow.
type OrderDisputed struct {
	OrderID   string `json:"order_id"`
	DisputeID string `json:"dispute_id"`
}

func (OrderCreated) isOrderEvent()     {}
func (PaymentInitiated) isOrderEvent() {}
func (OrderAccepted) isOrderEvent()    {}
func (OrderRejected) isOrderEvent()    {}
func (OrderExpired) isOrderEvent()     {}
func (OrderCompleted) isOrderEvent()   {}
func (PaymentReleased) isOrderEvent()  {}
func (OrderDisputed) isOrderEvent()    {}

// DecodeOrderEvent maps an envelope from the order topic to its concrete
// variant. An unknown event name is an error, not a silent fallthrough.
func DecodeOrderEvent(e *eventbus.Event) (OrderEvent, error) {
	decode := func(dst OrderEvent) (OrderEvent, error) {
		if err := e.DecodePayload(dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.EventName, err)
		}
		return dst, nil
	}

	switch e.EventName {
	case NameOrderCreated:
		return decode(&OrderCreated{})
	case NamePaymentInitiated:
		return decode(&PaymentInitiated{})
	case NameOrderAccepted:
		return decode(&OrderAccepted{})
	case NameOrderRejected:
		return decode(&OrderRejected{})
	case NameOrderExpired:
		return decode(&OrderExpired{})
	case NameOrderCompleted:
		return decode(&OrderCompleted{})
	case NamePaymentReleased:
		return decode(&PaymentReleased{})
	case NameOrderDisputed:
		return decode(&OrderDisputed{})
	default:
		return nil, fmt.Errorf("unknown order event %q", e.EventName)
	}
}
