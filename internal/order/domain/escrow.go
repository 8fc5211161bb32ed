package domain

import "time"

// Escrow is the denormalized audit record mirroring the aggregate's escrow
// status, one per order. It is written by the order service alongside the
// order itself and never mutated outside escrow transitions.
type Escrow struct {
	OrderID          string     `json:"order_id"`
	PaymentReference string     `json:"payment_reference"`
	Amount           int64      `json:"amount"`
	Status           string     `json:"status"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewEscrow creates the side record at the moment funds enter escrow.
func NewEscrow(orderID, paymentReference string, amount int64, now time.Time) *Escrow {
	return &Escrow{
		OrderID:          orderID,
		PaymentReference: paymentReference,
		Amount:           amount,
		Status:           EscrowInEscrow,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MarkReleased mirrors the aggregate's release transition onto the record.
func (e *Escrow) MarkReleased(now time.Time) {
	e.Status = EscrowReleased
	e.ReleasedAt = &now
	e.UpdatedAt = now
}

// MarkDisputed mirrors a dispute onto the record.
func (e *Escrow) MarkDisputed(now time.Time) {
	e.Status = EscrowDisputed
	e.UpdatedAt = now
}
