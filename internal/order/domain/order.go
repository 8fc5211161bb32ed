// Package domain holds the order aggregate and its escrow state machine.
// All status and escrow mutations go through aggregate methods; repositories
// and handlers never touch the fields directly.
package domain

import (
	"fmt"
	"time"

	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// Order status constants.
const (
	StatusPendingArtisanResponse = "PENDING_ARTISAN_RESPONSE"
	StatusAccepted               = "ACCEPTED"
	StatusRejected               = "REJECTED"
	StatusExpired                = "EXPIRED"
	StatusInProgress             = "IN_PROGRESS"
	StatusWorkCompleted          = "WORK_COMPLETED"
	StatusCompleted              = "COMPLETED"
	StatusCancelled              = "CANCELLED"
)

// Escrow status constants.
const (
	EscrowNotPaid  = "NOT_PAID"
	EscrowInEscrow = "IN_ESCROW"
	EscrowReleased = "RELEASED"
	EscrowDisputed = "DISPUTED"
)

// Artisan rejection reasons.
const (
	RejectionTooBusy                 = "TOO_BUSY"
	RejectionInsufficientInformation = "INSUFFICIENT_INFORMATION"
	RejectionOutOfServiceArea        = "OUT_OF_SERVICE_AREA"
	RejectionPriceTooLow             = "PRICE_TOO_LOW"
	RejectionOther                   = "OTHER"
)

// ResponseWindow is how long an artisan has to accept or reject a new order.
const ResponseWindow = 24 * time.Hour

// Attachment describes a product photo or document uploaded with the order.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// ArtisanResponse records how and when the artisan answered the order
// request.
type ArtisanResponse struct {
	Accepted                bool       `json:"accepted"`
	RespondedAt             time.Time  `json:"responded_at"`
	RejectionReason         string     `json:"rejection_reason,omitempty"`
	Note                    string     `json:"note,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
}

// Order is the aggregate root for a repair order and its escrow.
type Order struct {
	ID               string           `json:"id"`
	ClientID         string           `json:"client_id"`
	ArtisanID        string           `json:"artisan_id"`
	ServiceID        string           `json:"service_id"`
	Price            int64            `json:"price"`
	ClientAddress    string           `json:"client_address"`
	Status           string           `json:"status"`
	EscrowStatus     string           `json:"escrow_status"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	UploadedProducts []Attachment     `json:"uploaded_products"`
	ArtisanResponse  *ArtisanResponse `json:"artisan_response,omitempty"`
	DisputeID        string           `json:"dispute_id,omitempty"`
	ResponseDeadline time.Time        `json:"response_deadline"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// NewOrder creates an order awaiting the artisan's response. The caller is
// responsible for holding the client's funds before persisting.
func NewOrder(id, clientID, artisanID, serviceID string, price int64, address string, attachments []Attachment, now time.Time) *Order {
	return &Order{
		ID:               id,
		ClientID:         clientID,
		ArtisanID:        artisanID,
		ServiceID:        serviceID,
		Price:            price,
		ClientAddress:    address,
		Status:           StatusPendingArtisanResponse,
		EscrowStatus:     EscrowNotPaid,
		UploadedProducts: attachments,
		ResponseDeadline: now.Add(ResponseWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewPaymentReference derives the escrow payment reference for an order.
func NewPaymentReference(orderID string, now time.Time) string {
	return fmt.Sprintf("fixserv-%s-%d", orderID, now.UnixMilli())
}

// ValidRejectionReason reports whether reason is one of the known values.
func ValidRejectionReason(reason string) bool {
	switch reason {
	case RejectionTooBusy, RejectionInsufficientInformation, RejectionOutOfServiceArea, RejectionPriceTooLow, RejectionOther:
		return true
	}
	return false
}

// AllowedTransitions defines the legal order status transitions.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		StatusPendingArtisanResponse: {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
		StatusAccepted:               {StatusInProgress, StatusCancelled},
		StatusInProgress:             {StatusWorkCompleted, StatusCancelled},
		StatusWorkCompleted:          {StatusCompleted, StatusCancelled},
		StatusCompleted:              {},
		StatusRejected:               {},
		StatusExpired:                {},
		StatusCancelled:              {},
	}
}

// CanTransitionTo checks the transition table for the target status.
func (o *Order) CanTransitionTo(target string) bool {
	for _, s := range AllowedTransitions()[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transition(target, reason string) error {
	if !o.CanTransitionTo(target) {
		return apperrors.InvalidTransition("order", o.Status, target, reason)
	}
	o.Status = target
	return nil
}

// guardResponseWindow is the deadline check invoked at the top of every
// artisan-response transition.
func (o *Order) guardResponseWindow(now time.Time, action string) error {
	if !now.Before(o.ResponseDeadline) {
		return apperrors.Expired(action, o.ResponseDeadline)
	}
	return nil
}

// Accept records the artisan's acceptance. Legal only while the order is
// awaiting a response and the response window is open.
func (o *Order) Accept(now time.Time, estimatedCompletion *time.Time) error {
	if o.Status == StatusExpired {
		return apperrors.Expired("accept order", o.ResponseDeadline)
	}
	if o.Status != StatusPendingArtisanResponse {
		return apperrors.InvalidTransition("order", o.Status, StatusAccepted, "only a pending order can be accepted")
	}
	if err := o.guardResponseWindow(now, "accept order"); err != nil {
		return err
	}
	if err := o.transition(StatusAccepted, "accept order"); err != nil {
		return err
	}
	o.ArtisanResponse = &ArtisanResponse{
		Accepted:                true,
		RespondedAt:             now,
		EstimatedCompletionDate: estimatedCompletion,
	}
	o.UpdatedAt = now
	return nil
}

// Reject records the artisan's rejection with a reason. The caller must
// release the client's held funds after persisting.
func (o *Order) Reject(now time.Time, reason, note string) error {
	if o.Status == StatusExpired {
		return apperrors.Expired("reject order", o.ResponseDeadline)
	}
	if o.Status != StatusPendingArtisanResponse {
		return apperrors.InvalidTransition("order", o.Status, StatusRejected, "only a pending order can be rejected")
	}
	if err := o.guardResponseWindow(now, "reject order"); err != nil {
		return err
	}
	if !ValidRejectionReason(reason) {
		return apperrors.InvalidInput("unknown rejection reason: " + reason)
	}
	if err := o.transition(StatusRejected, "reject order"); err != nil {
		return err
	}
	o.ArtisanResponse = &ArtisanResponse{
		Accepted:        false,
		RespondedAt:     now,
		RejectionReason: reason,
		Note:            note,
	}
	o.UpdatedAt = now
	return nil
}

// StartWork moves an accepted order into progress.
func (o *Order) StartWork(now time.Time) error {
	if o.Status != StatusAccepted {
		return apperrors.InvalidTransition("order", o.Status, StatusInProgress, "work can only start on an accepted order")
	}
	if err := o.transition(StatusInProgress, "start work"); err != nil {
		return err
	}
	o.UpdatedAt = now
	return nil
}

// MarkWorkCompleted records that the artisan finished the work.
func (o *Order) MarkWorkCompleted(now time.Time) error {
	if o.Status != StatusInProgress {
		return apperrors.InvalidTransition("order", o.Status, StatusWorkCompleted, "work must be in progress")
	}
	if err := o.transition(StatusWorkCompleted, "mark work completed"); err != nil {
		return err
	}
	o.UpdatedAt = now
	return nil
}

// Complete confirms the work on behalf of the client and stamps CompletedAt.
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatusWorkCompleted {
		return apperrors.InvalidTransition("order", o.Status, StatusCompleted, "work must be marked completed first")
	}
	if err := o.transition(StatusCompleted, "complete order"); err != nil {
		return err
	}
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkPaidInEscrow moves the escrow from NOT_PAID to IN_ESCROW exactly once.
func (o *Order) MarkPaidInEscrow(reference string, now time.Time) error {
	if o.EscrowStatus != EscrowNotPaid {
		return apperrors.InvalidTransition("escrow", o.EscrowStatus, EscrowInEscrow, "escrow already funded")
	}
	o.EscrowStatus = EscrowInEscrow
	o.PaymentReference = reference
	o.UpdatedAt = now
	return nil
}

// ReleasePayment releases escrow to the artisan. Funds move only for a
// completed order.
func (o *Order) ReleasePayment(now time.Time) error {
	if o.Status != StatusCompleted {
		return apperrors.InvalidTransition("escrow", o.EscrowStatus, EscrowReleased, "payment release requires a completed order")
	}
	if o.EscrowStatus != EscrowInEscrow {
		return apperrors.InvalidTransition("escrow", o.EscrowStatus, EscrowReleased, "escrow is not holding funds")
	}
	o.EscrowStatus = EscrowReleased
	o.UpdatedAt = now
	return nil
}

// MarkDisputed freezes escrow under a dispute and cancels the order.
func (o *Order) MarkDisputed(disputeID string, now time.Time) error {
	if o.EscrowStatus == EscrowReleased {
		return apperrors.InvalidTransition("escrow", o.EscrowStatus, EscrowDisputed, "released escrow cannot be disputed")
	}
	o.DisputeID = disputeID
	o.EscrowStatus = EscrowDisputed
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}

// Expire moves an unanswered order past its deadline to EXPIRED. A second
// call on an expired order reports changed=false with no error, so the lazy
// check and the background sweep can race harmlessly. The caller releases
// the client's held funds only when changed is true.
func (o *Order) Expire(now time.Time) (changed bool, err error) {
	if o.Status == StatusExpired {
		return false, nil
	}
	if o.Status != StatusPendingArtisanResponse {
		return false, apperrors.InvalidTransition("order", o.Status, StatusExpired, "only an unanswered order can expire")
	}
	if now.Before(o.ResponseDeadline) {
		return false, apperrors.InvalidTransition("order", o.Status, StatusExpired, "response window still open")
	}
	if err := o.transition(StatusExpired, "expire order"); err != nil {
		return false, err
	}
	o.UpdatedAt = now
	return true, nil
}

// Terminal reports whether the order is in a state with no outgoing
// transitions.
func (o *Order) Terminal() bool {
	return len(AllowedTransitions()[o.Status]) == 0
}
