package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOrder() *Order {
	return NewOrder("order-1", "client-1", "artisan-1", "service-1", 5000, "12 Allen Ave, Lagos", nil, testNow)
}

func TestNewOrderDefaults(t *testing.T) {
	o := newTestOrder()

	assert.Equal(t, StatusPendingArtisanResponse, o.Status)
	assert.Equal(t, EscrowNotPaid, o.EscrowStatus)
	assert.Equal(t, testNow.Add(24*time.Hour), o.ResponseDeadline)
	assert.Nil(t, o.CompletedAt)
}

func TestAcceptWithinWindow(t *testing.T) {
	o := newTestOrder()
	eta := testNow.Add(72 * time.Hour)

	require.NoError(t, o.Accept(testNow.Add(time.Hour), &eta))

	assert.Equal(t, StatusAccepted, o.Status)
	require.NotNil(t, o.ArtisanResponse)
	assert.True(t, o.ArtisanResponse.Accepted)
	assert.Equal(t, &eta, o.ArtisanResponse.EstimatedCompletionDate)
}

func TestAcceptAfterDeadlineFailsExpired(t *testing.T) {
	o := newTestOrder()

	err := o.Accept(testNow.Add(25*time.Hour), nil)
	assert.ErrorIs(t, err, apperrors.ErrExpired)
	assert.Equal(t, StatusPendingArtisanResponse, o.Status)

	// The guard fires whether or not the expiry sweep already ran.
	_, expireErr := o.Expire(testNow.Add(25 * time.Hour))
	require.NoError(t, expireErr)
	err = o.Accept(testNow.Add(26*time.Hour), nil)
	assert.ErrorIs(t, err, apperrors.ErrExpired)
	assert.Equal(t, StatusExpired, o.Status)
}

func TestRejectAfterExpiryFailsExpired(t *testing.T) {
	o := newTestOrder()

	_, expireErr := o.Expire(testNow.Add(25 * time.Hour))
	require.NoError(t, expireErr)

	err := o.Reject(testNow.Add(26*time.Hour), RejectionTooBusy, "")
	assert.ErrorIs(t, err, apperrors.ErrExpired)
	assert.Equal(t, StatusExpired, o.Status)
}

func TestAcceptExactlyAtDeadlineFails(t *testing.T) {
	o := newTestOrder()

	err := o.Accept(o.ResponseDeadline, nil)
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestRejectRecordsReason(t *testing.T) {
	o := newTestOrder()

	require.NoError(t, o.Reject(testNow.Add(time.Hour), RejectionTooBusy, "fully booked this week"))

	assert.Equal(t, StatusRejected, o.Status)
	require.NotNil(t, o.ArtisanResponse)
	assert.False(t, o.ArtisanResponse.Accepted)
	assert.Equal(t, RejectionTooBusy, o.ArtisanResponse.RejectionReason)
	assert.Equal(t, "fully booked this week", o.ArtisanResponse.Note)
}

func TestRejectUnknownReason(t *testing.T) {
	o := newTestOrder()

	err := o.Reject(testNow.Add(time.Hour), "NOT_A_REASON", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, StatusPendingArtisanResponse, o.Status)
}

func TestRejectNonPendingOrder(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.Accept(testNow.Add(time.Hour), nil))

	err := o.Reject(testNow.Add(2*time.Hour), RejectionOther, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestHappyPathLifecycle(t *testing.T) {
	o := newTestOrder()
	now := testNow.Add(time.Hour)

	require.NoError(t, o.MarkPaidInEscrow(NewPaymentReference(o.ID, now), now))
	require.NoError(t, o.Accept(now, nil))
	require.NoError(t, o.StartWork(now))
	require.NoError(t, o.MarkWorkCompleted(now))
	require.NoError(t, o.Complete(now))
	require.NoError(t, o.ReleasePayment(now))

	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, EscrowReleased, o.EscrowStatus)
	require.NotNil(t, o.CompletedAt)
	assert.True(t, o.Terminal())
}

func TestReleasedImpliesCompleted(t *testing.T) {
	// No operation sequence may release escrow before completion.
	for _, setup := range []func(*Order){
		func(o *Order) {},
		func(o *Order) { _ = o.Accept(testNow, nil) },
		func(o *Order) { _ = o.Accept(testNow, nil); _ = o.StartWork(testNow) },
		func(o *Order) {
			_ = o.Accept(testNow, nil)
			_ = o.StartWork(testNow)
			_ = o.MarkWorkCompleted(testNow)
		},
	} {
		o := newTestOrder()
		require.NoError(t, o.MarkPaidInEscrow("ref", testNow))
		setup(o)

		err := o.ReleasePayment(testNow)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		assert.Equal(t, EscrowInEscrow, o.EscrowStatus, "failed release must not mutate escrow from %s", o.Status)
	}
}

func TestReleasePaymentWithoutEscrowFunds(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.Accept(testNow, nil))
	require.NoError(t, o.StartWork(testNow))
	require.NoError(t, o.MarkWorkCompleted(testNow))
	require.NoError(t, o.Complete(testNow))

	err := o.ReleasePayment(testNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, EscrowNotPaid, o.EscrowStatus)
}

func TestMarkPaidInEscrowRejectsReentry(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.MarkPaidInEscrow("ref-1", testNow))

	err := o.MarkPaidInEscrow("ref-2", testNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, "ref-1", o.PaymentReference)
}

func TestMarkDisputed(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.MarkPaidInEscrow("ref", testNow))
	require.NoError(t, o.Accept(testNow, nil))

	require.NoError(t, o.MarkDisputed("dispute-9", testNow))

	assert.Equal(t, EscrowDisputed, o.EscrowStatus)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "dispute-9", o.DisputeID)
}

func TestMarkDisputedAfterRelease(t *testing.T) {
	o := newTestOrder()
	now := testNow
	require.NoError(t, o.MarkPaidInEscrow("ref", now))
	require.NoError(t, o.Accept(now, nil))
	require.NoError(t, o.StartWork(now))
	require.NoError(t, o.MarkWorkCompleted(now))
	require.NoError(t, o.Complete(now))
	require.NoError(t, o.ReleasePayment(now))

	err := o.MarkDisputed("dispute-9", now)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Empty(t, o.DisputeID)
}

func TestExpireIsIdempotent(t *testing.T) {
	o := newTestOrder()
	after := testNow.Add(25 * time.Hour)

	changed, err := o.Expire(after)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusExpired, o.Status)

	changed, err = o.Expire(after.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed, "second expiry must be a no-op so funds are not released twice")
}

func TestExpireBeforeDeadline(t *testing.T) {
	o := newTestOrder()

	changed, err := o.Expire(testNow.Add(time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.False(t, changed)
	assert.Equal(t, StatusPendingArtisanResponse, o.Status)
}

func TestExpireAnsweredOrder(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.Accept(testNow, nil))

	changed, err := o.Expire(testNow.Add(25 * time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.False(t, changed)
}

func TestInvalidTransitionCarriesFromAndTo(t *testing.T) {
	o := newTestOrder()

	err := o.StartWork(testNow)
	var transErr *apperrors.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, StatusPendingArtisanResponse, transErr.From)
	assert.Equal(t, StatusInProgress, transErr.To)
}

func TestNewPaymentReference(t *testing.T) {
	ref := NewPaymentReference("order-1", testNow)
	assert.Equal(t, "fixserv-order-1-1748779200000", ref)
}

func TestEscrowRecordTransitions(t *testing.T) {
	e := NewEscrow("order-1", "ref", 5000, testNow)
	assert.Equal(t, EscrowInEscrow, e.Status)
	assert.Nil(t, e.ReleasedAt)

	released := testNow.Add(time.Hour)
	e.MarkReleased(released)
	assert.Equal(t, EscrowReleased, e.Status)
	require.NotNil(t, e.ReleasedAt)
	assert.Equal(t, released, *e.ReleasedAt)
}
