package event

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

func TestMetricsHandlerCountsEscrowAmounts(t *testing.T) {
	handler := MetricsHandler()
	heldBefore := testutil.ToFloat64(escrowAmountTotal.WithLabelValues("held"))
	releasedBefore := testutil.ToFloat64(escrowAmountTotal.WithLabelValues("released"))

	initiated, err := eventbus.NewEvent(NamePaymentInitiated, "order-1", Source, PaymentInitiated{
		OrderID:          "order-1",
		PaymentReference: "fixserv-order-1-1748800000000",
		Amount:           5000,
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), initiated))

	released, err := eventbus.NewEvent(NamePaymentReleased, "order-1", Source, PaymentReleased{
		OrderID:          "order-1",
		ArtisanID:        "artisan-1",
		PaymentReference: "fixserv-order-1-1748800000000",
		Amount:           5000,
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), released))

	assert.InDelta(t, heldBefore+5000, testutil.ToFloat64(escrowAmountTotal.WithLabelValues("held")), 0.01)
	assert.InDelta(t, releasedBefore+5000, testutil.ToFloat64(escrowAmountTotal.WithLabelValues("released")), 0.01)
}

func TestMetricsHandlerCountsByEventName(t *testing.T) {
	handler := MetricsHandler()
	before := testutil.ToFloat64(orderEventsConsumed.WithLabelValues(NameOrderAccepted))

	e, err := eventbus.NewEvent(NameOrderAccepted, "order-1", Source, OrderAccepted{
		OrderID:   "order-1",
		ArtisanID: "artisan-1",
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), e))

	assert.InDelta(t, before+1, testutil.ToFloat64(orderEventsConsumed.WithLabelValues(NameOrderAccepted)), 0.01)
}

func TestMetricsHandlerRejectsUnknownEvent(t *testing.T) {
	e, err := eventbus.NewEvent("SomethingElseEvent", "order-1", Source, map[string]string{})
	require.NoError(t, err)

	assert.Error(t, MetricsHandler()(context.Background(), e))
}
