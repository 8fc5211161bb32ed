package event

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
)

var (
	orderEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_consumed_total",
			Help: "Order events consumed from the bus, by event name",
		},
		[]string{"event"},
	)

	escrowAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_amount_total",
			Help: "Sum of amounts moved through escrow, by direction",
		},
		[]string{"direction"},
	)
)

// MetricsHandler consumes the order topic and turns each event into
// counters. Payment events additionally feed the escrow amount totals.
// An unknown event name is a decode error and surfaces to the bus.
func MetricsHandler() eventbus.Handler {
	return func(_ context.Context, e *eventbus.Event) error {
		ev, err := DecodeOrderEvent(e)
		if err != nil {
			return err
		}

		orderEventsConsumed.WithLabelValues(e.EventName).Inc()
		switch v := ev.(type) {
		case *PaymentInitiated:
			escrowAmountTotal.WithLabelValues("held").Add(float64(v.Amount))
		case *PaymentReleased:
			escrowAmountTotal.WithLabelValues("released").Add(float64(v.Amount))
		}
		return nil
	}
}
