package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Colauncha/Fixserv-sub001/internal/order/service"
	"github.com/Colauncha/Fixserv-sub001/pkg/middleware"
)

// NewRouter creates a chi router with all order management routes registered.
func NewRouter(orderService *service.OrderService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("order-management"))
	r.Use(middleware.Tracing("order-management"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Order API endpoints
	orderHandler := NewOrderHandler(orderService, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
		r.Get("/{id}/escrow", orderHandler.GetEscrow)
		r.Post("/{id}/payment", orderHandler.InitiatePayment)
		r.Post("/{id}/accept", orderHandler.AcceptOrder)
		r.Post("/{id}/reject", orderHandler.RejectOrder)
		r.Post("/{id}/start", orderHandler.StartWork)
		r.Post("/{id}/work-completed", orderHandler.MarkWorkCompleted)
		r.Post("/{id}/complete", orderHandler.CompleteOrder)
		r.Post("/{id}/release", orderHandler.ReleasePayment)
		r.Post("/{id}/dispute", orderHandler.DisputeOrder)
	})

	return r
}
