package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Colauncha/Fixserv-sub001/internal/review/service"
	"github.com/Colauncha/Fixserv-sub001/pkg/middleware"
)

// NewRouter creates a chi router with all review management routes registered.
func NewRouter(reviewService *service.ReviewService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("review-management"))
	r.Use(middleware.Tracing("review-management"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	reviewHandler := NewReviewHandler(reviewService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", reviewHandler.SubmitReview)
			r.Get("/{id}", reviewHandler.GetReview)
			r.Put("/{id}", reviewHandler.UpdateReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
			r.Post("/{id}/flag", reviewHandler.FlagReview)
		})

		r.Get("/artisans/{id}/reviews", reviewHandler.ListArtisanReviews)
		r.Get("/artisans/{id}/rating", reviewHandler.GetArtisanRating)
		r.Get("/services/{id}/reviews", reviewHandler.ListServiceReviews)
		r.Get("/services/{id}/rating", reviewHandler.GetServiceRating)
	})

	return r
}
