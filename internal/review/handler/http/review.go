package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Colauncha/Fixserv-sub001/internal/review/domain"
	"github.com/Colauncha/Fixserv-sub001/internal/review/service"
	"github.com/Colauncha/Fixserv-sub001/pkg/httputil"
	"github.com/Colauncha/Fixserv-sub001/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// RatingRequest is the JSON shape of a rating with optional dimensions.
type RatingRequest struct {
	Overall         float64  `json:"overall" validate:"required"`
	Quality         *float64 `json:"quality"`
	Professionalism *float64 `json:"professionalism"`
	Communication   *float64 `json:"communication"`
	Punctuality     *float64 `json:"punctuality"`
}

func (r RatingRequest) toDomain() domain.Rating {
	return domain.Rating{
		Overall:         r.Overall,
		Quality:         r.Quality,
		Professionalism: r.Professionalism,
		Communication:   r.Communication,
		Punctuality:     r.Punctuality,
	}
}

// AttachmentRequest is the JSON request body for a feedback photo.
type AttachmentRequest struct {
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"content_type"`
}

// FeedbackRequest is the JSON request body for written feedback.
type FeedbackRequest struct {
	Comment     string              `json:"comment" validate:"required,max=500"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,dive"`
}

func (f FeedbackRequest) toDomain() domain.Feedback {
	attachments := make([]domain.Attachment, len(f.Attachments))
	for i, a := range f.Attachments {
		attachments[i] = domain.Attachment{
			Name:        a.Name,
			URL:         a.URL,
			ContentType: a.ContentType,
		}
	}
	return domain.Feedback{
		Comment:     f.Comment,
		Attachments: attachments,
	}
}

// SubmitReviewRequest is the JSON request body for submitting a review.
type SubmitReviewRequest struct {
	OrderID       string          `json:"order_id" validate:"required,uuid"`
	ClientID      string          `json:"client_id" validate:"required,uuid"`
	ArtisanID     string          `json:"artisan_id" validate:"required,uuid"`
	ServiceID     string          `json:"service_id" validate:"required,uuid"`
	ArtisanRating RatingRequest   `json:"artisan_rating" validate:"required"`
	ServiceRating RatingRequest   `json:"service_rating" validate:"required"`
	Feedback      FeedbackRequest `json:"feedback" validate:"required"`
}

// UpdateReviewRequest is the JSON request body for editing a published review.
type UpdateReviewRequest struct {
	ArtisanRating RatingRequest   `json:"artisan_rating" validate:"required"`
	ServiceRating RatingRequest   `json:"service_rating" validate:"required"`
	Feedback      FeedbackRequest `json:"feedback" validate:"required"`
}

// FlagReviewRequest is the JSON request body for flagging a review.
type FlagReviewRequest struct {
	Note string `json:"note" validate:"required,max=500"`
}

// --- Handlers ---

// SubmitReview handles POST /api/v1/reviews
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.SubmitReview(r.Context(), service.SubmitReviewInput{
		OrderID:       req.OrderID,
		ClientID:      req.ClientID,
		ArtisanID:     req.ArtisanID,
		ServiceID:     req.ServiceID,
		ArtisanRating: req.ArtisanRating.toDomain(),
		ServiceRating: req.ServiceRating.toDomain(),
		Feedback:      req.Feedback.toDomain(),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// The review is pending until every peer service acknowledges it.
	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: review})
}

// GetReview handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.service.GetReview(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// UpdateReview handles PUT /api/v1/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.UpdateReview(r.Context(), id.String(), service.UpdateReviewInput{
		ArtisanRating: req.ArtisanRating.toDomain(),
		ServiceRating: req.ServiceRating.toDomain(),
		Feedback:      req.Feedback.toDomain(),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	adminOverride := r.URL.Query().Get("admin_override") == "true"

	if err := h.service.DeleteReview(r.Context(), id.String(), adminOverride); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FlagReview handles POST /api/v1/reviews/{id}/flag
func (h *ReviewHandler) FlagReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req FlagReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.FlagReview(r.Context(), id.String(), req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// ListArtisanReviews handles GET /api/v1/artisans/{id}/reviews
func (h *ReviewHandler) ListArtisanReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	reviews, total, err := h.service.ListPublishedByArtisan(r.Context(), id.String(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page, perPage))
}

// ListServiceReviews handles GET /api/v1/services/{id}/reviews
func (h *ReviewHandler) ListServiceReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	reviews, total, err := h.service.ListPublishedByService(r.Context(), id.String(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page, perPage))
}

// RatingResponse is the JSON shape of an aggregated rating.
type RatingResponse struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// GetArtisanRating handles GET /api/v1/artisans/{id}/rating
func (h *ReviewHandler) GetArtisanRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	avg, count, err := h.service.ArtisanAverage(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RatingResponse{Average: avg, Count: count}})
}

// GetServiceRating handles GET /api/v1/services/{id}/rating
func (h *ReviewHandler) GetServiceRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	avg, count, err := h.service.ServiceAverage(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RatingResponse{Average: avg, Count: count}})
}

func parsePagination(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	page, perPage = 1, 20

	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return 0, 0, false
		}
		page = parsed
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return 0, 0, false
		}
		perPage = parsed
	}
	return page, perPage, true
}
