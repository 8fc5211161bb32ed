// Package domain holds the review aggregate and its publication state
// machine. A review is never served to readers until every dependent
// service has acknowledged it, so the status field is the contract
// between the HTTP surface and the publication saga.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
)

// Review statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusPublished  = "PUBLISHED"
	StatusFlagged    = "FLAGGED"
)

// MaxCommentLength bounds the feedback comment.
const MaxCommentLength = 500

// Rating is a bounded 1-5 score with an optional per-dimension breakdown.
type Rating struct {
	Overall         float64  `json:"overall"`
	Quality         *float64 `json:"quality,omitempty"`
	Professionalism *float64 `json:"professionalism,omitempty"`
	Communication   *float64 `json:"communication,omitempty"`
	Punctuality     *float64 `json:"punctuality,omitempty"`
}

// Validate checks that the overall score and every provided dimension
// fall within the 1-5 band.
func (r Rating) Validate() error {
	if r.Overall < 1 || r.Overall > 5 {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between 1 and 5, got %.1f", r.Overall))
	}
	for name, dim := range map[string]*float64{
		"quality":         r.Quality,
		"professionalism": r.Professionalism,
		"communication":   r.Communication,
		"punctuality":     r.Punctuality,
	} {
		if dim != nil && (*dim < 1 || *dim > 5) {
			return apperrors.InvalidInput(fmt.Sprintf("%s rating must be between 1 and 5, got %.1f", name, *dim))
		}
	}
	return nil
}

// Attachment is a supporting file referenced by the feedback.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Feedback is the client's written review content.
type Feedback struct {
	Comment         string       `json:"comment"`
	ModerationNotes []string     `json:"moderation_notes,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// Validate checks the comment is present and within bounds.
func (f Feedback) Validate() error {
	if strings.TrimSpace(f.Comment) == "" {
		return apperrors.InvalidInput("feedback comment is required")
	}
	if len(f.Comment) > MaxCommentLength {
		return apperrors.InvalidInput(fmt.Sprintf("feedback comment exceeds %d characters", MaxCommentLength))
	}
	return nil
}

// Review is the aggregate root for a client's review of a completed
// repair order.
type Review struct {
	ID            string   `json:"id"`
	OrderID       string   `json:"order_id"`
	ClientID      string   `json:"client_id"`
	ArtisanID     string   `json:"artisan_id"`
	ServiceID     string   `json:"service_id"`
	ArtisanRating Rating   `json:"artisan_rating"`
	ServiceRating Rating   `json:"service_rating"`
	Feedback      Feedback `json:"feedback"`
	Status        string   `json:"status"`

	// ProcessingErrors accumulates one entry per failed publication
	// attempt, oldest first.
	ProcessingErrors []string `json:"processing_errors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReview constructs a pending review, validating ratings and feedback.
func NewReview(id, orderID, clientID, artisanID, serviceID string, artisanRating, serviceRating Rating, feedback Feedback, now time.Time) (*Review, error) {
	if err := artisanRating.Validate(); err != nil {
		return nil, err
	}
	if err := serviceRating.Validate(); err != nil {
		return nil, err
	}
	if err := feedback.Validate(); err != nil {
		return nil, err
	}

	return &Review{
		ID:            id,
		OrderID:       orderID,
		ClientID:      clientID,
		ArtisanID:     artisanID,
		ServiceID:     serviceID,
		ArtisanRating: artisanRating,
		ServiceRating: serviceRating,
		Feedback:      feedback,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkProcessing moves a pending review into the publication pipeline.
func (r *Review) MarkProcessing(now time.Time) error {
	if r.Status != StatusPending {
		return apperrors.InvalidTransition("review", r.Status, StatusProcessing, "only a pending review can enter publication")
	}
	r.Status = StatusProcessing
	r.UpdatedAt = now
	return nil
}

// MarkPublished records a successful publication.
func (r *Review) MarkPublished(now time.Time) error {
	if r.Status != StatusProcessing {
		return apperrors.InvalidTransition("review", r.Status, StatusPublished, "only a processing review can be published")
	}
	r.Status = StatusPublished
	r.UpdatedAt = now
	return nil
}

// MarkFailed returns a processing review to pending with the failure
// recorded, so a later edit or redrive can retry publication.
func (r *Review) MarkFailed(reason string, now time.Time) error {
	if r.Status != StatusProcessing {
		return apperrors.InvalidTransition("review", r.Status, StatusPending, "only a processing review can fail back to pending")
	}
	r.Status = StatusPending
	r.ProcessingErrors = append(r.ProcessingErrors, reason)
	r.UpdatedAt = now
	return nil
}

// Flag marks a review for moderation. A review mid-publication cannot
// be flagged; the saga owns it until it resolves.
func (r *Review) Flag(note string, now time.Time) error {
	if r.Status == StatusProcessing {
		return apperrors.InvalidTransition("review", r.Status, StatusFlagged, "a review cannot be flagged while publication is in flight")
	}
	if note != "" {
		r.Feedback.ModerationNotes = append(r.Feedback.ModerationNotes, note)
	}
	r.Status = StatusFlagged
	r.UpdatedAt = now
	return nil
}

// Edit rewrites the ratings and feedback of a published review and
// resets it to pending so publication re-validates the new content.
func (r *Review) Edit(artisanRating, serviceRating Rating, feedback Feedback, now time.Time) error {
	if r.Status != StatusPublished {
		return apperrors.InvalidTransition("review", r.Status, StatusPending, "only a published review can be edited")
	}
	if err := artisanRating.Validate(); err != nil {
		return err
	}
	if err := serviceRating.Validate(); err != nil {
		return err
	}
	if err := feedback.Validate(); err != nil {
		return err
	}

	r.ArtisanRating = artisanRating
	r.ServiceRating = serviceRating
	r.Feedback = feedback
	r.Status = StatusPending
	r.UpdatedAt = now
	return nil
}

// Deletable reports whether the review may be removed. Only pending and
// flagged reviews are deletable, unless the caller holds an
// administrative override; a review mid-publication is never deletable
// without the override.
func (r *Review) Deletable(adminOverride bool) bool {
	if adminOverride {
		return true
	}
	return r.Status == StatusPending || r.Status == StatusFlagged
}
