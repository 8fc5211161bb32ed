// Package cache owns the derived-data cache keys for reviews and the
// invalidation discipline around them. Published listings are keyed per
// page, so invalidation has to sweep a prefix rather than name exact keys.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Colauncha/Fixserv-sub001/pkg/cache"
)

// TTLs in seconds.
const (
	RatingTTL    = 600
	PublishedTTL = 300
)

// ArtisanRatingKey is the exact cache key for an artisan's average rating.
func ArtisanRatingKey(artisanID string) string {
	return fmt.Sprintf("artisan:%s:rating", artisanID)
}

// ServiceRatingKey is the exact cache key for a service's average rating.
func ServiceRatingKey(serviceID string) string {
	return fmt.Sprintf("service:%s:rating", serviceID)
}

// ArtisanPublishedPrefix prefixes every paginated published-review listing
// for an artisan. Page keys append "{page}:{perPage}".
func ArtisanPublishedPrefix(artisanID string) string {
	return fmt.Sprintf("artisan:%s:published:v1:", artisanID)
}

// ServicePublishedPrefix prefixes every paginated published-review listing
// for a service.
func ServicePublishedPrefix(serviceID string) string {
	return fmt.Sprintf("service:%s:published:v1:", serviceID)
}

// PageKey derives a page-specific listing key under a published prefix.
func PageKey(prefix string, page, perPage int) string {
	return fmt.Sprintf("%s%d:%d", prefix, page, perPage)
}

// Invalidator deletes every cache entry derived from an artisan's or
// service's reviews. Callers invoke it strictly after the underlying write
// has succeeded.
type Invalidator struct {
	store  cache.Store
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over the given store.
func NewInvalidator(store cache.Store, logger *slog.Logger) *Invalidator {
	return &Invalidator{store: store, logger: logger}
}

// InvalidateReview removes the exact rating keys and every paginated
// published listing for the affected artisan and service. The prefix sweep
// is cursor-based, so large keyspaces do not block other cache traffic.
func (i *Invalidator) InvalidateReview(ctx context.Context, artisanID, serviceID string) error {
	if err := i.store.Delete(ctx, ArtisanRatingKey(artisanID), ServiceRatingKey(serviceID)); err != nil {
		return fmt.Errorf("delete rating keys: %w", err)
	}

	for _, prefix := range []string{ArtisanPublishedPrefix(artisanID), ServicePublishedPrefix(serviceID)} {
		deleted, err := i.store.DeleteByPrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", prefix, err)
		}
		if deleted > 0 {
			i.logger.DebugContext(ctx, "invalidated published listing cache",
				slog.String("prefix", prefix),
				slog.Int("deleted", deleted),
			)
		}
	}
	return nil
}
