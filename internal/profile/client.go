// Package profile looks up artisan, client, and service records held by the
// user-management and service-management services, and pushes rating updates
// back to them.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/Colauncha/Fixserv-sub001/pkg/errors"
	"github.com/Colauncha/Fixserv-sub001/pkg/httpclient"
)

// Artisan is the subset of the artisan profile the marketplace core needs.
type Artisan struct {
	ID     string  `json:"id"`
	Rating float64 `json:"rating"`
}

// Service is the subset of a listed repair service.
type Service struct {
	ID        string  `json:"id"`
	ArtisanID string  `json:"artisan_id"`
	Rating    float64 `json:"rating"`
}

// ClientProfile is the subset of a client account.
type ClientProfile struct {
	ID string `json:"id"`
}

// Client is the profile lookup and rating update contract.
type Client interface {
	GetArtisan(ctx context.Context, id string) (*Artisan, error)
	GetService(ctx context.Context, id string) (*Service, error)
	GetClient(ctx context.Context, id string) (*ClientProfile, error)
	UpdateArtisanRating(ctx context.Context, id string, rating float64) error
	UpdateServiceRating(ctx context.Context, id string, rating float64) error
}

// HTTPClient implements Client over the profile services' REST APIs with
// circuit breaker protection.
type HTTPClient struct {
	http           *httpclient.CircuitBreakerClient
	userBaseURL    string
	serviceBaseURL string
	logger         *slog.Logger
}

// NewHTTPClient creates a profile client. userBaseURL points at
// user-management (artisans, clients); serviceBaseURL at service-management.
func NewHTTPClient(client *httpclient.CircuitBreakerClient, userBaseURL, serviceBaseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		http:           client,
		userBaseURL:    userBaseURL,
		serviceBaseURL: serviceBaseURL,
		logger:         logger,
	}
}

func (c *HTTPClient) GetArtisan(ctx context.Context, id string) (*Artisan, error) {
	var a Artisan
	if err := c.get(ctx, "user-management", c.userBaseURL+"/v1/artisans/"+id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) GetService(ctx context.Context, id string) (*Service, error) {
	var s Service
	if err := c.get(ctx, "service-management", c.serviceBaseURL+"/v1/services/"+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) GetClient(ctx context.Context, id string) (*ClientProfile, error) {
	var p ClientProfile
	if err := c.get(ctx, "user-management", c.userBaseURL+"/v1/clients/"+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) UpdateArtisanRating(ctx context.Context, id string, rating float64) error {
	return c.patchRating(ctx, "user-management", c.userBaseURL+"/v1/artisans/"+id+"/rating", rating)
}

func (c *HTTPClient) UpdateServiceRating(ctx context.Context, id string, rating float64) error {
	return c.patchRating(ctx, "service-management", c.serviceBaseURL+"/v1/services/"+id+"/rating", rating)
}

func (c *HTTPClient) get(ctx context.Context, peer, url string, dest any) error {
	resp, err := c.http.Get(ctx, url)
	if err != nil {
		c.logger.ErrorContext(ctx, "profile lookup failed",
			slog.String("peer", peer),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return apperrors.DependencyUnavailable(peer, err)
	}

	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, peer)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", peer, err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", peer, err)
	}
	return nil
}

func (c *HTTPClient) patchRating(ctx context.Context, peer, url string, rating float64) error {
	body, err := json.Marshal(map[string]float64{"rating": rating})
	if err != nil {
		return fmt.Errorf("marshal rating update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return apperrors.DependencyUnavailable(peer, err)
	}
	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, peer)
	}
	_ = resp.Body.Close()
	return nil
}
