// Package wallet is the HTTP collaborator that holds and releases client
// funds. Fund movements are idempotent by order id, so retried calls cannot
// double-lock or double-release.
package wallet

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

const serviceName = "wallet-service"

// Client is the wallet operations contract used by the order service.
type Client interface {
	// LockFunds holds amount against the client's balance for the order.
	LockFunds(ctx context.Context, clientID, orderID string, amount int64) error

	// ReleaseFunds releases the hold for the order, paying the artisan when
	// the order completed, or refunding the client otherwise.
	ReleaseFunds(ctx context.Context, orderID, artisanID string) error
}

// HTTPClient implements Client over the wallet service's REST API with
// circuit breaker protection.
type HTTPClient struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewHTTPClient creates a wallet client for the given base URL.
func NewHTTPClient(client *httpclient.CircuitBreakerClient, baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{http: client, baseURL: baseURL, logger: logger}
}

type lockRequest struct {
	ClientID string `json:"client_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
}

type releaseRequest struct {
	OrderID   string `json:"order_id"`
	ArtisanID string `json:"artisan_id"`
}

func (c *HTTPClient) LockFunds(ctx context.Context, clientID, orderID string, amount int64) error {
	return c.post(ctx, "/v1/wallet/locks", orderID, lockRequest{
		ClientID: clientID,
		OrderID:  orderID,
		Amount:   amount,
	})
}

func (c *HTTPClient) ReleaseFunds(ctx context.Context, orderID, artisanID string) error {
	return c.post(ctx, "/v1/wallet/releases", orderID, releaseRequest{
		OrderID:   orderID,
		ArtisanID: artisanID,
	})
}

func (c *HTTPClient) post(ctx context.Context, path, idempotencyKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal wallet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create wallet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "wallet call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return apperrors.DependencyUnavailable(serviceName, err)
	}

	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()
	return nil
}
