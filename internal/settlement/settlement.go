// Package settlement moves value out of the treasury through the custody
// gateway. The ledger only records balances; actual transfers happen here.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quantapay/payrolld/internal/lib/logger/sl"
)

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// Transferor dispatches a single outbound transfer. Implementations must be
// safe to call from inside a database transaction: an error aborts the
// balance change that triggered the transfer.
type Transferor interface {
	Transfer(ctx context.Context, asset, to string, amount int64) error
}

type Client struct {
	log        *slog.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:     log,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type transferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Transfer posts the order to the gateway, retrying on transient failures.
// Client errors (4xx) are final and returned immediately.
func (c *Client) Transfer(ctx context.Context, asset, to string, amount int64) error {
	body, err := json.Marshal(transferRequest{Asset: asset, To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode transfer: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}

		var finalErr *gatewayError
		if errors.As(lastErr, &finalErr) && finalErr.final {
			return lastErr
		}

		c.log.WarnContext(ctx, "Transfer attempt failed",
			"attempt", attempt, "asset", asset, sl.Err(lastErr))

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return fmt.Errorf("transfer failed after %d attempts: %w", maxAttempts, lastErr)
}

type gatewayError struct {
	status int
	final  bool
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.status)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return &gatewayError{status: resp.StatusCode}
	default:
		return &gatewayError{status: resp.StatusCode, final: true}
	}
}
