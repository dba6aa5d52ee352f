// Package payments defines the external value-transfer collaborator.
//
// The booking engine never moves money itself; it asks a Gateway to move
// funds between a payer, the escrow account, and a payee. A transfer either
// happens in full or fails in full.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTransferFailed is returned when the transfer service rejects or fails a
// transfer. The engine treats it as all-or-nothing: no local state changes.
var ErrTransferFailed = errors.New("transfer failed")

// Gateway moves value between accounts atomically.
type Gateway interface {
	// Transfer moves amount from one account to another. On error, no
	// funds moved.
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// HTTPGateway calls an external transfer service over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway client for the given transfer-service
// base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Transfer posts the transfer to the service and maps any rejection to
// ErrTransferFailed.
func (g *HTTPGateway) Transfer(ctx context.Context, from, to string, amount int64) error {
	body, err := json.Marshal(transferRequest{From: from, To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: transfer service returned %d: %s", ErrTransferFailed, resp.StatusCode, msg)
	}
	return nil
}
