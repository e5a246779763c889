package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

var ErrNotConfigured = errors.New("downstream endpoint is not configured")

// Settings locate and authenticate the downstream ingestion API.
type Settings struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
}

// Client posts records to the downstream API. Settings are swapped atomically,
// so an update never affects a request already in flight.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	settings   atomic.Pointer[Settings]
}

func NewClient(httpClient *http.Client, settings Settings, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: httpClient,
		timeout:    timeout,
	}
	c.settings.Store(&settings)
	return c
}

func (c *Client) Settings() Settings {
	return *c.settings.Load()
}

func (c *Client) UpdateSettings(settings Settings) {
	c.settings.Store(&settings)
	slog.Info("Delivery settings updated", "endpoint", settings.Endpoint, "api_key_set", settings.APIKey != "")
}

// Deliver sends one record and returns the response body. It never retries.
func (c *Client) Deliver(ctx context.Context, record Record) ([]byte, error) {
	settings := c.Settings()
	if settings.Endpoint == "" {
		return nil, &Error{Kind: Unreachable, Err: ErrNotConfigured}
	}

	if err := Validate(record); err != nil {
		return nil, &Error{Kind: Rejected, Err: err}
	}

	var payload bytes.Buffer
	encoder := json.NewEncoder(&payload)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(record); err != nil {
		return nil, &Error{Kind: Rejected, Err: fmt.Errorf("failed to encode record: %w", err)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, settings.Endpoint, &payload)
	if err != nil {
		return nil, &Error{Kind: Unreachable, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+settings.APIKey)
		req.Header.Set("X-API-Key", settings.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: Unauthorized, StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{Kind: Rejected, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unreachable
}
