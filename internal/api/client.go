package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the single gateway to the Director API. Every outbound call
// carries its own timeout, and every failure leaves here as an *Error.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// New builds a gateway for the given base URL. The timeout bounds each
// individual call, not the lifetime of the client.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

// Call issues one request and returns the raw JSON payload. Non-2xx
// responses keep their body as diagnostic cause and are never parsed as
// the success payload. The gateway does not retry; that is the caller's
// decision.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to build request for %s", path), Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("request to %s exceeded %s", path, c.timeout), Cause: err}
		}
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("request to %s failed", path), Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("request to %s exceeded %s", path, c.timeout), Cause: err}
		}
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to read response from %s", path), Cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("backend rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return nil, &Error{
			Kind:       KindServer,
			Message:    fmt.Sprintf("backend returned %s for %s", resp.Status, path),
			HTTPStatus: resp.StatusCode,
			Cause:      fmt.Errorf("response body: %s", payload),
		}
	}

	if !json.Valid(payload) {
		return nil, &Error{Kind: KindMalformed, Message: fmt.Sprintf("response from %s is not valid JSON", path)}
	}

	return json.RawMessage(payload), nil
}

// CallBoth issues two GETs concurrently and joins them before returning.
// Each call owns an independent timeout. On any failure neither payload is
// returned, so callers can never apply one half of the pair.
func (c *Client) CallBoth(ctx context.Context, pathA, pathB string) (json.RawMessage, json.RawMessage, error) {
	type result struct {
		payload json.RawMessage
		err     error
	}

	chA := make(chan result, 1)
	chB := make(chan result, 1)
	go func() {
		payload, err := c.Call(ctx, http.MethodGet, pathA, nil)
		chA <- result{payload, err}
	}()
	go func() {
		payload, err := c.Call(ctx, http.MethodGet, pathB, nil)
		chB <- result{payload, err}
	}()

	resA := <-chA
	resB := <-chB
	if resA.err != nil {
		return nil, nil, resA.err
	}
	if resB.err != nil {
		return nil, nil, resB.err
	}
	return resA.payload, resB.payload, nil
}

// HealthStatus mirrors the backend /health payload.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports whether the backend is reachable and responsive.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	payload, err := c.Call(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}

	var status HealthStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return HealthStatus{}, &Error{Kind: KindMalformed, Message: "unexpected health payload", Cause: err}
	}
	return status, nil
}
