// Package client talks to the chat backend over HTTP.
//
// A Client is an explicit value built from configuration and handed to whoever
// needs it; there is no package-level instance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"flow-chat/backend/internal/config"
	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/model"
	"flow-chat/backend/internal/stream"
)

// HealthTimeout bounds a single GET /health request.
const HealthTimeout = 3 * time.Second

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4096

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return app_errors.ErrTransport }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used by the client and its decoders.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is the chat backend client.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a client for the backend at cfg.BaseURL.
func New(cfg config.ClientConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// No overall timeout: streaming responses stay open for as long as the
		// model keeps generating. Callers bound requests with their context.
		http:   &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Send posts a message to POST /chat and returns the complete reply.
func (c *Client) Send(ctx context.Context, message string) (*model.ChatResponse, error) {
	resp, err := c.postMessage(ctx, "/chat", message)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	var reply model.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: could not decode chat response: %w", app_errors.ErrTransport, err)
	}
	return &reply, nil
}

// Stream posts a message to POST /chat/stream and returns a decoder over the
// response body. The caller owns the decoder and must drain or Close it.
func (c *Client) Stream(ctx context.Context, message string) (*stream.Decoder, error) {
	resp, err := c.postMessage(ctx, "/chat/stream", message)
	if err != nil {
		return nil, err
	}
	return stream.NewDecoder(resp.Body, stream.WithLogger(c.logger)), nil
}

// StreamTo streams a reply into ch and closes ch when the stream ends. Unless
// ctx ends first, the last event sent is terminal. Failures to start the
// stream are returned without sending anything; in-stream failures are both
// sent as an error event and returned.
func (c *Client) StreamTo(ctx context.Context, message string, ch chan<- stream.Event) error {
	defer close(ch)

	dec, err := c.Stream(ctx, message)
	if err != nil {
		return err
	}
	defer dec.Close()

	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			return nil
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
		if ev.Type == stream.EventError {
			return ev.Err
		}
		if ev.Terminal() {
			return nil
		}
	}
}

// Health calls GET /health. A nil error means the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	c.closeBody(resp)
	return nil
}

// Models lists the models the backend can use.
func (c *Client) Models(ctx context.Context) (*model.ModelList, error) {
	resp, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	var list model.ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: could not decode model list: %w", app_errors.ErrTransport, err)
	}
	return &list, nil
}

func (c *Client) postMessage(ctx context.Context, path, message string) (*http.Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", app_errors.ErrValidation)
	}
	body, err := json.Marshal(model.ChatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body)
}

// do sends a request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not create http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if path == "/chat/stream" {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", app_errors.ErrTransport, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer c.closeBody(resp)
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("Failed to close response body", "error", err)
	}
}
