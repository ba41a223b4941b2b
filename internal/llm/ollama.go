package llm

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

	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/stream"
)

// StreamResponse is a LOCAL type for the llm package.
type StreamResponse struct {
	Content string
	Done    bool
	Error   string
}

// Provider defines the interface for interacting with a language model.
type Provider interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error
	ListModels(ctx context.Context) (*ListModelsResponse, error)
	Ping(ctx context.Context) error
}

type ollamaProvider struct {
	client *http.Client
	url    string
}

func NewOllamaProvider(url string) Provider {
	return &ollamaProvider{
		client: &http.Client{},
		url:    strings.TrimRight(url, "/"),
	}
}

type GenerateRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ModelDetails struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ListModelsResponse struct {
	Models []ModelDetails `json:"models"`
}

func (p *ollamaProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false
	resp, err := p.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp struct {
		Model   string  `json:"model"`
		Message Message `json:"message"`
		Done    bool    `json:"done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: could not decode response: %w", app_errors.ErrUpstream, err)
	}
	return &GenerateResponse{
		Model:    chatResp.Model,
		Response: chatResp.Message.Content,
		Done:     chatResp.Done,
	}, nil
}

// GenerateStream sends a streaming chat request and forwards every content
// delta on ch. Ollama answers with newline-delimited JSON objects, which the
// stream decoder understands natively. ch is always closed.
func (p *ollamaProvider) GenerateStream(ctx context.Context, req *GenerateRequest, ch chan<- StreamResponse) error {
	defer close(ch)
	req.Stream = true

	resp, err := p.post(ctx, "/api/chat", req)
	if err != nil {
		send(ctx, ch, StreamResponse{Error: "The language model is unavailable."})
		return err
	}

	dec := stream.NewDecoder(resp.Body)
	defer dec.Close()

	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			return nil
		}

		var out StreamResponse
		switch ev.Type {
		case stream.EventChunk:
			out = StreamResponse{Content: ev.Content}
		case stream.EventDone:
			out = StreamResponse{Done: true}
		case stream.EventError:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out = StreamResponse{Error: "Generation was interrupted."}
			var remote *stream.RemoteError
			if errors.As(ev.Err, &remote) {
				out.Error = remote.Message
			}
		}

		if !send(ctx, ch, out) {
			return ctx.Err()
		}
		if ev.Type == stream.EventError {
			return fmt.Errorf("%w: %w", app_errors.ErrUpstream, ev.Err)
		}
		if ev.Terminal() {
			return nil
		}
	}
}

func (p *ollamaProvider) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	resp, err := p.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: could not decode model list: %w", app_errors.ErrUpstream, err)
	}
	return &list, nil
}

// Ping checks that the Ollama server answers on its root endpoint.
func (p *ollamaProvider) Ping(ctx context.Context) error {
	resp, err := p.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (p *ollamaProvider) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}
	return p.do(ctx, http.MethodPost, path, body)
}

func (p *ollamaProvider) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, p.url+path, reader)
	if err != nil {
		return nil, fmt.Errorf("could not create http request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: http request failed: %w", app_errors.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: api returned non-200 status %d: %s", app_errors.ErrUpstream, resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

// send delivers msg unless ctx ends first.
func send(ctx context.Context, ch chan<- StreamResponse, msg StreamResponse) bool {
	select {
	case ch <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
