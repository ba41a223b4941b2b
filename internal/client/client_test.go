package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow-chat/backend/internal/config"
	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/model"
	"flow-chat/backend/internal/stream"
)

// newTestClient points a Client at a mock backend built from handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.ClientConfig{BaseURL: server.URL + "/"})
}

func writeSSE(t *testing.T, w http.ResponseWriter, frames ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	for _, f := range frames {
		_, err := fmt.Fprint(w, f)
		assert.NoError(t, err)
		flusher.Flush()
	}
}

func TestClient_Send(t *testing.T) {
	var captured model.ChatRequest
	var capturedPath, capturedMethod string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedMethod, capturedPath = r.Method, r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","role":"assistant","content":"Hi!"}`))
	})

	reply, err := c.Send(context.Background(), "Hello")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, capturedMethod)
	assert.Equal(t, "/chat", capturedPath)
	assert.Equal(t, "Hello", captured.Message)
	assert.Equal(t, "Hi!", reply.Content)
	assert.Equal(t, model.RoleAssistant, reply.Role)
}

func TestClient_Send_ValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty message")
	})

	_, err := c.Send(context.Background(), "   ")

	assert.ErrorIs(t, err, app_errors.ErrValidation)
}

func TestClient_Send_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	})

	_, err := c.Send(context.Background(), "Hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, app_errors.ErrTransport)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "upstream down")
}

func TestClient_Stream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		writeSSE(t, w,
			"data: {\"content\":\"Hel\",\"done\":false}\n\n",
			"data: {\"content\":\"lo\",\"done\":false}\n\n",
			"data: {\"done\":true}\n\n",
			"data: [DONE]\n\n",
		)
	})

	dec, err := c.Stream(context.Background(), "Hi")
	require.NoError(t, err)

	text, err := stream.Collect(context.Background(), dec)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestClient_StreamTo(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, "data: {\"content\":\"a\"}\n", "data: {\"done\":true}\n")
		})

		ch := make(chan stream.Event, 8)
		err := c.StreamTo(context.Background(), "Hi", ch)
		require.NoError(t, err)

		var events []stream.Event
		for ev := range ch {
			events = append(events, ev)
		}
		assert.Equal(t, []stream.Event{stream.Chunk("a"), stream.Done()}, events)
	})

	t.Run("Failure - non-2xx status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		ch := make(chan stream.Event, 8)
		err := c.StreamTo(context.Background(), "Hi", ch)

		assert.ErrorIs(t, err, app_errors.ErrTransport)
		_, open := <-ch
		assert.False(t, open, "channel must be closed without events")
	})

	t.Run("Failure - error frame", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, "event: error\ndata: {\"error\":\"Invalid request body\"}\n\n")
		})

		ch := make(chan stream.Event, 8)
		err := c.StreamTo(context.Background(), "Hi", ch)

		var remote *stream.RemoteError
		require.ErrorAs(t, err, &remote)
		ev := <-ch
		assert.Equal(t, stream.EventError, ev.Type)
	})
}

func TestClient_Stream_Cancel(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "data: {\"content\":\"first\"}\n")
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	dec, err := c.Stream(ctx, "Hi")
	require.NoError(t, err)

	ev, err := dec.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, stream.Chunk("first"), ev)

	time.AfterFunc(20*time.Millisecond, cancel)
	ev, err = dec.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, stream.EventError, ev.Type)
	assert.ErrorIs(t, ev.Err, context.Canceled)
}

func TestClient_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("Unhealthy status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		assert.ErrorIs(t, c.Health(context.Background()), app_errors.ErrTransport)
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := New(config.ClientConfig{BaseURL: "http://127.0.0.1:1"})
		assert.ErrorIs(t, c.Health(context.Background()), app_errors.ErrTransport)
	})
}

func TestClient_Models(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2","size":42}]}`))
	})

	list, err := c.Models(context.Background())

	require.NoError(t, err)
	require.Len(t, list.Models, 1)
	assert.Equal(t, "llama3.2", list.Models[0].Name)
}
