package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flow-chat/backend/internal/config"
	"flow-chat/backend/internal/llm/mocks"
)

func TestNewApp(t *testing.T) {
	ollamaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ollamaServer.Close()

	cfg := &config.Config{
		AppPort:   9000,
		OllamaURL: ollamaServer.URL,
		ChatModel: "llama3.2",
		LogLevel:  "DEBUG",
	}

	app, err := NewApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Equal(t, ":9000", app.Server.Addr)
	assert.NotNil(t, app.Server.Handler)
	assert.NoError(t, app.Provider.Ping(context.Background()))
}

func TestNewApp_MissingOllamaURL(t *testing.T) {
	_, err := NewApp(&config.Config{AppPort: 8000})
	assert.Error(t, err)
}

func TestWaitForOllama(t *testing.T) {
	t.Run("Skipped when wait is zero", func(t *testing.T) {
		provider := mocks.NewMockProvider(t)
		assert.False(t, waitForOllama(context.Background(), provider, 0))
	})

	t.Run("Ready on first ping", func(t *testing.T) {
		provider := mocks.NewMockProvider(t)
		provider.On("Ping", mock.Anything).Return(nil).Once()

		assert.True(t, waitForOllama(context.Background(), provider, time.Minute))
	})

	t.Run("Gives up after the wait", func(t *testing.T) {
		provider := mocks.NewMockProvider(t)
		provider.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		start := time.Now()
		assert.False(t, waitForOllama(context.Background(), provider, 50*time.Millisecond))
		assert.Less(t, time.Since(start), ollamaPollInterval)
	})
}
