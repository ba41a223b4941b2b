package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"flow-chat/backend/internal/api"
	"flow-chat/backend/internal/config"
	"flow-chat/backend/internal/llm"
	"flow-chat/backend/internal/service"
)

const (
	ollamaPollInterval = 3 * time.Second
	ollamaPingTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// App holds the wired chat backend.
type App struct {
	Server   *http.Server
	Provider llm.Provider
}

// NewApp wires the provider, services and handlers described by cfg.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg.OllamaURL == "" {
		return nil, errors.New("ollama url is not configured")
	}

	ollamaProvider := llm.NewOllamaProvider(cfg.OllamaURL)
	chatService := service.NewChatService(ollamaProvider, cfg.ChatModel, cfg.SystemPrompt)
	modelService := service.NewModelService(ollamaProvider)

	chatHandler := api.NewChatHandler(chatService)
	modelHandler := api.NewModelHandler(modelService)
	router := api.NewRouter(chatHandler, modelHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	return &App{Server: server, Provider: ollamaProvider}, nil
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)

	logConfigSource()

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitForOllama(ctx, app.Provider, cfg.OllamaWait)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", cfg.AppPort, "model", cfg.ChatModel)
		serverErr <- app.Server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(logLevel),
	})))
}

// waitForOllama polls the provider until it answers, wait elapses or ctx ends.
// The server starts either way; GET /health reports the LLM as unavailable
// until it comes up.
func waitForOllama(ctx context.Context, provider llm.Provider, wait time.Duration) bool {
	if wait <= 0 {
		return false
	}

	slog.Info("Waiting for Ollama to be ready...", "timeout", wait)
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(ollamaPollInterval)
	defer ticker.Stop()

	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, ollamaPingTimeout)
		err := provider.Ping(pingCtx)
		pingCancel()
		if err == nil {
			slog.Info("Ollama is ready.")
			return true
		}
		slog.Debug("Ollama not ready yet, retrying...", "interval", ollamaPollInterval, "error", err)

		select {
		case <-ctx.Done():
			slog.Warn("Ollama did not become ready in time, starting anyway", "timeout", wait)
			return false
		case <-ticker.C:
		}
	}
}
