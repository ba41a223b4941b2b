package api

import (
	"time"

	// Registers the generated Swagger spec with swag.
	_ "flow-chat/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// requestTimeout bounds the non-streaming endpoints.
const requestTimeout = 120 * time.Second

// NewRouter creates and configures a new chi router with all the application's routes.
func NewRouter(chatHandler *ChatHandler, modelHandler *ModelHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Liveness check for the terminal client and container orchestration.
	r.Get("/health", modelHandler.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/chat", chatHandler.HandleChat)
		r.Get("/models", modelHandler.HandleListModels)
	})

	// Streaming routes hold the connection open for as long as the model
	// generates, so they get no timeout.
	r.Group(func(r chi.Router) {
		r.Post("/chat/stream", chatHandler.HandleStreamChat)
	})

	return r
}
