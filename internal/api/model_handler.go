package api

import (
	"context"
	"net/http"
	"time"

	"flow-chat/backend/internal/interfaces"
	"flow-chat/backend/internal/model"
)

// healthPingTimeout bounds the LLM ping made by GET /health.
const healthPingTimeout = 2 * time.Second

// ModelHandler handles HTTP requests for model discovery and service health.
type ModelHandler struct {
	service interfaces.ModelService
}

func NewModelHandler(svc interfaces.ModelService) *ModelHandler {
	return &ModelHandler{service: svc}
}

// HandleListModels godoc
// @Summary      List local models
// @Description  Gets a list of all models available locally in Ollama.
// @Tags         Models
// @Produce      json
// @Success      200  {object}  model.ModelList
// @Failure      502  {object}  ErrorResponse
// @Router       /models [get]
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models)
}

// HandleHealth godoc
// @Summary      Health check
// @Description  Always answers 200 while the server runs. The llm field reports whether Ollama answers.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  model.HealthStatus
// @Router       /health [get]
func (h *ModelHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	respondWithJSON(w, http.StatusOK, model.HealthStatus{
		Status: "ok",
		LLM:    h.service.Status(ctx),
	})
}
