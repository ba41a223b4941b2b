package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/interfaces"
	"flow-chat/backend/internal/model"
)

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	service interfaces.ChatService
}

func NewChatHandler(svc interfaces.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// HandleChat godoc
// @Summary      Send a message
// @Description  Sends one user message and returns the complete assistant reply.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        chatRequest  body      model.ChatRequest  true  "User message"
// @Success      200          {object}  model.ChatResponse
// @Failure      400          {object}  ErrorResponse
// @Failure      502          {object}  ErrorResponse
// @Router       /chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeChatRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	reply, err := h.service.Reply(r.Context(), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reply)
}

// HandleStreamChat godoc
// @Summary      Stream a reply
// @Description  Sends one user message and streams the reply as Server-Sent Events.
// @Description  Every frame is `data: {"content":"...","done":false}`; the stream ends with
// @Description  `data: {"done":true}` followed by `data: [DONE]`. Failures are sent as `event: error`.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        chatRequest  body      model.ChatRequest     true  "User message"
// @Success      200          {object}  model.StreamResponse  "Stream of reply chunks"
// @Failure      400          {object}  ErrorResponse         "Sent as a stream error event"
// @Router       /chat/stream [post]
func (h *ChatHandler) HandleStreamChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for stream", "error", err)
		sendStreamError(w, "Invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		sendStreamError(w, err.Error())
		return
	}

	// Cancelled on return so the service stops as soon as the client is gone.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	streamChan := make(chan model.StreamResponse)
	go h.service.StreamReply(ctx, &req, streamChan)

	var finished bool
	for chunk := range streamChan {
		if ctx.Err() != nil {
			slog.Info("Client disconnected during stream.")
			return
		}
		if chunk.Error != "" {
			sendStreamError(w, chunk.Error)
			return
		}
		if err := writeStreamEvent(w, chunk); err != nil {
			slog.Warn("Stopped streaming reply", "error", err)
			return
		}
		if chunk.Done {
			finished = true
			break
		}
	}

	if !finished {
		sendStreamError(w, "The reply ended unexpectedly.")
		return
	}
	if err := writeStreamDone(w); err != nil {
		slog.Warn("Failed to write stream terminator", "error", err)
	}
}

func decodeChatRequest(r *http.Request, req *model.ChatRequest) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: invalid request payload: %s", app_errors.ErrValidation, err.Error())
	}
	return validateRequest(req)
}
