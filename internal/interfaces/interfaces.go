package interfaces

import (
	"context"

	"flow-chat/backend/internal/model"
)

// This file defines the interfaces for our core services.
// The API layer depends on these instead of the concrete service types so the
// handlers can be tested against generated mocks.

// ChatService defines the contract for answering chat messages.
type ChatService interface {
	Reply(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)
	StreamReply(ctx context.Context, req *model.ChatRequest, streamChan chan<- model.StreamResponse)
}

// ModelService defines the contract for model discovery and status.
type ModelService interface {
	List(ctx context.Context) (*model.ModelList, error)
	Status(ctx context.Context) string
}
