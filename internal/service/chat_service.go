package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/llm"
	"flow-chat/backend/internal/model"
)

// ChatService turns single user messages into model replies. It is stateless:
// every request carries exactly one user message and no history is kept.
type ChatService struct {
	llm          llm.Provider
	model        string
	systemPrompt string
}

func NewChatService(provider llm.Provider, chatModel, systemPrompt string) *ChatService {
	return &ChatService{llm: provider, model: chatModel, systemPrompt: systemPrompt}
}

// Reply generates a complete answer to req.
func (s *ChatService) Reply(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	llmReq, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.Generate(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("could not generate reply: %w", err)
	}

	return &model.ChatResponse{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   resp.Response,
		Model:     s.model,
		Timestamp: time.Now(),
	}, nil
}

// StreamReply is the core function that streams an answer to req. Every frame
// is sent on streamChan, which is closed when the stream ends. The last frame
// is either Done or carries an Error, unless ctx ends first.
func (s *ChatService) StreamReply(ctx context.Context, req *model.ChatRequest, streamChan chan<- model.StreamResponse) {
	defer close(streamChan)

	llmReq, err := s.buildRequest(req)
	if err != nil {
		slog.Warn("Rejected stream request", "error", err)
		forward(ctx, streamChan, model.StreamResponse{Error: "Message must not be empty."})
		return
	}

	llmStreamChan := make(chan llm.StreamResponse)
	go func() {
		if err := s.llm.GenerateStream(ctx, llmReq, llmStreamChan); err != nil {
			slog.Error("Stream generation failed", "model", s.model, "error", err)
		}
	}()

	var chunks int
	for chunk := range llmStreamChan {
		frame := model.StreamResponse{
			Content: chunk.Content,
			Done:    chunk.Done,
			Error:   chunk.Error,
		}
		if !forward(ctx, streamChan, frame) {
			slog.Info("Client went away before the reply finished", "chunks", chunks)
			return
		}
		if frame.Error != "" {
			slog.Warn("Stream error from LLM", "error", frame.Error)
			return
		}
		if frame.Done {
			slog.Debug("Finished streaming reply", "chunks", chunks)
			return
		}
		chunks++
	}
}

func (s *ChatService) buildRequest(req *model.ChatRequest) (*llm.GenerateRequest, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", app_errors.ErrValidation)
	}

	messages := make([]llm.Message, 0, 2)
	if s.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: string(model.RoleSystem), Content: s.systemPrompt})
	}
	messages = append(messages, llm.Message{Role: string(model.RoleUser), Content: req.Message})

	return &llm.GenerateRequest{Model: s.model, Messages: messages}, nil
}

func forward(ctx context.Context, ch chan<- model.StreamResponse, frame model.StreamResponse) bool {
	select {
	case ch <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
