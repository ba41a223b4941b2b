package service

import (
	"context"
	"log/slog"

	"flow-chat/backend/internal/llm"
	"flow-chat/backend/internal/model"
)

const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// ModelService handles the business logic for model discovery and status.
type ModelService struct {
	llm llm.Provider
}

// NewModelService creates a new ModelService.
func NewModelService(provider llm.Provider) *ModelService {
	return &ModelService{llm: provider}
}

// List returns a list of all locally available models.
func (s *ModelService) List(ctx context.Context) (*model.ModelList, error) {
	resp, err := s.llm.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	list := &model.ModelList{Models: make([]model.ModelInfo, 0, len(resp.Models))}
	for _, m := range resp.Models {
		list.Models = append(list.Models, model.ModelInfo{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt})
	}
	return list, nil
}

// Status reports whether the language model backend answers.
func (s *ModelService) Status(ctx context.Context) string {
	if err := s.llm.Ping(ctx); err != nil {
		slog.Debug("Language model backend is not answering", "error", err)
		return StatusUnavailable
	}
	return StatusOK
}
