package model

import (
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a conversation as the client sees it.
// While Streaming is true the assistant message is mutated in place: Content
// accumulates every chunk received so far and Displayed is the typewriter
// projection of it. Once Streaming clears the message is never touched again.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Displayed string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Streaming bool      `json:"-"`
	Error     string    `json:"error,omitempty"`
}

// ChatRequest is the JSON body of both POST /chat and POST /chat/stream.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=32000" example:"Hello there!"`
}

// ChatResponse is returned by the single-shot POST /chat endpoint.
type ChatResponse struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamResponse is the structure for a single frame of POST /chat/stream.
type StreamResponse struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status" example:"ok"`
	LLM    string `json:"llm" example:"ok"`
}

// ModelInfo describes one locally available language model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ModelList is the body of GET /models.
type ModelList struct {
	Models []ModelInfo `json:"models"`
}
