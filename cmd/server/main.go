package main

import (
	"os"

	"flow-chat/backend/internal/app"
)

// @title           Flow Chat API
// @version         1.0
// @description     Streaming chat backend in front of a local Ollama server.
// @host            localhost:8000
// @BasePath        /
func main() {
	os.Exit(app.Run())
}
