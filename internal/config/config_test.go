package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.AppPort)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaURL)
	assert.Equal(t, "llama3.2", cfg.ChatModel)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.OllamaWait)
}

func TestLoadConfig_Environment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CHAT_MODEL", "gemma3")
	t.Setenv("OLLAMA_WAIT", "0s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.AppPort)
	assert.Equal(t, "gemma3", cfg.ChatModel)
	assert.Zero(t, cfg.OllamaWait)
}

func TestLoadClientConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	t.Setenv("CHAT_BASE_URL", "http://chat.local:8000/")
	t.Setenv("TYPEWRITER_DELAY", "5ms")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://chat.local:8000", cfg.BaseURL)
	assert.Equal(t, 5*time.Millisecond, cfg.TypewriterDelay)
	assert.Equal(t, 5*time.Second, cfg.HealthInterval)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLogLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

// chdir changes the working directory for the duration of the test,
// restoring the previous directory on cleanup (equivalent of t.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
