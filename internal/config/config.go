package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the chat backend settings.
type Config struct {
	AppPort      int    `mapstructure:"APP_PORT"`
	OllamaURL    string `mapstructure:"OLLAMA_URL"`
	ChatModel    string `mapstructure:"CHAT_MODEL"`
	SystemPrompt string `mapstructure:"SYSTEM_PROMPT"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	// OllamaWait bounds how long startup waits for Ollama. Zero skips the wait.
	OllamaWait time.Duration `mapstructure:"OLLAMA_WAIT"`
}

// ClientConfig holds the terminal chat client settings.
type ClientConfig struct {
	BaseURL         string        `mapstructure:"CHAT_BASE_URL"`
	TypewriterDelay time.Duration `mapstructure:"TYPEWRITER_DELAY"`
	HealthInterval  time.Duration `mapstructure:"HEALTH_INTERVAL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("OLLAMA_URL", "http://ollama:11434")
	viper.SetDefault("CHAT_MODEL", "llama3.2")
	viper.SetDefault("SYSTEM_PROMPT", "You are a helpful assistant.")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("OLLAMA_WAIT", "60s")

	if err := readEnvFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadClientConfig reads the client settings. Values bound to command-line
// flags through viper.BindPFlag take precedence over the environment.
func LoadClientConfig() (*ClientConfig, error) {
	viper.SetDefault("CHAT_BASE_URL", "http://localhost:8000")
	viper.SetDefault("TYPEWRITER_DELAY", "15ms")
	viper.SetDefault("HEALTH_INTERVAL", "5s")
	viper.SetDefault("LOG_LEVEL", "WARN")

	if err := readEnvFile(); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &cfg, nil
}

func readEnvFile() error {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level. Unknown values mean INFO.
func ParseLogLevel(logLevel string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
