package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flow-chat/backend/internal/chat"
	"flow-chat/backend/internal/client"
	"flow-chat/backend/internal/config"
	"flow-chat/backend/internal/health"
)

const (
	historyFile           = "flow-chat.history"
	defaultDelay          = 15 * time.Millisecond
	defaultHealthInterval = 5 * time.Second
)

// NewRootCmd instantiates and returns the chat command.
func NewRootCmd() *cobra.Command {
	var noStream bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the flow-chat backend from the terminal",
		Long: "Interactive chat client. Replies stream in and are revealed one character at a time.\n" +
			"Ctrl-C stops the reply being typed, Ctrl-D leaves.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)
			return run(cmd.Context(), cfg, !noStream)
		},
	}

	flags := cmd.Flags()
	flags.String("base-url", "http://localhost:8000", "backend address")
	flags.Duration("delay", defaultDelay, "time between revealed characters (0 reveals at once)")
	flags.Duration("health-interval", defaultHealthInterval, "time between backend health checks")
	flags.String("log-level", "WARN", "DEBUG, INFO, WARN or ERROR; logs go to stderr")
	flags.BoolVar(&noStream, "no-stream", false, "wait for the complete reply instead of streaming it")

	cobra.CheckErr(viper.BindPFlag("CHAT_BASE_URL", flags.Lookup("base-url")))
	cobra.CheckErr(viper.BindPFlag("TYPEWRITER_DELAY", flags.Lookup("delay")))
	cobra.CheckErr(viper.BindPFlag("HEALTH_INTERVAL", flags.Lookup("health-interval")))
	cobra.CheckErr(viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level")))

	return cmd
}

func setupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(logLevel),
	})))
}

func run(ctx context.Context, cfg *config.ClientConfig, stream bool) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye",
		HistoryFile:       filepath.Join(os.TempDir(), historyFile),
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	out := NewPrinter(rl.Stdout())
	backend := client.New(*cfg)
	session := NewSession(chat.NewConversation(backend, cfg.TypewriterDelay), backend, out, stream)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor := health.NewMonitor(backend, cfg.HealthInterval, health.WithOnChange(func(connected bool) {
		out.Status(connected, backend.BaseURL())
	}))
	go monitor.Run(ctx)

	out.Title("flow-chat %s", backend.BaseURL())
	out.Notice("Type a message, /help for commands.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		// Ctrl-C while a reply is typing cancels that reply, not the program.
		replyCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		keepGoing := session.Handle(replyCtx, line)
		stop()
		if !keepGoing {
			return nil
		}
	}
}
