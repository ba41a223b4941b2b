package cli

import (
	"context"
	"errors"
	"strings"

	"flow-chat/backend/internal/chat"
	app_errors "flow-chat/backend/internal/errors"
	"flow-chat/backend/internal/model"
)

// ModelLister lists the models the backend can serve.
type ModelLister interface {
	Models(ctx context.Context) (*model.ModelList, error)
}

// Session turns prompt lines into commands or chat submissions.
type Session struct {
	conv   *chat.Conversation
	models ModelLister
	out    *Printer
	stream bool
}

// NewSession returns a session that streams replies unless stream is false,
// in which case the single-shot endpoint is used.
func NewSession(conv *chat.Conversation, models ModelLister, out *Printer, stream bool) *Session {
	return &Session{conv: conv, models: models, out: out, stream: stream}
}

// Handle processes one line of input. It returns false when the user asked to
// leave. Cancelling ctx interrupts the reply in progress only.
func (s *Session) Handle(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return true
	case text == "/quit" || text == "/exit":
		return false
	case text == "/help":
		s.out.Notice("/models  list the models the backend can use")
		s.out.Notice("/history show how many messages this session holds")
		s.out.Notice("/quit    leave (Ctrl-D works too)")
		s.out.Notice("Ctrl-C while a reply is typing stops that reply.")
		return true
	case text == "/models":
		s.listModels(ctx)
		return true
	case text == "/history":
		s.out.Notice("%d messages in this session", len(s.conv.Messages()))
		return true
	case strings.HasPrefix(text, "/"):
		s.out.Notice("unknown command %q, try /help", text)
		return true
	}

	s.out.BeginReply()
	var err error
	if s.stream {
		_, err = s.conv.Submit(ctx, text, s.out.Reply)
	} else {
		_, err = s.conv.SubmitOnce(ctx, text, s.out.Reply)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		s.out.Notice("#interrupted")
	case errors.Is(err, app_errors.ErrValidation):
		s.out.Notice("nothing to send")
	default:
		s.out.Error(err)
	}
	return true
}

func (s *Session) listModels(ctx context.Context) {
	list, err := s.models.Models(ctx)
	if err != nil {
		s.out.Error(err)
		return
	}
	if len(list.Models) == 0 {
		s.out.Notice("no models available")
		return
	}
	for _, m := range list.Models {
		s.out.Notice("%s (%d MB)", m.Name, m.Size/(1<<20))
	}
}
