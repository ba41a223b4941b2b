// Package chat keeps an in-memory conversation with the chat backend and
// drives the typewriter projection of streamed replies.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"flow-chat/backend/internal/model"
	"flow-chat/backend/internal/stream"
	"flow-chat/backend/internal/typewriter"
)

// Backend is the part of the chat client a Conversation needs.
type Backend interface {
	Send(ctx context.Context, message string) (*model.ChatResponse, error)
	Stream(ctx context.Context, message string) (*stream.Decoder, error)
}

// RenderFunc receives a snapshot of the assistant message each time its
// displayed text changes, and once more when the message is final.
type RenderFunc func(msg model.Message)

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the conversation's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conversation) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// Conversation is an ordered, in-memory list of messages. Submissions are
// serialised: a new one waits until the previous reply has finished.
type Conversation struct {
	backend Backend
	delay   time.Duration
	logger  *slog.Logger
	now     func() time.Time

	submit sync.Mutex // one reply in flight at a time

	mu       sync.Mutex
	messages []*model.Message
}

// NewConversation returns an empty conversation that reveals replies at one
// character per delay.
func NewConversation(backend Backend, delay time.Duration, opts ...Option) *Conversation {
	c := &Conversation{
		backend: backend,
		delay:   delay,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends text to the streaming endpoint and grows the assistant reply
// chunk by chunk. It returns the final assistant message. A transport failure
// is recorded on the message and returned.
func (c *Conversation) Submit(ctx context.Context, text string, render RenderFunc) (model.Message, error) {
	c.submit.Lock()
	defer c.submit.Unlock()

	c.add(model.RoleUser, text, false)
	reply := c.add(model.RoleAssistant, "", true)
	tw := c.newTypewriter(reply, render)

	dec, err := c.backend.Stream(ctx, text)
	if err != nil {
		return c.finish(reply, tw, err, render), err
	}
	defer dec.Close()

	streamErr := c.consume(ctx, dec, reply, tw)
	if streamErr == nil {
		streamErr = c.awaitReveal(ctx, tw)
	}
	return c.finish(reply, tw, streamErr, render), streamErr
}

// SubmitOnce sends text to the single-shot endpoint and reveals the complete
// reply through the typewriter.
func (c *Conversation) SubmitOnce(ctx context.Context, text string, render RenderFunc) (model.Message, error) {
	c.submit.Lock()
	defer c.submit.Unlock()

	c.add(model.RoleUser, text, false)
	reply := c.add(model.RoleAssistant, "", true)
	tw := c.newTypewriter(reply, render)

	resp, err := c.backend.Send(ctx, text)
	if err != nil {
		return c.finish(reply, tw, err, render), err
	}

	tw.SetTarget(c.appendContent(reply, resp.Content))
	err = c.awaitReveal(ctx, tw)
	return c.finish(reply, tw, err, render), err
}

// Messages returns a copy of the conversation so far.
func (c *Conversation) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// consume drains dec into reply. It returns the error that ended the stream,
// if any.
func (c *Conversation) consume(ctx context.Context, dec *stream.Decoder, reply *model.Message, tw *typewriter.Renderer) error {
	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch ev.Type {
		case stream.EventChunk:
			tw.SetTarget(c.appendContent(reply, ev.Content))
		case stream.EventDone:
			return nil
		case stream.EventError:
			return ev.Err
		}
	}
}

// awaitReveal blocks until the typewriter has shown the whole reply. It
// returns ctx.Err() when the caller gave up first.
func (c *Conversation) awaitReveal(ctx context.Context, tw *typewriter.Renderer) error {
	err := tw.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	c.logger.Debug("Stopped waiting for typewriter", "error", err)
	return nil
}

// newTypewriter returns a renderer that mirrors its output into
// reply.Displayed. Lock order is typewriter, then conversation.
func (c *Conversation) newTypewriter(reply *model.Message, render RenderFunc) *typewriter.Renderer {
	return typewriter.New(c.delay, func(displayed string) {
		c.mu.Lock()
		reply.Displayed = displayed
		snapshot := *reply
		c.mu.Unlock()

		if render != nil {
			render(snapshot)
		}
	})
}

func (c *Conversation) add(role model.Role, content string, streaming bool) *model.Message {
	msg := &model.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
		Streaming: streaming,
	}
	if !streaming {
		msg.Displayed = content
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return msg
}

// appendContent is the single writer of reply.Content.
func (c *Conversation) appendContent(reply *model.Message, chunk string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply.Content += chunk
	return reply.Content
}

// finish stops the typewriter, freezes the message and renders it one last
// time. An interrupted reply keeps the text shown so far; otherwise the whole
// content is displayed.
func (c *Conversation) finish(reply *model.Message, tw *typewriter.Renderer, err error, render RenderFunc) model.Message {
	tw.Stop()

	c.mu.Lock()
	if !interrupted(err) {
		reply.Displayed = reply.Content
	}
	reply.Streaming = false
	if err != nil {
		reply.Error = err.Error()
		c.logger.Warn("Assistant reply failed", "message_id", reply.ID, "error", err)
	}
	snapshot := *reply
	c.mu.Unlock()

	if render != nil {
		render(snapshot)
	}
	return snapshot
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
