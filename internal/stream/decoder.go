// Package stream decodes incremental chat responses.
//
// The wire format is newline-delimited. Each line may carry an SSE `data: `
// prefix and is either a completion sentinel, a JSON object holding a content
// field or a `done` flag, or raw text. A Decoder turns such a byte stream into
// a sequence of Events that always ends with exactly one terminal event.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const defaultReadSize = 4096

// ErrStreamClosed is returned by Next after Close has been called.
var ErrStreamClosed = errors.New("stream: decoder closed")

// Option configures a Decoder.
type Option func(*Decoder)

// WithReadSize sets how many bytes are requested from the reader per read.
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.readBuf = make([]byte, n)
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// Decoder pulls events out of one response body. It owns the body and the
// partial-line buffer for the lifetime of the stream. A Decoder is meant to be
// drained by a single goroutine.
type Decoder struct {
	rc        io.ReadCloser
	closeOnce sync.Once
	closeErr  error

	buf     []byte
	readBuf []byte
	pending []Event

	sse        bool // a data: line has been seen
	terminated bool // a terminal event has been queued
	finished   bool // a terminal event has been returned
	closed     bool
	eof        bool

	logger *slog.Logger
}

// NewDecoder returns a Decoder reading from rc. The decoder closes rc once the
// stream terminates or Close is called.
func NewDecoder(rc io.ReadCloser, opts ...Option) *Decoder {
	d := &Decoder{
		rc:      rc,
		readBuf: make([]byte, defaultReadSize),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next event. The final event is always of type EventDone or
// EventError; any call after it returns io.EOF.
//
// Cancelling ctx aborts a pending read, releases the reader and yields an
// EventError carrying ctx.Err().
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	if d.closed {
		return Event{}, ErrStreamClosed
	}

	for {
		if d.finished {
			return Event{}, io.EOF
		}

		if err := ctx.Err(); err != nil {
			d.finish()
			return Failure(err), nil
		}

		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			if ev.Terminal() {
				d.finish()
			}
			return ev, nil
		}

		if d.eof {
			// The body ended without an explicit terminator.
			d.finish()
			return Done(), nil
		}

		d.fill(ctx)
	}
}

// Close releases the underlying reader and discards any buffered data.
func (d *Decoder) Close() error {
	d.closed = true
	d.pending = nil
	d.buf = nil
	return d.release()
}

// fill performs exactly one read and decodes every complete line it yields.
func (d *Decoder) fill(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = d.release() })
	n, err := d.rc.Read(d.readBuf)
	stop()

	if n > 0 {
		d.buf = append(d.buf, d.readBuf[:n]...)
		d.decodeLines()
	}

	switch {
	case err == nil:
	case ctx.Err() != nil:
		d.queueFailure(ctx.Err())
	case errors.Is(err, io.EOF):
		if !d.terminated && len(d.buf) > 0 {
			d.push(string(d.buf))
		}
		d.buf = nil
		d.eof = true
	default:
		d.queueFailure(fmt.Errorf("stream: read: %w", err))
	}
}

// decodeLines consumes every newline-terminated line in the buffer and keeps
// the trailing partial line.
func (d *Decoder) decodeLines() {
	for !d.terminated {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		d.push(line)
	}
}

func (d *Decoder) push(line string) {
	if IsFraming(line, d.sse) {
		return
	}
	if strings.HasPrefix(line, "data:") {
		d.sse = true
	}

	ev, ok := ParseLine(line)
	if !ok {
		return
	}
	if ev.Type == EventChunk && ev.Content == "" {
		return
	}
	d.pending = append(d.pending, ev)
	if ev.Terminal() {
		d.terminated = true
		d.buf = nil
	}
}

func (d *Decoder) queueFailure(err error) {
	if d.terminated {
		return
	}
	d.pending = append(d.pending, Failure(err))
	d.terminated = true
	d.buf = nil
}

func (d *Decoder) finish() {
	d.finished = true
	d.pending = nil
	d.buf = nil
	if err := d.release(); err != nil {
		d.logger.Debug("Failed to close stream body", "error", err)
	}
}

func (d *Decoder) release() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.rc.Close()
	})
	return d.closeErr
}

// Collect drains d and returns the concatenated chunk content. A terminal
// error event is returned as the error together with the text received
// before it.
func Collect(ctx context.Context, d *Decoder) (string, error) {
	defer d.Close()

	var sb strings.Builder
	for {
		ev, err := d.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		switch ev.Type {
		case EventChunk:
			sb.WriteString(ev.Content)
		case EventDone:
			return sb.String(), nil
		case EventError:
			return sb.String(), ev.Err
		}
	}
}
