package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pieceReader hands out one predefined piece per Read call. It lets the tests
// control exactly where the wire splits lines across reads.
type pieceReader struct {
	pieces []string
	closed bool
}

func (r *pieceReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed reader")
	}
	if len(r.pieces) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.pieces[0])
	r.pieces[0] = r.pieces[0][n:]
	if r.pieces[0] == "" {
		r.pieces = r.pieces[1:]
	}
	return n, nil
}

func (r *pieceReader) Close() error {
	r.closed = true
	return nil
}

func newPieceDecoder(pieces ...string) (*Decoder, *pieceReader) {
	r := &pieceReader{pieces: pieces}
	return NewDecoder(r), r
}

// drain reads events until the decoder reports io.EOF.
func drain(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var events []Event
	for i := 0; i < 1000; i++ {
		ev, err := d.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
	t.Fatal("decoder did not terminate")
	return nil
}

func TestDecoder_JSONChunksThenDone(t *testing.T) {
	d, r := newPieceDecoder("data: {\"content\":\"a\"}\n", "data: {\"done\":true}\n")

	events := drain(t, d)

	assert.Equal(t, []Event{Chunk("a"), Done()}, events)
	assert.True(t, r.closed, "reader must be released after the terminal event")
}

func TestDecoder_SentinelOnly(t *testing.T) {
	d, _ := newPieceDecoder("data: [DONE]\n")
	assert.Equal(t, []Event{Done()}, drain(t, d))
}

func TestDecoder_InvalidJSONIsRawText(t *testing.T) {
	d, _ := newPieceDecoder("data: {not json\n")
	assert.Equal(t, []Event{Chunk("{not json"), Done()}, drain(t, d))
}

func TestDecoder_LineSplitAcrossReads(t *testing.T) {
	// The JSON object arrives in three reads; the decoder must keep the
	// partial line buffered until its newline shows up.
	d, _ := newPieceDecoder(`data: {"con`, `tent":"Hel`, "lo\"}\ndata: {\"text\":\" world\"}\n", "data: END\n")

	events := drain(t, d)

	assert.Equal(t, []Event{Chunk("Hello"), Chunk(" world"), Done()}, events)
}

func TestDecoder_ResidualLineFlushedAtEOF(t *testing.T) {
	d, _ := newPieceDecoder("data: {\"content\":\"one\"}\n", `data: {"content":"two"}`)

	events := drain(t, d)

	assert.Equal(t, []Event{Chunk("one"), Chunk("two"), Done()}, events)
}

func TestDecoder_ResidualSentinelAtEOF(t *testing.T) {
	d, _ := newPieceDecoder("hello\n", "DONE")
	assert.Equal(t, []Event{Chunk("hello"), Done()}, drain(t, d))
}

func TestDecoder_NothingAfterTerminal(t *testing.T) {
	d, _ := newPieceDecoder("data: [DONE]\ndata: {\"content\":\"late\"}\n")

	events := drain(t, d)
	require.Equal(t, []Event{Done()}, events)

	_, err := d.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_RemoteErrorTerminates(t *testing.T) {
	d, _ := newPieceDecoder(
		"data: {\"content\":\"partial\"}\n\n",
		"event: error\ndata: {\"error\":\"model crashed\"}\n\n",
		"data: {\"content\":\"never\"}\n",
	)

	events := drain(t, d)

	require.Len(t, events, 2)
	assert.Equal(t, Chunk("partial"), events[0])
	assert.Equal(t, EventError, events[1].Type)
	var remote *RemoteError
	require.ErrorAs(t, events[1].Err, &remote)
	assert.Equal(t, "model crashed", remote.Message)
}

func TestDecoder_ReadFailureSurfacesAsErrorEvent(t *testing.T) {
	boom := errors.New("connection reset")
	d := NewDecoder(io.NopCloser(io.MultiReader(strings.NewReader("data: x\n"), &failingReader{err: boom})))

	events := drain(t, d)

	require.Len(t, events, 2)
	assert.Equal(t, Chunk("x"), events[0])
	assert.Equal(t, EventError, events[1].Type)
	assert.ErrorIs(t, events[1].Err, boom)
}

func TestDecoder_EndWithoutTerminatorYieldsDone(t *testing.T) {
	d, r := newPieceDecoder("just some text\n")

	events := drain(t, d)

	assert.Equal(t, []Event{Chunk("just some text"), Done()}, events)
	assert.True(t, r.closed)
}

func TestDecoder_NeverEmitsEmptyChunks(t *testing.T) {
	d, _ := newPieceDecoder(
		"\n\r\n   \n",
		"data: \n",
		"data: {\"content\":\"\"}\n",
		"data: {\"model\":\"llama\"}\n",
		": keep-alive\n",
		"data: {\"content\":\"ok\"}\n",
	)

	events := drain(t, d)

	assert.Equal(t, []Event{Chunk("ok"), Done()}, events)
	for _, ev := range events {
		if ev.Type == EventChunk {
			assert.NotEmpty(t, ev.Content)
		}
	}
}

func TestDecoder_RawStreamKeepsLinesAsWritten(t *testing.T) {
	d, _ := newPieceDecoder(
		"    indented code\n",
		":) nice\n",
		"id: 42 is the answer\n",
		"event: error\n",
		"tail without newline",
	)

	events := drain(t, d)

	assert.Equal(t, []Event{
		Chunk("    indented code"),
		Chunk(":) nice"),
		Chunk("id: 42 is the answer"),
		Chunk("tail without newline"),
		Done(),
	}, events)
}

func TestDecoder_SSEStreamSkipsFraming(t *testing.T) {
	d, _ := newPieceDecoder(
		"data: Hello\n",
		"data:  \n",
		": keep-alive\n",
		"id: 3\n",
		"retry: 1000\n",
		"event: message\n",
		"data: world\n\n",
		"data: [DONE]\n",
	)

	events := drain(t, d)

	// The single-space payload is a token of its own.
	assert.Equal(t, []Event{Chunk("Hello"), Chunk(" "), Chunk("world"), Done()}, events)
}

func TestDecoder_CancelMidStream(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewDecoder(pr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = pw.Write([]byte("data: {\"content\":\"first\"}\n"))
		// The writer then stalls; only cancellation can unblock the decoder.
	}()

	ev, err := d.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Chunk("first"), ev)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	ev, err = d.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventError, ev.Type)
	assert.ErrorIs(t, ev.Err, context.Canceled)

	_, err = d.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// The pipe's read side was closed by the decoder, so writes now fail.
	_, werr := pw.Write([]byte("more\n"))
	assert.ErrorIs(t, werr, io.ErrClosedPipe)
}

func TestDecoder_CancelDiscardsBufferedEvents(t *testing.T) {
	d, r := newPieceDecoder("a\nb\nc\n")
	ctx, cancel := context.WithCancel(context.Background())

	ev, err := d.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Chunk("a"), ev)

	cancel()
	ev, err = d.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventError, ev.Type)
	assert.True(t, r.closed)
}

func TestDecoder_CloseReleasesReader(t *testing.T) {
	d, r := newPieceDecoder("data: hello\n")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.True(t, r.closed)
	_, err := d.Next(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestCollect(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		d, _ := newPieceDecoder("data: {\"content\":\"Hel\"}\n", "data: {\"content\":\"lo\"}\n", "data: [DONE]\n")
		text, err := Collect(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, "Hello", text)
	})

	t.Run("Failure - remote error keeps partial text", func(t *testing.T) {
		d, _ := newPieceDecoder("data: {\"content\":\"Hel\"}\n", "data: {\"error\":\"boom\"}\n")
		text, err := Collect(context.Background(), d)
		assert.Error(t, err)
		assert.Equal(t, "Hel", text)
	})
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
