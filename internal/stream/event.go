package stream

import "fmt"

// EventType tags the variant carried by an Event.
type EventType int

const (
	// EventChunk carries one non-empty fragment of assistant text.
	EventChunk EventType = iota + 1
	// EventDone terminates a stream successfully. It has no payload.
	EventDone
	// EventError terminates a stream with a failure.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventChunk:
		return "chunk"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one semantic unit decoded from the wire.
type Event struct {
	Type    EventType
	Content string
	Err     error
}

// Chunk returns a content event.
func Chunk(content string) Event {
	return Event{Type: EventChunk, Content: content}
}

// Done returns the successful terminal event.
func Done() Event {
	return Event{Type: EventDone}
}

// Failure returns the failing terminal event.
func Failure(err error) Event {
	return Event{Type: EventError, Err: err}
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func (e Event) String() string {
	switch e.Type {
	case EventChunk:
		return fmt.Sprintf("chunk(%q)", e.Content)
	case EventError:
		return fmt.Sprintf("error(%v)", e.Err)
	default:
		return e.Type.String()
	}
}

// RemoteError is a failure reported in-band by the server, e.g. an
// `{"error": "..."}` frame.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "stream: remote error: " + e.Message
}
