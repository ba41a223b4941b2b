package stream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// completionMarker suppresses raw text lines that merely announce the end of
// the stream in a format we do not otherwise recognise.
const completionMarker = "[DONE]"

var sentinels = map[string]struct{}{
	"[DONE]": {},
	"DONE":   {},
	"END":    {},
}

// contentPaths are tried in order; the first non-empty string wins.
// The first four are the wire formats the chat backend and its predecessors
// emit; the last two cover raw Ollama and OpenAI-compatible streams.
var contentPaths = []string{
	"content",
	"message",
	"text",
	"delta.content",
	"message.content",
	"choices.0.delta.content",
}

// SSE framing fields that never carry content once a stream speaks SSE.
var fieldPrefixes = []string{"event:", "id:", "retry:"}

// errorEventField announces the backend's error frames. It is framing even in
// a stream that has not sent a data line yet.
const errorEventField = "event: error"

// ParseLine applies the per-line decoding rule to one complete line without
// its terminating newline. It returns false when the line yields no event
// (blank lines, empty data payloads, objects without a recognised content
// field). Raw text is returned exactly as written; SSE framing is the
// decoder's concern, see IsFraming.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")

	payload := line
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		payload = strings.TrimPrefix(rest, " ")
		if payload == "" {
			return Event{}, false
		}
	} else if strings.TrimSpace(line) == "" {
		return Event{}, false
	}

	trimmed := strings.TrimSpace(payload)
	if _, ok := sentinels[trimmed]; ok {
		return Done(), true
	}

	if trimmed != "" && trimmed[0] == '{' && gjson.Valid(trimmed) {
		return parseObject(gjson.Parse(trimmed))
	}

	if strings.Contains(payload, completionMarker) {
		return Event{}, false
	}
	return Chunk(payload), true
}

// IsFraming reports whether line is an SSE field that carries no content.
// Comments and the `event:`, `id:` and `retry:` fields only count as framing
// once the stream has shown it is SSE (sse is true); before that they are
// ordinary text. The backend's `event: error` line is always framing.
func IsFraming(line string, sse bool) bool {
	line = strings.TrimSuffix(line, "\r")
	if line == errorEventField {
		return true
	}
	if !sse {
		return false
	}
	if strings.HasPrefix(line, ":") {
		return true
	}
	for _, p := range fieldPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func parseObject(obj gjson.Result) (Event, bool) {
	if obj.Get("done").Type == gjson.True {
		return Done(), true
	}

	if msg := errorMessage(obj.Get("error")); msg != "" {
		return Failure(&RemoteError{Message: msg}), true
	}

	for _, path := range contentPaths {
		if v := obj.Get(path); v.Type == gjson.String && v.Str != "" {
			return Chunk(v.Str), true
		}
	}
	return Event{}, false
}

func errorMessage(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.Str
	case v.IsObject():
		return v.Get("message").String()
	default:
		return ""
	}
}
