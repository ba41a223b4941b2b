package errors

import "errors"

// This package defines a centralized set of sentinel errors shared by the chat
// backend and the chat client. Services and clients wrap these with `%w` so the
// outer layers can use `errors.Is()` to decide how to react (an HTTP status on
// the server, a user-visible notice in the terminal client) without knowing
// which component produced the failure.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// validation (e.g. an empty chat message).
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream signifies that the language model backend could not be
	// reached or answered with a non-success status.
	// This is typically mapped to a 502 Bad Gateway HTTP status.
	ErrUpstream = errors.New("upstream model unavailable")

	// ErrTransport signifies a client-side transport failure: a non-2xx
	// response, a network error or an aborted request. The chat client never
	// retries these; the caller decides what to show the user.
	ErrTransport = errors.New("transport failure")

	// ErrInternal signifies an unexpected error on the server. This is a generic
	// error used to prevent leaking sensitive implementation details to the client.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")
)
