package chat

import "errors"

// Sentinel errors for every failure class a caller can act on. Commands and
// event handlers write these into the session's error slot instead of
// panicking or crashing the render loop.
var (
	// ErrAuthRequired means no user id could be resolved from memory or
	// persisted state.
	ErrAuthRequired = errors.New("auth required: no resolvable user id")

	// ErrNotConnected means the realtime transport is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrNotReady means a send was attempted without an open connection
	// and an active room.
	ErrNotReady = errors.New("not ready: need an open connection and an active room")

	// ErrValidation means the caller supplied invalid input; no request
	// was made.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized means the REST backend rejected our credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRemote means the server pushed a message_error for one of our sends.
	ErrRemote = errors.New("server rejected message")

	// ErrNetwork means a REST call failed before producing a response.
	ErrNetwork = errors.New("network error")
)
