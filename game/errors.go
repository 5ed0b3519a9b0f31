// File: game/errors.go
package game

import "errors"

// Error kinds surfaced to clients. Anything caused by a single client's input
// is recovered locally; invariant violations terminate the whole room.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrInvalidCommand = errors.New("command not valid in current state")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnauthorized   = errors.New("invalid organizer token")
	ErrOverloaded     = errors.New("server at capacity")
)
