package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed      = errors.New("server is closed")
	ErrMaxClientsReached = errors.New("maximum clients reached")
	ErrPlayerExists      = errors.New("player id already connected")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInvalidMessage    = errors.New("invalid message")
)
