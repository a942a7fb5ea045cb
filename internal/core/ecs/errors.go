package ecs

import "errors"

var (
	// ErrCapacityExceeded is returned by CreateEntity once the configured
	// entity limit is reached. Callers must destroy entities before retrying.
	ErrCapacityExceeded = errors.New("entity capacity exceeded")

	// ErrEntityNotFound is returned by component mutations on unknown ids.
	ErrEntityNotFound = errors.New("entity not found")
)
