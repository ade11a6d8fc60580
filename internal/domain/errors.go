package domain

import "errors"

var (
	// ErrDroppableMessage marks a delivery body that is not a job envelope.
	ErrDroppableMessage = errors.New("droppable message")
	// ErrUnknownJobClass is returned when no factory is registered for a class name.
	ErrUnknownJobClass = errors.New("unknown job class")
)
