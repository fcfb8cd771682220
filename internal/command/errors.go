package command

import "errors"

var (
	// ErrUnknownType is returned for a command type that is not recognised.
	ErrUnknownType = errors.New("command: unknown type")

	// ErrInvalidValue is returned when the value does not match the type.
	ErrInvalidValue = errors.New("command: invalid value")

	// ErrInvalidTarget is returned when device or setting is empty.
	ErrInvalidTarget = errors.New("command: device and setting are required")
)
