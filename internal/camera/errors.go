package camera

import "errors"

var (
	// ErrCapturing is returned when a snap is requested while a sequence is
	// running, or a sequence while a sequence or snap is in progress.
	ErrCapturing = errors.New("camera: capture in progress")

	// ErrNotCapturing is returned by StopSequence when nothing is running.
	ErrNotCapturing = errors.New("camera: no sequence acquisition in progress")

	// ErrFrameTooLarge is returned when a snapshot does not fit even the
	// maximum pack buffer.
	ErrFrameTooLarge = errors.New("camera: frame exceeds maximum buffer size")
)
