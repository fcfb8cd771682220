package archive

import "errors"

var (
	// ErrFrameNotFound is returned when no frame matches the lookup.
	ErrFrameNotFound = errors.New("archive: frame not found")

	// ErrDuplicateFrame is returned when a run records the same global
	// image number twice.
	ErrDuplicateFrame = errors.New("archive: frame already recorded")
)
