package archive

import (
	"context"
	"time"
)

// Record is one archived frame.
type Record struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"run_id"`
	Camera           string    `json:"camera"`
	GlobalImageNr    uint64    `json:"global_image_nr"`
	CameraSeqNr      uint64    `json:"camera_seq_nr"`
	AcquisitionSeqNr uint64    `json:"acquisition_seq_nr"`
	IsSequence       bool      `json:"is_sequence"`
	EventCount       int       `json:"event_count"`
	Payload          []byte    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Repository defines persistence operations for archived frames.
type Repository interface {
	// Record stores a frame. Returns ErrDuplicateFrame if the run already
	// has a frame with the same global image number.
	Record(ctx context.Context, rec Record) (int64, error)

	// Get returns a single frame. Returns ErrFrameNotFound if absent.
	Get(ctx context.Context, runID string, globalImageNr uint64) (*Record, error)

	// List returns the newest frames of a run, newest first.
	List(ctx context.Context, runID string, limit int) ([]Record, error)

	// Prune deletes frames older than the given duration.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
