package camera

import (
	"time"

	"github.com/nerrad567/seqtester/internal/setting"
)

// Frame is one packed snapshot produced by the simulator.
type Frame struct {
	// RunID identifies the simulator run; global image numbers restart
	// with every run.
	RunID string

	Info     setting.FrameInfo
	Payload  []byte            // packed bytes as returned by PackAndReset
	Snapshot *setting.Snapshot // Payload decoded

	// Attempts is the number of PackAndReset calls needed, 1 unless the
	// buffer had to grow.
	Attempts   int
	CapturedAt time.Time
}

// GlobalImageNr returns the frame's global image number.
func (f Frame) GlobalImageNr() uint64 {
	if f.Snapshot == nil {
		return 0
	}
	return f.Snapshot.GlobalImageCount
}
