package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// frameMeasurement is the measurement name for per-frame metrics.
const frameMeasurement = "seqtester_frame"

// FrameMetrics summarises one packed frame.
type FrameMetrics struct {
	Camera        string
	IsSequence    bool
	GlobalImageNr uint64
	Events        int // history entries in the frame
	BusyDevices   int
	Bytes         int // packed size
	PackAttempts  int // 1 unless the buffer had to grow
}

// WriteFrameMetrics records one frame. The write is non-blocking.
//
// Example:
//
//	client.WriteFrameMetrics(influxdb.FrameMetrics{
//	    Camera: "Cam1", GlobalImageNr: 12, Events: 3, Bytes: 214, PackAttempts: 1,
//	}, time.Now())
func (c *Client) WriteFrameMetrics(m FrameMetrics, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(framePoint(m, at))
}

func framePoint(m FrameMetrics, at time.Time) *write.Point {
	sequence := "false"
	if m.IsSequence {
		sequence = "true"
	}

	return write.NewPoint(
		frameMeasurement,
		map[string]string{
			"camera":   m.Camera,
			"sequence": sequence,
		},
		map[string]any{
			"global_image_nr": int64(m.GlobalImageNr),
			"events":          int64(m.Events),
			"busy_devices":    int64(m.BusyDevices),
			"bytes":           int64(m.Bytes),
			"pack_attempts":   int64(m.PackAttempts),
		},
		at,
	)
}
