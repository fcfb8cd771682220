package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/seqtester/internal/infrastructure/influxdb"
)

// Sink consumes frames produced by the Simulator.
//
// Deliver is called synchronously after each frame is packed. An error is
// logged by the simulator and does not stop acquisition.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, frame Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, frame Frame) error
}

// Name implements Sink.
func (f SinkFunc) Name() string { return f.Label }

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, frame Frame) error { return f.Fn(ctx, frame) }

// Publisher is the subset of the MQTT client used to publish frames.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// FrameTopic resolves the topic a camera's frames are published on.
type FrameTopic func(camera string) string

// MQTTSink publishes the raw packed payload of every frame.
type MQTTSink struct {
	pub   Publisher
	topic FrameTopic
	qos   byte
}

// NewMQTTSink creates a sink publishing frames through pub.
func NewMQTTSink(pub Publisher, topic FrameTopic, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements Sink.
func (s *MQTTSink) Deliver(_ context.Context, frame Frame) error {
	topic := s.topic(frame.Info.Camera)
	if err := s.pub.Publish(topic, frame.Payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing frame %d to %s: %w", frame.GlobalImageNr(), topic, err)
	}
	return nil
}

// MetricsWriter is the subset of the InfluxDB client used for frame metrics.
type MetricsWriter interface {
	WriteFrameMetrics(m influxdb.FrameMetrics, at time.Time)
}

// MetricsSink records per-frame statistics.
type MetricsSink struct {
	w MetricsWriter
}

// NewMetricsSink creates a sink writing frame metrics to w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Deliver implements Sink. Writes are non-blocking and never fail here;
// the InfluxDB client reports asynchronous errors itself.
func (s *MetricsSink) Deliver(_ context.Context, frame Frame) error {
	m := influxdb.FrameMetrics{
		Camera:        frame.Info.Camera,
		IsSequence:    frame.Info.IsSequence,
		GlobalImageNr: frame.GlobalImageNr(),
		Bytes:         len(frame.Payload),
		PackAttempts:  frame.Attempts,
	}
	if frame.Snapshot != nil {
		m.Events = len(frame.Snapshot.History)
		m.BusyDevices = len(frame.Snapshot.BusyDevices)
	}
	s.w.WriteFrameMetrics(m, frame.CapturedAt)
	return nil
}
