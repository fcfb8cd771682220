package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/seqtester/internal/setting"
)

// Setting names the camera records against its own device.
const (
	SettingExposure      = "Exposure"
	SettingBinning       = "Binning"
	ActionSnap           = "SnapImage"
	ActionStartSequence  = "StartSequenceAcquisition"
	ActionStopSequence   = "StopSequenceAcquisition"
	defaultBinning int64 = 1
)

// Logger defines the logging interface used by the Simulator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Simulator.
type Config struct {
	// Name is the camera's device name.
	Name string

	// BufferSize is the initial pack buffer size.
	BufferSize int

	// MaxBufferSize bounds buffer growth.
	MaxBufferSize int

	// ExposureMs is written to the camera's Exposure setting, silently,
	// when the simulator is created.
	ExposureMs float64
}

// Simulator produces frames by packing the shared setting logger.
//
// All methods are safe for concurrent use.
type Simulator struct {
	settings *setting.Logger
	name     string
	runID    string
	maxBuf   int

	logMu  sync.RWMutex
	logger Logger

	sinksMu sync.RWMutex
	sinks   []Sink

	// captureMu serialises frames so camera sequence numbers and the
	// packed history stay in step.
	captureMu sync.Mutex
	bufSize   int
	cameraSeq uint64

	// seqMu guards the capture mode. snaps counts SnapImage calls in
	// flight; a sequence cannot start while it is non-zero.
	seqMu   sync.Mutex
	cancel  context.CancelFunc
	seqDone chan struct{}
	snaps   int
}

// NewSimulator creates a camera bound to settings.
//
// The simulator gets a fresh run ID and seeds its Exposure and Binning
// settings without logging events, so the first frame's starting state is
// not polluted by defaults.
func NewSimulator(settings *setting.Logger, cfg Config) *Simulator {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.MaxBufferSize < cfg.BufferSize {
		cfg.MaxBufferSize = cfg.BufferSize
	}

	settings.SetFloat(cfg.Name, SettingExposure, cfg.ExposureMs, setting.WithoutEvent())
	settings.SetInteger(cfg.Name, SettingBinning, defaultBinning, setting.WithoutEvent())

	return &Simulator{
		settings: settings,
		name:     cfg.Name,
		runID:    uuid.NewString(),
		bufSize:  cfg.BufferSize,
		maxBuf:   cfg.MaxBufferSize,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the simulator. It may be called while a
// sequence is running.
func (s *Simulator) SetLogger(logger Logger) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.logger = logger
}

func (s *Simulator) log() Logger {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	return s.logger
}

// AddSink registers a frame consumer. Sinks are called in registration order.
func (s *Simulator) AddSink(sink Sink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Name returns the camera's device name.
func (s *Simulator) Name() string { return s.name }

// RunID returns the identifier stamped on every frame from this simulator.
func (s *Simulator) RunID() string { return s.runID }

// SnapImage captures a single non-sequence frame.
//
// Returns:
//   - Frame: The packed and delivered frame
//   - error: ErrCapturing while a sequence runs, ErrFrameTooLarge if the
//     snapshot cannot be packed
func (s *Simulator) SnapImage(ctx context.Context) (Frame, error) {
	s.seqMu.Lock()
	if s.seqDone != nil {
		s.seqMu.Unlock()
		return Frame{}, ErrCapturing
	}
	s.snaps++
	s.seqMu.Unlock()

	defer func() {
		s.seqMu.Lock()
		s.snaps--
		s.seqMu.Unlock()
	}()

	s.settings.FireOneShot(s.name, ActionSnap)
	return s.capture(ctx, false, 0)
}

// StartSequence starts a sequence acquisition of count frames, one every
// interval. A count of 0 runs until StopSequence or ctx is cancelled.
// It returns ErrCapturing while a sequence runs or a SnapImage is in flight.
func (s *Simulator) StartSequence(ctx context.Context, count int, interval time.Duration) error {
	if count < 0 {
		return fmt.Errorf("camera: negative frame count %d", count)
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if s.seqDone != nil || s.snaps > 0 {
		return ErrCapturing
	}

	seqCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.seqDone = done

	s.settings.FireOneShot(s.name, ActionStartSequence)
	s.log().Info("sequence acquisition started", "camera", s.name, "count", count, "interval", interval)

	go s.runSequence(seqCtx, count, interval, done)
	return nil
}

// StopSequence cancels a running sequence and waits for it to finish.
func (s *Simulator) StopSequence() error {
	s.seqMu.Lock()
	cancel, done := s.cancel, s.seqDone
	s.seqMu.Unlock()

	if done == nil {
		return ErrNotCapturing
	}
	cancel()
	<-done
	return nil
}

// Wait blocks until the running sequence, if any, finishes.
func (s *Simulator) Wait() {
	s.seqMu.Lock()
	done := s.seqDone
	s.seqMu.Unlock()
	if done != nil {
		<-done
	}
}

// IsCapturing reports whether a sequence acquisition is running.
func (s *Simulator) IsCapturing() bool {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.seqDone != nil
}

func (s *Simulator) runSequence(ctx context.Context, count int, interval time.Duration, done chan struct{}) {
	defer func() {
		s.settings.FireOneShot(s.name, ActionStopSequence)

		s.seqMu.Lock()
		s.cancel()
		s.cancel, s.seqDone = nil, nil
		s.seqMu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.log().Info("sequence acquisition stopped", "camera", s.name, "frames", i)
				return
			case <-ticker.C:
			}
		}

		if _, err := s.capture(ctx, true, uint64(i)); err != nil {
			s.log().Error("sequence acquisition aborted", "camera", s.name, "frame", i, "error", err)
			return
		}
	}
	s.log().Info("sequence acquisition finished", "camera", s.name, "frames", count)
}

// capture packs one frame and hands it to the sinks.
func (s *Simulator) capture(ctx context.Context, isSequence bool, acquisitionSeq uint64) (Frame, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.settings.MarkBusy(s.name)

	info := setting.FrameInfo{
		Camera:            s.name,
		IsSequence:        isSequence,
		CameraSeqNum:      s.cameraSeq,
		AcquisitionSeqNum: acquisitionSeq,
	}

	payload, attempts, err := s.packLocked(info)
	// The exposure is over whether or not the frame made it out.
	s.settings.IsBusy(s.name)
	if err != nil {
		return Frame{}, err
	}
	s.cameraSeq++

	snap, err := setting.Unpack(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("decoding packed frame: %w", err)
	}

	frame := Frame{
		RunID:      s.runID,
		Info:       info,
		Payload:    payload,
		Snapshot:   snap,
		Attempts:   attempts,
		CapturedAt: time.Now().UTC(),
	}

	s.log().Debug("frame captured",
		"camera", s.name,
		"global_image_nr", snap.GlobalImageCount,
		"events", len(snap.History),
		"bytes", len(payload),
	)

	s.deliver(ctx, frame)
	return frame, nil
}

// packLocked calls PackAndReset, doubling the buffer until the snapshot
// fits or the maximum is reached. The grown size is kept for later frames.
func (s *Simulator) packLocked(info setting.FrameInfo) ([]byte, int, error) {
	size := s.bufSize
	for attempts := 1; ; attempts++ {
		buf := make([]byte, size)
		n, err := s.settings.PackAndReset(buf, info)
		if err == nil {
			s.bufSize = size
			return buf[:n], attempts, nil
		}
		if !errors.Is(err, setting.ErrBufferTooSmall) {
			return nil, attempts, err
		}
		if size >= s.maxBuf {
			s.log().Warn("frame does not fit maximum pack buffer",
				"camera", s.name, "max_buffer", s.maxBuf, "error", err)
			return nil, attempts, fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
		}
		size = min(size*2, s.maxBuf)
		s.log().Debug("growing pack buffer", "camera", s.name, "size", size)
	}
}

func (s *Simulator) deliver(ctx context.Context, frame Frame) {
	s.sinksMu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.sinksMu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Deliver(ctx, frame); err != nil {
			s.log().Warn("frame delivery failed",
				"camera", s.name,
				"sink", sink.Name(),
				"global_image_nr", frame.GlobalImageNr(),
				"error", err,
			)
		}
	}
}
