package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/seqtester/internal/camera"
	"github.com/nerrad567/seqtester/internal/setting"
)

// maxSequenceInterval caps the interval accepted for sequence acquisitions.
const maxSequenceInterval = time.Minute

// FrameSummary describes a captured frame without its payload.
type FrameSummary struct {
	RunID            string    `json:"run_id"`
	Camera           string    `json:"camera"`
	GlobalImageNr    uint64    `json:"global_image_nr"`
	CameraSeqNr      uint64    `json:"camera_seq_nr"`
	AcquisitionSeqNr uint64    `json:"acquisition_seq_nr"`
	IsSequence       bool      `json:"is_sequence"`
	Events           int       `json:"events"`
	BusyDevices      []string  `json:"busy_devices"`
	Bytes            int       `json:"bytes"`
	CapturedAt       time.Time `json:"captured_at"`
}

func newFrameSummary(f camera.Frame) FrameSummary {
	sum := FrameSummary{
		RunID:            f.RunID,
		Camera:           f.Info.Camera,
		GlobalImageNr:    f.GlobalImageNr(),
		CameraSeqNr:      f.Info.CameraSeqNum,
		AcquisitionSeqNr: f.Info.AcquisitionSeqNum,
		IsSequence:       f.Info.IsSequence,
		BusyDevices:      []string{},
		Bytes:            len(f.Payload),
		CapturedAt:       f.CapturedAt,
	}
	if f.Snapshot != nil {
		sum.Events = len(f.Snapshot.History)
		if f.Snapshot.BusyDevices != nil {
			sum.BusyDevices = f.Snapshot.BusyDevices
		}
	}
	return sum
}

// SnapResponse is returned by a single snap: the summary plus the decoded
// snapshot.
type SnapResponse struct {
	Frame    FrameSummary      `json:"frame"`
	Snapshot *setting.Snapshot `json:"snapshot"`
}

// CameraStatus reports the simulator state.
type CameraStatus struct {
	Name             string `json:"name"`
	RunID            string `json:"run_id"`
	Capturing        bool   `json:"capturing"`
	GlobalImageCount uint64 `json:"global_image_count"`
}

// SequenceRequest starts a sequence acquisition.
type SequenceRequest struct {
	// Count is the number of frames; 0 runs until stopped.
	Count int `json:"count"`

	// IntervalMs overrides the configured frame interval.
	IntervalMs int `json:"interval_ms,omitempty"`
}

// handleCameraStatus returns the camera state.
func (s *Server) handleCameraStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CameraStatus{
		Name:             s.camera.Name(),
		RunID:            s.camera.RunID(),
		Capturing:        s.camera.IsCapturing(),
		GlobalImageCount: s.settings.GlobalImageCount(),
	})
}

// handleSnap captures a single frame.
func (s *Server) handleSnap(w http.ResponseWriter, r *http.Request) {
	frame, err := s.camera.SnapImage(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrCapturing):
			writeConflict(w, err.Error())
		case errors.Is(err, camera.ErrFrameTooLarge):
			writeError(w, http.StatusInsufficientStorage, ErrCodeInternal, err.Error())
		default:
			s.logger.Error("snap failed", "error", err)
			writeInternalError(w, "snap failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, SnapResponse{
		Frame:    newFrameSummary(frame),
		Snapshot: frame.Snapshot,
	})
}

// handleStartSequence starts a sequence acquisition in the background.
//
// An empty body starts an unbounded sequence at the configured interval.
func (s *Server) handleStartSequence(w http.ResponseWriter, r *http.Request) {
	var req SequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Count < 0 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "count must not be negative")
		return
	}

	interval := s.frameInterval
	if req.IntervalMs != 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	if interval <= 0 || interval > maxSequenceInterval {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "interval_ms must be between 1 and 60000")
		return
	}

	// The sequence outlives the request, so it is not bound to r.Context().
	if err := s.camera.StartSequence(s.sequenceContext(), req.Count, interval); err != nil {
		if errors.Is(err, camera.ErrCapturing) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to start sequence")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "started",
		"count":       req.Count,
		"interval_ms": interval.Milliseconds(),
	})
}

// handleStopSequence stops a running sequence acquisition.
func (s *Server) handleStopSequence(w http.ResponseWriter, _ *http.Request) {
	if err := s.camera.StopSequence(); err != nil {
		if errors.Is(err, camera.ErrNotCapturing) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to stop sequence")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
