package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/seqtester/internal/archive"
	"github.com/nerrad567/seqtester/internal/setting"
)

// contentTypeMsgpack is served for raw packed frames.
const contentTypeMsgpack = "application/msgpack"

// FrameDetail is an archived frame with its decoded snapshot.
type FrameDetail struct {
	archive.Record
	Bytes    int               `json:"bytes"`
	Snapshot *setting.Snapshot `json:"snapshot"`
}

// handleListFrames lists archived frames, newest first.
//
// Query parameters:
//   - run: simulator run ID (default: the current run)
//   - limit: maximum frames (default 50, max 200)
func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchive(w) {
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.camera.RunID()
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.frames.List(r.Context(), runID, limit)
	if err != nil {
		s.logger.Error("listing frames", "run_id", runID, "error", err)
		writeInternalError(w, "failed to list frames")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"frames": records,
		"count":  len(records),
	})
}

// handleGetFrame returns an archived frame with its snapshot decoded.
func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupFrame(w, r)
	if !ok {
		return
	}

	snap, err := setting.Unpack(rec.Payload)
	if err != nil {
		s.logger.Error("decoding archived frame",
			"run_id", rec.RunID, "global_image_nr", rec.GlobalImageNr, "error", err)
		writeInternalError(w, "archived frame is corrupt")
		return
	}

	writeJSON(w, http.StatusOK, FrameDetail{
		Record:   *rec,
		Bytes:    len(rec.Payload),
		Snapshot: snap,
	})
}

// handleGetFrameRaw returns the packed bytes exactly as archived.
func (s *Server) handleGetFrameRaw(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupFrame(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Payload)))
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Payload) //nolint:errcheck // Best-effort write to response
}

// lookupFrame resolves {nr} and the optional run query parameter. It writes
// the error response itself and reports whether the caller should proceed.
func (s *Server) lookupFrame(w http.ResponseWriter, r *http.Request) (*archive.Record, bool) {
	if !s.requireArchive(w) {
		return nil, false
	}

	nr, err := strconv.ParseUint(chi.URLParam(r, "nr"), 10, 64)
	if err != nil {
		writeBadRequest(w, "frame number must be a non-negative integer")
		return nil, false
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.camera.RunID()
	}

	rec, err := s.frames.Get(r.Context(), runID, nr)
	if err != nil {
		if errors.Is(err, archive.ErrFrameNotFound) {
			writeNotFound(w, "frame not found")
			return nil, false
		}
		s.logger.Error("loading frame", "run_id", runID, "global_image_nr", nr, "error", err)
		writeInternalError(w, "failed to load frame")
		return nil, false
	}
	return rec, true
}

func (s *Server) requireArchive(w http.ResponseWriter) bool {
	if s.frames == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "frame archive is not configured")
		return false
	}
	return true
}
