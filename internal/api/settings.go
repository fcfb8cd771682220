package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/seqtester/internal/command"
	"github.com/nerrad567/seqtester/internal/setting"
)

// SettingResponse is one device setting.
type SettingResponse struct {
	Device  string        `json:"device"`
	Setting string        `json:"setting"`
	Value   setting.Value `json:"value"`
}

// SettingsResponse lists every stored setting with logger counters.
type SettingsResponse struct {
	Settings         []SettingResponse `json:"settings"`
	Count            int               `json:"count"`
	Counter          uint64            `json:"counter"`
	GlobalImageCount uint64            `json:"global_image_count"`
	PendingEvents    int               `json:"pending_events"`
}

// BusyResponse reports a device's busy flag.
type BusyResponse struct {
	Device string `json:"device"`
	Busy   bool   `json:"busy"`
}

// handleListSettings returns all settings, sorted by device then name.
func (s *Server) handleListSettings(w http.ResponseWriter, _ *http.Request) {
	entries := s.settings.Settings()

	resp := SettingsResponse{
		Settings:         make([]SettingResponse, 0, len(entries)),
		Count:            len(entries),
		Counter:          s.settings.Counter(),
		GlobalImageCount: s.settings.GlobalImageCount(),
		PendingEvents:    s.settings.PendingEvents(),
	}
	for _, e := range entries {
		resp.Settings = append(resp.Settings, SettingResponse{
			Device:  e.Key.Device,
			Setting: e.Key.Name,
			Value:   e.Value,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetSetting returns a single setting.
func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := setting.Key{
		Device: chi.URLParam(r, "device"),
		Name:   chi.URLParam(r, "setting"),
	}

	for _, e := range s.settings.Settings() {
		if e.Key == key {
			writeJSON(w, http.StatusOK, SettingResponse{Device: key.Device, Setting: key.Name, Value: e.Value})
			return
		}
	}
	writeNotFound(w, "setting not found: "+key.String())
}

// handlePutSetting applies a command to one setting.
//
// The body is a command.Command, for example {"type":"float","value":12.5}.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	name := chi.URLParam(r, "setting")

	var cmd command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	value, err := command.Apply(s.settings, device, name, cmd)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnknownType),
			errors.Is(err, command.ErrInvalidValue),
			errors.Is(err, command.ErrInvalidTarget):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("applying setting command", "device", device, "setting", name, "error", err)
			writeInternalError(w, "failed to apply setting")
		}
		return
	}

	resp := SettingResponse{Device: device, Setting: name, Value: value}
	if !cmd.Silent {
		s.hub.Broadcast(ChannelSettingChanged, resp)
	}
	s.logger.Debug("setting applied via API",
		"device", device, "setting", name, "type", cmd.Type, "silent", cmd.Silent)

	writeJSON(w, http.StatusOK, resp)
}

// handlePeekBusy reports whether a device is busy without consuming the flag.
func (s *Server) handlePeekBusy(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	writeJSON(w, http.StatusOK, BusyResponse{Device: device, Busy: s.settings.PeekBusy(device)})
}

// handleMarkBusy marks a device busy and logs the busy event.
func (s *Server) handleMarkBusy(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	s.settings.MarkBusy(device)
	writeJSON(w, http.StatusOK, BusyResponse{Device: device, Busy: true})
}
