package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/seqtester/internal/archive"
	"github.com/nerrad567/seqtester/internal/camera"
	"github.com/nerrad567/seqtester/internal/infrastructure/config"
	"github.com/nerrad567/seqtester/internal/infrastructure/database"
	"github.com/nerrad567/seqtester/internal/infrastructure/logging"
	"github.com/nerrad567/seqtester/internal/setting"
	"github.com/nerrad567/seqtester/migrations"
)

type testEnv struct {
	srv      *Server
	settings *setting.Logger
	camera   *camera.Simulator
	handler  http.Handler
}

// testServer creates a Server with a real camera and an archive backed by
// in-memory SQLite.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	settings := setting.NewLogger()
	sim := camera.NewSimulator(settings, camera.Config{Name: "Cam1", BufferSize: 1024, MaxBufferSize: 1 << 20})
	repo := archive.NewSQLiteRepository(db.DB)
	sim.AddSink(repo)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:            config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:        logging.Discard(),
		Settings:      settings,
		Camera:        sim,
		Frames:        repo,
		DB:            db,
		FrameInterval: time.Millisecond,
		Version:       "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	sim.AddSink(srv.Hub())

	t.Cleanup(func() {
		if sim.IsCapturing() {
			sim.StopSequence() //nolint:errcheck // test cleanup
		}
	})

	return &testEnv{srv: srv, settings: settings, camera: sim, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.Discard()
	settings := setting.NewLogger()
	sim := camera.NewSimulator(settings, camera.Config{Name: "Cam1"})

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Settings: settings, Camera: sim}},
		{"no settings", Deps{Logger: log, Camera: sim}},
		{"no camera", Deps{Logger: log, Settings: settings}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Checks  map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("health = %+v", body)
	}
	if body.Checks["database"] != "ok" || body.Checks["mqtt"] != "disabled" {
		t.Errorf("checks = %v", body.Checks)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestSettings_PutAndList(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/settings/Stage/X", `{"type":"int","value":100}`},
		{"/api/v1/settings/Shutter/State", `{"type":"string","value":"Open"}`},
		{"/api/v1/settings/Cam1/Gain", `{"type":"float","value":2.5}`},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPut, tt.path, tt.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("PUT %s status = %d, body %s", tt.path, rec.Code, rec.Body)
		}
	}

	if got := env.settings.GetInteger("Stage", "X"); got != 100 {
		t.Errorf("Stage/X = %d, want 100", got)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET settings status = %d", rec.Code)
	}
	var list SettingsResponse
	decodeBody(t, rec, &list)

	// Cam1 Binning and Exposure are seeded by the simulator.
	var keys []string
	for _, s := range list.Settings {
		keys = append(keys, s.Device+"/"+s.Setting)
	}
	want := "Cam1/Binning,Cam1/Exposure,Cam1/Gain,Shutter/State,Stage/X"
	if strings.Join(keys, ",") != want {
		t.Errorf("settings = %v, want %s", keys, want)
	}
	if list.Counter != 3 || list.PendingEvents != 3 {
		t.Errorf("counter = %d pending = %d, want 3 and 3", list.Counter, list.PendingEvents)
	}
}

func TestSettings_Get(t *testing.T) {
	env := testServer(t)
	env.settings.SetString("Shutter", "State", "Closed")

	rec := env.do(t, http.MethodGet, "/api/v1/settings/Shutter/State", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Value struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		} `json:"value"`
	}
	decodeBody(t, rec, &got)
	if got.Value.Kind != "string" || got.Value.Value != "Closed" {
		t.Errorf("value = %+v", got.Value)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/settings/Shutter/Nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing setting status = %d, want 404", rec.Code)
	}
}

func TestSettings_PutRejects(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"unknown type", `{"type":"vector"}`, http.StatusUnprocessableEntity},
		{"wrong value", `{"type":"int","value":"ten"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/v1/settings/Stage/X", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			var apiErr Error
			decodeBody(t, rec, &apiErr)
			if apiErr.Code == "" || apiErr.Message == "" {
				t.Errorf("error body = %+v", apiErr)
			}
		})
	}

	if env.settings.Counter() != 0 {
		t.Errorf("Counter() = %d after rejected writes", env.settings.Counter())
	}
}

func TestBusy(t *testing.T) {
	env := testServer(t)

	var busy BusyResponse
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/devices/Stage/busy", ""), &busy)
	if busy.Busy {
		t.Error("device busy before MarkBusy")
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/devices/Stage/busy", ""); rec.Code != http.StatusOK {
		t.Fatalf("POST busy status = %d", rec.Code)
	}

	// Peeking twice does not consume the flag.
	for range 2 {
		decodeBody(t, env.do(t, http.MethodGet, "/api/v1/devices/Stage/busy", ""), &busy)
		if !busy.Busy || busy.Device != "Stage" {
			t.Errorf("busy = %+v, want Stage busy", busy)
		}
	}
	if !env.settings.IsBusy("Stage") {
		t.Error("IsBusy() = false after API MarkBusy")
	}
}

func TestCamera_SnapAndFrames(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPut, "/api/v1/settings/Stage/X", `{"type":"int","value":7}`)

	rec := env.do(t, http.MethodPost, "/api/v1/camera/snap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("snap status = %d, body %s", rec.Code, rec.Body)
	}
	var snap SnapResponse
	decodeBody(t, rec, &snap)
	if snap.Frame.GlobalImageNr != 1 || snap.Frame.Camera != "Cam1" || snap.Frame.IsSequence {
		t.Errorf("frame = %+v", snap.Frame)
	}
	if snap.Snapshot == nil || len(snap.Snapshot.History) != 3 {
		t.Fatalf("snapshot = %+v, want Stage/X, snap and busy events", snap.Snapshot)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/frames", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list frames status = %d", rec.Code)
	}
	var list struct {
		RunID  string           `json:"run_id"`
		Count  int              `json:"count"`
		Frames []archive.Record `json:"frames"`
	}
	decodeBody(t, rec, &list)
	if list.RunID != env.camera.RunID() || list.Count != 1 || list.Frames[0].EventCount != 3 {
		t.Errorf("frames = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/frames/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get frame status = %d", rec.Code)
	}
	var detail struct {
		GlobalImageNr uint64            `json:"global_image_nr"`
		Bytes         int               `json:"bytes"`
		Snapshot      *setting.Snapshot `json:"snapshot"`
	}
	decodeBody(t, rec, &detail)
	if detail.GlobalImageNr != 1 || detail.Bytes != snap.Frame.Bytes {
		t.Errorf("detail = %+v", detail)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/frames/1/raw", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != contentTypeMsgpack {
		t.Fatalf("raw frame status = %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	raw, err := setting.Unpack(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Unpack(raw) error = %v", err)
	}
	if raw.GlobalImageCount != 1 || raw.History[0].Value.Integer() != 7 {
		t.Errorf("raw snapshot = %+v", raw)
	}
}

func TestFrames_Errors(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/frames/1", http.StatusNotFound},
		{"/api/v1/frames/abc", http.StatusBadRequest},
		{"/api/v1/frames/-1/raw", http.StatusBadRequest},
		{"/api/v1/frames?limit=x", http.StatusBadRequest},
		{"/api/v1/frames?run=other", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := env.do(t, http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestFrames_NoArchive(t *testing.T) {
	env := testServer(t)
	env.srv.frames = nil
	handler := env.srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frames", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCamera_Sequence(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/camera/sequence", `{"count":3,"interval_ms":1}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	env.camera.Wait()

	if got := env.settings.GlobalImageCount(); got != 3 {
		t.Errorf("GlobalImageCount() = %d, want 3", got)
	}

	var status CameraStatus
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/camera", ""), &status)
	if status.Capturing || status.GlobalImageCount != 3 || status.RunID != env.camera.RunID() {
		t.Errorf("status = %+v", status)
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/camera/sequence", ""); rec.Code != http.StatusConflict {
		t.Errorf("stop idle status = %d, want 409", rec.Code)
	}
}

func TestCamera_SequenceConflictAndStop(t *testing.T) {
	env := testServer(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/camera/sequence", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/camera/sequence", `{"count":1}`); rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/camera/snap", ""); rec.Code != http.StatusConflict {
		t.Errorf("snap during sequence status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/v1/camera/sequence", ""); rec.Code != http.StatusNoContent {
		t.Errorf("stop status = %d, want 204", rec.Code)
	}
	if env.camera.IsCapturing() {
		t.Error("still capturing after stop")
	}
}

func TestCamera_SequenceValidation(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"negative count", `{"count":-1}`, http.StatusUnprocessableEntity},
		{"negative interval", `{"count":1,"interval_ms":-5}`, http.StatusUnprocessableEntity},
		{"interval too long", `{"count":1,"interval_ms":600000}`, http.StatusUnprocessableEntity},
		{"malformed", `{"count":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, "/api/v1/camera/sequence", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	env := testServer(t)
	env.settings.SetInteger("Stage", "X", 1)

	rec := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var m SystemMetrics
	decodeBody(t, rec, &m)
	if m.Version != "test" || m.Settings.Counter != 1 || m.Settings.Stored != 3 {
		t.Errorf("metrics = %+v", m)
	}
	if m.Database.OpenConnections != 1 {
		t.Errorf("database open connections = %d, want 1", m.Database.OpenConnections)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := testServer(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := testServer(t)

	big := `{"type":"string","value":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec := env.do(t, http.MethodPut, "/api/v1/settings/Stage/Blob", big)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for oversized body", rec.Code)
	}
}

func TestWebSocket_FrameAndSettingEvents(t *testing.T) {
	env := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.hub.Run(ctx)

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "s1",
		Payload: WSSubscribePayload{Channels: []string{ChannelFrameCaptured, ChannelSettingChanged}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readMessage(t, conn, WSTypeResponse)

	resp, err := http.DefaultClient.Do(mustRequest(t, http.MethodPut, ts.URL+"/api/v1/settings/Stage/X", `{"type":"int","value":3}`))
	if err != nil {
		t.Fatalf("PUT error = %v", err)
	}
	resp.Body.Close()

	msg := readMessage(t, conn, WSTypeEvent)
	if msg.EventType != ChannelSettingChanged {
		t.Errorf("event type = %q, want %q", msg.EventType, ChannelSettingChanged)
	}

	if _, err := env.camera.SnapImage(context.Background()); err != nil {
		t.Fatalf("SnapImage() error = %v", err)
	}
	msg = readMessage(t, conn, WSTypeEvent)
	if msg.EventType != ChannelFrameCaptured {
		t.Fatalf("event type = %q, want %q", msg.EventType, ChannelFrameCaptured)
	}
	payload, _ := json.Marshal(msg.Payload) //nolint:errcheck // re-encoding decoded JSON
	var sum FrameSummary
	if err := json.Unmarshal(payload, &sum); err != nil {
		t.Fatalf("decoding frame summary: %v", err)
	}
	if sum.GlobalImageNr != 1 || sum.Camera != "Cam1" {
		t.Errorf("frame summary = %+v", sum)
	}
}

func mustRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func readMessage(t *testing.T, conn *websocket.Conn, wantType string) WSMessage {
	t.Helper()

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != wantType {
		t.Fatalf("message type = %q, want %q (%+v)", msg.Type, wantType, msg)
	}
	return msg
}
