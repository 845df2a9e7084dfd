package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/infrastructure/config"
	"github.com/nerrad567/depthcore/internal/infrastructure/database"
	"github.com/nerrad567/depthcore/internal/infrastructure/logging"
	"github.com/nerrad567/depthcore/internal/sensor"
	"github.com/nerrad567/depthcore/internal/structure"
	"github.com/nerrad567/depthcore/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// mockDevice records control calls and returns canned readings.
type mockDevice struct {
	mu sync.Mutex

	accept     bool
	streaming  bool
	startedFor time.Duration
	stopped    bool
	rebooted   bool
	exposure   [2]float32
	visible    [2]float32
}

func (d *mockDevice) Start(timeout time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startedFor = timeout
	d.streaming = d.accept
	return d.accept
}

func (d *mockDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.streaming = false
}

func (d *mockDevice) Reboot() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebooted = d.accept
	return d.accept
}

func (d *mockDevice) SetExposureGain(exposure, gain float32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accept {
		d.exposure = [2]float32{exposure, gain}
	}
	return d.accept
}

func (d *mockDevice) ExposureGain() (float32, float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exposure[0], d.exposure[1]
}

func (d *mockDevice) SetVisibleExposureGain(exposure, gain float32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accept {
		d.visible = [2]float32{exposure, gain}
	}
	return d.accept
}

func (d *mockDevice) VisibleExposureGain() (float32, float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible[0], d.visible[1]
}

func (d *mockDevice) Intrinsics() capture.Intrinsics {
	return capture.Intrinsics{Width: 640, Height: 480, Fx: 570.3, Fy: 570.3, Cx: 320, Cy: 240}
}

func (d *mockDevice) Acceleration() capture.Vec3     { return capture.Vec3{Z: -9.81} }
func (d *mockDevice) GyroRotationRate() capture.Vec3 { return capture.Vec3{X: 0.01} }
func (d *mockDevice) State() structure.State         { return structure.StateReady }
func (d *mockDevice) IsReady() bool                  { return true }

func (d *mockDevice) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

func (d *mockDevice) Stats() []structure.StreamStats {
	return []structure.StreamStats{{Stream: "depth", FPS: 30}}
}

func (d *mockDevice) SensorInfo() capture.SensorInfo {
	return capture.SensorInfo{SerialNumber: "ST-1", Temperature: 38.5}
}

type testEnv struct {
	srv      *Server
	handler  http.Handler
	registry *sensor.Registry
	device   *mockDevice
}

// newTestEnv builds a server over an in-memory registry holding ST-1
// (attached) and ST-2 (not attached).
func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	registry := sensor.NewRegistry(sensor.NewSQLiteRepository(db.DB), sensor.NewSQLiteEventHistoryRepository(db.DB), 0)
	ctx := context.Background()
	for _, serial := range []string{"ST-1", "ST-2"} {
		if err := registry.Register(ctx, serial, "bay "+serial); err != nil {
			t.Fatal(err)
		}
	}

	device := &mockDevice{accept: true}
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:   log,
		Sensors:  registry,
		Devices: func(serial string) (Device, bool) {
			if serial == "ST-1" {
				return device, true
			}
			return nil, false
		},
		RouterStats: func() structure.RouterStats { return structure.RouterStats{Capacity: 64} },
		DB:          db.DB,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{srv: srv, handler: srv.Handler(), registry: registry, device: device}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNew_RequiredDeps(t *testing.T) {
	log := logging.Default()
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Sensors: &sensor.Registry{}, Devices: func(string) (Device, bool) { return nil, false }}},
		{"no sensors", Deps{Logger: log, Devices: func(string) (Device, bool) { return nil, false }}},
		{"no devices", Deps{Logger: log, Sensors: &sensor.Registry{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() = nil error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testSecret)
	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "abc-123")
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, testSecret)
	valid, err := IssueToken(testSecret, "tests", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, _ := IssueToken("another-secret-entirely-of-some-length", "tests", time.Minute)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.header == "" {
				w = env.do(t, http.MethodGet, "/api/v1/sensors", "")
			} else {
				w = env.do(t, http.MethodGet, "/api/v1/sensors", "", "Authorization", tt.header)
			}
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuth_DisabledWithoutSecret(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(t, http.MethodGet, "/api/v1/sensors", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestIssueToken_Validation(t *testing.T) {
	if _, err := IssueToken("", "x", 0); err == nil {
		t.Error("IssueToken() with empty secret = nil error")
	}
	if _, err := IssueToken(testSecret, "", 0); err == nil {
		t.Error("IssueToken() with empty subject = nil error")
	}

	// A non-positive TTL falls back to the default.
	token, err := IssueToken(testSecret, "x", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(token, testSecret); err != nil {
		t.Errorf("ParseToken() = %v", err)
	}
}

func TestListSensors(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/sensors", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	body := decode[struct {
		Sensors []SensorView `json:"sensors"`
		Count   int          `json:"count"`
	}](t, w)
	if body.Count != 2 || len(body.Sensors) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if !body.Sensors[0].Attached || body.Sensors[0].Live == nil || body.Sensors[0].Live.Temperature != 38.5 {
		t.Errorf("ST-1 = %+v", body.Sensors[0])
	}
	if body.Sensors[1].Attached || body.Sensors[1].Live != nil {
		t.Errorf("ST-2 = %+v", body.Sensors[1])
	}
}

func TestGetSensor(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/sensors/ST-2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	v := decode[SensorView](t, w)
	if v.Serial != "ST-2" || v.Name != "bay ST-2" {
		t.Errorf("view = %+v", v)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/sensors/ST-404", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown sensor status = %d", w.Code)
	}
}

func TestSensorEvents(t *testing.T) {
	env := newTestEnv(t, "")
	env.registry.Start()
	for _, ev := range []capture.EventID{capture.EventConnected, capture.EventReady, capture.EventStreaming} {
		env.registry.HandleNotification(structure.Notification{Serial: "ST-1", Event: ev, Attached: true, Time: time.Now()})
	}
	env.registry.Close()

	tests := []struct {
		query     string
		wantCode  int
		wantCount int
	}{
		{"", http.StatusOK, 3},
		{"?limit=2", http.StatusOK, 2},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/sensors/ST-1/events"+tt.query, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			body := decode[struct {
				Events []sensor.EventEntry `json:"events"`
			}](t, w)
			if len(body.Events) != tt.wantCount {
				t.Errorf("events = %d, want %d", len(body.Events), tt.wantCount)
			}
		})
	}
}

func TestControl_Lookup(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		path string
		want int
		code string
	}{
		{"/api/v1/sensors/ST-2/stop", http.StatusConflict, ErrCodeNotAttached},
		{"/api/v1/sensors/ST-404/stop", http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPost, tt.path, "")
		if w.Code != tt.want {
			t.Errorf("%s status = %d, want %d", tt.path, w.Code, tt.want)
			continue
		}
		if e := decode[Error](t, w); e.Code != tt.code {
			t.Errorf("%s code = %q, want %q", tt.path, e.Code, tt.code)
		}
	}
}

func TestStartSensor(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/start", `{"timeout_ms": 600000}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if env.device.startedFor != maxStartTimeout {
		t.Errorf("timeout = %v, want capped at %v", env.device.startedFor, maxStartTimeout)
	}

	// An empty body defers the start until ready.
	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/start", ""); w.Code != http.StatusAccepted {
		t.Errorf("empty body status = %d", w.Code)
	}
	if env.device.startedFor != 0 {
		t.Errorf("timeout = %v, want 0", env.device.startedFor)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/start", `{"timeout_ms": -1}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative timeout status = %d", w.Code)
	}

	env.device.accept = false
	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/start", `{}`); w.Code != http.StatusConflict {
		t.Errorf("rejected start status = %d", w.Code)
	}
}

func TestStopAndReboot(t *testing.T) {
	env := newTestEnv(t, "")

	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/stop", ""); w.Code != http.StatusOK {
		t.Errorf("stop status = %d", w.Code)
	}
	if !env.device.stopped {
		t.Error("Stop() not called")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/reboot", ""); w.Code != http.StatusAccepted {
		t.Errorf("reboot status = %d", w.Code)
	}
	if !env.device.rebooted {
		t.Error("Reboot() not called")
	}

	env.device.accept = false
	if w := env.do(t, http.MethodPost, "/api/v1/sensors/ST-1/reboot", ""); w.Code != http.StatusConflict {
		t.Errorf("rejected reboot status = %d", w.Code)
	}
}

func TestExposure(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing gain", `{"exposure": 0.016}`, http.StatusBadRequest},
		{"zero exposure", `{"exposure": 0, "gain": 1}`, http.StatusBadRequest},
		{"negative gain", `{"exposure": 0.01, "gain": -1}`, http.StatusBadRequest},
		{"bad visible", `{"exposure": 0.01, "gain": 1, "visible": {"exposure": 0.01}}`, http.StatusBadRequest},
		{"infrared", `{"exposure": 0.014, "gain": 3}`, http.StatusAccepted},
		{"with visible", `{"exposure": 0.014, "gain": 3, "visible": {"exposure": 0.02, "gain": 2}}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/v1/sensors/ST-1/exposure", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/sensors/ST-1/exposure", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	got := decode[exposureResponse](t, w)
	if got.Exposure != 0.014 || got.Gain != 3 || got.Visible.Exposure != 0.02 || got.Visible.Gain != 2 {
		t.Errorf("exposure = %+v", got)
	}

	env.device.accept = false
	if w := env.do(t, http.MethodPut, "/api/v1/sensors/ST-1/exposure", `{"exposure": 0.01, "gain": 1}`); w.Code != http.StatusConflict {
		t.Errorf("rejected status = %d", w.Code)
	}
}

func TestIntrinsicsAndIMU(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/sensors/ST-1/intrinsics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("intrinsics status = %d", w.Code)
	}
	if in := decode[capture.Intrinsics](t, w); in.Width != 640 || in.Fx != 570.3 {
		t.Errorf("intrinsics = %+v", in)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sensors/ST-1/imu", "")
	if w.Code != http.StatusOK {
		t.Fatalf("imu status = %d", w.Code)
	}
	imu := decode[struct {
		Acceleration capture.Vec3 `json:"acceleration"`
		RotationRate capture.Vec3 `json:"rotation_rate"`
	}](t, w)
	if imu.Acceleration.Z != -9.81 || imu.RotationRate.X != 0.01 {
		t.Errorf("imu = %+v", imu)
	}
}

func TestRanges(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/ranges", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[struct {
		Ranges []rangeView `json:"ranges"`
	}](t, w)
	if len(body.Ranges) != len(capture.RangePresets) {
		t.Fatalf("ranges = %d", len(body.Ranges))
	}
	if r := body.Ranges[1]; r.Mode != capture.RangeShort || r.Min != 410 || r.Max != 1360 {
		t.Errorf("Short = %+v", r)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, testSecret)
	w := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	m := decode[SystemMetrics](t, w)
	if m.Router == nil || m.Router.Capacity != 64 {
		t.Errorf("router = %+v", m.Router)
	}
	if m.Database == nil || m.MQTT.Enabled {
		t.Errorf("database = %+v, mqtt = %+v", m.Database, m.MQTT)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodOptions, "/api/v1/sensors", "", "Origin", "http://dashboard.local")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t, "")
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestWebSocket_SensorEvents(t *testing.T) {
	env := newTestEnv(t, testSecret)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.Hub().Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial without token succeeded")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token status = %d", resp.StatusCode)
	}

	token, _ := IssueToken(testSecret, "tests", time.Minute)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Narrow to ST-1, then wait for the acknowledgement.
	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Serials: []string{"ST-1"}}}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v, %v", ack, err)
	}

	hub := env.srv.Hub()
	hub.HandleNotification(structure.Notification{Serial: "ST-2", Event: capture.EventReady, Time: time.Now()})
	hub.HandleNotification(structure.Notification{
		Serial: "ST-1", Event: capture.EventStreaming, State: structure.StateStreaming,
		Streaming: true, Attached: true, Time: time.Now(),
	})

	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Serial string `json:"serial"`
			Event  string `json:"event"`
			State  string `json:"state"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != WSTypeSensorEvent || msg.Payload.Serial != "ST-1" || msg.Payload.Event != "streaming" || msg.Payload.State != "streaming" {
		t.Errorf("message = %+v", msg)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d", hub.ClientCount())
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, tt := range []struct {
		send string
		want string
	}{
		{`{"type":"ping","id":"p1"}`, WSTypePong},
		{`{"type":"bogus","id":"b1"}`, WSTypeError},
		{`not json`, WSTypeError},
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
		var resp WSMessage
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read after %s: %v", tt.send, err)
		}
		if resp.Type != tt.want {
			t.Errorf("reply to %s = %q, want %q", tt.send, resp.Type, tt.want)
		}
	}
}

func TestHub_SkipsFullClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())
	client := &WSClient{hub: hub, send: make(chan []byte, 1), serials: map[string]struct{}{}}
	hub.Register(client)

	hub.HandleNotification(structure.Notification{Serial: "ST-1"})
	hub.HandleNotification(structure.Notification{Serial: "ST-1"})
	if hub.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", hub.Skipped())
	}

	hub.Unregister(client)
	hub.HandleNotification(structure.Notification{Serial: "ST-1"})
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d", hub.ClientCount())
	}
}
