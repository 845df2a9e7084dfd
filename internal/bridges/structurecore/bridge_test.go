package structurecore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/infrastructure/mqtt"
	"github.com/nerrad567/depthcore/internal/structure"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	connected bool
	failWith  error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Deliver simulates a message arriving on a subscription pattern.
func (m *MockMQTTClient) Deliver(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscription for " + pattern)
	}
	return handler(topic, payload)
}

// On returns the messages published to topic.
func (m *MockMQTTClient) On(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// mockController implements Controller for testing.
type mockController struct {
	mu       sync.Mutex
	calls    []string
	timeout  time.Duration
	exposure [2]float32
	visible  [2]float32
	reject   bool
}

func (c *mockController) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *mockController) Start(timeout time.Duration) bool {
	c.record("start")
	c.mu.Lock()
	c.timeout = timeout
	c.mu.Unlock()
	return !c.reject
}

func (c *mockController) Stop() { c.record("stop") }

func (c *mockController) Reboot() bool {
	c.record("reboot")
	return !c.reject
}

func (c *mockController) SetExposureGain(exposure, gain float32) bool {
	c.record("exposure")
	c.mu.Lock()
	c.exposure = [2]float32{exposure, gain}
	c.mu.Unlock()
	return !c.reject
}

func (c *mockController) SetVisibleExposureGain(exposure, gain float32) bool {
	c.record("visible_exposure")
	c.mu.Lock()
	c.visible = [2]float32{exposure, gain}
	c.mu.Unlock()
	return !c.reject
}

func (c *mockController) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type testBridge struct {
	*Bridge
	client *MockMQTTClient
	dev    *mockController
	topics mqtt.Topics
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	client := NewMockMQTTClient()
	dev := &mockController{}
	topics := mqtt.NewTopics("dc")

	b, err := NewBridge(Options{
		MQTT:   client,
		Topics: topics,
		Devices: func(serial string) (Controller, bool) {
			if serial == "ST-1" {
				return dev, true
			}
			return nil, false
		},
		Sensors: func() int { return 1 },
		Version: "test",
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return &testBridge{Bridge: b, client: client, dev: dev, topics: topics}
}

func (tb *testBridge) command(t *testing.T, serial string, body string) AckMessage {
	t.Helper()
	if err := tb.client.Deliver(tb.topics.AllCommands(), tb.topics.Command(serial), []byte(body)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	ackTopic := tb.topics.SensorAck(serial)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if acks := tb.client.On(ackTopic); len(acks) > 0 {
			var ack AckMessage
			if err := json.Unmarshal(acks[len(acks)-1].Payload, &ack); err != nil {
				t.Fatalf("ack is not JSON: %v", err)
			}
			return ack
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no ack published on %s", ackTopic)
	return AckMessage{}
}

func TestNewBridge_Validation(t *testing.T) {
	if _, err := NewBridge(Options{Devices: func(string) (Controller, bool) { return nil, false }}); err == nil {
		t.Error("NewBridge() without MQTT = nil error")
	}
	if _, err := NewBridge(Options{MQTT: NewMockMQTTClient()}); err == nil {
		t.Error("NewBridge() without device lookup = nil error")
	}
}

func TestBridge_PublishesStateAndEvent(t *testing.T) {
	tb := newTestBridge(t)

	tb.HandleNotification(structure.Notification{
		Serial:    "ST-1",
		SessionID: 3,
		Event:     capture.EventReady,
		State:     structure.StateReady,
		Ready:     true,
		Attached:  true,
		Time:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	tb.Stop()

	states := tb.client.On("dc/sensor/ST-1/state")
	if len(states) != 1 || !states[0].Retained {
		t.Fatalf("state publishes = %+v", states)
	}
	var state StateMessage
	if err := json.Unmarshal(states[0].Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.State != "ready" || !state.Ready || state.Event != "ready" || state.SessionID != 3 {
		t.Errorf("state = %+v", state)
	}

	events := tb.client.On("dc/sensor/ST-1/event")
	if len(events) != 1 || events[0].Retained {
		t.Fatalf("event publishes = %+v", events)
	}
	if got := tb.Stats().EventsPublished; got != 1 {
		t.Errorf("EventsPublished = %d", got)
	}
}

func TestBridge_UnattachedState(t *testing.T) {
	tb := newTestBridge(t)
	tb.HandleNotification(structure.Notification{Serial: "ST-9", Event: capture.EventConnected})
	tb.Stop()

	states := tb.client.On("dc/sensor/ST-9/state")
	if len(states) != 1 {
		t.Fatalf("state publishes = %d", len(states))
	}
	var state StateMessage
	_ = json.Unmarshal(states[0].Payload, &state)
	if state.State != "unattached" || state.Attached {
		t.Errorf("state = %+v", state)
	}
}

func TestBridge_Commands(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCall  string
		wantState AckStatus
	}{
		{"start", `{"id":"c1","command":"start","timeout_ms":250}`, "start", AckAccepted},
		{"stop", `{"command":"stop"}`, "stop", AckAccepted},
		{"reboot", `{"command":"reboot"}`, "reboot", AckAccepted},
		{"exposure", `{"command":"set_exposure","exposure":0.016,"gain":2}`, "exposure", AckAccepted},
		{"visible exposure", `{"command":"set_exposure","exposure":0.01,"gain":1,"visible":true}`, "visible_exposure", AckAccepted},
		{"exposure missing gain", `{"command":"set_exposure","exposure":0.01}`, "", AckFailed},
		{"unknown", `{"command":"dance"}`, "", AckFailed},
		{"bad json", `{"command":`, "", AckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t)
			ack := tb.command(t, "ST-1", tt.body)

			if ack.Status != tt.wantState {
				t.Errorf("ack status = %s (%s), want %s", ack.Status, ack.Error, tt.wantState)
			}
			if ack.ID == "" {
				t.Error("ack ID is empty")
			}
			calls := tb.dev.Calls()
			if tt.wantCall == "" && len(calls) != 0 {
				t.Errorf("device calls = %v, want none", calls)
			}
			if tt.wantCall != "" && (len(calls) != 1 || calls[0] != tt.wantCall) {
				t.Errorf("device calls = %v, want [%s]", calls, tt.wantCall)
			}
		})
	}
}

func TestBridge_CommandDetails(t *testing.T) {
	tb := newTestBridge(t)

	ack := tb.command(t, "ST-1", `{"id":"abc","command":"start","timeout_ms":600000}`)
	if ack.ID != "abc" || ack.Command != "start" || ack.Serial != "ST-1" {
		t.Errorf("ack = %+v", ack)
	}
	tb.dev.mu.Lock()
	timeout := tb.dev.timeout
	tb.dev.mu.Unlock()
	if timeout != maxStartTimeout {
		t.Errorf("start timeout = %v, want capped at %v", timeout, maxStartTimeout)
	}

	tb.command(t, "ST-1", `{"command":"set_exposure","exposure":0.02,"gain":3}`)
	tb.dev.mu.Lock()
	exposure := tb.dev.exposure
	tb.dev.mu.Unlock()
	if exposure != [2]float32{0.02, 3} {
		t.Errorf("exposure = %v", exposure)
	}
}

func TestBridge_CommandFailures(t *testing.T) {
	tb := newTestBridge(t)

	ack := tb.command(t, "ST-404", `{"command":"start"}`)
	if ack.Status != AckFailed || ack.Error == "" {
		t.Errorf("ack for unattached sensor = %+v", ack)
	}

	tb.dev.reject = true
	ack = tb.command(t, "ST-1", `{"command":"reboot"}`)
	if ack.Status != AckFailed {
		t.Errorf("ack for rejected reboot = %+v", ack)
	}

	tb.Stop()
	if got := tb.Stats().CommandsFailed; got != 2 {
		t.Errorf("CommandsFailed = %d, want 2", got)
	}
}

func TestBridge_RejectsForeignTopic(t *testing.T) {
	tb := newTestBridge(t)
	err := tb.client.Deliver(tb.topics.AllCommands(), "dc/command/ST-1/extra", []byte(`{"command":"stop"}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("handler error = %v, want ErrInvalidPayload", err)
	}
}

func TestBridge_HealthTracksFaults(t *testing.T) {
	tb := newTestBridge(t)
	healthTopic := HealthTopic(tb.topics)

	tb.HandleNotification(structure.Notification{
		Serial: "ST-1", Event: capture.EventFWCorrupt, State: structure.StateError,
		Attached: true, Terminal: true,
	})
	tb.HandleNotification(structure.Notification{
		Serial: "ST-1", Event: capture.EventReady, State: structure.StateReady, Attached: true,
	})
	tb.Stop()

	var statuses []HealthStatus
	for _, p := range tb.client.On(healthTopic) {
		var msg HealthMessage
		if err := json.Unmarshal(p.Payload, &msg); err != nil {
			t.Fatal(err)
		}
		if !p.Retained {
			t.Error("health must be retained")
		}
		statuses = append(statuses, msg.Status)
	}

	want := []HealthStatus{HealthStarting, HealthHealthy, HealthDegraded, HealthHealthy, HealthStopping}
	if len(statuses) != len(want) {
		t.Fatalf("health statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %s, want %s", i, statuses[i], want[i])
		}
	}
}

func TestBridge_DropsWhenQueueFull(t *testing.T) {
	client := NewMockMQTTClient()
	b, err := NewBridge(Options{
		MQTT:      client,
		Devices:   func(string) (Controller, bool) { return nil, false },
		QueueSize: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Not started: nothing drains the queue.
	for i := 0; i < 3; i++ {
		b.HandleNotification(structure.Notification{Serial: "ST-1", Event: capture.EventReady})
	}
	if got := b.Stats().EventsDropped; got != 2 {
		t.Errorf("EventsDropped = %d, want 2", got)
	}
}

func TestBridge_PublishErrorsCounted(t *testing.T) {
	tb := newTestBridge(t)
	tb.client.mu.Lock()
	tb.client.failWith = mqtt.ErrNotConnected
	tb.client.mu.Unlock()

	tb.HandleNotification(structure.Notification{Serial: "ST-1", Event: capture.EventReady, Attached: true})
	tb.Stop()

	stats := tb.Stats()
	if stats.PublishErrors == 0 || stats.EventsPublished != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBridge_IgnoresAfterStop(t *testing.T) {
	tb := newTestBridge(t)
	tb.Stop()
	tb.HandleNotification(structure.Notification{Serial: "ST-1", Event: capture.EventReady})
	tb.HandleReconnect()

	if got := len(tb.client.On("dc/sensor/ST-1/state")); got != 0 {
		t.Errorf("published %d states after Stop", got)
	}
}

func TestLWTPayload(t *testing.T) {
	var msg HealthMessage
	if err := json.Unmarshal(LWTPayload(), &msg); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if msg.Status != HealthOffline || msg.Bridge != BridgeName {
		t.Errorf("LWT = %+v", msg)
	}
	if got := HealthTopic(mqtt.NewTopics("")); got != "depthcore/bridge/structurecore/health" {
		t.Errorf("HealthTopic() = %q", got)
	}
}
