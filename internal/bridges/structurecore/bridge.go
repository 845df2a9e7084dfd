package structurecore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/depthcore/internal/infrastructure/mqtt"
	"github.com/nerrad567/depthcore/internal/structure"
)

const (
	// DefaultQueueSize is the number of notifications buffered for publishing.
	DefaultQueueSize = 256

	// maxStartTimeout caps how long a remote start may wait for readiness.
	maxStartTimeout = 30 * time.Second

	commandQoS = 1
)

// Logger defines the logging interface used by the bridge.
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

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Controller is the control surface of one sensor. *structure.Device
// satisfies it.
type Controller interface {
	Start(timeout time.Duration) bool
	Stop()
	Reboot() bool
	SetExposureGain(exposure, gain float32) bool
	SetVisibleExposureGain(exposure, gain float32) bool
}

// DeviceLookup finds the Controller attached to a serial.
type DeviceLookup func(serial string) (Controller, bool)

// FromManager adapts a Manager to a DeviceLookup.
func FromManager(m *structure.Manager) DeviceLookup {
	return func(serial string) (Controller, bool) {
		d, ok := m.DeviceBySerial(serial)
		if !ok {
			return nil, false
		}
		return d, true
	}
}

// Options holds the dependencies for creating a bridge.
type Options struct {
	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// Topics builds topic names. A zero value uses the default prefix.
	Topics mqtt.Topics

	// Devices resolves command targets. Required.
	Devices DeviceLookup

	// Sensors returns the number of attached sensors for health messages.
	Sensors func() int

	// Version is reported in health messages.
	Version string

	// HealthInterval between heartbeats. Default: 30 seconds.
	HealthInterval time.Duration

	// QueueSize bounds the publish queue. Default: DefaultQueueSize.
	QueueSize int

	// Logger is optional.
	Logger Logger
}

// Bridge mirrors routed sensor events onto MQTT and executes remote
// commands against attached Devices.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt    MQTTClient
	topics  mqtt.Topics
	devices DeviceLookup
	health  *HealthReporter
	logger  Logger

	queue chan StateMessage

	faultsMu sync.Mutex
	faults   map[string]bool

	eventsPublished  atomic.Uint64
	eventsDropped    atomic.Uint64
	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	publishErrors    atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	worker   sync.WaitGroup
	commands sync.WaitGroup
	closed   atomic.Bool
}

// NewBridge creates a bridge. Call Start to subscribe and begin publishing.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device lookup is required")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	b := &Bridge{
		mqtt:    opts.MQTT,
		topics:  opts.Topics,
		devices: opts.Devices,
		logger:  logger,
		queue:   make(chan StateMessage, opts.QueueSize),
		faults:  make(map[string]bool),
		done:    make(chan struct{}),
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:     HealthTopic(opts.Topics),
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Sensors:   opts.Sensors,
		Faults:    b.faultCount,
		Stats:     b.Stats,
	})
	b.health.SetLogger(logger)
	return b, nil
}

// HealthTopic returns the bridge health topic for topics.
func HealthTopic(topics mqtt.Topics) string {
	return topics.BridgeHealth(BridgeName)
}

// LWTPayload returns the encoded offline message for the MQTT will.
func LWTPayload() []byte {
	payload, _ := json.Marshal(NewLWTMessage()) //nolint:errchkjson // plain struct
	return payload
}

// Start subscribes to commands and starts the publisher and heartbeat.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(topic, commandQoS, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.worker.Add(1)
	go b.publishLoop()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Warn("failed to publish health", "error", err)
	}

	b.logger.Info("structure core bridge started")
	return nil
}

// Stop publishes what is already queued, waits for running commands and
// publishes a final stopping status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)
		b.worker.Wait()
		b.commands.Wait()
		b.health.Stop()
		b.logger.Info("structure core bridge stopped")
	})
}

// HandleReconnect republishes health after the MQTT client reconnects.
// Pass it to mqtt.Client.SetOnConnect.
func (b *Bridge) HandleReconnect() {
	if b.closed.Load() {
		return
	}
	if err := b.health.PublishNow(); err != nil {
		b.logger.Warn("failed to publish health after reconnect", "error", err)
	}
}

// HandleNotification queues a routed event for publishing. It never blocks
// and is intended to be passed to structure.Router.Subscribe.
func (b *Bridge) HandleNotification(n structure.Notification) {
	if b.closed.Load() {
		return
	}
	select {
	case b.queue <- stateFromNotification(n):
	default:
		if b.eventsDropped.Add(1) == 1 {
			b.logger.Warn("MQTT publish queue full, event dropped", "serial", n.Serial, "event", n.Event)
		}
	}
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() BridgeStatistics {
	return BridgeStatistics{
		EventsPublished:  b.eventsPublished.Load(),
		EventsDropped:    b.eventsDropped.Load(),
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		PublishErrors:    b.publishErrors.Load(),
	}
}

func (b *Bridge) publishLoop() {
	defer b.worker.Done()
	for {
		select {
		case s := <-b.queue:
			b.publishState(s)
		case <-b.done:
			for {
				select {
				case s := <-b.queue:
					b.publishState(s)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) publishState(s StateMessage) {
	b.trackFault(s)

	if err := b.publishJSON(b.topics.SensorState(s.Serial), s, true); err != nil {
		b.logger.Warn("failed to publish sensor state", "serial", s.Serial, "error", err)
		return
	}
	if err := b.publishJSON(b.topics.SensorEvent(s.Serial), eventFromState(s), false); err != nil {
		b.logger.Warn("failed to publish sensor event", "serial", s.Serial, "error", err)
		return
	}
	b.eventsPublished.Add(1)
}

// trackFault records sensors that reported an error or terminal event
// until they next report ready or streaming.
func (b *Bridge) trackFault(s StateMessage) {
	faulted := s.Terminal || s.State == structure.StateError.String()
	healthy := s.State == structure.StateReady.String() || s.State == structure.StateStreaming.String()

	b.faultsMu.Lock()
	before := len(b.faults)
	switch {
	case faulted:
		b.faults[s.Serial] = true
	case healthy:
		delete(b.faults, s.Serial)
	}
	changed := len(b.faults) != before
	b.faultsMu.Unlock()

	if changed {
		if err := b.health.PublishNow(); err != nil {
			b.logger.Warn("failed to publish health", "error", err)
		}
	}
}

func (b *Bridge) faultCount() int {
	b.faultsMu.Lock()
	defer b.faultsMu.Unlock()
	return len(b.faults)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := b.mqtt.Publish(topic, payload, commandQoS, retained); err != nil {
		b.publishErrors.Add(1)
		return err
	}
	return nil
}

// handleCommandMessage parses a command and runs it on its own goroutine.
// Failures are reported on the ack topic, never returned to the client.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	serial, ok := b.serialFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidPayload, topic)
	}
	b.commandsReceived.Add(1)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.ID = uuid.NewString()
		b.ack(serial, cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	if b.closed.Load() {
		return nil
	}
	b.logger.Info("received command", "serial", serial, "command", cmd.Command, "command_id", cmd.ID)

	b.commands.Add(1)
	go func() {
		defer b.commands.Done()
		b.ack(serial, cmd, b.execute(serial, cmd))
	}()
	return nil
}

func (b *Bridge) serialFromTopic(topic string) (string, bool) {
	prefix := strings.TrimSuffix(b.topics.AllCommands(), "+")
	serial, found := strings.CutPrefix(topic, prefix)
	if !found || serial == "" || strings.Contains(serial, "/") {
		return "", false
	}
	return serial, true
}

// execute runs cmd against the Device attached to serial.
func (b *Bridge) execute(serial string, cmd CommandMessage) error {
	dev, ok := b.devices(serial)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotAttached, serial)
	}

	switch cmd.Command {
	case CommandStart:
		timeout := min(time.Duration(cmd.TimeoutMS)*time.Millisecond, maxStartTimeout)
		if !dev.Start(timeout) {
			return fmt.Errorf("%w: start", ErrCommandRejected)
		}
	case CommandStop:
		dev.Stop()
	case CommandReboot:
		if !dev.Reboot() {
			return fmt.Errorf("%w: reboot", ErrCommandRejected)
		}
	case CommandSetExposure:
		if cmd.Exposure == nil || cmd.Gain == nil {
			return fmt.Errorf("%w: exposure and gain are required", ErrInvalidPayload)
		}
		set := dev.SetExposureGain
		if cmd.Visible {
			set = dev.SetVisibleExposureGain
		}
		if !set(*cmd.Exposure, *cmd.Gain) {
			return fmt.Errorf("%w: set_exposure", ErrCommandRejected)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	return nil
}

func (b *Bridge) ack(serial string, cmd CommandMessage, err error) {
	msg := AckMessage{
		ID:        cmd.ID,
		Serial:    serial,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		b.commandsFailed.Add(1)
		msg.Status = AckFailed
		msg.Error = err.Error()

		level := b.logger.Warn
		if errors.Is(err, ErrCommandRejected) {
			level = b.logger.Error
		}
		level("command failed", "serial", serial, "command", cmd.Command, "command_id", cmd.ID, "error", err)
	}

	if pubErr := b.publishJSON(b.topics.SensorAck(serial), msg, false); pubErr != nil {
		b.logger.Warn("failed to publish ack", "serial", serial, "command_id", cmd.ID, "error", pubErr)
	}
}
