package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// Bridge operation constants.
const (
	// commandTimeout bounds one command including its recorder calls.
	commandTimeout = 10 * time.Second

	// eventBuffer is the number of registry events queued for publishing.
	eventBuffer = 64
)

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client implements it; tests use a fake.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Registry is the part of *display.Registry the bridge uses.
type Registry interface {
	Monitor(ref string) (monitor.Controller, bool)
	States() []display.MonitorState
	LastScan() (display.ScanResult, bool)
	SetBrightness(ctx context.Context, ref string, value int) (access.Result, error)
	SetContrast(ctx context.Context, ref string, value int) (access.Result, error)
	RefreshMonitor(ctx context.Context, ref string) (access.Result, error)
	AddListener(fn display.Listener) (remove func())
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Registry is the live monitor roster.
	Registry Registry

	// Topics builds topic names. The zero value uses the default prefix.
	Topics mqtt.Topics

	// QoS for state, ack and roster messages. Default 1.
	QoS byte

	// Version is reported in health messages.
	Version string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge publishes monitor state to MQTT and applies commands received
// from it. It handles:
//   - Retained state per monitor and a retained roster summary
//   - Brightness, contrast and refresh commands with acknowledgments
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	registry Registry
	topics   mqtt.Topics
	qos      byte
	health   *HealthReporter

	// Slugs with a retained state message, so removed monitors get cleared.
	publishedMu sync.Mutex
	published   map[string]bool

	events         chan display.Event
	removeListener func()

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", opts.QoS)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:      opts.MQTTClient,
		registry:  opts.Registry,
		topics:    opts.Topics,
		qos:       opts.QoS,
		published: make(map[string]bool),
		events:    make(chan display.Event, eventBuffer),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Service:   mqtt.ServiceName,
		Version:   opts.Version,
		Topic:     opts.Topics.Health(),
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Counts:    b.counts,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command topics, publishes the current roster and
// starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := b.topics.AllMonitorCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.removeListener = b.registry.AddListener(b.enqueue)
	b.wg.Add(1)
	go b.eventLoop()

	b.publishRoster()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started", "monitors", len(b.registry.States()))
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.removeListener != nil {
			b.removeListener()
		}
		close(b.done)

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		b.wg.Wait()

		// Publishes the final "stopping" status
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// counts feeds the health reporter.
func (b *Bridge) counts() (total, controllable int) {
	for _, st := range b.registry.States() {
		total++
		if st.Controllable {
			controllable++
		}
	}
	return total, controllable
}

// enqueue is the registry listener. It never blocks the registry.
func (b *Bridge) enqueue(ev display.Event) {
	select {
	case b.events <- ev:
	default:
		b.logWarn("event queue full, dropping event", "type", ev.Type, "identity", ev.Identity)
	}
}

func (b *Bridge) eventLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			b.handleEvent(ev)
		}
	}
}

// handleEvent publishes the consequences of a registry event.
func (b *Bridge) handleEvent(ev display.Event) {
	switch ev.Type {
	case display.EventRosterChanged:
		b.publishRoster()
		if err := b.health.PublishNow(); err != nil {
			b.logError("failed to publish health", err)
		}
	case display.EventBrightnessChanged, display.EventContrastChanged:
		b.publishMonitorState(string(ev.Identity))
	case display.EventControllabilityChanged:
		b.publishMonitorState(string(ev.Identity))
		if err := b.health.PublishNow(); err != nil {
			b.logError("failed to publish health", err)
		}
	}
}

// publishRoster publishes every monitor state, clears retained state of
// monitors no longer present and publishes the roster summary.
func (b *Bridge) publishRoster() {
	states := b.registry.States()

	current := make(map[string]bool, len(states))
	for _, st := range states {
		current[st.Slug] = true
		b.publishState(st)
	}

	b.publishedMu.Lock()
	var stale []string
	for slug := range b.published {
		if !current[slug] {
			stale = append(stale, slug)
			delete(b.published, slug)
		}
	}
	b.publishedMu.Unlock()

	for _, slug := range stale {
		// An empty retained payload deletes the retained message.
		if err := b.mqtt.Publish(b.topics.MonitorState(slug), nil, b.qos, true); err != nil {
			b.logError("failed to clear retained state", err)
		}
	}

	var rosterID string
	if scan, ok := b.registry.LastScan(); ok {
		rosterID = scan.ID
	}
	b.publishJSON(b.topics.Roster(), NewRosterMessage(rosterID, states), true)
}

func (b *Bridge) publishMonitorState(ref string) {
	c, ok := b.registry.Monitor(ref)
	if !ok {
		return
	}
	b.publishState(display.StateOf(c))
}

func (b *Bridge) publishState(st display.MonitorState) {
	if b.publishJSON(b.topics.MonitorState(st.Slug), NewStateMessage(st), true) {
		b.publishedMu.Lock()
		b.published[st.Slug] = true
		b.publishedMu.Unlock()
	}
}

// publishJSON marshals v and publishes it, logging failures.
func (b *Bridge) publishJSON(topic string, v any, retained bool) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return false
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.logError("failed to publish "+topic, err)
		return false
	}
	return true
}

// handleMQTTMessage routes incoming command messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	slug, ok := b.topics.MonitorSlugFromTopic("command", topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	b.handleCommand(slug, payload)
	return nil
}

// handleCommand processes a command message for one monitor.
func (b *Bridge) handleCommand(slug string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAckError(cmd, slug, ErrCodeInvalidPayload, fmt.Sprintf("parsing command: %v", err))
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"monitor", slug,
		"command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var (
		res access.Result
		err error
	)
	switch cmd.Command {
	case CommandSetBrightness, CommandSetContrast:
		if cmd.Value == nil || *cmd.Value < 0 || *cmd.Value > 100 {
			b.publishAckError(cmd, slug, ErrCodeInvalidParameters, "value must be an integer 0-100")
			return
		}
		if cmd.Command == CommandSetBrightness {
			res, err = b.registry.SetBrightness(ctx, slug, *cmd.Value)
		} else {
			res, err = b.registry.SetContrast(ctx, slug, *cmd.Value)
		}
	case CommandRefresh:
		res, err = b.registry.RefreshMonitor(ctx, slug)
	default:
		b.publishAckError(cmd, slug, ErrCodeInvalidCommand, fmt.Sprintf("unknown command %q", cmd.Command))
		return
	}

	if errors.Is(err, display.ErrMonitorNotFound) {
		b.publishAckError(cmd, slug, ErrCodeNotFound, err.Error())
		return
	}
	if err != nil {
		b.publishAckError(cmd, slug, ErrCodeInvalidCommand, err.Error())
		return
	}

	var id monitor.Identity
	if c, ok := b.registry.Monitor(slug); ok {
		id = c.Identity()
		// Refresh of an unchanged value emits no event; publish anyway.
		b.publishState(display.StateOf(c))
	}
	b.publishAck(NewAckMessage(cmd, slug, id, res))
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(ack AckMessage) {
	b.publishJSON(b.topics.MonitorAck(ack.Slug), ack, false)
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, slug, code, message string) {
	b.publishAck(NewAckError(cmd, slug, code, message))
	b.logWarn("command rejected", "monitor", slug, "code", code, "message", message)
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
