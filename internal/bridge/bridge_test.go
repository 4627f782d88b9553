package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform/simulated"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

const (
	idDell  = `DISPLAY\DEL4109\5&1a2b3c&0&UID4352`
	idPanel = `DISPLAY\BOE0A1C\4&2f9d&0&UID265988`
)

var slugDell = monitor.Identity(idDell).Slug()

// published is one captured Publish call.
type published struct {
	topic    string
	payload  []byte
	retained bool
}

// mockMQTT implements MQTTClient for testing.
type mockMQTT struct {
	mu        sync.Mutex
	messages  []published
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler), connected: true}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic, append([]byte(nil), payload...), retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver simulates a broker message on a topic matching a subscription.
func (m *mockMQTT) deliver(t *testing.T, pattern, topic string, payload string) {
	t.Helper()
	m.mu.Lock()
	h := m.handlers[pattern]
	m.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler subscribed for %s", pattern)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func (m *mockMQTT) on(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.messages {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockMQTT) last(t *testing.T, topic string) published {
	t.Helper()
	msgs := m.on(topic)
	if len(msgs) == 0 {
		t.Fatalf("nothing published on %s", topic)
	}
	return msgs[len(msgs)-1]
}

// waitFor polls until cond holds or the timeout passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type fixture struct {
	bridge   *Bridge
	mqtt     *mockMQTT
	registry *display.Registry
	platform *simulated.Platform
	topics   mqtt.Topics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := simulated.New(simulated.Config{
		Power: simulated.PowerConfig{Brightness: 70},
		Monitors: []simulated.MonitorConfig{
			{
				Identity:     idDell,
				Description:  "DELL U2720Q",
				DisplayIndex: 0,
				DDC: &simulated.DDCConfig{
					Capabilities: "(vcp(10 12))",
					VCP:          map[string][2]uint32{"10": {50, 100}, "12": {75, 100}},
				},
			},
			{
				Identity:     idPanel,
				Description:  "Built-in Display",
				Internal:     true,
				DisplayIndex: 1,
				WMI:          &simulated.WMIConfig{Levels: []byte{0, 50, 100}, Brightness: 50},
			},
		},
	})
	rec := reconcile.New(p, reconcile.Options{
		Timeout:     2 * time.Second,
		Calibration: calibration.NewStore(calibration.Options{}),
	})
	reg := display.NewRegistry(rec, display.Options{})
	t.Cleanup(func() { reg.Close() })
	if _, err := reg.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	client := newMockMQTT()
	topics := mqtt.NewTopics("test")
	b, err := NewBridge(BridgeOptions{
		MQTTClient: client,
		Registry:   reg,
		Topics:     topics,
		Version:    "1.2.3",
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	return &fixture{bridge: b, mqtt: client, registry: reg, platform: p, topics: topics}
}

func (f *fixture) command(t *testing.T, slug, payload string) AckMessage {
	t.Helper()
	before := len(f.mqtt.on(f.topics.MonitorAck(slug)))
	f.mqtt.deliver(t, f.topics.AllMonitorCommands(), f.topics.MonitorCommand(slug), payload)

	acks := f.mqtt.on(f.topics.MonitorAck(slug))
	if len(acks) != before+1 {
		t.Fatalf("acks on %s = %d, want %d", slug, len(acks), before+1)
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[len(acks)-1].payload, &ack); err != nil {
		t.Fatalf("ack is not JSON: %v", err)
	}
	return ack
}

func TestNewBridge_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"no mqtt", BridgeOptions{Registry: display.NewRegistry(nil, display.Options{})}},
		{"no registry", BridgeOptions{MQTTClient: newMockMQTT()}},
		{"bad qos", BridgeOptions{MQTTClient: newMockMQTT(), Registry: display.NewRegistry(nil, display.Options{}), QoS: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() expected error")
			}
		})
	}
}

func TestStart_PublishesRetainedState(t *testing.T) {
	f := newFixture(t)

	state := f.mqtt.last(t, f.topics.MonitorState(slugDell))
	if !state.retained {
		t.Error("state message not retained")
	}
	var msg StateMessage
	if err := json.Unmarshal(state.payload, &msg); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	if msg.Brightness != 50 || msg.Backend != monitor.BackendDDC || !msg.ContrastSupported {
		t.Errorf("state = %+v", msg.MonitorState)
	}

	roster := f.mqtt.last(t, f.topics.Roster())
	var rm RosterMessage
	if err := json.Unmarshal(roster.payload, &rm); err != nil {
		t.Fatal(err)
	}
	if len(rm.Monitors) != 2 || rm.RosterID == "" {
		t.Errorf("roster = %+v", rm)
	}

	health := f.mqtt.on(f.topics.Health())
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want starting and current", len(health))
	}
	var first, latest HealthMessage
	json.Unmarshal(health[0].payload, &first)
	json.Unmarshal(health[len(health)-1].payload, &latest)
	if first.Status != HealthStarting {
		t.Errorf("first health status = %s, want starting", first.Status)
	}
	if latest.Status != HealthHealthy || latest.Monitors != 2 || latest.Version != "1.2.3" {
		t.Errorf("health = %+v", latest)
	}
}

func TestCommand_SetBrightness(t *testing.T) {
	f := newFixture(t)

	ack := f.command(t, slugDell, `{"id":"cmd-1","command":"set_brightness","value":80}`)
	if ack.CommandID != "cmd-1" || ack.Status != AckAccepted {
		t.Errorf("ack = %+v", ack)
	}
	if ack.Result == nil || ack.Result.Status != access.Succeeded || !ack.Monitor.Equal(idDell) {
		t.Errorf("ack result = %+v, monitor %s", ack.Result, ack.Monitor)
	}

	c, _ := f.registry.Monitor(idDell)
	if c.Brightness() != 80 {
		t.Errorf("Brightness() = %d, want 80", c.Brightness())
	}

	waitFor(t, "state update", func() bool {
		var msg StateMessage
		json.Unmarshal(f.mqtt.last(t, f.topics.MonitorState(slugDell)).payload, &msg)
		return msg.Brightness == 80
	})
}

func TestCommand_Rejected(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		slug    string
		payload string
		code    string
	}{
		{"bad json", slugDell, `{`, ErrCodeInvalidPayload},
		{"unknown command", slugDell, `{"command":"explode"}`, ErrCodeInvalidCommand},
		{"missing value", slugDell, `{"command":"set_brightness"}`, ErrCodeInvalidParameters},
		{"out of range", slugDell, `{"command":"set_contrast","value":101}`, ErrCodeInvalidParameters},
		{"unknown monitor", "nope", `{"command":"refresh"}`, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := f.command(t, tt.slug, tt.payload)
			if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != tt.code {
				t.Errorf("ack = %+v, want failed with %s", ack, tt.code)
			}
		})
	}
}

func TestCommand_GeneratesID(t *testing.T) {
	f := newFixture(t)
	ack := f.command(t, slugDell, `{"command":"refresh"}`)
	if ack.CommandID == "" {
		t.Error("CommandID empty; bridge should generate one")
	}
	if ack.Status != AckAccepted {
		t.Errorf("refresh ack = %+v", ack)
	}
}

func TestCommand_UnsupportedReportsAccessStatus(t *testing.T) {
	f := newFixture(t)
	panel := monitor.Identity(idPanel).Slug()

	ack := f.command(t, panel, `{"command":"set_contrast","value":50}`)
	if ack.Status != AckFailed {
		t.Errorf("Status = %s, want failed", ack.Status)
	}
	if ack.Result == nil || ack.Result.Status != access.NotSupported {
		t.Errorf("Result = %+v, want not_supported", ack.Result)
	}
	if ack.Error != nil {
		t.Errorf("Error = %+v, want nil for a command that reached the monitor", ack.Error)
	}
}

func TestRosterChange_ClearsRemovedMonitor(t *testing.T) {
	f := newFixture(t)

	f.platform.RemoveMonitor(idDell)
	if _, err := f.registry.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "retained state cleared", func() bool {
		msgs := f.mqtt.on(f.topics.MonitorState(slugDell))
		last := msgs[len(msgs)-1]
		return last.retained && len(last.payload) == 0
	})

	waitFor(t, "roster update", func() bool {
		var rm RosterMessage
		json.Unmarshal(f.mqtt.last(t, f.topics.Roster()).payload, &rm)
		return len(rm.Monitors) == 1
	})
}

func TestHandleMQTTMessage_UnexpectedTopic(t *testing.T) {
	f := newFixture(t)
	if err := f.bridge.handleMQTTMessage("test/state/monitor/x", []byte(`{}`)); err == nil {
		t.Error("handleMQTTMessage() expected error for non-command topic")
	}
}

func TestStop_PublishesStopping(t *testing.T) {
	f := newFixture(t)
	f.bridge.Stop()
	f.bridge.Stop() // idempotent

	var msg HealthMessage
	json.Unmarshal(f.mqtt.last(t, f.topics.Health()).payload, &msg)
	if msg.Status != HealthStopping {
		t.Errorf("final health status = %s, want stopping", msg.Status)
	}
}

func TestHealth_DetermineStatus(t *testing.T) {
	client := newMockMQTT()
	tests := []struct {
		name         string
		connected    bool
		total, ok    int
		want         HealthStatus
		reasonSubstr string
	}{
		{"healthy", true, 2, 2, HealthHealthy, ""},
		{"disconnected", false, 2, 2, HealthDegraded, "MQTT"},
		{"empty roster", true, 0, 0, HealthDegraded, "no monitors"},
		{"partly controllable", true, 3, 1, HealthDegraded, "2 of 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.mu.Lock()
			client.connected = tt.connected
			client.mu.Unlock()

			h := NewHealthReporter(HealthReporterConfig{
				Publisher: client,
				Counts:    func() (int, int) { return tt.total, tt.ok },
			})
			status, reason := h.determineStatus()
			if status != tt.want || !strings.Contains(reason, tt.reasonSubstr) {
				t.Errorf("determineStatus() = %s, %q; want %s containing %q", status, reason, tt.want, tt.reasonSubstr)
			}
		})
	}
}

func TestHealthReporter_Periodic(t *testing.T) {
	client := newMockMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		Service:   "displayd",
		Topic:     "t/health",
		Interval:  10 * time.Millisecond,
		Publisher: client,
		Counts:    func() (int, int) { return 1, 1 },
	})
	h.Start(context.Background())
	waitFor(t, "periodic health", func() bool { return len(client.on("t/health")) >= 2 })
	h.Stop()

	msgs := client.on("t/health")
	var last HealthMessage
	json.Unmarshal(msgs[len(msgs)-1].payload, &last)
	if last.Status != HealthStopping || last.Service != "displayd" {
		t.Errorf("last health = %+v", last)
	}
}
