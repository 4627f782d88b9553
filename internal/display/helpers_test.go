package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/platform/simulated"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

const (
	idDell  = `DISPLAY\DEL4109\5&1a2b3c&0&UID4352`
	idPanel = `DISPLAY\BOE0A1C\4&2f9d&0&UID265988`
)

func sampleConfig() simulated.Config {
	return simulated.Config{
		Power: simulated.PowerConfig{Brightness: 70},
		Monitors: []simulated.MonitorConfig{
			{
				Identity:     idDell,
				Description:  "Generic PnP Monitor",
				FriendlyName: "DELL U2720Q",
				Connection:   "DisplayPort",
				DisplayIndex: 0,
				Rect:         simulated.Rect{Right: 3840, Bottom: 2160},
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
	}
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *simulated.Platform) {
	t.Helper()
	p := simulated.New(sampleConfig())
	rec := reconcile.New(p, reconcile.Options{
		Timeout:     2 * time.Second,
		Calibration: calibration.NewStore(calibration.Options{}),
	})
	reg := NewRegistry(rec, opts)
	t.Cleanup(func() { reg.Close() })
	return reg, p
}

func mustScan(t *testing.T, reg *Registry) ScanResult {
	t.Helper()
	res, err := reg.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return res
}

// eventLog collects events from a registry listener.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventLog(reg *Registry) *eventLog {
	l := &eventLog{ch: make(chan Event, 64)}
	reg.AddListener(func(ev Event) {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
		select {
		case l.ch <- ev:
		default:
		}
	})
	return l
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) await(t *testing.T, typ EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-l.ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
			return Event{}
		}
	}
}

// fakeRecorder captures observations.
type fakeRecorder struct {
	mu   sync.Mutex
	obs  []Observation
	fail error
}

func (f *fakeRecorder) Record(_ context.Context, obs Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, obs)
	return f.fail
}

func (f *fakeRecorder) bySource(source string) []Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Observation
	for _, o := range f.obs {
		if o.Source == source {
			out = append(out, o)
		}
	}
	return out
}
