package diagnostics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform/simulated"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

const (
	idDell    = `DISPLAY\DEL4109\5&1a2b3c&0&UID4352`
	idPanel   = `DISPLAY\BOE0A1C\4&2f9d&0&UID265988`
	idGeneric = `DISPLAY\ACR0001\5&bb&0&UID2`
)

func newPlatform() *simulated.Platform {
	return simulated.New(simulated.Config{
		Power: simulated.PowerConfig{Brightness: 70},
		Monitors: []simulated.MonitorConfig{
			{
				Identity:     idDell,
				Description:  "DELL U2720Q",
				DisplayIndex: 0,
				DDC: &simulated.DDCConfig{
					Capabilities: "(vcp(10 12 14(05 08)))",
					VCP:          map[string][2]uint32{"10": {50, 100}, "12": {75, 100}, "14": {5, 8}},
				},
			},
			{
				Identity:     idPanel,
				Description:  "Built-in Display",
				Internal:     true,
				DisplayIndex: 1,
				WMI:          &simulated.WMIConfig{Levels: []byte{0, 50, 100}, Brightness: 50},
			},
			{
				Identity:     idGeneric,
				Description:  "Generic PnP Monitor",
				DisplayIndex: 2,
			},
		},
	})
}

func newReconciler(p *simulated.Platform) *reconcile.Reconciler {
	return reconcile.New(p, reconcile.Options{
		Timeout:     2 * time.Second,
		Calibration: calibration.NewStore(calibration.Options{}),
	})
}

func byIdentity(r Report) map[string]MonitorReport {
	out := make(map[string]MonitorReport)
	for _, m := range r.Monitors {
		out[string(m.Descriptor.Identity)] = m
	}
	return out
}

func TestRun(t *testing.T) {
	p := newPlatform()

	report, err := Run(context.Background(), newReconciler(p), Options{Version: "test"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ID == "" || report.RosterID == "" {
		t.Errorf("report IDs not set: %q, %q", report.ID, report.RosterID)
	}
	if report.Version != "test" {
		t.Errorf("Version = %q", report.Version)
	}
	if len(report.Sources) == 0 {
		t.Error("Sources is empty")
	}
	if len(report.Monitors) != 3 {
		t.Fatalf("Monitors = %d, want 3", len(report.Monitors))
	}
	if p.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d after Run, want 0", p.OpenHandles())
	}

	mons := byIdentity(report)

	dell := mons[idDell]
	if dell.Backend != monitor.BackendDDC {
		t.Errorf("dell backend = %s", dell.Backend)
	}
	if dell.Capability == nil || !dell.Capability.Contrast {
		t.Errorf("dell capability = %+v, want contrast", dell.Capability)
	}
	if !dell.Brightness.Consistent() || dell.Brightness.Value != 50 {
		t.Errorf("dell brightness round trip = %+v", dell.Brightness)
	}
	if dell.Contrast == nil || !dell.Contrast.Consistent() || dell.Contrast.Value != 75 {
		t.Errorf("dell contrast round trip = %+v", dell.Contrast)
	}
	if len(dell.ColorTemperatures) != 2 {
		t.Errorf("dell color temperatures = %v, want [5 8]", dell.ColorTemperatures)
	}

	panel := mons[idPanel]
	if panel.Backend != monitor.BackendWMI || panel.Contrast != nil {
		t.Errorf("panel = backend %s, contrast %+v", panel.Backend, panel.Contrast)
	}
	if !panel.Brightness.Consistent() {
		t.Errorf("panel brightness round trip = %+v", panel.Brightness)
	}
	if len(panel.BrightnessLevels) != 3 || panel.BrightnessLevels[2] != 100 {
		t.Errorf("panel brightness levels = %v, want [0 50 100]", panel.BrightnessLevels)
	}
	if dell.BrightnessLevels != nil || dell.HDRTarget != "" {
		t.Errorf("dell levels %v, hdr target %q, want none", dell.BrightnessLevels, dell.HDRTarget)
	}

	generic := mons[idGeneric]
	if generic.Backend != monitor.BackendUnreachable || generic.Controllable {
		t.Errorf("generic = backend %s, controllable %v", generic.Backend, generic.Controllable)
	}
	if generic.Brightness.Read.Result.Succeeded() || !generic.Brightness.Write.Skipped {
		t.Errorf("generic round trip = %+v, want failed read and skipped write", generic.Brightness)
	}

	if report.Healthy() {
		t.Error("Healthy() = true with an unreachable monitor")
	}
}

func TestRun_TransmissionFailure(t *testing.T) {
	p := newPlatform()
	rec := newReconciler(p)

	roster, err := rec.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer roster.Close()

	// Drop the DDC monitor after binding so its reads fail.
	p.RemoveMonitor(idDell)
	report := Probe(context.Background(), FromRoster(roster), Options{Concurrency: 1})

	dell := byIdentity(report)[idDell]
	if dell.Brightness.Read.Result.Status != access.NoLongerExists {
		t.Errorf("read status = %s, want no_longer_exists", dell.Brightness.Read.Result.Status)
	}
	if !dell.Brightness.ReadBack.Skipped {
		t.Error("read-back should be skipped after a failed read")
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	p := newPlatform()
	roster, err := newReconciler(p).Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer roster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := Probe(ctx, FromRoster(roster), Options{})
	for _, m := range report.Monitors {
		if !m.Brightness.Read.Skipped {
			t.Errorf("%s: read ran despite cancelled context", m.Descriptor.Identity)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	p := newPlatform()
	report, err := Run(context.Background(), newReconciler(p), Options{})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded struct {
		ID       string `json:"id"`
		Monitors []struct {
			Backend    string `json:"backend"`
			Brightness struct {
				Read struct {
					Result struct {
						Status string `json:"status"`
					} `json:"result"`
				} `json:"read"`
			} `json:"brightness"`
		} `json:"monitors"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.ID != report.ID || len(decoded.Monitors) != 3 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Monitors[0].Brightness.Read.Result.Status != "succeeded" {
		t.Errorf("status = %q, want wire name succeeded", decoded.Monitors[0].Brightness.Read.Result.Status)
	}
}

func TestRoundTrip_Consistent(t *testing.T) {
	ok := Step{Result: access.OK}
	tests := []struct {
		name string
		rt   RoundTrip
		want bool
	}{
		{"all ok", RoundTrip{Read: ok, Write: ok, ReadBack: ok, Value: 40, ReadBackValue: 40}, true},
		{"drifted", RoundTrip{Read: ok, Write: ok, ReadBack: ok, Value: 40, ReadBackValue: 41}, false},
		{"write failed", RoundTrip{Read: ok, Write: skipped, ReadBack: ok, Value: 40, ReadBackValue: 40}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rt.Consistent(); got != tt.want {
				t.Errorf("Consistent() = %v, want %v", got, tt.want)
			}
		})
	}
}
