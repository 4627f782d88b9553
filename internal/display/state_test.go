package display

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform/simulated"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

const idHDR = `DISPLAY\SAM7301\5&aa&0&UID1`

func TestStateOf_BackendDetails(t *testing.T) {
	cfg := sampleConfig()
	cfg.Monitors = append(cfg.Monitors, simulated.MonitorConfig{
		Identity:     idHDR,
		Description:  "Samsung Odyssey",
		DisplayIndex: 2,
		HDR:          &simulated.HDRConfig{Enabled: true, WhiteLevel: 240, MaxWhiteLevel: 480},
	})
	p := simulated.New(cfg)
	reg := NewRegistry(reconcile.New(p, reconcile.Options{
		EnableHDR:   true,
		Timeout:     2 * time.Second,
		Calibration: calibration.NewStore(calibration.Options{}),
	}), Options{})
	t.Cleanup(func() { reg.Close() })
	mustScan(t, reg)

	paths, err := p.TopologyPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	wantTarget := paths[2].Target.String()

	states := map[monitor.Identity]MonitorState{}
	for _, st := range reg.States() {
		states[st.Identity] = st
	}

	tests := []struct {
		id        monitor.Identity
		backend   monitor.Backend
		levels    []int
		hdrTarget string
	}{
		{idDell, monitor.BackendDDC, nil, ""},
		{idPanel, monitor.BackendWMI, []int{0, 50, 100}, ""},
		{idHDR, monitor.BackendHDR, nil, wantTarget},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			st, ok := states[tt.id]
			if !ok {
				t.Fatalf("no state for %s", tt.id)
			}
			if st.Backend != tt.backend {
				t.Errorf("Backend = %s, want %s", st.Backend, tt.backend)
			}
			if len(st.BrightnessLevels) != len(tt.levels) {
				t.Fatalf("BrightnessLevels = %v, want %v", st.BrightnessLevels, tt.levels)
			}
			for i := range tt.levels {
				if st.BrightnessLevels[i] != tt.levels[i] {
					t.Errorf("BrightnessLevels = %v, want %v", st.BrightnessLevels, tt.levels)
				}
			}
			if st.HDRTarget != tt.hdrTarget {
				t.Errorf("HDRTarget = %q, want %q", st.HDRTarget, tt.hdrTarget)
			}
		})
	}
}
