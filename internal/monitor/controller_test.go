package monitor

import (
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

const testIdentity = Identity(`DISPLAY\DEL4109\5&1a2b3c&0&UID4352`)

func testDescriptor(internal bool) Descriptor {
	return Descriptor{
		Identity:     testIdentity,
		Description:  "DELL U2720Q",
		DisplayIndex: 0,
		MonitorIndex: 0,
		Rect:         platform.Rect{Right: 3840, Bottom: 2160},
		Internal:     internal,
		Reachable:    true,
	}
}

// fakePhysical is a minimal ddc.PhysicalMonitor backed by a VCP map.
type fakePhysical struct {
	mu       sync.Mutex
	vcp      map[byte][2]uint32
	failures []error
	ignore   bool
	closed   int
}

func (f *fakePhysical) Description() string { return "DELL U2720Q" }

func (f *fakePhysical) HighLevelCapabilities() (ddc.HighLevel, error) {
	return ddc.HighLevel{}, errors.New("unsupported")
}

func (f *fakePhysical) CapabilitiesString() (string, error) { return "(vcp(10 12))", nil }

func (f *fakePhysical) GetBrightness() (ddc.RawRange, error) {
	return ddc.RawRange{}, errors.New("unsupported")
}

func (f *fakePhysical) SetBrightness(uint32) error { return errors.New("unsupported") }

func (f *fakePhysical) GetVCPFeature(code byte) (uint32, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return 0, 0, err
	}
	v := f.vcp[code]
	return v[0], v[1], nil
}

func (f *fakePhysical) SetVCPFeature(code byte, value uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	if f.ignore {
		return nil
	}
	v := f.vcp[code]
	v[0] = value
	f.vcp[code] = v
	return nil
}

func (f *fakePhysical) Close() error {
	f.closed++
	return nil
}

func TestDDCController(t *testing.T) {
	fp := &fakePhysical{vcp: map[byte][2]uint32{
		ddc.VCPLuminance: {60, 100},
		ddc.VCPContrast:  {50, 100},
	}}
	capability := ddc.Capability{LowLevelBrightness: true, Contrast: true}
	c := NewDDC(testDescriptor(false), ddc.NewHandle(fp), capability, nil, Options{})

	if c.Backend() != BackendDDC {
		t.Errorf("Backend() = %v", c.Backend())
	}
	if c.Brightness() != -1 {
		t.Errorf("Brightness() before update = %d, want -1", c.Brightness())
	}

	if res := c.UpdateBrightness(-1); !res.Succeeded() || c.Brightness() != 60 {
		t.Fatalf("UpdateBrightness() = %v, brightness %d", res, c.Brightness())
	}
	if res := c.SetBrightness(35); !res.Succeeded() || c.Brightness() != 35 {
		t.Fatalf("SetBrightness() = %v, brightness %d", res, c.Brightness())
	}
	if res := c.SetBrightness(101); res.Status != access.Failed {
		t.Errorf("SetBrightness(101) = %v", res)
	}

	if !c.IsContrastSupported() {
		t.Error("IsContrastSupported() = false")
	}
	if res := c.UpdateContrast(); !res.Succeeded() || c.Contrast() != 50 {
		t.Errorf("UpdateContrast() = %v, contrast %d", res, c.Contrast())
	}
	if res := c.SetColorTemperature(0x05); res.Status != access.NotSupported {
		t.Errorf("SetColorTemperature() = %v, want NotSupported", res)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if fp.closed != 1 {
		t.Errorf("handle closed %d times, want 1", fp.closed)
	}
	if res := c.UpdateBrightness(-1); res.Status != access.Failed {
		t.Errorf("UpdateBrightness() after Close = %v, want Failed", res)
	}
}

func TestDDCController_SetIgnoredByDevice(t *testing.T) {
	fp := &fakePhysical{vcp: map[byte][2]uint32{ddc.VCPLuminance: {60, 100}}, ignore: true}
	c := NewDDC(testDescriptor(false), ddc.NewHandle(fp), ddc.Capability{LowLevelBrightness: true}, nil, Options{})

	if res := c.SetBrightness(20); !res.Succeeded() {
		t.Fatalf("SetBrightness() = %v", res)
	}
	if c.Brightness() != 60 {
		t.Errorf("Brightness() = %d, want re-read value 60", c.Brightness())
	}
}

func TestDDCController_RescanSignal(t *testing.T) {
	gone := &ddc.Error{Op: "test", Code: ddc.CodeMonitorNoLongerExists}
	fp := &fakePhysical{vcp: map[byte][2]uint32{}, failures: []error{gone, gone, gone}}

	var signalled []access.Status
	opts := Options{OnRescan: func(id Identity, res access.Result) {
		if id != testIdentity {
			t.Errorf("OnRescan identity = %q", id)
		}
		signalled = append(signalled, res.Status)
	}}
	c := NewDDC(testDescriptor(false), ddc.NewHandle(fp), ddc.Capability{LowLevelBrightness: true}, nil, opts)

	for i := 0; i < 3; i++ {
		c.UpdateBrightness(-1)
	}
	if len(signalled) != 3 || signalled[0] != access.NoLongerExists {
		t.Errorf("signalled = %v", signalled)
	}
	if ok, msg := c.Controllable(); ok || msg == "" {
		t.Errorf("Controllable() = %v, %q after 3 failures", ok, msg)
	}
}

func TestDDCController_TransientRecovers(t *testing.T) {
	transient := &ddc.Error{Op: "test", Code: ddc.CodeI2CErrorTransmitting}
	fp := &fakePhysical{vcp: map[byte][2]uint32{ddc.VCPLuminance: {70, 100}}, failures: []error{transient}}

	rescans := 0
	c := NewDDC(testDescriptor(false), ddc.NewHandle(fp), ddc.Capability{LowLevelBrightness: true}, nil,
		Options{OnRescan: func(Identity, access.Result) { rescans++ }})

	if res := c.UpdateBrightness(-1); !res.Succeeded() || c.Brightness() != 70 {
		t.Fatalf("UpdateBrightness() = %v, %d", res, c.Brightness())
	}
	if rescans != 0 {
		t.Errorf("rescans = %d, want 0 after a recovered retry", rescans)
	}
}

// fakeWMI implements platform.PowerBrightness and platform.WMIBrightness.
type fakeWMI struct {
	power       int
	adaptive    bool
	wmiValue    int
	wmiErr      error
	setLevel    int
	setPower    int
	setInstance string
}

func (f *fakeWMI) PowerBrightness() (int, error) { return f.power, nil }
func (f *fakeWMI) SetPowerBrightness(v int) error { f.setPower = v; f.power = v; return nil }
func (f *fakeWMI) AdaptiveBrightnessEnabled() (bool, error) { return f.adaptive, nil }

func (f *fakeWMI) WMIBrightness(string) (int, error) {
	return f.wmiValue, f.wmiErr
}

func (f *fakeWMI) SetWMIBrightness(instance string, level byte) error {
	f.setInstance = instance
	f.setLevel = int(level)
	return nil
}

func TestWMIController_External(t *testing.T) {
	f := &fakeWMI{wmiValue: 40}
	levels := []byte{0, 25, 50, 75, 100}
	c := NewWMI(testDescriptor(false), `DISPLAY\DEL4109\5&1a2b3c&0&UID4352_0`, levels, f, f, Environment{}, Options{})

	if res := c.UpdateBrightness(-1); !res.Succeeded() || c.Brightness() != 40 {
		t.Fatalf("UpdateBrightness() = %v, %d", res, c.Brightness())
	}
	if res := c.UpdateBrightness(55); !res.Succeeded() || c.Brightness() != 55 {
		t.Fatalf("UpdateBrightness(55) = %v, %d", res, c.Brightness())
	}

	if res := c.SetBrightness(60); !res.Succeeded() {
		t.Fatalf("SetBrightness() = %v", res)
	}
	if f.setLevel != 50 || c.Brightness() != 50 {
		t.Errorf("snapped level = %d, cached %d; want 50", f.setLevel, c.Brightness())
	}
	if f.setInstance != `DISPLAY\DEL4109\5&1a2b3c&0&UID4352_0` {
		t.Errorf("instance = %q", f.setInstance)
	}

	f.wmiErr = errors.New("wmi gone")
	if res := c.UpdateBrightness(-1); res.Status != access.Failed {
		t.Errorf("UpdateBrightness() with wmi error = %v", res)
	}
}

func TestWMIController_Internal(t *testing.T) {
	tests := []struct {
		name         string
		env          Environment
		adaptive     bool
		wantUser     int
		wantAdjusted int
	}{
		{"no sensor", Environment{}, true, 70, -1},
		{"sensor adaptive off", Environment{AmbientLightSensor: true}, false, 70, -1},
		{"sensor adaptive on", Environment{AmbientLightSensor: true}, true, 70, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeWMI{power: 70, adaptive: tt.adaptive, wmiValue: 45}
			c := NewWMI(testDescriptor(true), "inst", []byte{0, 50, 100}, f, f, tt.env, Options{})

			if res := c.UpdateBrightness(-1); !res.Succeeded() {
				t.Fatalf("UpdateBrightness() = %v", res)
			}
			if c.Brightness() != tt.wantUser {
				t.Errorf("Brightness() = %d, want %d", c.Brightness(), tt.wantUser)
			}
			if c.BrightnessSystemAdjusted() != tt.wantAdjusted {
				t.Errorf("BrightnessSystemAdjusted() = %d, want %d", c.BrightnessSystemAdjusted(), tt.wantAdjusted)
			}

			if res := c.SetBrightness(33); !res.Succeeded() || f.setPower != 33 || c.Brightness() != 33 {
				t.Errorf("SetBrightness(33) = %v, power %d, cached %d", res, f.setPower, c.Brightness())
			}
		})
	}
}

func TestNearestLevel(t *testing.T) {
	levels := []byte{0, 10, 40, 100}
	tests := []struct {
		value int
		want  byte
	}{
		{0, 0}, {4, 0}, {5, 0}, {6, 10}, {25, 10}, {26, 40}, {70, 40}, {71, 100}, {100, 100},
	}
	for _, tt := range tests {
		if got := NearestLevel(levels, tt.value); got != tt.want {
			t.Errorf("NearestLevel(%d) = %d, want %d", tt.value, got, tt.want)
		}
	}
	if got := NearestLevel(nil, 42); got != 42 {
		t.Errorf("NearestLevel(nil, 42) = %d", got)
	}
}

// fakeWhite implements platform.WhiteLevel.
type fakeWhite struct {
	current, maximum float64
	set              float64
}

func (f *fakeWhite) SDRWhiteLevel(platform.DisplayTarget) (float64, float64, error) {
	return f.current, f.maximum, nil
}

func (f *fakeWhite) SetSDRWhiteLevel(_ platform.DisplayTarget, nits float64) error {
	f.set = nits
	f.current = nits
	return nil
}

func TestHDRController(t *testing.T) {
	store := calibration.NewStore(calibration.Options{})
	w := &fakeWhite{current: 240, maximum: 480}
	c := NewHDR(testDescriptor(false), platform.DisplayTarget{TargetID: 4}, w, store, Options{})

	if res := c.UpdateBrightness(-1); !res.Succeeded() {
		t.Fatalf("UpdateBrightness() = %v", res)
	}
	// Range 80-480, current 240.
	if c.Brightness() != 40 {
		t.Errorf("Brightness() = %d, want 40", c.Brightness())
	}
	rec, ok := store.Peek(string(testIdentity))
	if !ok || rec.Minimum != 80 || rec.Maximum != 480 {
		t.Fatalf("calibration = %+v, %v", rec, ok)
	}

	if res := c.SetBrightness(100); !res.Succeeded() || w.set != 480 {
		t.Fatalf("SetBrightness(100) = %v, set %v", res, w.set)
	}
	if res := c.SetBrightness(0); !res.Succeeded() || w.set != 80 {
		t.Fatalf("SetBrightness(0) = %v, set %v", res, w.set)
	}

	// A value below the learned minimum widens the range.
	w.current = 60
	if res := c.UpdateBrightness(-1); !res.Succeeded() {
		t.Fatalf("UpdateBrightness() = %v", res)
	}
	rec, _ = store.Peek(string(testIdentity))
	if rec.Minimum != 60 || c.Brightness() != 0 {
		t.Errorf("after widening: %+v, brightness %d", rec, c.Brightness())
	}
}

func TestHDRController_Degenerate(t *testing.T) {
	store := calibration.NewStore(calibration.Options{})
	w := &fakeWhite{current: 80, maximum: 80}
	c := NewHDR(testDescriptor(false), platform.DisplayTarget{}, w, store, Options{})

	res := c.UpdateBrightness(-1)
	if res.Status != access.Failed || res.Message == "" {
		t.Errorf("UpdateBrightness() = %v, want Failed with diagnostic", res)
	}
	if store.Len() != 0 {
		t.Error("degenerate range was persisted")
	}
}

func TestUnreachableController(t *testing.T) {
	c := NewUnreachable(testDescriptor(false), "", Options{})

	results := []access.Result{
		c.UpdateBrightness(-1),
		c.SetBrightness(50),
		c.UpdateContrast(),
		c.SetContrast(50),
		c.UpdateColorTemperature(),
		c.SetColorTemperature(1),
	}
	for i, res := range results {
		if res.Status != access.Failed {
			t.Errorf("operation %d = %v, want Failed", i, res)
		}
	}
	if ok, msg := c.Controllable(); ok || msg == "" {
		t.Errorf("Controllable() = %v, %q", ok, msg)
	}
	if c.Backend() != BackendUnreachable || c.Brightness() != -1 {
		t.Errorf("Backend() = %v, Brightness() = %d", c.Backend(), c.Brightness())
	}
}
