package ddc

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-displays/internal/access"
)

// fakeMonitor is a scriptable PhysicalMonitor. Queued errors are returned by
// successive VCP calls before the stored values are used.
type fakeMonitor struct {
	description string
	highLevel   HighLevel
	highErr     error
	capString   string
	capErr      error
	brightness  RawRange
	vcp         map[byte][2]uint32
	failures    []error

	getCalls   int
	setCalls   int
	closeCalls int
	lastSet    map[byte]uint32
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		description: "Dell U2720Q",
		vcp:         map[byte][2]uint32{},
		lastSet:     map[byte]uint32{},
	}
}

func (f *fakeMonitor) nextFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeMonitor) Description() string { return f.description }

func (f *fakeMonitor) HighLevelCapabilities() (HighLevel, error) {
	return f.highLevel, f.highErr
}

func (f *fakeMonitor) CapabilitiesString() (string, error) {
	return f.capString, f.capErr
}

func (f *fakeMonitor) GetBrightness() (RawRange, error) {
	f.getCalls++
	if err := f.nextFailure(); err != nil {
		return RawRange{}, err
	}
	return f.brightness, nil
}

func (f *fakeMonitor) SetBrightness(value uint32) error {
	f.setCalls++
	if err := f.nextFailure(); err != nil {
		return err
	}
	f.brightness.Current = value
	return nil
}

func (f *fakeMonitor) GetVCPFeature(code byte) (uint32, uint32, error) {
	f.getCalls++
	if err := f.nextFailure(); err != nil {
		return 0, 0, err
	}
	v, ok := f.vcp[code]
	if !ok {
		return 0, 0, &Error{Op: "GetVCPFeatureAndVCPFeatureReply", Code: 0xC0262584}
	}
	return v[0], v[1], nil
}

func (f *fakeMonitor) SetVCPFeature(code byte, value uint32) error {
	f.setCalls++
	if err := f.nextFailure(); err != nil {
		return err
	}
	v := f.vcp[code]
	v[0] = value
	f.vcp[code] = v
	f.lastSet[code] = value
	return nil
}

func (f *fakeMonitor) Close() error {
	f.closeCalls++
	return nil
}

var (
	errTransmit = &Error{Op: "test", Code: CodeI2CErrorTransmitting}
	errChecksum = &Error{Op: "test", Code: CodeInvalidMessageChecksum}
	errGone     = &Error{Op: "test", Code: CodeMonitorNoLongerExists}
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want access.Status
	}{
		{"nil", nil, access.Succeeded},
		{"transmitting", errTransmit, access.TransmissionFailed},
		{"receiving", &Error{Code: CodeI2CErrorReceiving}, access.TransmissionFailed},
		{"invalid command", &Error{Code: CodeInvalidMessageCommand}, access.ProtocolFailed},
		{"invalid length", &Error{Code: CodeInvalidMessageLength}, access.ProtocolFailed},
		{"invalid checksum", errChecksum, access.ProtocolFailed},
		{"no longer exists", errGone, access.NoLongerExists},
		{"unknown code", &Error{Code: 0x80004005}, access.Failed},
		{"plain error", errors.New("boom"), access.Failed},
		{"closed handle", ErrHandleClosed, access.Failed},
		{"wrapped", errors.Join(errors.New("ctx"), errGone), access.NoLongerExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestController_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		want      access.Status
		wantCalls int
	}{
		{"success first time", nil, access.Succeeded, 1},
		{"transient then success", []error{errTransmit}, access.Succeeded, 2},
		{"two transients surface", []error{errTransmit, errTransmit}, access.TransmissionFailed, 2},
		{"protocol failure not retried", []error{errChecksum}, access.ProtocolFailed, 1},
		{"gone not retried", []error{errGone}, access.NoLongerExists, 1},
		{"transient then protocol", []error{errTransmit, errChecksum}, access.ProtocolFailed, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := newFakeMonitor()
			fm.vcp[VCPLuminance] = [2]uint32{40, 100}
			fm.failures = tt.failures

			c := NewController(nil)
			res, r := c.GetValue(NewHandle(fm), VCPLuminance)

			if res.Status != tt.want {
				t.Errorf("GetValue() status = %v, want %v", res.Status, tt.want)
			}
			if fm.getCalls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", fm.getCalls, tt.wantCalls)
			}
			if tt.want == access.Succeeded && r.Current != 40 {
				t.Errorf("Current = %d, want 40", r.Current)
			}
		})
	}
}

func TestController_ClosedHandle(t *testing.T) {
	fm := newFakeMonitor()
	fm.vcp[VCPLuminance] = [2]uint32{40, 100}
	h := NewHandle(fm)

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if fm.closeCalls != 1 {
		t.Errorf("closeCalls = %d, want 1", fm.closeCalls)
	}

	c := NewController(nil)
	res, _ := c.GetBrightness(h, Capability{LowLevelBrightness: true})
	if res.Status != access.Failed {
		t.Errorf("GetBrightness() on closed handle = %v, want Failed", res.Status)
	}
	if fm.getCalls != 0 {
		t.Errorf("closed handle reached the monitor %d times", fm.getCalls)
	}
}

func TestController_Brightness(t *testing.T) {
	t.Run("high level preferred", func(t *testing.T) {
		fm := newFakeMonitor()
		fm.brightness = RawRange{Minimum: 0, Current: 30, Maximum: 60}
		fm.vcp[VCPLuminance] = [2]uint32{99, 100}
		h := NewHandle(fm)
		c := NewController(nil)
		capability := Capability{HighLevelBrightness: true, LowLevelBrightness: true}

		res, p := c.GetBrightness(h, capability)
		if !res.Succeeded() || p != 50 {
			t.Fatalf("GetBrightness() = %v, %d; want succeeded, 50", res, p)
		}

		if res := c.SetBrightness(h, capability, 100); !res.Succeeded() {
			t.Fatalf("SetBrightness() = %v", res)
		}
		if fm.brightness.Current != 60 {
			t.Errorf("brightness raw = %d, want 60", fm.brightness.Current)
		}
		if _, ok := fm.lastSet[VCPLuminance]; ok {
			t.Error("low-level path used despite high-level support")
		}
	})

	t.Run("low level", func(t *testing.T) {
		fm := newFakeMonitor()
		fm.vcp[VCPLuminance] = [2]uint32{10, 50}
		h := NewHandle(fm)
		c := NewController(nil)
		capability := Capability{LowLevelBrightness: true}

		res, p := c.GetBrightness(h, capability)
		if !res.Succeeded() || p != 20 {
			t.Fatalf("GetBrightness() = %v, %d; want succeeded, 20", res, p)
		}
		if res := c.SetBrightness(h, capability, 50); !res.Succeeded() {
			t.Fatalf("SetBrightness() = %v", res)
		}
		if fm.lastSet[VCPLuminance] != 25 {
			t.Errorf("raw set = %d, want 25", fm.lastSet[VCPLuminance])
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		fm := newFakeMonitor()
		fm.vcp[VCPLuminance] = [2]uint32{10, 100}
		c := NewController(nil)

		for _, v := range []int{-1, 101} {
			if res := c.SetBrightness(NewHandle(fm), Capability{LowLevelBrightness: true}, v); res.Status != access.Failed {
				t.Errorf("SetBrightness(%d) = %v, want Failed", v, res.Status)
			}
		}
		if fm.setCalls != 0 || fm.getCalls != 0 {
			t.Error("out of range value reached the monitor")
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		c := NewController(nil)
		res, p := c.GetBrightness(NewHandle(newFakeMonitor()), Capability{})
		if res.Status != access.NotSupported || p != -1 {
			t.Errorf("GetBrightness() = %v, %d", res, p)
		}
	})
}

func TestController_Contrast(t *testing.T) {
	fm := newFakeMonitor()
	fm.vcp[VCPContrast] = [2]uint32{75, 100}
	h := NewHandle(fm)
	c := NewController(nil)

	if res, _ := c.GetContrast(h, Capability{}); res.Status != access.NotSupported {
		t.Errorf("GetContrast() without capability = %v", res.Status)
	}

	capability := Capability{Contrast: true}
	res, p := c.GetContrast(h, capability)
	if !res.Succeeded() || p != 75 {
		t.Fatalf("GetContrast() = %v, %d", res, p)
	}
	if res := c.SetContrast(h, capability, 40); !res.Succeeded() {
		t.Fatalf("SetContrast() = %v", res)
	}
	if fm.lastSet[VCPContrast] != 40 {
		t.Errorf("raw set = %d, want 40", fm.lastSet[VCPContrast])
	}
}

func TestController_ColorTemperature(t *testing.T) {
	fm := newFakeMonitor()
	fm.vcp[VCPColorPreset] = [2]uint32{0x05, 0x0B}
	h := NewHandle(fm)
	c := NewController(nil)
	capability := Capability{ColorTemperatures: []byte{0x05, 0x08}}

	res, v := c.GetColorTemperature(h, capability)
	if !res.Succeeded() || v != 0x05 {
		t.Fatalf("GetColorTemperature() = %v, %d", res, v)
	}
	if res := c.SetColorTemperature(h, capability, 0x0B); res.Status != access.Failed {
		t.Errorf("SetColorTemperature(unadvertised) = %v, want Failed", res.Status)
	}
	if res := c.SetColorTemperature(h, capability, 0x08); !res.Succeeded() {
		t.Errorf("SetColorTemperature(0x08) = %v", res)
	}
	if res := c.SetColorTemperature(h, Capability{}, 0x08); res.Status != access.NotSupported {
		t.Errorf("SetColorTemperature() without capability = %v", res.Status)
	}
}

func TestController_DetectCapability(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*fakeMonitor)
		want       Capability
		wantStatus access.Status
	}{
		{
			name: "high level flags",
			setup: func(f *fakeMonitor) {
				f.highLevel = HighLevel{Brightness: true, Contrast: true}
				f.capErr = errChecksum
			},
			want:       Capability{HighLevelBrightness: true, Contrast: true},
			wantStatus: access.Succeeded,
		},
		{
			name: "capability string",
			setup: func(f *fakeMonitor) {
				f.highErr = errors.New("unsupported")
				f.capString = "(vcp(10 12 14(05 08)))"
			},
			want: Capability{
				LowLevelBrightness: true,
				Contrast:           true,
				ColorTemperatures:  []byte{0x05, 0x08},
			},
			wantStatus: access.Succeeded,
		},
		{
			name: "probe fallback",
			setup: func(f *fakeMonitor) {
				f.capString = "garbage"
				f.vcp[VCPLuminance] = [2]uint32{50, 100}
			},
			want:       Capability{LowLevelBrightness: true},
			wantStatus: access.Succeeded,
		},
		{
			name: "nothing works",
			setup: func(f *fakeMonitor) {
				f.capString = "(prot(monitor))"
			},
			want:       Capability{},
			wantStatus: access.Failed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := newFakeMonitor()
			tt.setup(fm)

			got, res := NewController(nil).DetectCapability(NewHandle(fm))
			if res.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", res.Status, tt.wantStatus)
			}
			if got.HighLevelBrightness != tt.want.HighLevelBrightness ||
				got.LowLevelBrightness != tt.want.LowLevelBrightness ||
				got.Contrast != tt.want.Contrast ||
				string(got.ColorTemperatures) != string(tt.want.ColorTemperatures) {
				t.Errorf("capability = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPreclearedCapability(t *testing.T) {
	c := PreclearedCapability()
	if !c.Precleared || !c.Brightness() || !c.Contrast {
		t.Errorf("PreclearedCapability() = %+v", c)
	}
}
