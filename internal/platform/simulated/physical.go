package simulated

import (
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/ddc"
)

var errNoDDC = errors.New("simulated: monitor does not answer ddc/ci")

// physicalMonitor is a DDC/CI handle onto a simulated monitor.
type physicalMonitor struct {
	p      *Platform
	m      *monitorState
	closed bool
}

func (h *physicalMonitor) Description() string {
	return h.m.cfg.Description
}

// checkLocked returns the error an OS call would give right now.
func (h *physicalMonitor) checkLocked(op string) error {
	if h.p.findLocked(func(m *monitorState) bool { return m == h.m }) == nil {
		return &ddc.Error{Op: op, Code: ddc.CodeMonitorNoLongerExists}
	}
	if h.m.cfg.DDC == nil {
		return errNoDDC
	}
	if h.m.failures > 0 {
		h.m.failures--
		return &ddc.Error{Op: op, Code: ddc.CodeI2CErrorTransmitting}
	}
	return nil
}

func (h *physicalMonitor) HighLevelCapabilities() (ddc.HighLevel, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()

	if h.m.cfg.DDC == nil {
		return ddc.HighLevel{}, errNoDDC
	}
	_, hasContrast := h.m.vcp[ddc.VCPContrast]
	return ddc.HighLevel{
		Brightness: h.m.cfg.DDC.HighLevel,
		Contrast:   h.m.cfg.DDC.HighLevel && hasContrast,
	}, nil
}

// CapabilitiesString blocks for the configured detect latency, as real
// monitors take hundreds of milliseconds to answer.
func (h *physicalMonitor) CapabilitiesString() (string, error) {
	if d := h.p.cfg.Latency.Detect; d > 0 {
		time.Sleep(d)
	}

	h.p.mu.Lock()
	defer h.p.mu.Unlock()

	if err := h.checkLocked("CapabilitiesRequestAndCapabilitiesReply"); err != nil {
		return "", err
	}
	return h.m.cfg.DDC.Capabilities, nil
}

func (h *physicalMonitor) GetBrightness() (ddc.RawRange, error) {
	cur, max, err := h.GetVCPFeature(ddc.VCPLuminance)
	if err != nil {
		return ddc.RawRange{}, err
	}
	return ddc.RawRange{Minimum: 0, Current: cur, Maximum: max}, nil
}

func (h *physicalMonitor) SetBrightness(value uint32) error {
	return h.SetVCPFeature(ddc.VCPLuminance, value)
}

func (h *physicalMonitor) GetVCPFeature(code byte) (uint32, uint32, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()

	if err := h.checkLocked("GetVCPFeatureAndVCPFeatureReply"); err != nil {
		return 0, 0, err
	}
	v, ok := h.m.vcp[code]
	if !ok {
		return 0, 0, &ddc.Error{Op: "GetVCPFeatureAndVCPFeatureReply", Code: ddc.CodeInvalidMessageCommand}
	}
	return v[0], v[1], nil
}

func (h *physicalMonitor) SetVCPFeature(code byte, value uint32) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()

	if err := h.checkLocked("SetVCPFeature"); err != nil {
		return err
	}
	v, ok := h.m.vcp[code]
	if !ok {
		return &ddc.Error{Op: "SetVCPFeature", Code: ddc.CodeInvalidMessageCommand}
	}
	if h.m.cfg.DDC.IgnoreSets {
		return nil
	}
	if value > v[1] {
		value = v[1]
	}
	v[0] = value
	h.m.vcp[code] = v
	return nil
}

func (h *physicalMonitor) Close() error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()

	if !h.closed {
		h.closed = true
		h.p.open--
	}
	return nil
}
