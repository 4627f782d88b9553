package ddc

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-displays/internal/access"
)

// Logger defines the logging interface used by the controller.
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

// Capability describes what a monitor accepts over DDC/CI. It is discovered
// once per handle acquisition.
type Capability struct {
	HighLevelBrightness bool   `json:"high_level_brightness"`
	LowLevelBrightness  bool   `json:"low_level_brightness"`
	Contrast            bool   `json:"contrast"`
	ColorTemperatures   []byte `json:"color_temperatures,omitempty"`
	Precleared          bool   `json:"precleared"`
}

// Brightness reports whether either brightness path is usable.
func (c Capability) Brightness() bool {
	return c.HighLevelBrightness || c.LowLevelBrightness
}

// PreclearedCapability is the capability assumed for operator-forced monitors.
func PreclearedCapability() Capability {
	return Capability{
		LowLevelBrightness: true,
		Contrast:           true,
		Precleared:         true,
	}
}

// Controller issues DDC/CI commands against a Handle.
//
// Every call is attempted once and retried exactly once if the first attempt
// fails with TransmissionFailed. No other failure is retried.
type Controller struct {
	logger Logger
}

// NewController creates a Controller. A nil logger disables logging.
func NewController(logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{logger: logger}
}

// call runs fn against h with the single-retry policy.
func (c *Controller) call(op string, h *Handle, fn func(PhysicalMonitor) error) access.Result {
	err := h.Do(fn)
	if Classify(err) == access.TransmissionFailed {
		c.logger.Debug("ddc transmission failed, retrying", "op", op, "monitor", h.Description(), "error", err)
		err = h.Do(fn)
	}
	if err != nil {
		c.logger.Debug("ddc call failed", "op", op, "monitor", h.Description(), "error", err)
	}
	return resultOf(err)
}

// GetValue reads a VCP feature. VCP features have an implicit minimum of 0.
func (c *Controller) GetValue(h *Handle, code byte) (access.Result, RawRange) {
	var r RawRange
	res := c.call(fmt.Sprintf("get vcp 0x%02X", code), h, func(pm PhysicalMonitor) error {
		cur, max, err := pm.GetVCPFeature(code)
		if err != nil {
			return err
		}
		r = RawRange{Minimum: 0, Current: cur, Maximum: max}
		return nil
	})
	return res, r
}

// SetValue writes a VCP feature. The device may report success without
// applying the value, so callers re-read afterwards.
func (c *Controller) SetValue(h *Handle, code byte, value uint32) access.Result {
	return c.call(fmt.Sprintf("set vcp 0x%02X", code), h, func(pm PhysicalMonitor) error {
		return pm.SetVCPFeature(code, value)
	})
}

// GetBrightness returns the brightness as a percentage, preferring the
// high-level primitive when the capability allows it.
func (c *Controller) GetBrightness(h *Handle, capability Capability) (access.Result, int) {
	res, r := c.brightnessRange(h, capability)
	if !res.Succeeded() {
		return res, -1
	}
	return percentResult(r)
}

// SetBrightness sets brightness from a 0-100 percentage.
func (c *Controller) SetBrightness(h *Handle, capability Capability, percent int) access.Result {
	if percent < 0 || percent > 100 {
		return access.Fail(access.Failed, "%v: brightness %d", ErrOutOfRange, percent)
	}

	res, r := c.brightnessRange(h, capability)
	if !res.Succeeded() {
		return res
	}
	raw, err := r.RawFor(percent)
	if err != nil {
		return access.Fail(access.Failed, "%v", err)
	}

	if capability.HighLevelBrightness {
		return c.call("set brightness", h, func(pm PhysicalMonitor) error {
			return pm.SetBrightness(raw)
		})
	}
	return c.SetValue(h, VCPLuminance, raw)
}

func (c *Controller) brightnessRange(h *Handle, capability Capability) (access.Result, RawRange) {
	switch {
	case capability.HighLevelBrightness:
		var r RawRange
		res := c.call("get brightness", h, func(pm PhysicalMonitor) error {
			var err error
			r, err = pm.GetBrightness()
			return err
		})
		return res, r
	case capability.LowLevelBrightness:
		return c.GetValue(h, VCPLuminance)
	default:
		return access.Unsupported("brightness"), RawRange{}
	}
}

// GetContrast returns the contrast as a percentage.
func (c *Controller) GetContrast(h *Handle, capability Capability) (access.Result, int) {
	if !capability.Contrast {
		return access.Unsupported("contrast"), -1
	}
	res, r := c.GetValue(h, VCPContrast)
	if !res.Succeeded() {
		return res, -1
	}
	return percentResult(r)
}

// SetContrast sets contrast from a 0-100 percentage.
func (c *Controller) SetContrast(h *Handle, capability Capability, percent int) access.Result {
	if !capability.Contrast {
		return access.Unsupported("contrast")
	}
	if percent < 0 || percent > 100 {
		return access.Fail(access.Failed, "%v: contrast %d", ErrOutOfRange, percent)
	}

	res, r := c.GetValue(h, VCPContrast)
	if !res.Succeeded() {
		return res
	}
	raw, err := r.RawFor(percent)
	if err != nil {
		return access.Fail(access.Failed, "%v", err)
	}
	return c.SetValue(h, VCPContrast, raw)
}

// GetColorTemperature returns the current color preset raw value.
func (c *Controller) GetColorTemperature(h *Handle, capability Capability) (access.Result, byte) {
	if len(capability.ColorTemperatures) == 0 {
		return access.Unsupported("color temperature"), 0
	}
	res, r := c.GetValue(h, VCPColorPreset)
	if !res.Succeeded() {
		return res, 0
	}
	return res, byte(r.Current)
}

// SetColorTemperature selects one of the discrete color presets the monitor
// advertises.
func (c *Controller) SetColorTemperature(h *Handle, capability Capability, value byte) access.Result {
	if len(capability.ColorTemperatures) == 0 {
		return access.Unsupported("color temperature")
	}
	for _, v := range capability.ColorTemperatures {
		if v == value {
			return c.SetValue(h, VCPColorPreset, uint32(value))
		}
	}
	return access.Fail(access.Failed, "color preset 0x%02X not advertised", value)
}

// DetectCapability determines which brightness and contrast paths the monitor
// accepts. It checks the high-level flags, then the capability string, and
// finally probes VCP 0x10 directly. Malformed capability strings are ignored.
//
// The result is NotSupported when no brightness path was found.
func (c *Controller) DetectCapability(h *Handle) (Capability, access.Result) {
	var capability Capability
	var lastErr error

	if err := h.Do(func(pm PhysicalMonitor) error {
		hl, err := pm.HighLevelCapabilities()
		if err != nil {
			return err
		}
		capability.HighLevelBrightness = hl.Brightness
		capability.Contrast = hl.Contrast
		return nil
	}); err != nil {
		if errors.Is(err, ErrHandleClosed) {
			return capability, resultOf(err)
		}
		lastErr = err
		c.logger.Debug("high-level capabilities unavailable", "monitor", h.Description(), "error", err)
	}

	res := c.call("get capabilities string", h, func(pm PhysicalMonitor) error {
		s, err := pm.CapabilitiesString()
		if err != nil {
			return err
		}
		caps := ParseCapabilities(s)
		if caps.Supports(VCPLuminance) {
			capability.LowLevelBrightness = true
		}
		if caps.Supports(VCPContrast) {
			capability.Contrast = true
		}
		capability.ColorTemperatures = caps.Values(VCPColorPreset)
		return nil
	})
	if !res.Succeeded() {
		c.logger.Debug("capabilities string unavailable", "monitor", h.Description(), "result", res.String())
	}

	if !capability.Brightness() {
		if probe, _ := c.GetValue(h, VCPLuminance); probe.Succeeded() {
			capability.LowLevelBrightness = true
		} else {
			res = probe
		}
	}

	if capability.Brightness() {
		return capability, access.OK
	}
	if res.Succeeded() {
		res = access.Unsupported("brightness")
	}
	if lastErr != nil && res.Message == "" {
		res.Message = lastErr.Error()
	}
	return capability, res
}

func percentResult(r RawRange) (access.Result, int) {
	p, err := r.Percent()
	if err != nil {
		return access.Fail(access.Failed, "%v", err), -1
	}
	return access.OK, p
}
