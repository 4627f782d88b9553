package monitor

import (
	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/ddc"
)

// DDCController drives a monitor over DDC/CI. It owns its handle exclusively.
type DDCController struct {
	base
	handle     *ddc.Handle
	ctl        *ddc.Controller
	capability ddc.Capability
}

// NewDDC binds a descriptor to an open handle. The controller takes
// ownership of handle and releases it on Close.
func NewDDC(desc Descriptor, handle *ddc.Handle, capability ddc.Capability, ctl *ddc.Controller, opts Options) *DDCController {
	if ctl == nil {
		ctl = ddc.NewController(opts.Logger)
	}
	c := &DDCController{handle: handle, ctl: ctl, capability: capability}
	c.init(desc, opts)
	return c
}

func (c *DDCController) Backend() Backend { return BackendDDC }

// Capability returns the capability detected when the handle was bound.
func (c *DDCController) Capability() ddc.Capability { return c.capability }

// UpdateBrightness reads brightness from the monitor. The hint is ignored;
// DDC/CI values are always read from the device.
func (c *DDCController) UpdateBrightness(int) access.Result {
	c.op.Lock()
	defer c.op.Unlock()
	return c.observe("update brightness", c.readBrightnessLocked())
}

func (c *DDCController) readBrightnessLocked() access.Result {
	res, v := c.ctl.GetBrightness(c.handle, c.capability)
	if res.Succeeded() {
		c.setBrightness(v, -1)
	}
	return res
}

// SetBrightness writes brightness and re-reads it, since monitors may
// acknowledge a set without applying it.
func (c *DDCController) SetBrightness(value int) access.Result {
	if !validPercent(value) {
		return access.Fail(access.Failed, "brightness %d out of range", value)
	}

	c.op.Lock()
	defer c.op.Unlock()

	res := c.ctl.SetBrightness(c.handle, c.capability, value)
	if !res.Succeeded() {
		return c.observe("set brightness", res)
	}
	if read := c.readBrightnessLocked(); !read.Succeeded() {
		c.setBrightness(value, -1)
	}
	return c.observe("set brightness", res)
}

func (c *DDCController) IsContrastSupported() bool { return c.capability.Contrast }

func (c *DDCController) UpdateContrast() access.Result {
	c.op.Lock()
	defer c.op.Unlock()
	return c.observe("update contrast", c.readContrastLocked())
}

func (c *DDCController) readContrastLocked() access.Result {
	res, v := c.ctl.GetContrast(c.handle, c.capability)
	if res.Succeeded() {
		c.setContrast(v)
	}
	return res
}

func (c *DDCController) SetContrast(value int) access.Result {
	if !validPercent(value) {
		return access.Fail(access.Failed, "contrast %d out of range", value)
	}

	c.op.Lock()
	defer c.op.Unlock()

	res := c.ctl.SetContrast(c.handle, c.capability, value)
	if !res.Succeeded() {
		return c.observe("set contrast", res)
	}
	if read := c.readContrastLocked(); !read.Succeeded() {
		c.setContrast(value)
	}
	return c.observe("set contrast", res)
}

func (c *DDCController) ColorTemperatures() []byte {
	return append([]byte(nil), c.capability.ColorTemperatures...)
}

func (c *DDCController) UpdateColorTemperature() access.Result {
	c.op.Lock()
	defer c.op.Unlock()

	res, v := c.ctl.GetColorTemperature(c.handle, c.capability)
	if res.Succeeded() {
		c.setColorTemp(int(v))
	}
	return c.observe("update color temperature", res)
}

func (c *DDCController) SetColorTemperature(value byte) access.Result {
	c.op.Lock()
	defer c.op.Unlock()

	res := c.ctl.SetColorTemperature(c.handle, c.capability, value)
	if res.Succeeded() {
		c.setColorTemp(int(value))
	}
	return c.observe("set color temperature", res)
}

// Close releases the physical monitor handle exactly once.
func (c *DDCController) Close() error {
	return c.handle.Close()
}
