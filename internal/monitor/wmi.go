package monitor

import (
	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// WMIController drives a monitor through the WMI brightness classes or,
// for internal panels, the active power scheme.
type WMIController struct {
	base
	instanceName string
	levels       []byte
	power        platform.PowerBrightness
	wmi          platform.WMIBrightness
	env          Environment
}

// NewWMI binds a descriptor to its WMI instance. levels is the monitor's own
// discrete brightness table and must not be empty.
func NewWMI(desc Descriptor, instanceName string, levels []byte, power platform.PowerBrightness, wmi platform.WMIBrightness, env Environment, opts Options) *WMIController {
	c := &WMIController{
		instanceName: instanceName,
		levels:       append([]byte(nil), levels...),
		power:        power,
		wmi:          wmi,
		env:          env,
	}
	c.init(desc, opts)
	return c
}

func (c *WMIController) Backend() Backend { return BackendWMI }

// Levels returns the discrete brightness table.
func (c *WMIController) Levels() []byte {
	return append([]byte(nil), c.levels...)
}

// UpdateBrightness refreshes the cached brightness. A hint in 0-100 is taken
// as the value the OS just reported and is used without a read.
//
// On internal panels with an ambient light sensor and adaptive brightness
// on, the power-scheme value is the user setting and the WMI value is the
// system-adjusted one; both are tracked.
func (c *WMIController) UpdateBrightness(hint int) access.Result {
	c.op.Lock()
	defer c.op.Unlock()

	if !c.Descriptor().Internal {
		v := hint
		if !validPercent(v) {
			var err error
			if v, err = c.wmi.WMIBrightness(c.instanceName); err != nil {
				return c.observe("update brightness", access.Fail(access.Failed, "reading wmi brightness: %v", err))
			}
		}
		c.setBrightness(v, -1)
		return c.observe("update brightness", access.OK)
	}

	user, err := c.power.PowerBrightness()
	if err != nil {
		return c.observe("update brightness", access.Fail(access.Failed, "reading power scheme brightness: %v", err))
	}

	if !c.adaptive() {
		if validPercent(hint) {
			user = hint
		}
		c.setBrightness(user, -1)
		return c.observe("update brightness", access.OK)
	}

	adjusted := hint
	if !validPercent(adjusted) {
		if adjusted, err = c.wmi.WMIBrightness(c.instanceName); err != nil {
			c.logger.Debug("system-adjusted brightness unavailable", "identity", c.Identity(), "error", err)
			adjusted = -1
		}
	}
	c.setBrightness(user, adjusted)
	return c.observe("update brightness", access.OK)
}

func (c *WMIController) adaptive() bool {
	if !c.env.AmbientLightSensor {
		return false
	}
	on, err := c.power.AdaptiveBrightnessEnabled()
	return err == nil && on
}

// SetBrightness applies a percentage. Internal panels write the power scheme;
// removable monitors snap to the nearest table level first.
func (c *WMIController) SetBrightness(value int) access.Result {
	if !validPercent(value) {
		return access.Fail(access.Failed, "brightness %d out of range", value)
	}

	c.op.Lock()
	defer c.op.Unlock()

	if c.Descriptor().Internal {
		if err := c.power.SetPowerBrightness(value); err != nil {
			return c.observe("set brightness", access.Fail(access.Failed, "writing power scheme brightness: %v", err))
		}
		c.setBrightness(value, c.BrightnessSystemAdjusted())
		return c.observe("set brightness", access.OK)
	}

	level := NearestLevel(c.levels, value)
	if err := c.wmi.SetWMIBrightness(c.instanceName, level); err != nil {
		return c.observe("set brightness", access.Fail(access.Failed, "wmi set brightness: %v", err))
	}
	c.setBrightness(int(level), -1)
	return c.observe("set brightness", access.OK)
}

// NearestLevel returns the table entry closest to value. Ties pick the lower
// level. An empty table returns value unchanged.
func NearestLevel(levels []byte, value int) byte {
	if len(levels) == 0 {
		return byte(value)
	}

	best := levels[0]
	bestDist := distance(int(best), value)
	for _, l := range levels[1:] {
		d := distance(int(l), value)
		if d < bestDist || (d == bestDist && l < best) {
			best, bestDist = l, d
		}
	}
	return best
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
