package monitor

import "github.com/nerrad567/gray-logic-displays/internal/access"

// UnreachableController stands in for a monitor no backend could bind to,
// so the roster still lists it. Every operation fails.
type UnreachableController struct {
	base
	reason string
}

// NewUnreachable creates a placeholder controller. reason is reported as the
// diagnostic message of every operation.
func NewUnreachable(desc Descriptor, reason string, opts Options) *UnreachableController {
	if reason == "" {
		reason = "no control backend answered for this monitor"
	}
	c := &UnreachableController{reason: reason}
	c.init(desc, opts)
	return c
}

func (c *UnreachableController) Backend() Backend { return BackendUnreachable }

func (c *UnreachableController) fail() access.Result {
	return access.Result{Status: access.Failed, Message: c.reason}
}

func (c *UnreachableController) UpdateBrightness(int) access.Result { return c.fail() }
func (c *UnreachableController) SetBrightness(int) access.Result { return c.fail() }
func (c *UnreachableController) UpdateContrast() access.Result { return c.fail() }
func (c *UnreachableController) SetContrast(int) access.Result { return c.fail() }
func (c *UnreachableController) UpdateColorTemperature() access.Result { return c.fail() }
func (c *UnreachableController) SetColorTemperature(byte) access.Result { return c.fail() }

// Controllable is always false.
func (c *UnreachableController) Controllable() (bool, string) { return false, c.reason }
