package monitor

import (
	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// DefaultMinimumWhiteLevel is the lower bound, in nits, assumed for an HDR
// target with no calibration yet. It is the SDR reference white.
const DefaultMinimumWhiteLevel = 80

// HDRController drives an HDR-active target through its SDR white level.
// The white level has no fixed range, so the usable range is learned and
// kept in the shared calibration store.
type HDRController struct {
	base
	target         platform.DisplayTarget
	white          platform.WhiteLevel
	store          *calibration.Store
	defaultMinimum float64
}

// NewHDR binds a descriptor to a topology target.
func NewHDR(desc Descriptor, target platform.DisplayTarget, white platform.WhiteLevel, store *calibration.Store, opts Options) *HDRController {
	c := &HDRController{
		target:         target,
		white:          white,
		store:          store,
		defaultMinimum: DefaultMinimumWhiteLevel,
	}
	c.init(desc, opts)
	return c
}

func (c *HDRController) Backend() Backend { return BackendHDR }

// Target returns the topology target the controller writes to.
func (c *HDRController) Target() platform.DisplayTarget { return c.target }

// UpdateBrightness reads the current and maximum white level, widens the
// calibration range to include both, and caches the resulting percentage.
func (c *HDRController) UpdateBrightness(int) access.Result {
	c.op.Lock()
	defer c.op.Unlock()

	_, res := c.refreshLocked()
	return c.observe("update brightness", res)
}

func (c *HDRController) refreshLocked() (calibration.Record, access.Result) {
	current, maximum, err := c.white.SDRWhiteLevel(c.target)
	if err != nil {
		return calibration.Record{}, access.Fail(access.Failed, "reading sdr white level: %v", err)
	}

	id := string(c.Identity())
	lo, hi, ok := c.store.Read(id)
	if !ok {
		lo, hi = c.defaultMinimum, maximum
	}
	lo, hi = widen(lo, hi, current)
	lo, hi = widen(lo, hi, maximum)

	if lo >= hi {
		return calibration.Record{}, access.Fail(access.Failed, "degenerate calibration range %.0f-%.0f nits", lo, hi)
	}
	c.store.Write(id, lo, hi)

	c.setBrightness(ddc.ToPercent(lo, current, hi), -1)
	return calibration.Record{Minimum: lo, Maximum: hi}, access.OK
}

func widen(lo, hi, v float64) (float64, float64) {
	if v < lo {
		lo = v
	}
	if v > hi {
		hi = v
	}
	return lo, hi
}

// SetBrightness maps the percentage onto the calibrated range and writes the
// white level.
func (c *HDRController) SetBrightness(value int) access.Result {
	if !validPercent(value) {
		return access.Fail(access.Failed, "brightness %d out of range", value)
	}

	c.op.Lock()
	defer c.op.Unlock()

	var r calibration.Record
	if lo, hi, ok := c.store.Read(string(c.Identity())); ok && lo < hi {
		r = calibration.Record{Minimum: lo, Maximum: hi}
	} else {
		var res access.Result
		if r, res = c.refreshLocked(); !res.Succeeded() {
			return c.observe("set brightness", res)
		}
	}

	nits := ddc.FromPercent(r.Minimum, r.Maximum, value)
	if err := c.white.SetSDRWhiteLevel(c.target, nits); err != nil {
		return c.observe("set brightness", access.Fail(access.Failed, "writing sdr white level: %v", err))
	}
	c.setBrightness(value, -1)
	return c.observe("set brightness", access.OK)
}
