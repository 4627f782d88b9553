package monitor

import (
	"sync"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// Logger defines the logging interface used by controllers.
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

// Options are shared by every controller constructor.
type Options struct {
	InitialAllowance int
	NormalAllowance  int

	// OnRescan is called when an operation fails in a way that suggests the
	// roster is stale (NoLongerExists or TransmissionFailed).
	OnRescan func(Identity, access.Result)

	Logger Logger
}

// base holds the state common to every variant.
//
// op serialises operations against the backend. state guards the cached
// values so getters stay responsive while an operation is in flight.
type base struct {
	op sync.Mutex

	state          sync.RWMutex
	desc           Descriptor
	brightness     int
	systemAdjusted int
	contrast       int
	colorTemp      int

	confidence *Confidence
	onRescan   func(Identity, access.Result)
	logger     Logger
}

func (b *base) init(desc Descriptor, opts Options) {
	b.desc = desc
	b.brightness = -1
	b.systemAdjusted = -1
	b.contrast = -1
	b.colorTemp = -1
	b.confidence = NewConfidence(opts.InitialAllowance, opts.NormalAllowance)
	b.onRescan = opts.OnRescan
	b.logger = opts.Logger
	if b.logger == nil {
		b.logger = noopLogger{}
	}
}

func (b *base) Descriptor() Descriptor {
	b.state.RLock()
	defer b.state.RUnlock()
	return b.desc
}

func (b *base) Identity() Identity { return b.Descriptor().Identity }
func (b *base) Description() string { return b.Descriptor().Description }
func (b *base) Rect() platform.Rect { return b.Descriptor().Rect }
func (b *base) Reachable() bool { return b.Descriptor().Reachable }
func (b *base) Controllable() (bool, string) { return b.confidence.Controllable() }

func (b *base) Brightness() int {
	b.state.RLock()
	defer b.state.RUnlock()
	return b.brightness
}

func (b *base) BrightnessSystemAdjusted() int {
	b.state.RLock()
	defer b.state.RUnlock()
	return b.systemAdjusted
}

func (b *base) Contrast() int {
	b.state.RLock()
	defer b.state.RUnlock()
	return b.contrast
}

func (b *base) ColorTemperature() int {
	b.state.RLock()
	defer b.state.RUnlock()
	return b.colorTemp
}

func (b *base) setBrightness(v, systemAdjusted int) {
	b.state.Lock()
	b.brightness = v
	b.systemAdjusted = systemAdjusted
	b.state.Unlock()
}

func (b *base) setContrast(v int) {
	b.state.Lock()
	b.contrast = v
	b.state.Unlock()
}

func (b *base) setColorTemp(v int) {
	b.state.Lock()
	b.colorTemp = v
	b.state.Unlock()
}

// observe feeds the confidence counter and raises a rescan when warranted.
func (b *base) observe(op string, res access.Result) access.Result {
	b.confidence.Observe(res)
	if res.Succeeded() || res.Status == access.NotSupported {
		return res
	}

	id := b.Identity()
	b.logger.Debug("monitor operation failed", "identity", id, "op", op, "result", res.String())
	if res.WarrantsRescan() && b.onRescan != nil {
		b.onRescan(id, res)
	}
	return res
}

// Defaults for optional features. Variants override what they support.

func (b *base) IsContrastSupported() bool { return false }
func (b *base) UpdateContrast() access.Result { return access.Unsupported("contrast") }
func (b *base) SetContrast(int) access.Result { return access.Unsupported("contrast") }
func (b *base) ColorTemperatures() []byte { return nil }
func (b *base) UpdateColorTemperature() access.Result { return access.Unsupported("color temperature") }
func (b *base) SetColorTemperature(byte) access.Result { return access.Unsupported("color temperature") }
func (b *base) Close() error { return nil }
func (b *base) sealed() {}

func validPercent(v int) bool {
	return v >= 0 && v <= 100
}
