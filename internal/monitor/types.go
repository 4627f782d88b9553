package monitor

import (
	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// Backend tags which control path drives a monitor.
type Backend string

const (
	BackendDDC         Backend = "ddc"
	BackendWMI         Backend = "wmi"
	BackendHDR         Backend = "hdr"
	BackendUnreachable Backend = "unreachable"
)

// Descriptor describes one enumerable physical monitor. A new descriptor
// replaces the previous one on every reconciliation pass.
type Descriptor struct {
	Identity     Identity      `json:"identity"`
	Description  string        `json:"description"`
	DisplayIndex int           `json:"display_index"`
	MonitorIndex int           `json:"monitor_index"`
	Rect         platform.Rect `json:"rect"`
	Internal     bool          `json:"internal"`
	Reachable    bool          `json:"reachable"`
	Connection   string        `json:"connection,omitempty"`
	RefreshRate  float64       `json:"refresh_rate,omitempty"`
}

// Environment carries platform facts computed once at startup.
type Environment struct {
	AmbientLightSensor bool
}

// Controller is the uniform contract every monitor variant implements.
//
// Brightness and contrast are 0-100 percentages. Cached getters return -1
// when the value is unknown. Every operation reports its outcome as an
// access.Result.
type Controller interface {
	Descriptor() Descriptor
	Identity() Identity
	Description() string
	Rect() platform.Rect
	Reachable() bool
	Backend() Backend

	Brightness() int
	// BrightnessSystemAdjusted is the value applied by adaptive brightness,
	// or -1 when it is not tracked separately.
	BrightnessSystemAdjusted() int
	UpdateBrightness(hint int) access.Result
	SetBrightness(value int) access.Result

	IsContrastSupported() bool
	Contrast() int
	UpdateContrast() access.Result
	SetContrast(value int) access.Result

	ColorTemperatures() []byte
	ColorTemperature() int
	UpdateColorTemperature() access.Result
	SetColorTemperature(value byte) access.Result

	// Controllable reports whether recent operations succeeded often enough
	// to offer controls, with the last failure message when not.
	Controllable() (bool, string)

	// Close releases any handle owned by the controller. It is safe to call
	// more than once.
	Close() error

	sealed()
}

var (
	_ Controller = (*DDCController)(nil)
	_ Controller = (*WMIController)(nil)
	_ Controller = (*HDRController)(nil)
	_ Controller = (*UnreachableController)(nil)
)
