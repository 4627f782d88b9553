package platform

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-displays/internal/ddc"
)

// Rect is a screen rectangle in virtual desktop coordinates.
type Rect struct {
	Left   int32 `json:"left" yaml:"left"`
	Top    int32 `json:"top" yaml:"top"`
	Right  int32 `json:"right" yaml:"right"`
	Bottom int32 `json:"bottom" yaml:"bottom"`
}

// Width returns the rectangle width.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// DisplayTarget identifies a connector in the topology API.
type DisplayTarget struct {
	AdapterLow  uint32 `json:"adapter_low" yaml:"adapter_low"`
	AdapterHigh int32  `json:"adapter_high" yaml:"adapter_high"`
	TargetID    uint32 `json:"target_id" yaml:"target_id"`
}

func (t DisplayTarget) String() string {
	return fmt.Sprintf("%08X%08X:%d", uint32(t.AdapterHigh), t.AdapterLow, t.TargetID)
}

// LegacyDevice is one monitor from per-adapter display-device enumeration.
type LegacyDevice struct {
	DevicePath   string
	Description  string
	AdapterName  string
	DisplayIndex int
	MonitorIndex int
	Primary      bool
}

// TopologyPath is one active path from the connector-topology API.
type TopologyPath struct {
	DevicePath   string
	FriendlyName string
	Connection   string
	Internal     bool
	RefreshRate  float64
	DisplayIndex int
	Target       DisplayTarget
	HDR          bool
}

// WMIMonitor is one instance of the WMI desktop-monitor class.
type WMIMonitor struct {
	InstanceName string
	Description  string
	Removable    bool
	Levels       []byte

	// DisplayIndex is -1 when WMI did not report an ordinal.
	DisplayIndex int
}

// LiveHandle is an OS monitor handle. It carries no identity.
type LiveHandle struct {
	Handle       uintptr
	DeviceName   string
	DisplayIndex int
	Rect         Rect
	HDR          bool
}

// Source enumerates monitors.
type Source interface {
	LegacyDevices(ctx context.Context) ([]LegacyDevice, error)
	TopologyPaths(ctx context.Context) ([]TopologyPath, error)
	DesktopMonitors(ctx context.Context) ([]WMIMonitor, error)
	MonitorHandles(ctx context.Context) ([]LiveHandle, error)

	// PhysicalMonitors opens the DDC/CI handles behind a live monitor handle,
	// in monitor-ordinal order.
	PhysicalMonitors(ctx context.Context, h LiveHandle) ([]ddc.PhysicalMonitor, error)

	// MonitorCount is the OS-reported number of display monitors.
	MonitorCount(ctx context.Context) (int, error)
}

// PowerBrightness reads and writes the active power scheme's display
// brightness, which drives internal panels.
type PowerBrightness interface {
	PowerBrightness() (int, error)
	SetPowerBrightness(percent int) error
	AdaptiveBrightnessEnabled() (bool, error)
}

// WMIBrightness drives monitors through the WMI brightness classes.
type WMIBrightness interface {
	WMIBrightness(instanceName string) (int, error)
	SetWMIBrightness(instanceName string, level byte) error
}

// WhiteLevel reads and writes the SDR white level of HDR-active targets,
// in nits.
type WhiteLevel interface {
	SDRWhiteLevel(target DisplayTarget) (current, maximum float64, err error)
	SetSDRWhiteLevel(target DisplayTarget, nits float64) error
}

// Platform is everything the monitor stack needs from the operating system.
type Platform interface {
	Source
	PowerBrightness
	WMIBrightness
	WhiteLevel

	// AmbientLightSensor reports whether a light sensor is present.
	AmbientLightSensor(ctx context.Context) (bool, error)

	Close() error
}
