package display

import (
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// MonitorState is a point-in-time view of one controller, shaped for the
// API and the MQTT bridge.
type MonitorState struct {
	Identity     monitor.Identity `json:"identity"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	Backend      monitor.Backend  `json:"backend"`
	Reachable    bool             `json:"reachable"`
	Internal     bool             `json:"internal"`
	DisplayIndex int              `json:"display_index"`
	MonitorIndex int              `json:"monitor_index"`
	Connection   string           `json:"connection,omitempty"`
	Rect         platform.Rect    `json:"rect"`

	Brightness               int  `json:"brightness"`
	BrightnessSystemAdjusted int  `json:"brightness_system_adjusted"`
	ContrastSupported        bool `json:"contrast_supported"`
	Contrast                 int  `json:"contrast"`

	ColorTemperatures []int `json:"color_temperatures,omitempty"`
	ColorTemperature  int   `json:"color_temperature"`

	// BrightnessLevels is the WMI discrete level table.
	BrightnessLevels []int `json:"brightness_levels,omitempty"`
	// HDRTarget is the topology target an HDR monitor is written through.
	HDRTarget string `json:"hdr_target,omitempty"`

	Controllable bool   `json:"controllable"`
	Message      string `json:"message,omitempty"`
}

// StateOf captures the cached state of c without touching the hardware.
func StateOf(c monitor.Controller) MonitorState {
	desc := c.Descriptor()
	ok, msg := c.Controllable()

	st := MonitorState{
		Identity:                 desc.Identity,
		Slug:                     desc.Identity.Slug(),
		Description:              desc.Description,
		Backend:                  c.Backend(),
		Reachable:                desc.Reachable,
		Internal:                 desc.Internal,
		DisplayIndex:             desc.DisplayIndex,
		MonitorIndex:             desc.MonitorIndex,
		Connection:               desc.Connection,
		Rect:                     desc.Rect,
		Brightness:               c.Brightness(),
		BrightnessSystemAdjusted: c.BrightnessSystemAdjusted(),
		ContrastSupported:        c.IsContrastSupported(),
		Contrast:                 c.Contrast(),
		ColorTemperature:         c.ColorTemperature(),
		Controllable:             ok,
		Message:                  msg,
	}
	// []byte would marshal as base64.
	st.ColorTemperatures = ints(c.ColorTemperatures())

	switch v := c.(type) {
	case *monitor.WMIController:
		st.BrightnessLevels = ints(v.Levels())
	case *monitor.HDRController:
		st.HDRTarget = v.Target().String()
	}
	return st
}

func ints(b []byte) []int {
	if len(b) == 0 {
		return nil
	}
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
