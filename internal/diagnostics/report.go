package diagnostics

import (
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

// Report is the full diagnostic output.
type Report struct {
	ID          string                   `json:"id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Version     string                   `json:"version,omitempty"`
	RosterID    string                   `json:"roster_id,omitempty"`
	Elapsed     time.Duration            `json:"elapsed_ns"`
	Sources     []reconcile.SourceReport `json:"sources"`
	Monitors    []MonitorReport          `json:"monitors"`
}

// MonitorReport describes one monitor.
type MonitorReport struct {
	Descriptor   monitor.Descriptor `json:"descriptor"`
	Backend      monitor.Backend    `json:"backend"`
	Capability   *ddc.Capability    `json:"capability,omitempty"`
	BindingNote  string             `json:"binding_note,omitempty"`
	Controllable bool               `json:"controllable"`
	Message      string             `json:"message,omitempty"`

	Brightness RoundTrip  `json:"brightness"`
	Contrast   *RoundTrip `json:"contrast,omitempty"`

	ColorTemperatures []int  `json:"color_temperatures,omitempty"`
	BrightnessLevels  []int  `json:"brightness_levels,omitempty"`
	HDRTarget         string `json:"hdr_target,omitempty"`
}

// Step is one operation of a round trip.
type Step struct {
	Result  access.Result `json:"result"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Skipped bool          `json:"skipped,omitempty"`
}

// RoundTrip is read, write the same value, read back.
type RoundTrip struct {
	Read     Step `json:"read"`
	Write    Step `json:"write"`
	ReadBack Step `json:"read_back"`

	Value         int `json:"value"`
	ReadBackValue int `json:"read_back_value"`
}

// Consistent reports whether all three steps succeeded and the read-back
// value matches.
func (rt RoundTrip) Consistent() bool {
	return rt.Read.Result.Succeeded() && rt.Write.Result.Succeeded() &&
		rt.ReadBack.Result.Succeeded() && rt.Value == rt.ReadBackValue
}

// Healthy reports whether every monitor is controllable and consistent.
func (r Report) Healthy() bool {
	for _, m := range r.Monitors {
		if !m.Controllable || !m.Brightness.Consistent() {
			return false
		}
		if m.Contrast != nil && !m.Contrast.Consistent() {
			return false
		}
	}
	return true
}

var skipped = Step{Skipped: true, Result: access.Result{Status: access.Failed, Message: "skipped after earlier failure"}}
