// Package monitor defines the uniform control contract for a physical
// monitor and its four backend variants.
//
// Every monitor in the roster is represented by exactly one Controller:
//   - DDC: DDC/CI VCP commands over an exclusively owned physical handle
//   - WMI: power-scheme brightness for internal panels, the WMI brightness
//     method for removable monitors
//   - HDR: the SDR white level of an HDR-active target, scaled through a
//     learned calibration range
//   - Unreachable: no backend answered; every operation fails
//
// The set of variants is closed. Constructors are called by the reconciler;
// the rest of the system uses the Controller interface and Backend tag.
//
// Each controller carries a confidence counter so that a few transient bus
// failures do not flip the monitor to "not controllable". One success
// restores full confidence.
//
// Thread Safety:
//   - Operations on one controller are serialised by a per-controller lock.
//   - Cached getters never block behind a running operation and never
//     observe a partially applied update.
//   - Different controllers share no locks except the calibration store.
package monitor
