// Package ddc implements DDC/CI monitor control on top of an open physical
// monitor handle.
//
// It covers three concerns:
//   - Parsing the MCCS capability string a monitor reports (ParseCapabilities)
//   - Issuing VCP get/set commands with error classification and a single
//     retry on transient bus failures (Controller)
//   - Converting device-raw ranges to and from the 0-100 scale (RawRange)
//
// The platform layer supplies PhysicalMonitor implementations. Handles are
// wrapped in a Handle which serialises calls and refuses to touch a
// released handle.
//
// Thread Safety:
//   - Handle is safe for concurrent use; calls on one handle are serialised.
//   - Controller holds no per-monitor state and may be shared.
package ddc
