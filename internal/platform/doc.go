// Package platform defines the enumeration snapshots and control backends an
// operating system must provide.
//
// Four enumeration sources describe the same physical monitors with
// unrelated keys:
//   - LegacyDevices: per-adapter display-device enumeration (device path,
//     description, display and monitor ordinals)
//   - TopologyPaths: the connector-topology API (device path, friendly name,
//     connector kind, target id, advanced color state)
//   - DesktopMonitors: the WMI desktop-monitor class with optional brightness
//     level tables
//   - MonitorHandles: live OS monitor handles (rectangle and display ordinal only)
//
// PhysicalMonitors opens DDC/CI handles for one live monitor handle. The
// caller owns the returned handles and must close every one of them.
//
// Implementations live in subpackages: windows for the native backend and
// simulated for an in-memory backend described by YAML.
package platform
