// Package native implements platform.Platform on Windows.
//
// Sources and backends map onto these OS subsystems:
//   - LegacyDevices: EnumDisplayDevicesW (user32)
//   - MonitorHandles, MonitorCount: EnumDisplayMonitors, GetMonitorInfoW,
//     GetSystemMetrics (user32)
//   - TopologyPaths, SDR white level: QueryDisplayConfig and
//     DisplayConfigGetDeviceInfo / DisplayConfigSetDeviceInfo (user32, CCD)
//   - PhysicalMonitors: the monitor configuration API (dxva2)
//   - DesktopMonitors, WMI brightness: Win32_DesktopMonitor and the
//     WmiMonitorBrightness classes (WMI)
//   - Power brightness: the active power scheme (powrprof)
//   - Ambient light sensor: the Sensor device class (setupapi)
//
// On other operating systems New returns platform.ErrUnsupported.
package native
