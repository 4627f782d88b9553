//go:build windows

package native

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayDevicesW = user32.NewProc("EnumDisplayDevicesW")
	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
)

const (
	eddGetDeviceInterfaceName = 0x00000001

	displayDeviceAttachedToDesktop = 0x00000001
	displayDevicePrimaryDevice     = 0x00000004
	displayDeviceMirroringDriver   = 0x00000008
	displayDeviceActive            = 0x00000001

	smCMonitors = 80
)

// displayDevice is DISPLAY_DEVICEW.
type displayDevice struct {
	cb           uint32
	deviceName   [32]uint16
	deviceString [128]uint16
	stateFlags   uint32
	deviceID     [128]uint16
	deviceKey    [128]uint16
}

type rect struct {
	left, top, right, bottom int32
}

// monitorInfoEx is MONITORINFOEXW.
type monitorInfoEx struct {
	cbSize    uint32
	rcMonitor rect
	rcWork    rect
	dwFlags   uint32
	szDevice  [32]uint16
}

func enumDisplayDevice(device *uint16, index uint32, flags uint32) (displayDevice, bool) {
	var dd displayDevice
	dd.cb = uint32(unsafe.Sizeof(dd))
	r, _, _ := procEnumDisplayDevicesW.Call(
		uintptr(unsafe.Pointer(device)),
		uintptr(index),
		uintptr(unsafe.Pointer(&dd)),
		uintptr(flags),
	)
	return dd, r != 0
}

// displayIndexOf parses \\.\DISPLAY<n> into the zero-based ordinal n-1.
func displayIndexOf(gdiName string) (int, bool) {
	i := strings.LastIndex(strings.ToUpper(gdiName), "DISPLAY")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(gdiName[i+len("DISPLAY"):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// LegacyDevices implements platform.Source.
func (p *Platform) LegacyDevices(ctx context.Context) ([]platform.LegacyDevice, error) {
	var out []platform.LegacyDevice

	for i := uint32(0); ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		adapter, ok := enumDisplayDevice(nil, i, 0)
		if !ok {
			break
		}
		if adapter.stateFlags&displayDeviceAttachedToDesktop == 0 || adapter.stateFlags&displayDeviceMirroringDriver != 0 {
			continue
		}

		gdiName := windows.UTF16ToString(adapter.deviceName[:])
		displayIndex, ok := displayIndexOf(gdiName)
		if !ok {
			continue
		}

		monitorIndex := 0
		for j := uint32(0); ; j++ {
			mon, ok := enumDisplayDevice(&adapter.deviceName[0], j, eddGetDeviceInterfaceName)
			if !ok {
				break
			}
			if mon.stateFlags&displayDeviceActive == 0 {
				continue
			}
			out = append(out, platform.LegacyDevice{
				DevicePath:   windows.UTF16ToString(mon.deviceID[:]),
				Description:  windows.UTF16ToString(mon.deviceString[:]),
				AdapterName:  windows.UTF16ToString(adapter.deviceString[:]),
				DisplayIndex: displayIndex,
				MonitorIndex: monitorIndex,
				Primary:      adapter.stateFlags&displayDevicePrimaryDevice != 0,
			})
			monitorIndex++
		}
	}
	return out, nil
}

// MonitorHandles implements platform.Source. HDR state comes from the
// advanced color info of the topology paths driving each GDI source.
func (p *Platform) MonitorHandles(ctx context.Context) ([]platform.LiveHandle, error) {
	var handles []uintptr
	cb := syscall.NewCallback(func(hMonitor, hdc, lprc, lParam uintptr) uintptr {
		handles = append(handles, hMonitor)
		return 1
	})
	r, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0)
	if r == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", err)
	}

	hdrSources := map[string]bool{}
	if paths, err := queryPaths(); err == nil {
		for _, qp := range paths {
			if qp.advancedColor {
				hdrSources[strings.ToUpper(qp.gdiName)] = true
			}
		}
	}

	out := make([]platform.LiveHandle, 0, len(handles))
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var mi monitorInfoEx
		mi.cbSize = uint32(unsafe.Sizeof(mi))
		if r, _, _ := procGetMonitorInfoW.Call(h, uintptr(unsafe.Pointer(&mi))); r == 0 {
			continue
		}

		name := windows.UTF16ToString(mi.szDevice[:])
		idx, ok := displayIndexOf(name)
		if !ok {
			continue
		}
		out = append(out, platform.LiveHandle{
			Handle:       h,
			DeviceName:   name,
			DisplayIndex: idx,
			Rect: platform.Rect{
				Left:   mi.rcMonitor.left,
				Top:    mi.rcMonitor.top,
				Right:  mi.rcMonitor.right,
				Bottom: mi.rcMonitor.bottom,
			},
			HDR: hdrSources[strings.ToUpper(name)],
		})
	}
	return out, nil
}

// MonitorCount implements platform.Source.
func (p *Platform) MonitorCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r, _, _ := procGetSystemMetrics.Call(smCMonitors)
	return int(r), nil
}
