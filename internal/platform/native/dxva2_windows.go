//go:build windows

package native

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

var (
	dxva2                                       = windows.NewLazySystemDLL("dxva2.dll")
	procGetNumberOfPhysicalMonitorsFromHMONITOR = dxva2.NewProc("GetNumberOfPhysicalMonitorsFromHMONITOR")
	procGetPhysicalMonitorsFromHMONITOR         = dxva2.NewProc("GetPhysicalMonitorsFromHMONITOR")
	procDestroyPhysicalMonitor                  = dxva2.NewProc("DestroyPhysicalMonitor")
	procGetMonitorCapabilities                  = dxva2.NewProc("GetMonitorCapabilities")
	procGetMonitorBrightness                    = dxva2.NewProc("GetMonitorBrightness")
	procSetMonitorBrightness                    = dxva2.NewProc("SetMonitorBrightness")
	procGetCapabilitiesStringLength             = dxva2.NewProc("GetCapabilitiesStringLength")
	procCapabilitiesRequestAndCapabilitiesReply = dxva2.NewProc("CapabilitiesRequestAndCapabilitiesReply")
	procGetVCPFeatureAndVCPFeatureReply         = dxva2.NewProc("GetVCPFeatureAndVCPFeatureReply")
	procSetVCPFeature                           = dxva2.NewProc("SetVCPFeature")
)

const (
	mcCapsBrightness       = 0x00000002
	mcCapsContrast         = 0x00000004
	mcCapsColorTemperature = 0x00000008
)

// physicalMonitorEntry is PHYSICAL_MONITOR.
type physicalMonitorEntry struct {
	handle      windows.Handle
	description [128]uint16
}

// callError wraps the last error of a failed dxva2 call.
func callError(op string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return &ddc.Error{Op: op, Code: uint32(errno)}
	}
	return &ddc.Error{Op: op}
}

// PhysicalMonitors implements platform.Source.
func (p *Platform) PhysicalMonitors(ctx context.Context, h platform.LiveHandle) ([]ddc.PhysicalMonitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var count uint32
	r, _, err := procGetNumberOfPhysicalMonitorsFromHMONITOR.Call(h.Handle, uintptr(unsafe.Pointer(&count)))
	if r == 0 {
		return nil, callError("GetNumberOfPhysicalMonitorsFromHMONITOR", err)
	}
	if count == 0 {
		return nil, nil
	}

	entries := make([]physicalMonitorEntry, count)
	r, _, err = procGetPhysicalMonitorsFromHMONITOR.Call(h.Handle, uintptr(count), uintptr(unsafe.Pointer(&entries[0])))
	if r == 0 {
		return nil, callError("GetPhysicalMonitorsFromHMONITOR", err)
	}

	out := make([]ddc.PhysicalMonitor, 0, count)
	for _, e := range entries {
		out = append(out, &physicalMonitor{
			handle:      uintptr(e.handle),
			description: windows.UTF16ToString(e.description[:]),
		})
	}
	return out, nil
}

// physicalMonitor is one dxva2 physical monitor handle. Handle serialises
// access, so no locking is done here.
type physicalMonitor struct {
	handle      uintptr
	description string
	closed      bool
}

func (m *physicalMonitor) Description() string { return m.description }

func (m *physicalMonitor) HighLevelCapabilities() (ddc.HighLevel, error) {
	var caps, temps uint32
	r, _, err := procGetMonitorCapabilities.Call(m.handle, uintptr(unsafe.Pointer(&caps)), uintptr(unsafe.Pointer(&temps)))
	if r == 0 {
		return ddc.HighLevel{}, callError("GetMonitorCapabilities", err)
	}
	return ddc.HighLevel{
		Brightness:       caps&mcCapsBrightness != 0,
		Contrast:         caps&mcCapsContrast != 0,
		ColorTemperature: caps&mcCapsColorTemperature != 0,
	}, nil
}

func (m *physicalMonitor) CapabilitiesString() (string, error) {
	var n uint32
	r, _, err := procGetCapabilitiesStringLength.Call(m.handle, uintptr(unsafe.Pointer(&n)))
	if r == 0 {
		return "", callError("GetCapabilitiesStringLength", err)
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	r, _, err = procCapabilitiesRequestAndCapabilitiesReply.Call(m.handle, uintptr(unsafe.Pointer(&buf[0])), uintptr(n))
	if r == 0 {
		return "", callError("CapabilitiesRequestAndCapabilitiesReply", err)
	}
	return windows.ByteSliceToString(buf), nil
}

func (m *physicalMonitor) GetBrightness() (ddc.RawRange, error) {
	var minimum, current, maximum uint32
	r, _, err := procGetMonitorBrightness.Call(m.handle,
		uintptr(unsafe.Pointer(&minimum)),
		uintptr(unsafe.Pointer(&current)),
		uintptr(unsafe.Pointer(&maximum)),
	)
	if r == 0 {
		return ddc.RawRange{}, callError("GetMonitorBrightness", err)
	}
	return ddc.RawRange{Minimum: minimum, Current: current, Maximum: maximum}, nil
}

func (m *physicalMonitor) SetBrightness(value uint32) error {
	r, _, err := procSetMonitorBrightness.Call(m.handle, uintptr(value))
	if r == 0 {
		return callError("SetMonitorBrightness", err)
	}
	return nil
}

func (m *physicalMonitor) GetVCPFeature(code byte) (uint32, uint32, error) {
	var codeType, current, maximum uint32
	r, _, err := procGetVCPFeatureAndVCPFeatureReply.Call(m.handle, uintptr(code),
		uintptr(unsafe.Pointer(&codeType)),
		uintptr(unsafe.Pointer(&current)),
		uintptr(unsafe.Pointer(&maximum)),
	)
	if r == 0 {
		return 0, 0, callError(fmt.Sprintf("GetVCPFeature(0x%02X)", code), err)
	}
	return current, maximum, nil
}

func (m *physicalMonitor) SetVCPFeature(code byte, value uint32) error {
	r, _, err := procSetVCPFeature.Call(m.handle, uintptr(code), uintptr(value))
	if r == 0 {
		return callError(fmt.Sprintf("SetVCPFeature(0x%02X)", code), err)
	}
	return nil
}

func (m *physicalMonitor) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	r, _, err := procDestroyPhysicalMonitor.Call(m.handle)
	if r == 0 {
		return callError("DestroyPhysicalMonitor", err)
	}
	return nil
}
