//go:build windows

package native

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	powrprof                   = windows.NewLazySystemDLL("powrprof.dll")
	procPowerGetActiveScheme   = powrprof.NewProc("PowerGetActiveScheme")
	procPowerSetActiveScheme   = powrprof.NewProc("PowerSetActiveScheme")
	procPowerReadACValueIndex  = powrprof.NewProc("PowerReadACValueIndex")
	procPowerReadDCValueIndex  = powrprof.NewProc("PowerReadDCValueIndex")
	procPowerWriteACValueIndex = powrprof.NewProc("PowerWriteACValueIndex")
	procPowerWriteDCValueIndex = powrprof.NewProc("PowerWriteDCValueIndex")

	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemPowerStatus = kernel32.NewProc("GetSystemPowerStatus")
)

var (
	guidVideoSubgroup      = mustGUID("{7516b95f-f776-4464-8c53-06167f40cc99}")
	guidVideoBrightness    = mustGUID("{aded5e82-b909-4619-9949-f5d71dac0bcb}")
	guidAdaptiveBrightness = mustGUID("{fbd9aa66-9553-4097-ba44-ed6e9d65eab8}")
)

func mustGUID(s string) windows.GUID {
	g, err := windows.GUIDFromString(s)
	if err != nil {
		panic(err)
	}
	return g
}

// systemPowerStatus is SYSTEM_POWER_STATUS.
type systemPowerStatus struct {
	acLineStatus        byte
	batteryFlag         byte
	batteryLifePercent  byte
	systemStatusFlag    byte
	batteryLifeTime     uint32
	batteryFullLifeTime uint32
}

func onACPower() bool {
	var s systemPowerStatus
	if r, _, _ := procGetSystemPowerStatus.Call(uintptr(unsafe.Pointer(&s))); r == 0 {
		return true
	}
	// 0 is offline; 1 online; 255 unknown.
	return s.acLineStatus != 0
}

// withActiveScheme runs fn with the active power scheme GUID.
func withActiveScheme(fn func(scheme *windows.GUID) error) error {
	var scheme *windows.GUID
	r, _, _ := procPowerGetActiveScheme.Call(0, uintptr(unsafe.Pointer(&scheme)))
	if r != 0 {
		return fmt.Errorf("PowerGetActiveScheme: %w", syscall.Errno(r))
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(scheme))))
	return fn(scheme)
}

func readSetting(setting *windows.GUID) (uint32, error) {
	proc := procPowerReadACValueIndex
	if !onACPower() {
		proc = procPowerReadDCValueIndex
	}

	var value uint32
	err := withActiveScheme(func(scheme *windows.GUID) error {
		r, _, _ := proc.Call(0,
			uintptr(unsafe.Pointer(scheme)),
			uintptr(unsafe.Pointer(&guidVideoSubgroup)),
			uintptr(unsafe.Pointer(setting)),
			uintptr(unsafe.Pointer(&value)),
		)
		if r != 0 {
			return fmt.Errorf("%s: %w", proc.Name, syscall.Errno(r))
		}
		return nil
	})
	return value, err
}

// PowerBrightness implements platform.PowerBrightness.
func (p *Platform) PowerBrightness() (int, error) {
	v, err := readSetting(&guidVideoBrightness)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// SetPowerBrightness implements platform.PowerBrightness. The scheme is
// re-applied so the new value takes effect.
func (p *Platform) SetPowerBrightness(percent int) error {
	proc := procPowerWriteACValueIndex
	if !onACPower() {
		proc = procPowerWriteDCValueIndex
	}

	return withActiveScheme(func(scheme *windows.GUID) error {
		r, _, _ := proc.Call(0,
			uintptr(unsafe.Pointer(scheme)),
			uintptr(unsafe.Pointer(&guidVideoSubgroup)),
			uintptr(unsafe.Pointer(&guidVideoBrightness)),
			uintptr(uint32(percent)),
		)
		if r != 0 {
			return fmt.Errorf("%s: %w", proc.Name, syscall.Errno(r))
		}
		r, _, _ = procPowerSetActiveScheme.Call(0, uintptr(unsafe.Pointer(scheme)))
		if r != 0 {
			return fmt.Errorf("PowerSetActiveScheme: %w", syscall.Errno(r))
		}
		return nil
	})
}

// AdaptiveBrightnessEnabled implements platform.PowerBrightness.
func (p *Platform) AdaptiveBrightnessEnabled() (bool, error) {
	v, err := readSetting(&guidAdaptiveBrightness)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
