//go:build windows

package native

import (
	"errors"
	"strings"

	"golang.org/x/sys/windows"
)

// Sensor device setup class.
var guidSensorClass = mustGUID("{5175d334-c371-4806-b3ba-71fd53c9258d}")

// hasLightSensor looks for a present sensor device describing itself as a
// light sensor.
func hasLightSensor() (bool, error) {
	set, err := windows.SetupDiGetClassDevsEx(&guidSensorClass, "", 0, windows.DIGCF_PRESENT, 0, "")
	if err != nil {
		return false, err
	}
	defer set.Close()

	for i := 0; ; i++ {
		data, err := set.EnumDeviceInfo(i)
		if err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_ITEMS) {
				return false, nil
			}
			return false, err
		}

		for _, prop := range []windows.SPDRP{windows.SPDRP_FRIENDLYNAME, windows.SPDRP_DEVICEDESC} {
			v, err := set.DeviceRegistryProperty(data, prop)
			if err != nil {
				continue
			}
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), "light") {
				return true, nil
			}
		}
	}
}
