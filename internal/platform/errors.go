package platform

import "errors"

// Sentinel errors for platform implementations.
var (
	// ErrUnsupported is returned when the native backend is unavailable on
	// this operating system.
	ErrUnsupported = errors.New("platform: not supported on this operating system")

	// ErrTargetNotFound is returned when a display target is not active.
	ErrTargetNotFound = errors.New("platform: display target not found")

	// ErrInstanceNotFound is returned when a WMI instance does not exist.
	ErrInstanceNotFound = errors.New("platform: wmi instance not found")
)
