package reconcile

import "errors"

// Sentinel errors for the reconcile package.
var (
	// ErrLegacyUnavailable is returned when the legacy device list, which
	// seeds the roster, could not be enumerated in time.
	ErrLegacyUnavailable = errors.New("reconcile: legacy device enumeration unavailable")
)
