package calibration

import "errors"

// Sentinel errors for the calibration package.
var (
	// ErrCorrupt is returned by a Persister when stored data cannot be decoded.
	ErrCorrupt = errors.New("calibration: corrupt data")
)
