package display

import "errors"

// Sentinel errors for the display package.
var (
	// ErrMonitorNotFound is returned when no monitor matches an identity or slug.
	ErrMonitorNotFound = errors.New("display: monitor not found")

	// ErrClosed is returned by operations on a closed registry.
	ErrClosed = errors.New("display: registry closed")

	// ErrInvalidKind is returned when a history kind is not brightness or contrast.
	ErrInvalidKind = errors.New("display: invalid value kind")
)
