package ddc

import "sync"

// HighLevel holds the coarse capability flags reported by the monitor
// configuration API.
type HighLevel struct {
	Brightness       bool
	Contrast         bool
	ColorTemperature bool
}

// PhysicalMonitor is an open DDC/CI handle supplied by the platform layer.
//
// Implementations return *Error for failed OS calls so failures can be
// classified. They need not be safe for concurrent use; Handle serialises
// access.
type PhysicalMonitor interface {
	Description() string
	HighLevelCapabilities() (HighLevel, error)
	CapabilitiesString() (string, error)
	GetBrightness() (RawRange, error)
	SetBrightness(value uint32) error
	GetVCPFeature(code byte) (current, maximum uint32, err error)
	SetVCPFeature(code byte, value uint32) error
	Close() error
}

// Handle owns one PhysicalMonitor. After Close every call short-circuits with
// ErrHandleClosed without reaching the OS.
type Handle struct {
	mu          sync.Mutex
	pm          PhysicalMonitor
	description string
	closed      bool
}

// NewHandle wraps pm. The Handle takes ownership and is responsible for
// releasing it.
func NewHandle(pm PhysicalMonitor) *Handle {
	return &Handle{pm: pm, description: pm.Description()}
}

// Description returns the description reported when the handle was opened.
func (h *Handle) Description() string {
	return h.description
}

// Do runs fn with the underlying monitor while holding the handle lock.
func (h *Handle) Do(fn func(PhysicalMonitor) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	return fn(h.pm)
}

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close releases the underlying monitor. Only the first call reaches the OS.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.pm.Close()
}
