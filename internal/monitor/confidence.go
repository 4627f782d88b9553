package monitor

import (
	"sync"

	"github.com/nerrad567/gray-logic-displays/internal/access"
)

// Default confidence allowances.
const (
	DefaultInitialAllowance = 3
	DefaultNormalAllowance  = 5
)

// Confidence counts consecutive failures before a monitor is reported as not
// controllable. It starts at the initial allowance; the first success raises
// it to the normal allowance and every success restores it in full.
// NotSupported outcomes leave it unchanged.
type Confidence struct {
	mu        sync.Mutex
	normal    int
	remaining int
	message   string
}

// NewConfidence creates a counter. Non-positive allowances use the defaults.
func NewConfidence(initial, normal int) *Confidence {
	if initial <= 0 {
		initial = DefaultInitialAllowance
	}
	if normal <= 0 {
		normal = DefaultNormalAllowance
	}
	return &Confidence{normal: normal, remaining: initial}
}

// Observe records the outcome of an operation.
func (c *Confidence) Observe(res access.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch res.Status {
	case access.Succeeded:
		c.remaining = c.normal
		c.message = ""
	case access.NotSupported:
	default:
		if c.remaining > 0 {
			c.remaining--
		}
		c.message = res.String()
	}
}

// Controllable reports whether any allowance remains.
func (c *Confidence) Controllable() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining > 0 {
		return true, ""
	}
	return false, c.message
}
