//go:build !windows

package native

import "github.com/nerrad567/gray-logic-displays/internal/platform"

// New is unavailable off Windows.
func New() (platform.Platform, error) {
	return nil, platform.ErrUnsupported
}
