//go:build windows

package native

import (
	"context"

	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// Platform is the Windows implementation of platform.Platform.
type Platform struct {
	wmi *wmiClient
}

// New creates the native platform.
func New() (platform.Platform, error) {
	return &Platform{wmi: newWMIClient()}, nil
}

// Close implements platform.Platform.
func (p *Platform) Close() error { return nil }

// AmbientLightSensor implements platform.Platform.
func (p *Platform) AmbientLightSensor(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return hasLightSensor()
}

var _ platform.Platform = (*Platform)(nil)
