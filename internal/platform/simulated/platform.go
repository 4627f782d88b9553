package simulated

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// monitorInterfaceGUID is appended to simulated device interface paths.
const monitorInterfaceGUID = "{e6f07b5f-ee97-4a90-b076-33f57bf4eaa7}"

// Platform is an in-memory platform.Platform.
type Platform struct {
	mu       sync.Mutex
	cfg      Config
	monitors []*monitorState
	open     int
}

type monitorState struct {
	cfg      MonitorConfig
	vcp      map[byte][2]uint32
	failures int
	wmiValue int
	white    float64
	maxWhite float64
	targetID uint32
}

// New builds a platform from a validated description.
func New(cfg Config) *Platform {
	p := &Platform{cfg: cfg}
	for i := range cfg.Monitors {
		p.addLocked(cfg.Monitors[i])
	}
	return p
}

// Load builds a platform from a YAML file.
func Load(path string) (*Platform, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(*cfg), nil
}

func (p *Platform) addLocked(mc MonitorConfig) {
	st := &monitorState{
		cfg:      mc,
		vcp:      map[byte][2]uint32{},
		targetID: uint32(len(p.monitors) + 1),
	}
	if mc.DDC != nil {
		for code, v := range mc.DDC.VCP {
			c, _ := ParseVCPCode(code)
			st.vcp[c] = v
		}
		st.failures = mc.DDC.TransmissionFailures
	}
	if mc.WMI != nil {
		st.wmiValue = mc.WMI.Brightness
	}
	if mc.HDR != nil {
		st.white, st.maxWhite = mc.HDR.WhiteLevel, mc.HDR.MaxWhiteLevel
	}
	p.monitors = append(p.monitors, st)
}

// AddMonitor attaches a monitor, as if it had been plugged in.
func (p *Platform) AddMonitor(mc MonitorConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(mc)
}

// RemoveMonitor detaches a monitor. Open DDC/CI handles to it start failing
// with "monitor no longer exists".
func (p *Platform) RemoveMonitor(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range p.monitors {
		if strings.EqualFold(m.cfg.Identity, identity) {
			p.monitors = append(p.monitors[:i], p.monitors[i+1:]...)
			return true
		}
	}
	return false
}

// OpenHandles returns the number of physical monitor handles not yet closed.
func (p *Platform) OpenHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Close implements platform.Platform.
func (p *Platform) Close() error { return nil }

func devicePath(identity string) string {
	return `\\?\` + strings.ReplaceAll(identity, `\`, "#") + "#" + monitorInterfaceGUID
}

func toRect(r Rect) platform.Rect {
	return platform.Rect{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}
}

func (m *monitorState) target() platform.DisplayTarget {
	return platform.DisplayTarget{AdapterLow: uint32(m.cfg.DisplayIndex + 1), TargetID: m.targetID}
}

func (m *monitorState) hdr() bool {
	return m.cfg.HDR != nil && m.cfg.HDR.Enabled
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot copies the monitor list under the lock.
func (p *Platform) snapshot() []*monitorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*monitorState(nil), p.monitors...)
}

// LegacyDevices implements platform.Source.
func (p *Platform) LegacyDevices(ctx context.Context) ([]platform.LegacyDevice, error) {
	if err := sleep(ctx, p.cfg.Latency.Legacy); err != nil {
		return nil, err
	}

	var out []platform.LegacyDevice
	for _, m := range p.snapshot() {
		out = append(out, platform.LegacyDevice{
			DevicePath:   devicePath(m.cfg.Identity),
			Description:  m.cfg.Description,
			AdapterName:  m.cfg.Adapter,
			DisplayIndex: m.cfg.DisplayIndex,
			MonitorIndex: m.cfg.MonitorIndex,
			Primary:      m.cfg.DisplayIndex == 0,
		})
	}
	return out, nil
}

// TopologyPaths implements platform.Source.
func (p *Platform) TopologyPaths(ctx context.Context) ([]platform.TopologyPath, error) {
	if err := sleep(ctx, p.cfg.Latency.Topology); err != nil {
		return nil, err
	}

	var out []platform.TopologyPath
	for _, m := range p.snapshot() {
		if m.cfg.NoTopology {
			continue
		}
		out = append(out, platform.TopologyPath{
			DevicePath:   devicePath(m.cfg.Identity),
			FriendlyName: m.cfg.FriendlyName,
			Connection:   m.cfg.Connection,
			Internal:     m.cfg.Internal,
			RefreshRate:  m.cfg.RefreshRate,
			DisplayIndex: m.cfg.DisplayIndex,
			Target:       m.target(),
			HDR:          m.hdr(),
		})
	}
	return out, nil
}

// DesktopMonitors implements platform.Source.
func (p *Platform) DesktopMonitors(ctx context.Context) ([]platform.WMIMonitor, error) {
	if err := sleep(ctx, p.cfg.Latency.Desktop); err != nil {
		return nil, err
	}

	var out []platform.WMIMonitor
	for _, m := range p.snapshot() {
		if m.cfg.WMI == nil {
			continue
		}
		out = append(out, platform.WMIMonitor{
			InstanceName: m.cfg.Identity + "_0",
			Description:  m.cfg.Description,
			Removable:    m.cfg.WMI.Removable,
			Levels:       append([]byte(nil), m.cfg.WMI.Levels...),
			DisplayIndex: -1,
		})
	}
	return out, nil
}

// MonitorHandles implements platform.Source. One handle exists per display
// ordinal; monitors sharing an ordinal are mirrored.
func (p *Platform) MonitorHandles(ctx context.Context) ([]platform.LiveHandle, error) {
	if err := sleep(ctx, p.cfg.Latency.Handles); err != nil {
		return nil, err
	}

	byIndex := map[int]*platform.LiveHandle{}
	for _, m := range p.snapshot() {
		h, ok := byIndex[m.cfg.DisplayIndex]
		if !ok {
			h = &platform.LiveHandle{
				Handle:       uintptr(0x10000 + m.cfg.DisplayIndex),
				DeviceName:   fmt.Sprintf(`\\.\DISPLAY%d`, m.cfg.DisplayIndex+1),
				DisplayIndex: m.cfg.DisplayIndex,
				Rect:         toRect(m.cfg.Rect),
			}
			byIndex[m.cfg.DisplayIndex] = h
		}
		if m.hdr() {
			h.HDR = true
		}
	}

	out := make([]platform.LiveHandle, 0, len(byIndex))
	for _, h := range byIndex {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayIndex < out[j].DisplayIndex })
	return out, nil
}

// MonitorCount implements platform.Source.
func (p *Platform) MonitorCount(ctx context.Context) (int, error) {
	handles, err := p.MonitorHandles(ctx)
	return len(handles), err
}

// PhysicalMonitors implements platform.Source. Every monitor on the display
// gets a handle; those without DDC/CI fail every command.
func (p *Platform) PhysicalMonitors(ctx context.Context, h platform.LiveHandle) ([]ddc.PhysicalMonitor, error) {
	if err := sleep(ctx, p.cfg.Latency.Physical); err != nil {
		return nil, err
	}

	var on []*monitorState
	for _, m := range p.snapshot() {
		if m.cfg.DisplayIndex == h.DisplayIndex {
			on = append(on, m)
		}
	}
	sort.SliceStable(on, func(i, j int) bool { return on[i].cfg.MonitorIndex < on[j].cfg.MonitorIndex })

	out := make([]ddc.PhysicalMonitor, 0, len(on))
	p.mu.Lock()
	for _, m := range on {
		out = append(out, &physicalMonitor{p: p, m: m})
		p.open++
	}
	p.mu.Unlock()
	return out, nil
}

// AmbientLightSensor implements platform.Platform.
func (p *Platform) AmbientLightSensor(context.Context) (bool, error) {
	return p.cfg.AmbientLightSensor, nil
}

// PowerBrightness implements platform.PowerBrightness.
func (p *Platform) PowerBrightness() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Power.Brightness, nil
}

// SetPowerBrightness implements platform.PowerBrightness.
func (p *Platform) SetPowerBrightness(percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Power.Brightness = percent
	return nil
}

// AdaptiveBrightnessEnabled implements platform.PowerBrightness.
func (p *Platform) AdaptiveBrightnessEnabled() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Power.Adaptive, nil
}

func (p *Platform) findLocked(match func(*monitorState) bool) *monitorState {
	for _, m := range p.monitors {
		if match(m) {
			return m
		}
	}
	return nil
}

func (p *Platform) wmiMonitorLocked(instanceName string) (*monitorState, error) {
	m := p.findLocked(func(m *monitorState) bool {
		return m.cfg.WMI != nil && strings.EqualFold(m.cfg.Identity+"_0", instanceName)
	})
	if m == nil {
		return nil, fmt.Errorf("%w: %s", platform.ErrInstanceNotFound, instanceName)
	}
	return m, nil
}

// WMIBrightness implements platform.WMIBrightness.
func (p *Platform) WMIBrightness(instanceName string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.wmiMonitorLocked(instanceName)
	if err != nil {
		return 0, err
	}
	return m.wmiValue, nil
}

// SetWMIBrightness implements platform.WMIBrightness.
func (p *Platform) SetWMIBrightness(instanceName string, level byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.wmiMonitorLocked(instanceName)
	if err != nil {
		return err
	}
	m.wmiValue = int(level)
	return nil
}

func (p *Platform) hdrMonitorLocked(target platform.DisplayTarget) (*monitorState, error) {
	m := p.findLocked(func(m *monitorState) bool {
		return m.hdr() && m.target() == target
	})
	if m == nil {
		return nil, fmt.Errorf("%w: %s", platform.ErrTargetNotFound, target)
	}
	return m, nil
}

// SDRWhiteLevel implements platform.WhiteLevel.
func (p *Platform) SDRWhiteLevel(target platform.DisplayTarget) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.hdrMonitorLocked(target)
	if err != nil {
		return 0, 0, err
	}
	return m.white, m.maxWhite, nil
}

// SetSDRWhiteLevel implements platform.WhiteLevel.
func (p *Platform) SetSDRWhiteLevel(target platform.DisplayTarget, nits float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.hdrMonitorLocked(target)
	if err != nil {
		return err
	}
	m.white = nits
	return nil
}

var _ platform.Platform = (*Platform)(nil)
