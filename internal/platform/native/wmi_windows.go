//go:build windows

package native

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/yusufpapurcu/wmi"

	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

const (
	namespaceCIMV2 = `root\CIMV2`
	namespaceWMI   = `root\WMI`

	// WmiSetBrightness timeout in seconds.
	setBrightnessTimeout = 1

	sFalse = 0x00000001
)

// Property names below must match the WMI class schema.

type win32DesktopMonitor struct {
	PNPDeviceID string
	Description string
}

type wmiMonitorBrightness struct {
	InstanceName      string
	CurrentBrightness uint8
	Level             []uint8
}

type wmiMonitorConnectionParams struct {
	InstanceName          string
	VideoOutputTechnology uint32
}

// wmiClient queries the WMI brightness classes. Reads go through the wmi
// package; the brightness method is invoked over IDispatch.
type wmiClient struct{}

func newWMIClient() *wmiClient { return &wmiClient{} }

// quote renders s as a WQL string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func (c *wmiClient) desktopMonitors() ([]win32DesktopMonitor, error) {
	var dst []win32DesktopMonitor
	if err := wmi.QueryNamespace("SELECT PNPDeviceID, Description FROM Win32_DesktopMonitor", &dst, namespaceCIMV2); err != nil {
		return nil, fmt.Errorf("querying Win32_DesktopMonitor: %w", err)
	}
	return dst, nil
}

// brightness returns every WmiMonitorBrightness instance. The class is absent
// on systems without a WMI-controllable panel, which surfaces as an error.
func (c *wmiClient) brightness(where string) ([]wmiMonitorBrightness, error) {
	q := "SELECT InstanceName, CurrentBrightness, Level FROM WmiMonitorBrightness"
	if where != "" {
		q += " WHERE " + where
	}
	var dst []wmiMonitorBrightness
	if err := wmi.QueryNamespace(q, &dst, namespaceWMI); err != nil {
		return nil, fmt.Errorf("querying WmiMonitorBrightness: %w", err)
	}
	return dst, nil
}

func (c *wmiClient) connections() ([]wmiMonitorConnectionParams, error) {
	var dst []wmiMonitorConnectionParams
	if err := wmi.QueryNamespace("SELECT InstanceName, VideoOutputTechnology FROM WmiMonitorConnectionParams", &dst, namespaceWMI); err != nil {
		return nil, fmt.Errorf("querying WmiMonitorConnectionParams: %w", err)
	}
	return dst, nil
}

// setBrightness calls WmiMonitorBrightnessMethods.WmiSetBrightness on the
// named instance.
func (c *wmiClient) setBrightness(instance string, level byte) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || (oleErr.Code() != ole.S_OK && oleErr.Code() != sFalse) {
			return fmt.Errorf("initialising COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return fmt.Errorf("creating SWbemLocator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("querying SWbemLocator: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, namespaceWMI)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", namespaceWMI, err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	q := "SELECT * FROM WmiMonitorBrightnessMethods WHERE InstanceName = " + quote(instance)
	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", q)
	if err != nil {
		return fmt.Errorf("querying WmiMonitorBrightnessMethods: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countVar, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return fmt.Errorf("counting WmiMonitorBrightnessMethods: %w", err)
	}
	count := countVar.Val
	_ = countVar.Clear()
	if count == 0 {
		return fmt.Errorf("%w: %s", platform.ErrInstanceNotFound, instance)
	}

	itemRaw, err := oleutil.CallMethod(result, "ItemIndex", 0)
	if err != nil {
		return fmt.Errorf("fetching WmiMonitorBrightnessMethods: %w", err)
	}
	item := itemRaw.ToIDispatch()
	defer item.Release()

	ret, err := oleutil.CallMethod(item, "WmiSetBrightness", uint32(setBrightnessTimeout), level)
	if err != nil {
		return fmt.Errorf("WmiSetBrightness: %w", err)
	}
	_ = ret.Clear()
	return nil
}

// instanceMatches reports whether a WMI instance name belongs to a PnP
// device id. Instance names carry a _N suffix.
func instanceMatches(instance, pnp string) bool {
	if len(instance) < len(pnp) || !strings.EqualFold(instance[:len(pnp)], pnp) {
		return false
	}
	rest := instance[len(pnp):]
	return rest == "" || strings.HasPrefix(rest, "_")
}

// DesktopMonitors implements platform.Source.
func (p *Platform) DesktopMonitors(ctx context.Context) ([]platform.WMIMonitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	monitors, err := p.wmi.desktopMonitors()
	if err != nil {
		return nil, err
	}

	// Both classes are optional; a missing class just leaves entries bare.
	levels, _ := p.wmi.brightness("")
	conns, _ := p.wmi.connections()

	out := make([]platform.WMIMonitor, 0, len(monitors))
	for _, m := range monitors {
		if m.PNPDeviceID == "" {
			continue
		}
		wm := platform.WMIMonitor{
			InstanceName: m.PNPDeviceID,
			Description:  m.Description,
			Removable:    true,
			DisplayIndex: -1,
		}
		for _, b := range levels {
			if instanceMatches(b.InstanceName, m.PNPDeviceID) {
				wm.InstanceName = b.InstanceName
				wm.Levels = b.Level
				break
			}
		}
		for _, c := range conns {
			if instanceMatches(c.InstanceName, m.PNPDeviceID) {
				_, internal := connectionName(c.VideoOutputTechnology)
				wm.Removable = !internal
				break
			}
		}
		out = append(out, wm)
	}
	return out, nil
}

// WMIBrightness implements platform.WMIBrightness.
func (p *Platform) WMIBrightness(instanceName string) (int, error) {
	rows, err := p.wmi.brightness("InstanceName = " + quote(instanceName))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: %s", platform.ErrInstanceNotFound, instanceName)
	}
	return int(rows[0].CurrentBrightness), nil
}

// SetWMIBrightness implements platform.WMIBrightness.
func (p *Platform) SetWMIBrightness(instanceName string, level byte) error {
	return p.wmi.setBrightness(instanceName, level)
}
