//go:build windows

package native

import (
	"context"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

var (
	procGetDisplayConfigBufferSizes = user32.NewProc("GetDisplayConfigBufferSizes")
	procQueryDisplayConfig          = user32.NewProc("QueryDisplayConfig")
	procDisplayConfigGetDeviceInfo  = user32.NewProc("DisplayConfigGetDeviceInfo")
	procDisplayConfigSetDeviceInfo  = user32.NewProc("DisplayConfigSetDeviceInfo")
)

const (
	qdcOnlyActivePaths = 0x00000002

	deviceInfoGetSourceName        = 1
	deviceInfoGetTargetName        = 2
	deviceInfoGetAdvancedColorInfo = 9
	deviceInfoGetSDRWhiteLevel     = 11

	// Undocumented; used by the shell's HDR brightness slider.
	deviceInfoSetSDRWhiteLevel = 0xFFFFFFEE

	advancedColorEnabled = 0x2

	// The shell exposes SDR content brightness between 80 and 480 nits.
	maxSDRWhiteLevel = 480.0
)

// Output technology values (DISPLAYCONFIG_VIDEO_OUTPUT_TECHNOLOGY).
const (
	outputHD15             = 0
	outputSVideo           = 1
	outputComposite        = 2
	outputComponent        = 3
	outputDVI              = 4
	outputHDMI             = 5
	outputLVDS             = 6
	outputDJPN             = 8
	outputSDI              = 9
	outputDisplayPortExt   = 10
	outputDisplayPortEmbed = 11
	outputUDIExternal      = 12
	outputUDIEmbedded      = 13
	outputSDTVDongle       = 14
	outputMiracast         = 15
	outputIndirectWired    = 16
	outputIndirectVirtual  = 17
	outputInternal         = 0x80000000
)

type luid struct {
	lowPart  uint32
	highPart int32
}

type rational struct {
	numerator   uint32
	denominator uint32
}

type pathSourceInfo struct {
	adapterID   luid
	id          uint32
	modeInfoIdx uint32
	statusFlags uint32
}

type pathTargetInfo struct {
	adapterID        luid
	id               uint32
	modeInfoIdx      uint32
	outputTechnology uint32
	rotation         uint32
	scaling          uint32
	refreshRate      rational
	scanLineOrdering uint32
	targetAvailable  int32
	statusFlags      uint32
}

// pathInfo is DISPLAYCONFIG_PATH_INFO.
type pathInfo struct {
	source pathSourceInfo
	target pathTargetInfo
	flags  uint32
}

// modeInfo is DISPLAYCONFIG_MODE_INFO; the union is kept opaque.
type modeInfo struct {
	infoType  uint32
	id        uint32
	adapterID luid
	data      [48]byte
}

type deviceInfoHeader struct {
	infoType  uint32
	size      uint32
	adapterID luid
	id        uint32
}

type sourceDeviceName struct {
	header            deviceInfoHeader
	viewGdiDeviceName [32]uint16
}

type targetDeviceName struct {
	header                    deviceInfoHeader
	flags                     uint32
	outputTechnology          uint32
	edidManufactureID         uint16
	edidProductCodeID         uint16
	connectorInstance         uint32
	monitorFriendlyDeviceName [64]uint16
	monitorDevicePath         [128]uint16
}

type advancedColorInfo struct {
	header              deviceInfoHeader
	value               uint32
	colorEncoding       uint32
	bitsPerColorChannel uint32
}

type sdrWhiteLevel struct {
	header        deviceInfoHeader
	sdrWhiteLevel uint32
}

type setSDRWhiteLevel struct {
	header        deviceInfoHeader
	sdrWhiteLevel uint32
	finalValue    uint8
	_             [3]byte
}

func deviceInfo(header *deviceInfoHeader) error {
	r, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(header)))
	if r != 0 {
		return fmt.Errorf("DisplayConfigGetDeviceInfo(%d): %w", header.infoType, syscall.Errno(r))
	}
	return nil
}

// queriedPath is an active path with the device info we care about.
type queriedPath struct {
	path          pathInfo
	gdiName       string
	devicePath    string
	friendlyName  string
	advancedColor bool
}

func queryPaths() ([]queriedPath, error) {
	var paths []pathInfo
	var modes []modeInfo

	for {
		var numPaths, numModes uint32
		r, _, _ := procGetDisplayConfigBufferSizes.Call(
			qdcOnlyActivePaths,
			uintptr(unsafe.Pointer(&numPaths)),
			uintptr(unsafe.Pointer(&numModes)),
		)
		if r != 0 {
			return nil, fmt.Errorf("GetDisplayConfigBufferSizes: %w", syscall.Errno(r))
		}
		if numPaths == 0 {
			return nil, nil
		}

		paths = make([]pathInfo, numPaths)
		modes = make([]modeInfo, numModes)
		r, _, _ = procQueryDisplayConfig.Call(
			qdcOnlyActivePaths,
			uintptr(unsafe.Pointer(&numPaths)),
			uintptr(unsafe.Pointer(&paths[0])),
			uintptr(unsafe.Pointer(&numModes)),
			uintptr(unsafe.Pointer(&modes[0])),
			0,
		)
		if syscall.Errno(r) == windows.ERROR_INSUFFICIENT_BUFFER {
			// Topology changed between the two calls.
			continue
		}
		if r != 0 {
			return nil, fmt.Errorf("QueryDisplayConfig: %w", syscall.Errno(r))
		}
		paths = paths[:numPaths]
		break
	}

	out := make([]queriedPath, 0, len(paths))
	for _, p := range paths {
		src := sourceDeviceName{header: deviceInfoHeader{
			infoType:  deviceInfoGetSourceName,
			size:      uint32(unsafe.Sizeof(sourceDeviceName{})),
			adapterID: p.source.adapterID,
			id:        p.source.id,
		}}
		if err := deviceInfo(&src.header); err != nil {
			continue
		}

		tgt := targetDeviceName{header: deviceInfoHeader{
			infoType:  deviceInfoGetTargetName,
			size:      uint32(unsafe.Sizeof(targetDeviceName{})),
			adapterID: p.target.adapterID,
			id:        p.target.id,
		}}
		if err := deviceInfo(&tgt.header); err != nil {
			continue
		}

		color := advancedColorInfo{header: deviceInfoHeader{
			infoType:  deviceInfoGetAdvancedColorInfo,
			size:      uint32(unsafe.Sizeof(advancedColorInfo{})),
			adapterID: p.target.adapterID,
			id:        p.target.id,
		}}
		hdr := deviceInfo(&color.header) == nil && color.value&advancedColorEnabled != 0

		out = append(out, queriedPath{
			path:          p,
			gdiName:       windows.UTF16ToString(src.viewGdiDeviceName[:]),
			devicePath:    windows.UTF16ToString(tgt.monitorDevicePath[:]),
			friendlyName:  windows.UTF16ToString(tgt.monitorFriendlyDeviceName[:]),
			advancedColor: hdr,
		})
	}
	return out, nil
}

func connectionName(tech uint32) (name string, internal bool) {
	switch tech {
	case outputHD15:
		return "VGA", false
	case outputSVideo:
		return "S-Video", false
	case outputComposite:
		return "Composite", false
	case outputComponent:
		return "Component", false
	case outputDVI:
		return "DVI", false
	case outputHDMI:
		return "HDMI", false
	case outputLVDS:
		return "LVDS", true
	case outputDJPN:
		return "D-JPN", false
	case outputSDI:
		return "SDI", false
	case outputDisplayPortExt:
		return "DisplayPort", false
	case outputDisplayPortEmbed:
		return "eDP", true
	case outputUDIExternal:
		return "UDI", false
	case outputUDIEmbedded:
		return "UDI", true
	case outputSDTVDongle:
		return "SDTV", false
	case outputMiracast:
		return "Miracast", false
	case outputIndirectWired:
		return "Indirect", false
	case outputIndirectVirtual:
		return "Virtual", false
	case outputInternal:
		return "Internal", true
	default:
		return "Other", false
	}
}

// TopologyPaths implements platform.Source.
func (p *Platform) TopologyPaths(ctx context.Context) ([]platform.TopologyPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queried, err := queryPaths()
	if err != nil {
		return nil, err
	}

	out := make([]platform.TopologyPath, 0, len(queried))
	for _, q := range queried {
		idx, ok := displayIndexOf(q.gdiName)
		if !ok || q.devicePath == "" {
			continue
		}
		conn, internal := connectionName(q.path.target.outputTechnology)

		var refresh float64
		if rr := q.path.target.refreshRate; rr.denominator != 0 {
			refresh = float64(rr.numerator) / float64(rr.denominator)
		}

		out = append(out, platform.TopologyPath{
			DevicePath:   q.devicePath,
			FriendlyName: q.friendlyName,
			Connection:   conn,
			Internal:     internal,
			RefreshRate:  refresh,
			DisplayIndex: idx,
			Target: platform.DisplayTarget{
				AdapterLow:  q.path.target.adapterID.lowPart,
				AdapterHigh: q.path.target.adapterID.highPart,
				TargetID:    q.path.target.id,
			},
			HDR: q.advancedColor,
		})
	}
	return out, nil
}

func headerFor(target platform.DisplayTarget, infoType, size uint32) deviceInfoHeader {
	return deviceInfoHeader{
		infoType:  infoType,
		size:      size,
		adapterID: luid{lowPart: target.AdapterLow, highPart: target.AdapterHigh},
		id:        target.TargetID,
	}
}

// SDRWhiteLevel implements platform.WhiteLevel. The OS reports the level in
// thousandths of 80 nits.
func (p *Platform) SDRWhiteLevel(target platform.DisplayTarget) (float64, float64, error) {
	info := sdrWhiteLevel{header: headerFor(target, deviceInfoGetSDRWhiteLevel, uint32(unsafe.Sizeof(sdrWhiteLevel{})))}
	if err := deviceInfo(&info.header); err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", platform.ErrTargetNotFound, target, err)
	}
	return float64(info.sdrWhiteLevel) * 80 / 1000, maxSDRWhiteLevel, nil
}

// SetSDRWhiteLevel implements platform.WhiteLevel.
func (p *Platform) SetSDRWhiteLevel(target platform.DisplayTarget, nits float64) error {
	info := setSDRWhiteLevel{
		header:        headerFor(target, deviceInfoSetSDRWhiteLevel, uint32(unsafe.Sizeof(setSDRWhiteLevel{}))),
		sdrWhiteLevel: uint32(nits * 1000 / 80),
		finalValue:    1,
	}
	r, _, _ := procDisplayConfigSetDeviceInfo.Call(uintptr(unsafe.Pointer(&info.header)))
	if r != 0 {
		return fmt.Errorf("DisplayConfigSetDeviceInfo: %w", syscall.Errno(r))
	}
	return nil
}
