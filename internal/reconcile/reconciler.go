package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/calibration"
	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/platform"
)

// DefaultTimeout bounds one enumeration pass.
const DefaultTimeout = 10 * time.Second

// genericName matches the placeholder description Windows gives monitors
// without a vendor driver.
var genericName = regexp.MustCompile(`(?i)^generic (non-)?pnp monitor$`)

// Source names used in reports.
const (
	SourceLegacy   = "legacy"
	SourceTopology = "topology"
	SourceDesktop  = "desktop_monitor"
	SourceHandles  = "monitor_handles"
	SourceCount    = "monitor_count"
	SourcePhysical = "physical_monitors"
)

// Logger defines the logging interface used by the reconciler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Reconciler.
type Options struct {
	// Precluded identities never appear in the roster.
	Precluded monitor.IdentitySet

	// Precleared identities are bound to DDC/CI with an assumed capability,
	// skipping detection.
	Precleared monitor.IdentitySet

	// EnableHDR binds HDR-active targets to the white-level controller.
	EnableHDR bool

	// Timeout bounds one Reconcile call, enumeration and DDC/CI detection
	// together. Zero means DefaultTimeout.
	Timeout time.Duration

	// DetectConcurrency bounds parallel capability detection. Zero means 4.
	DetectConcurrency int

	Calibration *calibration.Store
	Environment monitor.Environment
	Controller  monitor.Options
	DDC         *ddc.Controller
	Logger      Logger
}

// Reconciler turns platform snapshots into a Roster.
type Reconciler struct {
	platform platform.Platform
	opts     Options
	logger   Logger

	onRescan atomic.Pointer[func(monitor.Identity, access.Result)]
}

// New creates a Reconciler.
func New(p platform.Platform, opts Options) *Reconciler {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DetectConcurrency <= 0 {
		opts.DetectConcurrency = 4
	}
	if opts.Calibration == nil {
		opts.Calibration = calibration.NewStore(calibration.Options{})
	}
	if opts.DDC == nil {
		opts.DDC = ddc.NewController(opts.Logger)
	}
	if opts.Controller.Logger == nil && opts.Logger != nil {
		opts.Controller.Logger = opts.Logger
	}

	r := &Reconciler{platform: p, opts: opts, logger: opts.Logger}
	if r.logger == nil {
		r.logger = noopLogger{}
	}

	// Controllers outlive the Reconcile call that built them, so the hook
	// they capture forwards to whatever handler is current.
	configured := opts.Controller.OnRescan
	r.opts.Controller.OnRescan = func(id monitor.Identity, res access.Result) {
		if configured != nil {
			configured(id, res)
		}
		if fn := r.onRescan.Load(); fn != nil {
			(*fn)(id, res)
		}
	}
	return r
}

// SetRescanHandler registers fn to be called when a controller built by
// this reconciler fails with NoLongerExists or TransmissionFailed. It
// replaces any previous handler; nil removes it.
func (r *Reconciler) SetRescanHandler(fn func(monitor.Identity, access.Result)) {
	if fn == nil {
		r.onRescan.Store(nil)
		return
	}
	r.onRescan.Store(&fn)
}

// Snapshot is the joined output of the four enumeration sources.
type Snapshot struct {
	Legacy   []platform.LegacyDevice
	Topology []platform.TopologyPath
	Desktop  []platform.WMIMonitor
	Handles  []platform.LiveHandle
	Count    int
	Reports  []SourceReport
}

// report returns the report for the named source.
func (s Snapshot) report(name string) SourceReport {
	for _, r := range s.Reports {
		if r.Name == name {
			return r
		}
	}
	return SourceReport{Name: name}
}

// Enumerate fetches all sources concurrently. Sources that fail or miss the
// timeout are left empty and described in Reports.
func (r *Reconciler) Enumerate(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var (
		snap Snapshot
		mu   sync.Mutex
		g    errgroup.Group
	)
	record := func(name string, count int, rep SourceReport) {
		rep.Name, rep.Count = name, count
		mu.Lock()
		snap.Reports = append(snap.Reports, rep)
		mu.Unlock()
	}

	g.Go(func() error {
		v, rep := await(ctx, r.platform.LegacyDevices, nil)
		snap.Legacy = v
		record(SourceLegacy, len(v), rep)
		return nil
	})
	g.Go(func() error {
		v, rep := await(ctx, r.platform.TopologyPaths, nil)
		snap.Topology = v
		record(SourceTopology, len(v), rep)
		return nil
	})
	g.Go(func() error {
		v, rep := await(ctx, r.platform.DesktopMonitors, nil)
		snap.Desktop = v
		record(SourceDesktop, len(v), rep)
		return nil
	})
	g.Go(func() error {
		v, rep := await(ctx, r.platform.MonitorHandles, nil)
		snap.Handles = v
		record(SourceHandles, len(v), rep)
		return nil
	})
	g.Go(func() error {
		v, rep := await(ctx, r.platform.MonitorCount, nil)
		snap.Count = v
		record(SourceCount, v, rep)
		return nil
	})
	_ = g.Wait()

	sort.Slice(snap.Reports, func(i, j int) bool { return snap.Reports[i].Name < snap.Reports[j].Name })
	return snap
}

// Reconcile enumerates every source and binds the roster. It fails only when
// the legacy device list is unavailable.
func (r *Reconciler) Reconcile(ctx context.Context) (*Roster, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	snap := r.Enumerate(ctx)
	if rep := snap.report(SourceLegacy); !rep.OK() {
		return nil, fmt.Errorf("%w: %s", ErrLegacyUnavailable, rep.Error)
	}
	return r.Bind(ctx, snap), nil
}

// entry is one roster slot during binding.
type entry struct {
	desc       monitor.Descriptor
	legacyDesc string
	path       *platform.TopologyPath
	bound      monitor.Controller
	binding    Binding
	ddcNote    string
}

// Bind runs the binding pipeline over a snapshot. It opens DDC/CI handles
// and is responsible for releasing the ones it does not bind. Handle
// requests and detection share the deadline of ctx, capped at the timeout.
func (r *Reconciler) Bind(ctx context.Context, snap Snapshot) *Roster {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	roster := &Roster{
		ID:        uuid.NewString(),
		ScannedAt: time.Now().UTC(),
		Sources:   append([]SourceReport(nil), snap.Reports...),
	}

	entries := r.buildEntries(snap)
	roster.Fingerprint = fingerprintOf(entries, snap.Count)

	if r.opts.EnableHDR {
		r.bindHDR(entries, snap.Handles)
	}

	physRep := r.bindDDC(ctx, entries, snap.Handles)
	roster.Sources = append(roster.Sources, physRep)

	r.bindWMI(entries, snap.Desktop)
	r.bindUnreachable(entries)

	for _, e := range entries {
		roster.Controllers = append(roster.Controllers, e.bound)
		roster.Bindings = append(roster.Bindings, e.binding)
	}

	r.logger.Info("roster reconciled",
		"roster_id", roster.ID,
		"monitors", len(roster.Controllers),
		"summary", roster.Summary(),
	)
	return roster
}

// buildEntries covers steps 1 and 2.
func (r *Reconciler) buildEntries(snap Snapshot) []*entry {
	paths := make(map[string]*platform.TopologyPath, len(snap.Topology))
	for i := range snap.Topology {
		p := &snap.Topology[i]
		key := monitor.NormalizeIdentity(p.DevicePath).Key()
		if _, dup := paths[key]; !dup {
			paths[key] = p
		}
	}

	rects := make(map[int]platform.Rect, len(snap.Handles))
	for _, h := range snap.Handles {
		if _, dup := rects[h.DisplayIndex]; !dup {
			rects[h.DisplayIndex] = h.Rect
		}
	}

	seen := make(map[string]bool, len(snap.Legacy))
	entries := make([]*entry, 0, len(snap.Legacy))

	for _, ld := range snap.Legacy {
		id := monitor.NormalizeIdentity(ld.DevicePath)
		if id == "" || seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true

		if r.opts.Precluded.Contains(id) {
			r.logger.Debug("monitor precluded", "identity", id)
			continue
		}

		path := paths[id.Key()]
		desc := monitor.Descriptor{
			Identity:     id,
			Description:  displayName(ld.Description, path),
			DisplayIndex: ld.DisplayIndex,
			MonitorIndex: ld.MonitorIndex,
			Rect:         rects[ld.DisplayIndex],
		}
		if path != nil {
			desc.Internal = path.Internal
			desc.Connection = path.Connection
			desc.RefreshRate = path.RefreshRate
		}

		entries = append(entries, &entry{desc: desc, legacyDesc: ld.Description, path: path})
	}
	return entries
}

// displayName picks the best human-readable name for a monitor.
func displayName(legacy string, path *platform.TopologyPath) string {
	if path != nil && path.FriendlyName != "" {
		return path.FriendlyName
	}
	if path != nil && path.Connection != "" && genericName.MatchString(legacy) {
		return fmt.Sprintf("%s (%s)", legacy, path.Connection)
	}
	return legacy
}

// bindHDR covers step 3.
func (r *Reconciler) bindHDR(entries []*entry, handles []platform.LiveHandle) {
	for _, h := range handles {
		if !h.HDR {
			continue
		}
		for _, e := range entries {
			if e.bound != nil || e.desc.DisplayIndex != h.DisplayIndex || e.path == nil {
				continue
			}

			d := e.desc
			d.Reachable = true
			e.bound = monitor.NewHDR(d, e.path.Target, r.platform, r.opts.Calibration, r.opts.Controller)
			e.binding = Binding{Identity: d.Identity, Backend: monitor.BackendHDR, Note: "target " + e.path.Target.String()}
			break
		}
	}
}

// candidate is a physical monitor reserved for an entry in step 4.
type candidate struct {
	entry  *entry
	handle *ddc.Handle
}

// bindDDC covers step 4.
func (r *Reconciler) bindDDC(ctx context.Context, entries []*entry, handles []platform.LiveHandle) SourceReport {
	rep := SourceReport{Name: SourcePhysical}
	start := time.Now()

	physical := r.openPhysical(ctx, handles, &rep)

	var candidates []candidate
	for i, h := range handles {
		for mi, pm := range physical[i] {
			e := firstDDCMatch(entries, h.DisplayIndex, mi, pm.Description())
			if e == nil {
				r.logger.Debug("releasing unmatched physical monitor", "display_index", h.DisplayIndex, "monitor_index", mi, "description", pm.Description())
				if err := pm.Close(); err != nil {
					r.logger.Warn("closing physical monitor", "error", err)
				}
				continue
			}
			e.ddcNote = "reserved"
			candidates = append(candidates, candidate{entry: e, handle: ddc.NewHandle(pm)})
		}
	}

	caps := r.detectAll(ctx, candidates)

	for i, c := range candidates {
		e := c.entry
		d := e.desc
		d.Reachable = true

		switch {
		case r.opts.Precleared.Contains(d.Identity):
			capability := ddc.PreclearedCapability()
			e.bound = monitor.NewDDC(d, c.handle, capability, r.opts.DDC, r.opts.Controller)
			e.binding = Binding{Identity: d.Identity, Backend: monitor.BackendDDC, Capability: &capability, Note: "precleared"}
		case caps[i].res.Succeeded():
			capability := caps[i].capability
			e.bound = monitor.NewDDC(d, c.handle, capability, r.opts.DDC, r.opts.Controller)
			e.binding = Binding{Identity: d.Identity, Backend: monitor.BackendDDC, Capability: &capability}
		default:
			e.ddcNote = "ddc/ci capability detection failed: " + caps[i].res.String()
			if !caps[i].timedOut {
				if err := c.handle.Close(); err != nil {
					r.logger.Warn("closing physical monitor", "identity", d.Identity, "error", err)
				}
			}
		}
	}

	rep.Elapsed = time.Since(start)
	return rep
}

// openPhysical requests the physical monitors of every live handle
// concurrently until ctx expires.
func (r *Reconciler) openPhysical(ctx context.Context, handles []platform.LiveHandle, rep *SourceReport) [][]ddc.PhysicalMonitor {
	physical := make([][]ddc.PhysicalMonitor, len(handles))
	var (
		mu   sync.Mutex
		errs []string
		g    errgroup.Group
	)

	for i, h := range handles {
		g.Go(func() error {
			pms, sr := await(ctx, func(ctx context.Context) ([]ddc.PhysicalMonitor, error) {
				return r.platform.PhysicalMonitors(ctx, h)
			}, closeAll)
			physical[i] = pms

			mu.Lock()
			defer mu.Unlock()
			rep.Count += len(pms)
			if sr.TimedOut {
				rep.TimedOut = true
			}
			if sr.Error != "" {
				errs = append(errs, fmt.Sprintf("display %d: %s", h.DisplayIndex, sr.Error))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		sort.Strings(errs)
		rep.Error = fmt.Sprint(errs)
	}
	return physical
}

func closeAll(pms []ddc.PhysicalMonitor) {
	for _, pm := range pms {
		_ = pm.Close()
	}
}

// firstDDCMatch returns the first unbound, unreserved entry at the given
// ordinals whose legacy description matches.
func firstDDCMatch(entries []*entry, displayIndex, monitorIndex int, description string) *entry {
	for _, e := range entries {
		if e.bound != nil || e.ddcNote != "" {
			continue
		}
		if e.desc.DisplayIndex == displayIndex && e.desc.MonitorIndex == monitorIndex && equalFold(e.legacyDesc, description) {
			return e
		}
	}
	return nil
}

type detection struct {
	capability ddc.Capability
	res        access.Result
	timedOut   bool
}

// detectAll runs capability detection for every non-precleared candidate
// with bounded parallelism. A detection that misses the deadline of ctx is
// reported as failed; its handle is released when the call finally returns.
func (r *Reconciler) detectAll(ctx context.Context, candidates []candidate) []detection {
	out := make([]detection, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(r.opts.DetectConcurrency)

	for i, c := range candidates {
		if r.opts.Precleared.Contains(c.entry.desc.Identity) {
			out[i] = detection{res: access.OK}
			continue
		}
		g.Go(func() error {
			type detected struct {
				capability ddc.Capability
				res        access.Result
			}
			v, sr := await(ctx, func(context.Context) (detected, error) {
				capability, res := r.opts.DDC.DetectCapability(c.handle)
				return detected{capability, res}, nil
			}, func(detected) {
				_ = c.handle.Close()
			})

			if sr.TimedOut {
				out[i] = detection{res: access.Fail(access.Failed, "capability detection timed out"), timedOut: true}
				return nil
			}
			out[i] = detection{capability: v.capability, res: v.res}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// bindWMI covers step 5.
func (r *Reconciler) bindWMI(entries []*entry, desktop []platform.WMIMonitor) {
	used := make([]bool, len(desktop))

	for _, e := range entries {
		if e.bound != nil {
			continue
		}
		for i, w := range desktop {
			if used[i] || len(w.Levels) == 0 {
				continue
			}
			if w.DisplayIndex >= 0 && w.DisplayIndex != e.desc.DisplayIndex {
				continue
			}
			if !monitor.NormalizeIdentity(w.InstanceName).Equal(e.desc.Identity) {
				continue
			}

			used[i] = true
			d := e.desc
			d.Reachable = true
			if e.path == nil {
				d.Internal = !w.Removable
			}
			e.bound = monitor.NewWMI(d, w.InstanceName, w.Levels, r.platform, r.platform, r.opts.Environment, r.opts.Controller)
			e.binding = Binding{Identity: d.Identity, Backend: monitor.BackendWMI, Note: fmt.Sprintf("%d levels", len(w.Levels))}
			break
		}
	}
}

// bindUnreachable covers step 6.
func (r *Reconciler) bindUnreachable(entries []*entry) {
	for _, e := range entries {
		if e.bound != nil {
			continue
		}
		d := e.desc
		reason := ""
		if e.ddcNote != "" {
			// DDC/CI answered for this monitor but could not be used.
			d.Reachable = true
			reason = e.ddcNote
		}
		e.bound = monitor.NewUnreachable(d, reason, r.opts.Controller)
		e.binding = Binding{Identity: d.Identity, Backend: monitor.BackendUnreachable, Note: reason}
	}
}
