package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

// DefaultRefreshConcurrency bounds parallel brightness reads in Refresh.
const DefaultRefreshConcurrency = 4

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scanner produces rosters. *reconcile.Reconciler implements it.
type Scanner interface {
	Reconcile(ctx context.Context) (*reconcile.Roster, error)
	Probe(ctx context.Context, prev reconcile.Fingerprint) (bool, reconcile.Fingerprint, error)
}

// staleNotifier is implemented by scanners whose controllers report
// failures that suggest the roster is stale.
type staleNotifier interface {
	SetRescanHandler(fn func(monitor.Identity, access.Result))
}

// Options configures a Registry.
type Options struct {
	// Recorder receives every observed value. Optional.
	Recorder Recorder

	// RefreshInterval enables a periodic Refresh inside Watch. Zero disables it.
	RefreshInterval time.Duration

	// RefreshConcurrency bounds parallel reads. Zero means DefaultRefreshConcurrency.
	RefreshConcurrency int

	Logger Logger
}

// ScanResult summarises one completed scan.
type ScanResult struct {
	ID        string                   `json:"id"`
	ScannedAt time.Time                `json:"scanned_at"`
	Monitors  int                      `json:"monitors"`
	Added     []monitor.Identity       `json:"added,omitempty"`
	Removed   []monitor.Identity       `json:"removed,omitempty"`
	Replaced  []monitor.Identity       `json:"replaced,omitempty"`
	Bindings  []reconcile.Binding      `json:"bindings"`
	Sources   []reconcile.SourceReport `json:"sources"`
}

// Changed reports whether the scan altered the roster.
func (r ScanResult) Changed() bool {
	return len(r.Added)+len(r.Removed)+len(r.Replaced) > 0
}

// observed is the last value set the registry published for a monitor.
type observed struct {
	brightness   int
	contrast     int
	controllable bool
	message      string
}

// Registry owns the live roster and its controllers.
//
// All public methods are thread-safe.
type Registry struct {
	scanner Scanner
	opts    Options
	logger  Logger

	scans singleflight.Group

	mu          sync.RWMutex
	controllers []monitor.Controller
	byKey       map[string]monitor.Controller
	bySlug      map[string]monitor.Controller
	state       map[string]observed
	last        *ScanResult
	fingerprint reconcile.Fingerprint
	closed      bool

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	rescan chan struct{}
}

// NewRegistry creates a registry over scanner. Call Scan to populate it.
func NewRegistry(scanner Scanner, opts Options) *Registry {
	if opts.RefreshConcurrency <= 0 {
		opts.RefreshConcurrency = DefaultRefreshConcurrency
	}
	r := &Registry{
		scanner:   scanner,
		opts:      opts,
		logger:    opts.Logger,
		byKey:     make(map[string]monitor.Controller),
		bySlug:    make(map[string]monitor.Controller),
		state:     make(map[string]observed),
		listeners: make(map[int]Listener),
		rescan:    make(chan struct{}, 1),
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if n, ok := scanner.(staleNotifier); ok {
		n.SetRescanHandler(r.staleMonitor)
	}
	return r
}

// staleMonitor is called by a controller whose operation failed with
// NoLongerExists or TransmissionFailed.
func (r *Registry) staleMonitor(id monitor.Identity, res access.Result) {
	r.logger.Debug("operation failed, requesting rescan", "identity", id, "result", res.String())
	r.requestRescan()
}

// AddListener registers fn for every future event and returns a function
// that removes it.
func (r *Registry) AddListener(fn Listener) (remove func()) {
	r.listenersMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenersMu.Unlock()

	return func() {
		r.listenersMu.Lock()
		delete(r.listeners, id)
		r.listenersMu.Unlock()
	}
}

func (r *Registry) emit(ev Event) {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	for _, fn := range r.listeners {
		fn(ev)
	}
}

// Scan runs a full reconciliation and installs the result. Concurrent
// callers share one in-flight scan. The scan continues if the caller's
// context is cancelled so that handles are not left half-bound; the caller
// simply stops waiting.
//
// On error the previous roster stays in place.
func (r *Registry) Scan(ctx context.Context) (ScanResult, error) {
	ch := r.scans.DoChan("scan", func() (any, error) {
		return r.scan(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return ScanResult{}, res.Err
		}
		return res.Val.(ScanResult), nil
	case <-ctx.Done():
		return ScanResult{}, ctx.Err()
	}
}

func (r *Registry) scan(ctx context.Context) (ScanResult, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ScanResult{}, ErrClosed
	}

	start := time.Now()
	roster, err := r.scanner.Reconcile(ctx)
	if err != nil {
		r.logger.Warn("scan failed, keeping previous roster", "error", err)
		return ScanResult{}, fmt.Errorf("scanning monitors: %w", err)
	}

	result, fresh, err := r.install(roster)
	if err != nil {
		return ScanResult{}, err
	}

	// New controllers start with unknown values.
	if err := r.refreshAll(ctx, fresh, SourceScan); err != nil {
		r.logger.Debug("initial read interrupted", "error", err)
	}

	r.logger.Info("roster installed",
		"roster_id", result.ID,
		"monitors", result.Monitors,
		"added", len(result.Added),
		"removed", len(result.Removed),
		"replaced", len(result.Replaced),
		"elapsed", time.Since(start),
	)

	if result.Changed() {
		ev := Event{
			Type:      EventRosterChanged,
			Timestamp: time.Now().UTC(),
			RosterID:  result.ID,
			Value:     result.Monitors,
			Added:     result.Added,
			Removed:   result.Removed,
			Replaced:  result.Replaced,
		}
		r.emit(ev)
	}
	return result, nil
}

// install swaps the roster in. Controllers of monitors whose descriptor and
// backend are unchanged are kept so their cached values and confidence
// survive; the duplicate from the new roster is released instead. It
// returns the controllers that need an initial read.
func (r *Registry) install(roster *reconcile.Roster) (ScanResult, []monitor.Controller, error) {
	result := ScanResult{
		ID:        roster.ID,
		ScannedAt: roster.ScannedAt,
		Bindings:  roster.Bindings,
		Sources:   roster.Sources,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		// Close ran while the scan was in flight.
		if err := roster.Close(); err != nil {
			r.logger.Warn("releasing roster failed", "error", err)
		}
		return ScanResult{}, nil, ErrClosed
	}

	var (
		next    = make([]monitor.Controller, 0, len(roster.Controllers))
		byKey   = make(map[string]monitor.Controller, len(roster.Controllers))
		bySlug  = make(map[string]monitor.Controller, len(roster.Controllers))
		fresh   []monitor.Controller
		release []monitor.Controller
	)

	for _, c := range roster.Controllers {
		key := c.Identity().Key()
		if _, dup := byKey[key]; dup {
			release = append(release, c)
			continue
		}

		old, existed := r.byKey[key]
		switch {
		case existed && old.Backend() == c.Backend() && old.Descriptor() == c.Descriptor():
			release = append(release, c)
			c = old
		case existed:
			result.Replaced = append(result.Replaced, c.Identity())
			fresh = append(fresh, c)
		default:
			result.Added = append(result.Added, c.Identity())
			fresh = append(fresh, c)
		}

		next = append(next, c)
		byKey[key] = c
		bySlug[c.Identity().Slug()] = c
	}

	for key, old := range r.byKey {
		kept, ok := byKey[key]
		if ok && kept == old {
			continue
		}
		if !ok {
			result.Removed = append(result.Removed, old.Identity())
			delete(r.state, key)
		}
		release = append(release, old)
	}

	r.controllers = next
	r.byKey = byKey
	r.bySlug = bySlug
	r.fingerprint = roster.Fingerprint
	result.Monitors = len(next)
	r.last = &result

	for _, c := range release {
		if err := c.Close(); err != nil {
			r.logger.Warn("releasing controller failed", "identity", c.Identity(), "error", err)
		}
	}
	return result, fresh, nil
}

// LastScan returns the most recent successful scan, if any.
func (r *Registry) LastScan() (ScanResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return ScanResult{}, false
	}
	return *r.last, true
}

// Watch probes for topology changes every probeInterval and rescans when
// the probe reports a difference or a controller failure suggests the
// roster is stale. If Options.RefreshInterval is set, cached values are
// refreshed on that cadence too. Watch blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, probeInterval time.Duration) error {
	if probeInterval <= 0 {
		return errors.New("display: probe interval must be positive")
	}

	probe := time.NewTicker(probeInterval)
	defer probe.Stop()

	var refresh <-chan time.Time
	if r.opts.RefreshInterval > 0 {
		t := time.NewTicker(r.opts.RefreshInterval)
		defer t.Stop()
		refresh = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-probe.C:
			r.mu.RLock()
			prev := r.fingerprint
			r.mu.RUnlock()

			changed, _, err := r.scanner.Probe(ctx, prev)
			if err != nil {
				r.logger.Warn("change probe failed", "error", err)
				continue
			}
			if changed {
				r.logger.Info("monitor arrangement changed, rescanning")
				r.rescanNow(ctx)
			}

		case <-r.rescan:
			r.logger.Info("controller failure suggests stale roster, rescanning")
			r.rescanNow(ctx)

		case <-refresh:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

func (r *Registry) rescanNow(ctx context.Context) {
	if _, err := r.Scan(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("rescan failed", "error", err)
	}
}

// requestRescan schedules a rescan on the Watch loop without blocking.
func (r *Registry) requestRescan() {
	select {
	case r.rescan <- struct{}{}:
	default:
	}
}

// Refresh re-reads brightness, and contrast where supported, of every
// monitor in parallel.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.refreshAll(ctx, r.Monitors(), SourceRefresh)
}

func (r *Registry) refreshAll(ctx context.Context, controllers []monitor.Controller, source string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.RefreshConcurrency)

	for _, c := range controllers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.refreshOne(gctx, c, source)
			return nil
		})
	}
	return g.Wait()
}

// refreshOne reads brightness and contrast and returns the brightness result.
func (r *Registry) refreshOne(ctx context.Context, c monitor.Controller, source string) access.Result {
	res := c.UpdateBrightness(-1)
	r.observe(ctx, c, KindBrightness, res, source)

	if c.IsContrastSupported() {
		r.observe(ctx, c, KindContrast, c.UpdateContrast(), source)
	}
	return res
}

// RefreshMonitor re-reads one monitor.
func (r *Registry) RefreshMonitor(ctx context.Context, ref string) (access.Result, error) {
	c, ok := r.Monitor(ref)
	if !ok {
		return access.Result{}, fmt.Errorf("%w: %s", ErrMonitorNotFound, ref)
	}
	return r.refreshOne(ctx, c, SourceRefresh), nil
}

// SetBrightness applies a brightness percentage to the monitor matching ref
// (identity or slug).
func (r *Registry) SetBrightness(ctx context.Context, ref string, value int) (access.Result, error) {
	c, ok := r.Monitor(ref)
	if !ok {
		return access.Result{}, fmt.Errorf("%w: %s", ErrMonitorNotFound, ref)
	}
	res := c.SetBrightness(value)
	r.observe(ctx, c, KindBrightness, res, SourceCommand)
	return res, nil
}

// SetContrast applies a contrast percentage to the monitor matching ref.
func (r *Registry) SetContrast(ctx context.Context, ref string, value int) (access.Result, error) {
	c, ok := r.Monitor(ref)
	if !ok {
		return access.Result{}, fmt.Errorf("%w: %s", ErrMonitorNotFound, ref)
	}
	res := c.SetContrast(value)
	r.observe(ctx, c, KindContrast, res, SourceCommand)
	return res, nil
}

// observe publishes the consequences of one operation on kind: value
// change and controllability events, and a recorder call for the value the
// operation touched.
func (r *Registry) observe(ctx context.Context, c monitor.Controller, kind Kind, res access.Result, source string) {
	key := c.Identity().Key()
	ok, msg := c.Controllable()
	now := observed{
		brightness:   c.Brightness(),
		contrast:     c.Contrast(),
		controllable: ok,
		message:      msg,
	}

	r.mu.Lock()
	if _, live := r.byKey[key]; !live {
		r.mu.Unlock()
		return
	}
	prev, seen := r.state[key]
	if !seen {
		prev = observed{brightness: -1, contrast: -1, controllable: true}
	}
	r.state[key] = now
	r.mu.Unlock()

	id := c.Identity()
	if now.brightness != prev.brightness && now.brightness >= 0 {
		ev := monitorEvent(EventBrightnessChanged, id)
		ev.Value = now.brightness
		r.emit(ev)
	}
	if now.contrast != prev.contrast && now.contrast >= 0 {
		ev := monitorEvent(EventContrastChanged, id)
		ev.Value = now.contrast
		r.emit(ev)
	}
	if now.controllable != prev.controllable {
		ev := monitorEvent(EventControllabilityChanged, id)
		ev.Controllable = now.controllable
		ev.Message = now.message
		r.emit(ev)
	}

	if !res.Succeeded() || r.opts.Recorder == nil {
		return
	}
	value := now.brightness
	if kind == KindContrast {
		value = now.contrast
	}
	r.record(ctx, c, kind, value, source)
}

func (r *Registry) record(ctx context.Context, c monitor.Controller, kind Kind, value int, source string) {
	if value < 0 {
		return
	}
	obs := Observation{
		Identity: c.Identity(),
		Backend:  c.Backend(),
		Kind:     kind,
		Value:    value,
		Source:   source,
		At:       time.Now().UTC(),
	}
	if err := r.opts.Recorder.Record(ctx, obs); err != nil {
		r.logger.Warn("recording observation failed", "identity", obs.Identity, "kind", kind, "error", err)
	}
}

// Monitor looks up a controller by identity (case-insensitive) or slug.
func (r *Registry) Monitor(ref string) (monitor.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.byKey[monitor.Identity(ref).Key()]; ok {
		return c, true
	}
	c, ok := r.bySlug[strings.ToLower(ref)]
	return c, ok
}

// Monitors returns the controllers in roster order.
func (r *Registry) Monitors() []monitor.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]monitor.Controller(nil), r.controllers...)
}

// States returns a cached view of every monitor in roster order.
func (r *Registry) States() []MonitorState {
	controllers := r.Monitors()
	out := make([]MonitorState, 0, len(controllers))
	for _, c := range controllers {
		out = append(out, StateOf(c))
	}
	return out
}

// Count returns the number of monitors in the roster.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Close releases every controller. Further scans fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, c := range r.controllers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.Identity(), err))
		}
	}
	r.controllers = nil
	r.byKey = make(map[string]monitor.Controller)
	r.bySlug = make(map[string]monitor.Controller)
	return errors.Join(errs...)
}
