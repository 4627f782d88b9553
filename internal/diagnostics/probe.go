package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
	"github.com/nerrad567/gray-logic-displays/internal/reconcile"
)

// DefaultConcurrency bounds parallel monitor probing.
const DefaultConcurrency = 4

// Options configures a probe.
type Options struct {
	// Concurrency bounds parallel monitor probes. Zero means DefaultConcurrency.
	Concurrency int

	// Version is copied into the report.
	Version string
}

// Input is what a probe runs over.
type Input struct {
	RosterID    string
	Sources     []reconcile.SourceReport
	Bindings    []reconcile.Binding
	Controllers []monitor.Controller
}

// FromRoster builds an Input from a freshly reconciled roster.
func FromRoster(r *reconcile.Roster) Input {
	return Input{
		RosterID:    r.ID,
		Sources:     r.Sources,
		Bindings:    r.Bindings,
		Controllers: r.Controllers,
	}
}

// Scanner is the part of the reconciler Run needs.
type Scanner interface {
	Reconcile(ctx context.Context) (*reconcile.Roster, error)
}

// Run performs a standalone reconciliation, probes it and releases every
// handle it opened.
func Run(ctx context.Context, scanner Scanner, opts Options) (Report, error) {
	roster, err := scanner.Reconcile(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconciling monitors: %w", err)
	}
	defer roster.Close()

	return Probe(ctx, FromRoster(roster), opts), nil
}

// Probe round-trips every controller in in. A cancelled ctx leaves the
// remaining monitors with skipped steps.
func Probe(ctx context.Context, in Input, opts Options) Report {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	start := time.Now()

	report := Report{
		ID:          uuid.NewString(),
		GeneratedAt: start.UTC(),
		Version:     opts.Version,
		RosterID:    in.RosterID,
		Sources:     in.Sources,
		Monitors:    make([]MonitorReport, len(in.Controllers)),
	}

	bindings := make(map[string]reconcile.Binding, len(in.Bindings))
	for _, b := range in.Bindings {
		bindings[b.Identity.Key()] = b
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, c := range in.Controllers {
		g.Go(func() error {
			report.Monitors[i] = probeMonitor(gctx, c, bindings[c.Identity().Key()])
			return nil
		})
	}
	_ = g.Wait() // probes never fail; outcomes are in the report

	report.Elapsed = time.Since(start)
	return report
}

func probeMonitor(ctx context.Context, c monitor.Controller, b reconcile.Binding) MonitorReport {
	mr := MonitorReport{
		Descriptor:  c.Descriptor(),
		Backend:     c.Backend(),
		Capability:  b.Capability,
		BindingNote: b.Note,
	}
	for _, v := range c.ColorTemperatures() {
		mr.ColorTemperatures = append(mr.ColorTemperatures, int(v))
	}
	switch v := c.(type) {
	case *monitor.WMIController:
		for _, l := range v.Levels() {
			mr.BrightnessLevels = append(mr.BrightnessLevels, int(l))
		}
	case *monitor.HDRController:
		mr.HDRTarget = v.Target().String()
	}

	mr.Brightness = roundTrip(ctx,
		func() access.Result { return c.UpdateBrightness(-1) },
		c.Brightness,
		c.SetBrightness,
	)
	if c.IsContrastSupported() {
		rt := roundTrip(ctx, c.UpdateContrast, c.Contrast, c.SetContrast)
		mr.Contrast = &rt
	}

	mr.Controllable, mr.Message = c.Controllable()
	return mr
}

func roundTrip(ctx context.Context, update func() access.Result, get func() int, set func(int) access.Result) RoundTrip {
	rt := RoundTrip{Read: skipped, Write: skipped, ReadBack: skipped, Value: -1, ReadBackValue: -1}
	if ctx.Err() != nil {
		return rt
	}

	rt.Read = timed(update)
	if !rt.Read.Result.Succeeded() {
		return rt
	}
	rt.Value = get()

	rt.Write = timed(func() access.Result { return set(rt.Value) })
	if !rt.Write.Result.Succeeded() {
		return rt
	}

	rt.ReadBack = timed(update)
	if rt.ReadBack.Result.Succeeded() {
		rt.ReadBackValue = get()
	}
	return rt
}

func timed(fn func() access.Result) Step {
	start := time.Now()
	res := fn()
	return Step{Result: res, Elapsed: time.Since(start)}
}
