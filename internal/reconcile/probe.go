package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// Probe re-runs the legacy enumeration and the OS monitor count and reports
// whether they differ from prev. It is far cheaper than a full Reconcile and
// never opens a control handle.
//
// An unavailable legacy source returns an error and changed == false.
func (r *Reconciler) Probe(ctx context.Context, prev Fingerprint) (changed bool, current Fingerprint, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	type countResult struct {
		n   int
		rep SourceReport
	}
	countCh := make(chan countResult, 1)
	go func() {
		n, rep := await(ctx, r.platform.MonitorCount, nil)
		countCh <- countResult{n, rep}
	}()

	legacy, rep := await(ctx, r.platform.LegacyDevices, nil)
	cr := <-countCh

	if !rep.OK() {
		return false, prev, fmt.Errorf("%w: %s", ErrLegacyUnavailable, rep.Error)
	}

	count := cr.n
	if !cr.rep.OK() {
		// Without a count, compare identities only.
		count = prev.MonitorCount
	}

	seen := make(map[string]bool, len(legacy))
	ids := make([]string, 0, len(legacy))
	for _, ld := range legacy {
		id := monitor.NormalizeIdentity(ld.DevicePath)
		if id == "" || seen[id.Key()] || r.opts.Precluded.Contains(id) {
			continue
		}
		seen[id.Key()] = true
		ids = append(ids, id.Key())
	}
	sort.Strings(ids)

	current = Fingerprint{Identities: ids, MonitorCount: count}
	return !current.Equal(prev), current, nil
}
