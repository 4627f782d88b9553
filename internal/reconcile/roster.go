package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/ddc"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// Binding records why an entry was bound to its backend.
type Binding struct {
	Identity   monitor.Identity `json:"identity"`
	Backend    monitor.Backend  `json:"backend"`
	Capability *ddc.Capability  `json:"capability,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// Roster is the output of one reconciliation pass. Controllers are in legacy
// enumeration order and own their handles.
type Roster struct {
	ID          string               `json:"id"`
	ScannedAt   time.Time            `json:"scanned_at"`
	Controllers []monitor.Controller `json:"-"`
	Bindings    []Binding            `json:"bindings"`
	Sources     []SourceReport       `json:"sources"`
	Fingerprint Fingerprint          `json:"fingerprint"`
}

// Summary counts controllers per backend, for logging.
func (r *Roster) Summary() map[monitor.Backend]int {
	out := make(map[monitor.Backend]int)
	for _, c := range r.Controllers {
		out[c.Backend()]++
	}
	return out
}

// Close releases every controller in the roster.
func (r *Roster) Close() error {
	var errs []error
	for _, c := range r.Controllers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.Identity(), err))
		}
	}
	return errors.Join(errs...)
}

// Fingerprint is the identity set and OS monitor count a roster was built
// from. A change in either means the roster is stale.
type Fingerprint struct {
	Identities   []string `json:"identities"`
	MonitorCount int      `json:"monitor_count"`
}

// Equal reports whether two fingerprints describe the same arrangement.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.MonitorCount == other.MonitorCount && slices.Equal(f.Identities, other.Identities)
}

func fingerprintOf(entries []*entry, count int) Fingerprint {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.desc.Identity.Key())
	}
	sort.Strings(ids)
	return Fingerprint{Identities: ids, MonitorCount: count}
}
