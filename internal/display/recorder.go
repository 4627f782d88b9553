package display

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// Kind is the kind of an observed value.
type Kind string

const (
	KindBrightness Kind = "brightness"
	KindContrast   Kind = "contrast"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindBrightness || k == KindContrast
}

// Observation sources.
const (
	SourceScan    = "scan"
	SourceRefresh = "refresh"
	SourceCommand = "command"
)

// Observation is one value read from or written to a monitor.
type Observation struct {
	Identity monitor.Identity
	Backend  monitor.Backend
	Kind     Kind
	Value    int
	Source   string
	At       time.Time
}

// Recorder receives every observed value. Errors are logged by the registry
// and never fail the monitor operation.
type Recorder interface {
	Record(ctx context.Context, obs Observation) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, obs Observation) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, obs Observation) error {
	return f(ctx, obs)
}

// Recorders fans an observation out to several recorders.
type Recorders []Recorder

// Record calls every recorder and joins their errors.
func (rs Recorders) Record(ctx context.Context, obs Observation) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HistoryRecorder persists changed values to a history repository. Repeated
// identical readings are skipped so periodic refreshes do not flood the
// table. Commands are always recorded.
type HistoryRecorder struct {
	repo HistoryRepository

	mu   sync.Mutex
	last map[string]int
}

// NewHistoryRecorder creates a recorder writing to repo.
func NewHistoryRecorder(repo HistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, last: make(map[string]int)}
}

// Record implements Recorder.
func (h *HistoryRecorder) Record(ctx context.Context, obs Observation) error {
	key := obs.Identity.Key() + "/" + string(obs.Kind)

	h.mu.Lock()
	prev, seen := h.last[key]
	h.mu.Unlock()
	if seen && prev == obs.Value && obs.Source != SourceCommand {
		return nil
	}

	if err := h.repo.Record(ctx, obs.Identity, obs.Kind, obs.Value, obs.Source); err != nil {
		return err
	}

	h.mu.Lock()
	h.last[key] = obs.Value
	h.mu.Unlock()
	return nil
}
