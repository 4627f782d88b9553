package calibration

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 16

// Logger defines the logging interface used by the store.
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

// Options configures a Store.
type Options struct {
	// Capacity bounds the number of records. Zero means DefaultCapacity.
	Capacity int

	// Persister stores the map. Nil keeps the store in memory only.
	Persister Persister

	Logger Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store is the shared calibration cache. Keys are compared case-insensitively.
type Store struct {
	mu        sync.RWMutex
	records   map[string]Record
	capacity  int
	persister Persister
	logger    Logger
	now       func() time.Time

	// version counts bound changes; flushed is the version last persisted.
	version uint64
	flushed uint64
}

// NewStore creates an empty store. Call Load to read persisted records.
func NewStore(opts Options) *Store {
	s := &Store{
		records:   make(map[string]Record),
		capacity:  opts.Capacity,
		persister: opts.Persister,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func key(identity string) string {
	return strings.ToUpper(identity)
}

// Load replaces the in-memory map with the persisted one, evicting the
// least recently accessed records beyond capacity. Corrupt or invalid data
// is logged and discarded.
func (s *Store) Load() {
	if s.persister == nil {
		return
	}

	loaded, err := s.persister.Load()
	if err != nil {
		s.logger.Warn("discarding calibration data", "error", err)
		loaded = map[string]Record{}
	}

	records := make(map[string]Record, len(loaded))
	for id, r := range loaded {
		if r.Minimum >= r.Maximum {
			s.logger.Debug("skipping degenerate calibration record", "identity", id)
			continue
		}
		records[key(id)] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	if evicted := s.evictLocked(); evicted > 0 {
		s.logger.Info("evicted calibration records", "count", evicted, "capacity", s.capacity)
	}
}

// Read returns the stored range for identity and marks it as accessed.
func (s *Store) Read(identity string) (minimum, maximum float64, ok bool) {
	k := key(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[k]
	if !ok {
		return 0, 0, false
	}
	r.AccessTimeTicks = Ticks(s.now())
	s.records[k] = r
	return r.Minimum, r.Maximum, true
}

// Peek returns the stored record without touching its access time.
func (s *Store) Peek(identity string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key(identity)]
	return r, ok
}

// Write stores the range for identity. It is a no-op when minimum >= maximum
// or when the stored bounds are already identical.
func (s *Store) Write(identity string, minimum, maximum float64) {
	if minimum >= maximum {
		return
	}
	k := key(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[k]; ok {
		if r.Minimum == minimum && r.Maximum == maximum {
			return
		}
		r.Minimum, r.Maximum = minimum, maximum
		s.records[k] = r
		s.version++
		return
	}
	s.records[k] = Record{
		Minimum:         minimum,
		Maximum:         maximum,
		AccessTimeTicks: Ticks(s.now()),
	}
	s.version++
}

// Dirty reports whether a bound changed since the last successful Flush.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.flushed
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Flush evicts down to capacity and persists the full map.
func (s *Store) Flush() error {
	if s.persister == nil {
		return nil
	}

	s.mu.Lock()
	s.evictLocked()
	snapshot := make(map[string]Record, len(s.records))
	for k, r := range s.records {
		snapshot[k] = r
	}
	version := s.version
	s.mu.Unlock()

	if err := s.persister.Save(snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	if version > s.flushed {
		s.flushed = version
	}
	s.mu.Unlock()
	return nil
}

// AutoFlush persists the store every interval while it is dirty, so that
// learned ranges survive a crash. It blocks until ctx is cancelled. Access
// times alone do not make the store dirty.
func (s *Store) AutoFlush(ctx context.Context, interval time.Duration) {
	if s.persister == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Dirty() {
				continue
			}
			if err := s.Flush(); err != nil {
				s.logger.Warn("saving calibration failed", "error", err)
				continue
			}
			s.logger.Debug("calibration saved", "records", s.Len())
		}
	}
}

// evictLocked drops the oldest-accessed records beyond capacity.
func (s *Store) evictLocked() int {
	excess := len(s.records) - s.capacity
	if excess <= 0 {
		return 0
	}

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.records[ids[i]], s.records[ids[j]]
		if a.AccessTimeTicks != b.AccessTimeTicks {
			return a.AccessTimeTicks < b.AccessTimeTicks
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids[:excess] {
		delete(s.records, id)
	}
	return excess
}
