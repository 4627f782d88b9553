package display

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// HistoryEntry is one recorded brightness or contrast value.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// Identity is the monitor identity as recorded.
	Identity monitor.Identity `json:"identity"`

	Kind  Kind `json:"kind"`
	Value int  `json:"value"`

	// Source identifies how the value was observed (scan, refresh, command).
	Source string `json:"source"`

	// RecordedAt is the observation time (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryRepository stores and retrieves observed monitor values.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record stores one observation.
	Record(ctx context.Context, identity monitor.Identity, kind Kind, value int, source string) error

	// History returns recent entries for the identity, newest first.
	// limit <= 0 selects the default; implementations clamp large limits.
	History(ctx context.Context, identity monitor.Identity, limit int) ([]HistoryEntry, error)
}
