package calibration

import "time"

// ticksAtUnixEpoch is the number of 100ns intervals between 0001-01-01 and
// 1970-01-01 UTC.
const ticksAtUnixEpoch int64 = 621355968000000000

// Record is one learned range.
type Record struct {
	Minimum         float64 `json:"minimum"`
	Maximum         float64 `json:"maximum"`
	AccessTimeTicks int64   `json:"accessTimeTicks"`
}

// AccessTime returns the last access time as a time.Time.
func (r Record) AccessTime() time.Time {
	return FromTicks(r.AccessTimeTicks)
}

// Ticks converts t to 100ns intervals since 0001-01-01 UTC.
func Ticks(t time.Time) int64 {
	return t.UnixNano()/100 + ticksAtUnixEpoch
}

// FromTicks is the inverse of Ticks.
func FromTicks(ticks int64) time.Time {
	return time.Unix(0, (ticks-ticksAtUnixEpoch)*100).UTC()
}
