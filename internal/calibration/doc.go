// Package calibration stores learned raw-value ranges for monitors that do
// not report a fixed brightness range, such as HDR displays driven through
// their SDR white level.
//
// The Store is a capacity-bounded map from monitor identity to a
// (minimum, maximum) pair. Each record carries a last-access timestamp;
// when the map exceeds capacity on load or flush, the least recently
// accessed records are evicted.
//
// Persistence is pluggable through the Persister interface. JSONFile writes
// the map as a JSON object:
//
//	{"DISPLAY\\DEL4109\\5&1a2b3c&0&UID4352": {"minimum": 80, "maximum": 480, "accessTimeTicks": 638650000000000000}}
//
// An empty map is persisted by removing the file, so that a missing file
// means "nothing learned yet" and a present but unreadable file means
// corruption. Corrupt files are logged and treated as empty.
//
// Thread Safety:
//   - Store is safe for concurrent use. Reads share a lock; writes are exclusive.
package calibration
