// Package diagnostics produces the diagnostic probe report.
//
// A report lists what every enumeration source returned and, for each
// monitor, which backend it was bound to and whether brightness and
// contrast survive a read, write-same-value, read-back round trip. It is
// the artefact users attach to bug reports, so it is plain JSON.
//
// Probing writes to monitors. Values are written back unchanged, but a
// monitor that rounds raw values may end one step off.
package diagnostics
