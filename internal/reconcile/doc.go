// Package reconcile builds the canonical monitor roster.
//
// Four enumeration sources name the same physical monitor differently. The
// Reconciler fetches them concurrently under one timeout, merges them on
// MonitorIdentity, and binds each roster entry to exactly one controller
// variant. Binding is priority ordered and each entry is consumed once:
//
//  1. Build the roster from the legacy device list, naming each entry from
//     the topology friendly name when one exists
//  2. Drop precluded identities
//  3. Bind HDR-active targets to the HDR controller (when enabled)
//  4. Match DDC/CI physical monitors on (display ordinal, monitor ordinal,
//     description) and bind those whose capability detection succeeds or
//     whose identity is precleared
//  5. Match WMI desktop monitors with a non-empty brightness table
//  6. Bind everything left to the unreachable controller
//
// Within a step the first matching entry wins. Monitors that expose identical
// (ordinal, description) pairs are therefore bound in enumeration order,
// which the OS does not keep stable across reboots or driver updates.
//
// Sources that miss the timeout are treated as absent for the pass. Physical
// monitor handles that arrive late or match nothing are released before
// Reconcile returns, or as soon as a late call completes.
package reconcile
