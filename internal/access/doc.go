// Package access defines the outcome type returned by every operation that
// reads or mutates a monitor.
//
// A Result pairs a Status tag with an optional diagnostic message. It is the
// only channel through which backend-specific failure detail reaches callers:
// monitor operations never return Go errors.
//
// Status semantics:
//   - Succeeded: the operation completed
//   - Failed: generic or unknown failure
//   - ProtocolFailed: malformed or unsupported protocol exchange; do not retry
//   - TransmissionFailed: bus-level transient failure; retried once by the DDC layer
//   - NoLongerExists: the monitor is gone; callers should rescan the roster
//   - NotSupported: the feature is absent; disable the control, not an error
package access
