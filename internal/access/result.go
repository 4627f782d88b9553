package access

import (
	"fmt"
	"strings"
)

// Status is the outcome tag of a monitor operation.
type Status int

const (
	Succeeded Status = iota
	Failed
	ProtocolFailed
	TransmissionFailed
	NoLongerExists
	NotSupported
)

var statusNames = [...]string{
	Succeeded:          "succeeded",
	Failed:             "failed",
	ProtocolFailed:     "protocol_failed",
	TransmissionFailed: "transmission_failed",
	NoLongerExists:     "no_longer_exists",
	NotSupported:       "not_supported",
}

// String returns the snake_case wire name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler so statuses serialise by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("access: unknown status %q", string(text))
}

// Result is the outcome of a monitor operation.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK is the zero-detail success result.
var OK = Result{Status: Succeeded}

// Fail builds a result with the given status and a formatted message.
func Fail(status Status, format string, args ...any) Result {
	return Result{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Unsupported is shorthand for a NotSupported result.
func Unsupported(feature string) Result {
	return Result{Status: NotSupported, Message: feature + " is not supported"}
}

// Succeeded reports whether the operation completed.
func (r Result) Succeeded() bool {
	return r.Status == Succeeded
}

// WarrantsRescan reports whether the failure suggests the roster is stale.
func (r Result) WarrantsRescan() bool {
	return r.Status == NoLongerExists || r.Status == TransmissionFailed
}

func (r Result) String() string {
	if r.Message == "" {
		return r.Status.String()
	}
	return r.Status.String() + ": " + r.Message
}
