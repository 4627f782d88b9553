package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// Command names accepted on the command topic.
const (
	CommandSetBrightness = "set_brightness"
	CommandSetContrast   = "set_contrast"
	CommandRefresh       = "refresh"
)

// CommandMessage is received on {prefix}/command/monitor/{slug}.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	// Generated by the bridge when empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is one of set_brightness, set_contrast or refresh.
	Command string `json:"command"`

	// Value is the 0-100 target for set commands.
	Value *int `json:"value,omitempty"`
}

// AckStatus indicates what happened to a command.
type AckStatus string

const (
	// AckAccepted indicates the monitor applied the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command was rejected or the monitor failed it.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on {prefix}/ack/monitor/{slug}.
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	Slug    string           `json:"slug"`
	Monitor monitor.Identity `json:"monitor,omitempty"`
	Command string           `json:"command"`
	Status  AckStatus        `json:"status"`

	// Result is the monitor access result, when the command reached a monitor.
	Result *access.Result `json:"result,omitempty"`

	// Error contains details when the command never reached a monitor.
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for rejected commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for rejected commands.
const (
	ErrCodeInvalidPayload    = "INVALID_PAYLOAD"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotFound          = "MONITOR_NOT_FOUND"
)

// NewAckMessage creates an ack for a command that reached a monitor.
func NewAckMessage(cmd CommandMessage, slug string, id monitor.Identity, res access.Result) AckMessage {
	status := AckAccepted
	if !res.Succeeded() {
		status = AckFailed
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Slug:      slug,
		Monitor:   id,
		Command:   cmd.Command,
		Status:    status,
		Result:    &res,
	}
}

// NewAckError creates an ack for a rejected command.
func NewAckError(cmd CommandMessage, slug, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Slug:      slug,
		Command:   cmd.Command,
		Status:    AckFailed,
		Error:     &AckError{Code: code, Message: message},
	}
}

// StateMessage is published on {prefix}/state/monitor/{slug}.
// QoS: 1, Retained: Yes
type StateMessage struct {
	// Timestamp is when the state was published (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	display.MonitorState
}

// NewStateMessage wraps a monitor state.
func NewStateMessage(st display.MonitorState) StateMessage {
	return StateMessage{Timestamp: time.Now().UTC(), MonitorState: st}
}

// RosterEntry is one monitor in a roster message.
type RosterEntry struct {
	Identity     monitor.Identity `json:"identity"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	Backend      monitor.Backend  `json:"backend"`
	Controllable bool             `json:"controllable"`
}

// RosterMessage is published on {prefix}/roster.
// QoS: 1, Retained: Yes
type RosterMessage struct {
	Timestamp time.Time     `json:"timestamp"`
	RosterID  string        `json:"roster_id,omitempty"`
	Monitors  []RosterEntry `json:"monitors"`
}

// NewRosterMessage summarises states.
func NewRosterMessage(rosterID string, states []display.MonitorState) RosterMessage {
	msg := RosterMessage{
		Timestamp: time.Now().UTC(),
		RosterID:  rosterID,
		Monitors:  make([]RosterEntry, 0, len(states)),
	}
	for _, st := range states {
		msg.Monitors = append(msg.Monitors, RosterEntry{
			Identity:     st.Identity,
			Slug:         st.Slug,
			Description:  st.Description,
			Backend:      st.Backend,
			Controllable: st.Controllable,
		})
	}
	return msg
}

// HealthStatus represents the operational status of the service.
type HealthStatus string

const (
	// HealthHealthy indicates every monitor is controllable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the service runs with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the service is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the service is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the service is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: {prefix}/health/displayd
// QoS: 1, Retained: Yes
// Interval: Every 30 seconds
type HealthMessage struct {
	Service   string       `json:"service"`
	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	Monitors     int `json:"monitors"`
	Controllable int `json:"controllable"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}
