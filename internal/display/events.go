package display

import (
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// EventType names a registry event.
type EventType string

const (
	EventRosterChanged          EventType = "roster_changed"
	EventBrightnessChanged      EventType = "brightness_changed"
	EventContrastChanged        EventType = "contrast_changed"
	EventControllabilityChanged EventType = "controllability_changed"
)

// Event is delivered to every listener. Monitor events carry the identity
// and the new value; roster events carry the scan ID and change lists.
type Event struct {
	Type      EventType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Identity  monitor.Identity `json:"identity,omitempty"`
	Slug      string           `json:"slug,omitempty"`

	Value        int    `json:"value"`
	Controllable bool   `json:"controllable,omitempty"`
	Message      string `json:"message,omitempty"`

	RosterID string             `json:"roster_id,omitempty"`
	Added    []monitor.Identity `json:"added,omitempty"`
	Removed  []monitor.Identity `json:"removed,omitempty"`
	Replaced []monitor.Identity `json:"replaced,omitempty"`
}

// Listener receives registry events.
type Listener func(Event)

func monitorEvent(t EventType, id monitor.Identity) Event {
	return Event{Type: t, Timestamp: time.Now().UTC(), Identity: id, Slug: id.Slug()}
}
