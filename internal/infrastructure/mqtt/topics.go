package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "displayd"

// ServiceName is the health topic leaf for this service.
const ServiceName = "displayd"

// Topics builds displayd MQTT topics under a configurable prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("office")
//	topics.MonitorState("display-del4109-5_2b3c_0_uid4353")
//	// Returns: "office/state/monitor/display-del4109-5_2b3c_0_uid4353"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders for prefix, or DefaultTopicPrefix if
// empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// MonitorState returns the retained state topic of one monitor.
//
// Example: displayd/state/monitor/{slug}
func (t Topics) MonitorState(slug string) string {
	return fmt.Sprintf("%s/state/monitor/%s", t.prefix(), slug)
}

// MonitorCommand returns the command topic of one monitor.
//
// Example: displayd/command/monitor/{slug}
func (t Topics) MonitorCommand(slug string) string {
	return fmt.Sprintf("%s/command/monitor/%s", t.prefix(), slug)
}

// MonitorAck returns the acknowledgement topic of one monitor.
//
// Example: displayd/ack/monitor/{slug}
func (t Topics) MonitorAck(slug string) string {
	return fmt.Sprintf("%s/ack/monitor/%s", t.prefix(), slug)
}

// Health returns the service health topic. The broker publishes the Last
// Will here.
//
// Example: displayd/health/displayd
func (t Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", t.prefix(), ServiceName)
}

// Roster returns the retained roster summary topic.
//
// Example: displayd/roster
func (t Topics) Roster() string {
	return fmt.Sprintf("%s/roster", t.prefix())
}

// AllMonitorCommands returns a pattern matching every monitor command.
//
// Pattern: displayd/command/monitor/+
func (t Topics) AllMonitorCommands() string {
	return fmt.Sprintf("%s/command/monitor/+", t.prefix())
}

// AllTopics returns a pattern matching everything under the prefix.
//
// Pattern: displayd/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}

// MonitorSlugFromTopic extracts the slug from a per-monitor topic of the
// given kind ("state", "command" or "ack"). ok is false for other topics.
func (t Topics) MonitorSlugFromTopic(kind, topic string) (slug string, ok bool) {
	head := fmt.Sprintf("%s/%s/monitor/", t.prefix(), kind)
	if len(topic) <= len(head) || topic[:len(head)] != head {
		return "", false
	}
	slug = topic[len(head):]
	for i := 0; i < len(slug); i++ {
		if slug[i] == '/' {
			return "", false
		}
	}
	return slug, true
}
