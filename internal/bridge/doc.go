// Package bridge connects the display registry to an MQTT broker.
//
// Topic layout (prefix configurable, default "displayd"):
//
//	{prefix}/state/monitor/{slug}    retained StateMessage
//	{prefix}/command/monitor/{slug}  CommandMessage (set_brightness, set_contrast, refresh)
//	{prefix}/ack/monitor/{slug}      AckMessage for every command
//	{prefix}/roster                  retained RosterMessage
//	{prefix}/health/displayd         retained HealthMessage, also the LWT
//
// A slug is the monitor identity lower-cased with path separators replaced,
// so it is stable for as long as the monitor identity is.
//
// Registry events are queued and published from a single goroutine so a
// slow broker never stalls the registry. Commands run on the MQTT client's
// handler goroutine, bounded by a timeout and cancelled by Stop.
package bridge
