// Package simulated implements platform.Platform in memory.
//
// A simulated platform is described by a YAML document listing monitors and
// the backends each one answers on:
//
//	power:
//	  brightness: 70
//	  adaptive: false
//	ambient_light_sensor: false
//	monitors:
//	  - identity: 'DISPLAY\DEL4109\5&1a2b3c&0&UID4352'
//	    description: Generic PnP Monitor
//	    friendly_name: DELL U2720Q
//	    connection: DisplayPort
//	    display_index: 0
//	    monitor_index: 0
//	    rect: {left: 0, top: 0, right: 3840, bottom: 2160}
//	    ddc:
//	      capabilities: "(vcp(10 12 14(05 08)))"
//	      vcp: {"10": [50, 100], "12": [75, 100], "14": [5, 11]}
//	  - identity: 'DISPLAY\BOE0A1C\4&2f9d&0&UID265988'
//	    description: Built-in Display
//	    internal: true
//	    display_index: 1
//	    wmi:
//	      levels: [0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100]
//
// It is used by tests and by the daemon's --simulate mode on hosts without
// the native backend. Latency and fault injection let callers exercise
// timeouts and the DDC/CI retry path.
package simulated
