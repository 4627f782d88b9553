// Package display owns the live monitor roster.
//
// The Registry wraps a reconciler: it runs scans, swaps rosters, keeps the
// controllers of unchanged monitors across rescans and releases the rest.
// It also refreshes cached brightness, applies user changes and fans
// events out to listeners (the MQTT bridge and the WebSocket hub).
//
// # Lifecycle
//
//	reg := display.NewRegistry(reconciler, display.Options{Logger: log})
//	if _, err := reg.Scan(ctx); err != nil {
//	    return err
//	}
//	go reg.Watch(ctx, cfg.Display.ProbeInterval)
//	defer reg.Close()
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Concurrent Scan calls
// share one in-flight reconciliation. Listeners are invoked synchronously
// and must not block.
//
// # History
//
// SQLiteHistoryRepository persists observed brightness and contrast values
// in the brightness_history table. Wire it through HistoryRecorder.
package display
