// Package eventlog records engagement and outcome events for notifications
// and computes per-notification aggregate statistics.
//
// Events are append-only: they are never mutated after being recorded and are
// removed only together with their owning notification. Ordering by
// occurrence timestamp drives the last-opened/last-clicked aggregates.
//
// # Usage
//
//	rec, _ := eventlog.NewRecorder(eventlog.NewMemoryStorage())
//
//	_, _ = rec.Record(ctx, notifID, eventlog.KindSent)
//	_, _ = rec.Record(ctx, notifID, eventlog.KindOpened,
//	    eventlog.WithClientInfo("203.0.113.7", "Mozilla/5.0"),
//	)
//
//	stats, _ := rec.Stats(ctx, notifID)
//	// stats.Sent == 1, stats.Opened == 1, stats.LastOpenedAt != nil
package eventlog
