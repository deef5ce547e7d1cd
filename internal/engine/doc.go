// Package engine implements the replication, detection and retention
// engine that mirrors the ephemeral store into the durable store.
//
// Components:
//
//   - ChangeMirror: status write -> defaulted current-state upsert, plus an
//     emergency event when the status reports one
//   - EventMirror: new log entry -> event under its owning device
//   - HistorySnapshotter: periodic copy of every device status to history
//   - RetentionSweeper: periodic deletion of aged history, in pages
//
// Handlers take their stores as small interfaces and return an outcome
// value. They never return errors: failures are logged, counted and
// reported in the outcome, and the next trigger or device proceeds.
//
// TRIGGER DISPATCH:
//
// Engine implements ephemeral.Listener. Notifications are queued in FIFO
// order and processed by a single Run loop goroutine, so tree writers never
// wait on durable writes. Drain processes the queue synchronously for
// tests and scenario runs.
//
// FAN-OUT:
//
// The two scheduled jobs fan out one goroutine per device and join with
// allSettled: every task finishes before the job reports, and one failure
// never cancels its siblings. Per-device batch deletion is sequential.
package engine
