// Package store provides the SQLite-backed durable store for mirrored plug
// data.
//
// The layout follows the document model the engine writes to:
//
//	smart_plugs/{deviceId}           one row in smart_plugs (current status)
//	smart_plugs/{deviceId}/events    rows in plug_events (emergency + logged)
//	smart_plugs/{deviceId}/history   rows in plug_history (snapshots)
//
// Sub-collection rows carry their device_id and do not require a parent row,
// so history and events can exist for devices whose status was never
// mirrored.
//
// Each row stores its non-timestamp fields as canonical JSON (see
// record.MarshalCanonical) and its timestamp as Unix milliseconds, indexed
// per device for the retention query.
//
// # Atomicity
//
//   - UpdateDevice merges and writes in one transaction
//   - DeleteHistory removes a page of ids in one transaction
//   - Server-time sentinels are resolved against the store clock at write
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
