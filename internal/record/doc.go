// Package record defines the documents mirrored from the ephemeral telemetry
// store into the durable store, and the normalization applied on the way.
//
// Payloads arrive as untyped field maps (Fields). Each durable entity has an
// explicit type with its named fields pulled out of the map and everything
// else carried through unchanged:
//
//   - DeviceStatusRecord: current state of one plug (smart_plugs/{deviceId})
//   - EmergencyEvent: emitted when a mirrored status has emergencyStatus set
//   - LoggedEvent: one ephemeral log entry, attributed to its device
//   - HistorySnapshot: periodic copy of a device status
//
// Every entity converts to a Document, the unit the durable store persists.
// A Document's Timestamp may be the server-time sentinel, which the store
// resolves to its own clock when the write commits.
package record
