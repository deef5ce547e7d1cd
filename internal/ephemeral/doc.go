// Package ephemeral holds the fast, lossy side of the system: an in-memory
// tree of live device state and log entries, fed by device telemetry over
// MQTT.
//
// Layout:
//
//	devices/{deviceId}/status    latest status payload (JSON object)
//	devices/{deviceId}/{field}   other per-device values
//	events/{eventId}             append-only log entries
//
// Writes to a status node and creations of event nodes are delivered to
// registered Listeners after the tree lock is released, in write order.
// Nothing in this package writes to the durable store.
package ephemeral
