// Package harness runs replication scenarios against the real engine.
//
// A scenario drives an in-memory ephemeral tree and a fresh SQLite durable
// store through a sequence of steps, then checks assertions on the durable
// documents.
//
// # Scenario Format
//
//	name: emergency_flow
//	description: "Emergency status produces an event and a current document"
//	start: 2026-03-10T00:00:00Z
//	steps:
//	  - action: write_status
//	    device: plugA
//	    value: { temperature: 95, emergencyStatus: true }
//	  - action: append_event
//	    event_id: plugA_1
//	    value: { kind: boot }
//	  - action: snapshot
//	  - action: advance
//	    duration: 192h
//	  - action: sweep
//	assertions:
//	  - type: count
//	    path: smart_plugs/plugA/events
//	    count: 1
//	  - type: document
//	    path: smart_plugs/plugA
//	    expect: { emergencyStatus: true }
//
// # Steps
//
//   - write_status / delete_status: write or delete devices/{device}/status
//   - set_field: write devices/{device}/{key} (not a trigger)
//   - append_event: create events/{event_id}
//   - snapshot: run the history snapshot job once
//   - sweep: run the retention job once
//   - advance: move the clock forward by duration
//
// Triggers are processed synchronously after each step.
//
// # Assertion Types
//
//   - count: number of documents in a sub-collection
//   - document: subset match on smart_plugs/{id}
//   - latest: subset match on the newest document of a sub-collection
//   - devices: exact list of devices with durable records
//
// # Deterministic Testing
//
// The clock starts at the scenario's start time and only moves on advance;
// document ids come from testutil.SequenceIDs. The final store dump is
// therefore stable and can be compared against golden files.
package harness
