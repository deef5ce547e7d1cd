// Package testutil provides deterministic helpers shared by tests and the
// scenario harness: a settable clock, sequential document ids and a log
// capture buffer.
package testutil
