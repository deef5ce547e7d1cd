// Package clock abstracts wall-clock reads so that server timestamps and
// retention cutoffs can be pinned in tests.
package clock

import "time"

// Clock reports the current time.
//
// Production code injects Real(); tests inject testutil.FakeClock.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by time.Now, in UTC.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Func adapts a function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
