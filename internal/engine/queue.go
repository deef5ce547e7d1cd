package engine

import (
	"sync"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
)

// TriggerKind distinguishes between trigger kinds.
type TriggerKind int

const (
	// TriggerStatus is a write to devices/{deviceId}/status.
	TriggerStatus TriggerKind = iota + 1
	// TriggerEvent is the creation of events/{eventId}.
	TriggerEvent
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerStatus:
		return "status"
	case TriggerEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Trigger wraps ephemeral notifications for the trigger queue.
type Trigger struct {
	Kind   TriggerKind
	Status *ephemeral.StatusChange
	Event  *ephemeral.EventEntry
}

// triggerQueue is a thread-safe FIFO queue for triggers.
//
// The queue is unbounded so that tree writers (MQTT callbacks) never block
// on durable writes.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
	signal   chan struct{} // Signals trigger availability (buffered, size 1)
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		triggers: make([]Trigger, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a trigger to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.triggers = append(q.triggers, t)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Trigger{}, false) if queue is empty.
func (q *triggerQueue) TryDequeue() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return Trigger{}, false
	}

	t := q.triggers[0]

	// Nil out the slot so the backing array does not retain payloads.
	q.triggers[0] = Trigger{}

	if len(q.triggers) == 1 {
		q.triggers = q.triggers[:0]
	} else {
		q.triggers = q.triggers[1:]
	}

	return t, true
}

// Wait returns a channel that signals when triggers may be available.
// The channel is closed once the queue is closed.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Drained reports whether the queue is closed and empty.
func (q *triggerQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.triggers) == 0
}

// Close signals that no more triggers will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
