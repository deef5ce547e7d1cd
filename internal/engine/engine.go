package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
)

// Engine is the single-writer trigger dispatcher.
//
// It receives ephemeral notifications (as an ephemeral.Listener), queues
// them in FIFO order and routes each to ChangeMirror or EventMirror.
//
// Thread-safety model:
//   - StatusWritten(), EventCreated(), Enqueue(): safe from any goroutine
//   - Run() and Drain(): must not run concurrently with each other
type Engine struct {
	queue   *triggerQueue
	changes *ChangeMirror
	events  *EventMirror
	logger  *slog.Logger
}

var _ ephemeral.Listener = (*Engine)(nil)

// New creates an Engine dispatching to changes and events.
func New(changes *ChangeMirror, events *EventMirror, opts ...Option) *Engine {
	o := applyOptions(opts)
	return &Engine{
		queue:   newTriggerQueue(),
		changes: changes,
		events:  events,
		logger:  o.logger.With("component", "engine"),
	}
}

// StatusWritten queues a status write. Implements ephemeral.Listener.
func (e *Engine) StatusWritten(c ephemeral.StatusChange) {
	if !e.Enqueue(Trigger{Kind: TriggerStatus, Status: &c}) {
		e.logger.Warn("engine stopped, dropping status write", "device_id", c.DeviceID)
	}
}

// EventCreated queues a log entry creation. Implements ephemeral.Listener.
func (e *Engine) EventCreated(entry ephemeral.EventEntry) {
	if !e.Enqueue(Trigger{Kind: TriggerEvent, Event: &entry}) {
		e.logger.Warn("engine stopped, dropping event", "event_id", entry.EventID)
	}
}

// Enqueue submits a trigger for processing.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(t Trigger) bool {
	return e.queue.Enqueue(t)
}

// Pending returns the number of queued triggers.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Run starts the event loop.
// Blocks until the context is cancelled or Stop() is called and the queue
// has drained.
//
// ERROR HANDLING: Handlers log their own failures; a malformed trigger is
// logged and skipped. Processing always continues with the next trigger.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if t, ok := e.queue.TryDequeue(); ok {
			if err := e.process(ctx, t); err != nil {
				e.logger.Error("trigger processing failed", "kind", t.Kind, "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "pending", e.queue.Len())
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// A stale signal can arrive with nothing queued; only a closed
			// and empty queue ends the loop.
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes every queued trigger on the calling goroutine and returns
// how many were processed.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for {
		t, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		if err := e.process(ctx, t); err != nil {
			e.logger.Error("trigger processing failed", "kind", t.Kind, "error", err)
		}
		n++
	}
}

// Stop closes the trigger queue. Run returns once it is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) process(ctx context.Context, t Trigger) error {
	switch t.Kind {
	case TriggerStatus:
		if t.Status == nil {
			return fmt.Errorf("status trigger missing change data")
		}
		e.changes.Handle(ctx, *t.Status)
		return nil

	case TriggerEvent:
		if t.Event == nil {
			return fmt.Errorf("event trigger missing entry data")
		}
		e.events.Handle(ctx, *t.Event)
		return nil

	default:
		return fmt.Errorf("unknown trigger kind: %d", t.Kind)
	}
}
