package engine

import (
	"context"
	"log/slog"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// EventOutcome reports what EventMirror did for one log entry.
type EventOutcome struct {
	EventID  string
	DeviceID string

	// Skipped is true when the entry carried no payload.
	Skipped bool

	// DocID is the durable event document id on success.
	DocID string

	Err error
}

// EventMirror copies new ephemeral log entries into
// smart_plugs/{deviceId}/events.
type EventMirror struct {
	events   EventAppender
	fallback string
	recorder Recorder
	logger   *slog.Logger
}

// NewEventMirror creates an EventMirror appending to events.
func NewEventMirror(events EventAppender, opts ...Option) *EventMirror {
	o := applyOptions(opts)
	return &EventMirror{
		events:   events,
		fallback: o.fallbackDevice,
		recorder: o.recorder,
		logger:   o.logger.With("component", "event-mirror"),
	}
}

// Handle mirrors one created log entry.
//
// The owning device is the id prefix before the first "_", or the fallback
// device. The payload is copied with its timestamp normalized.
func (m *EventMirror) Handle(ctx context.Context, entry ephemeral.EventEntry) EventOutcome {
	out := EventOutcome{EventID: entry.EventID}

	if len(entry.Value) == 0 {
		m.logger.Debug("no event data found", "event_id", entry.EventID)
		m.recorder.ObserveWrite(OpEvent, ResultSkipped)
		out.Skipped = true
		return out
	}

	ev := record.NewLoggedEvent(entry.EventID, m.fallback, entry.Value)
	out.DeviceID = ev.DeviceID

	id, err := m.events.AddEvent(ctx, ev.DeviceID, ev.Document)
	if err != nil {
		m.logger.Error("error mirroring event",
			"event_id", entry.EventID,
			"device_id", ev.DeviceID,
			"error", err,
		)
		m.recorder.ObserveWrite(OpEvent, ResultError)
		out.Err = opError(OpEvent, ev.DeviceID, err)
		return out
	}

	m.logger.Info("event mirrored",
		"event_id", entry.EventID,
		"device_id", ev.DeviceID,
		"doc_id", id,
	)
	m.recorder.ObserveWrite(OpEvent, ResultOK)
	out.DocID = id
	return out
}
