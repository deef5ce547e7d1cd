package engine

import (
	"context"
	"log/slog"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// ChangeOutcome reports what ChangeMirror did for one status write.
type ChangeOutcome struct {
	DeviceID string

	// Skipped is true when the write deleted the status node.
	Skipped bool

	// Emergency is true when the defaulted status reported an emergency.
	Emergency bool

	// EventID is the emergency event document id, if one was written.
	EventID string

	// StatusErr and EmergencyErr are independent: either write may fail
	// while the other commits.
	StatusErr    error
	EmergencyErr error
}

// OK reports whether every attempted write committed.
func (o ChangeOutcome) OK() bool {
	return o.StatusErr == nil && o.EmergencyErr == nil
}

// ChangeMirror mirrors ephemeral status writes into smart_plugs/{deviceId}.
type ChangeMirror struct {
	status   StatusWriter
	events   EventAppender
	alerts   AlertPublisher
	recorder Recorder
	logger   *slog.Logger
}

// NewChangeMirror creates a ChangeMirror writing current state to status
// and emergency events to events.
func NewChangeMirror(status StatusWriter, events EventAppender, opts ...Option) *ChangeMirror {
	o := applyOptions(opts)
	return &ChangeMirror{
		status:   status,
		events:   events,
		alerts:   o.alerts,
		recorder: o.recorder,
		logger:   o.logger.With("component", "change-mirror"),
	}
}

// Handle mirrors one status write.
//
// A deletion is ignored. Otherwise the payload is defaulted, an emergency
// event is appended when emergencyStatus is set, and the current-state
// document is upserted. The emergency append and the upsert run
// concurrently and fail independently.
func (m *ChangeMirror) Handle(ctx context.Context, change ephemeral.StatusChange) ChangeOutcome {
	out := ChangeOutcome{DeviceID: change.DeviceID}

	if change.Deleted() {
		m.logger.Debug("status deleted, ignoring", "device_id", change.DeviceID)
		m.recorder.ObserveWrite(OpStatus, ResultSkipped)
		out.Skipped = true
		return out
	}

	status := record.DefaultStatus(change.DeviceID, change.After)
	out.Emergency = status.EmergencyStatus

	tasks := []func(context.Context) error{
		func(ctx context.Context) error {
			return m.upsert(ctx, status)
		},
	}
	if status.EmergencyStatus {
		tasks = append(tasks, func(ctx context.Context) error {
			id, err := m.recordEmergency(ctx, status)
			out.EventID = id
			return err
		})
	}

	errs := allSettled(ctx, tasks, func(ctx context.Context, task func(context.Context) error) error {
		return task(ctx)
	})
	out.StatusErr = errs[0]
	if len(errs) > 1 {
		out.EmergencyErr = errs[1]
	}
	return out
}

func (m *ChangeMirror) upsert(ctx context.Context, status record.DeviceStatusRecord) error {
	if err := m.status.UpdateDevice(ctx, status.DeviceID, status.Document()); err != nil {
		m.logger.Error("error mirroring status",
			"device_id", status.DeviceID,
			"error", err,
		)
		m.recorder.ObserveWrite(OpStatus, ResultError)
		return opError(OpStatus, status.DeviceID, err)
	}

	m.logger.Info("status mirrored", "device_id", status.DeviceID)
	m.recorder.ObserveWrite(OpStatus, ResultOK)
	return nil
}

func (m *ChangeMirror) recordEmergency(ctx context.Context, status record.DeviceStatusRecord) (string, error) {
	ev := record.NewEmergencyEvent(status)

	id, err := m.events.AddEvent(ctx, status.DeviceID, ev.Document())
	if err != nil {
		m.logger.Error("error recording emergency event",
			"device_id", status.DeviceID,
			"error", err,
		)
		m.recorder.ObserveWrite(OpEmergency, ResultError)
		return "", opError(OpEmergency, status.DeviceID, err)
	}

	m.logger.Warn("emergency event recorded",
		"device_id", status.DeviceID,
		"event_id", id,
		"temperature", status.Temperature,
	)
	m.recorder.ObserveWrite(OpEmergency, ResultOK)

	if m.alerts != nil {
		if err := m.alerts.PublishEmergency(ctx, id, ev); err != nil {
			m.logger.Error("error publishing emergency alert",
				"device_id", status.DeviceID,
				"event_id", id,
				"error", err,
			)
			m.recorder.ObserveWrite(OpAlert, ResultError)
		} else {
			m.recorder.ObserveWrite(OpAlert, ResultOK)
		}
	}
	return id, nil
}
