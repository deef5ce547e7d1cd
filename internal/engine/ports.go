package engine

import (
	"context"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// StatusWriter upserts smart_plugs/{deviceId}.
type StatusWriter interface {
	UpdateDevice(ctx context.Context, deviceID string, doc record.Document) error
}

// EventAppender appends to smart_plugs/{deviceId}/events.
type EventAppender interface {
	AddEvent(ctx context.Context, deviceID string, doc record.Document) (string, error)
}

// HistoryAppender appends to smart_plugs/{deviceId}/history.
type HistoryAppender interface {
	AddHistory(ctx context.Context, deviceID string, doc record.Document) (string, error)
}

// DeviceDirectory reads the ephemeral device directory in one fetch.
type DeviceDirectory interface {
	Devices(ctx context.Context) ([]ephemeral.Device, error)
}

// HistoryPruner finds and deletes aged history.
type HistoryPruner interface {
	ListDeviceIDs(ctx context.Context) ([]string, error)
	QueryHistoryBefore(ctx context.Context, deviceID string, cutoff time.Time, limit int) ([]string, error)
	DeleteHistory(ctx context.Context, deviceID string, ids []string) (int, error)
}

// AlertPublisher forwards recorded emergency events to an external channel.
type AlertPublisher interface {
	PublishEmergency(ctx context.Context, eventID string, ev record.EmergencyEvent) error
}

// Recorder receives per-write observations. Implemented by
// metrics.Collector.
type Recorder interface {
	ObserveWrite(op, result string)
	ObserveHistoryDeleted(deviceID string, n int)
	ObserveJob(job string, d time.Duration)
}

// Write results passed to Recorder.ObserveWrite.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Write operations passed to Recorder.ObserveWrite.
const (
	OpStatus    = "status"
	OpEmergency = "emergency"
	OpEvent     = "event"
	OpHistory   = "history"
	OpList      = "list"
	OpQuery     = "query"
	OpDelete    = "delete"
	OpAlert     = "alert"
)

type nopRecorder struct{}

func (nopRecorder) ObserveWrite(string, string)       {}
func (nopRecorder) ObserveHistoryDeleted(string, int) {}
func (nopRecorder) ObserveJob(string, time.Duration)  {}
