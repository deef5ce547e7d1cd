package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// JobSnapshot names the history snapshot job.
const JobSnapshot = "snapshot"

// SnapshotReport summarizes one HistorySnapshotter run.
type SnapshotReport struct {
	// Devices is the size of the fetched device directory.
	Devices int

	// Written lists devices whose snapshot committed, in directory order.
	Written []string

	// Skipped lists devices without a status node.
	Skipped []string

	// Failed maps devices whose snapshot write failed to the error.
	Failed map[string]error

	// FetchErr is set when the device directory could not be read.
	FetchErr error
}

// HistorySnapshotter appends the current status of every device to its
// history.
type HistorySnapshotter struct {
	dir      DeviceDirectory
	history  HistoryAppender
	recorder Recorder
	logger   *slog.Logger
}

// NewHistorySnapshotter creates a snapshotter reading dir and writing to
// history.
func NewHistorySnapshotter(dir DeviceDirectory, history HistoryAppender, opts ...Option) *HistorySnapshotter {
	o := applyOptions(opts)
	return &HistorySnapshotter{
		dir:      dir,
		history:  history,
		recorder: o.recorder,
		logger:   o.logger.With("component", "history-snapshotter"),
	}
}

// Run takes one snapshot of every device that has a status.
//
// The directory is fetched once. Writes run concurrently, one per device,
// and Run returns after all of them settled. Failures are logged and
// reported; they never stop other devices.
func (h *HistorySnapshotter) Run(ctx context.Context) SnapshotReport {
	start := time.Now()
	defer func() { h.recorder.ObserveJob(JobSnapshot, time.Since(start)) }()

	report := SnapshotReport{Failed: make(map[string]error)}
	h.logger.Info("starting scheduled historical data recording")

	devices, err := h.dir.Devices(ctx)
	if err != nil {
		h.logger.Error("error reading device directory", "error", err)
		h.recorder.ObserveWrite(OpHistory, ResultError)
		report.FetchErr = opError(OpList, "", err)
		return report
	}
	report.Devices = len(devices)
	if len(devices) == 0 {
		h.logger.Info("no devices found")
		return report
	}

	var pending []record.HistorySnapshot
	for _, d := range devices {
		if !d.HasStatus() {
			h.logger.Info("no status data for device", "device_id", d.ID)
			h.recorder.ObserveWrite(OpHistory, ResultSkipped)
			report.Skipped = append(report.Skipped, d.ID)
			continue
		}
		pending = append(pending, record.NewHistorySnapshot(d.ID, d.Status))
	}

	errs := allSettled(ctx, pending, h.write)
	for i, snap := range pending {
		if errs[i] != nil {
			report.Failed[snap.DeviceID] = errs[i]
			continue
		}
		report.Written = append(report.Written, snap.DeviceID)
	}

	h.logger.Info("historical data recording completed",
		"devices", report.Devices,
		"written", len(report.Written),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
	)
	return report
}

func (h *HistorySnapshotter) write(ctx context.Context, snap record.HistorySnapshot) error {
	id, err := h.history.AddHistory(ctx, snap.DeviceID, snap.Document)
	if err != nil {
		h.logger.Error("error recording historical data",
			"device_id", snap.DeviceID,
			"error", err,
		)
		h.recorder.ObserveWrite(OpHistory, ResultError)
		return opError(OpHistory, snap.DeviceID, err)
	}

	h.logger.Debug("historical data recorded", "device_id", snap.DeviceID, "doc_id", id)
	h.recorder.ObserveWrite(OpHistory, ResultOK)
	return nil
}
