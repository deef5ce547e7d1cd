package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/clock"
)

// JobRetention names the history retention job.
const JobRetention = "retention"

// SweepReport summarizes one RetentionSweeper run.
type SweepReport struct {
	// Cutoff is the exclusive upper bound of deleted timestamps.
	Cutoff time.Time

	// Devices is the number of devices with durable records.
	Devices int

	// Deleted and Pages are per-device totals.
	Deleted map[string]int
	Pages   map[string]int

	// Failed maps devices whose sweep stopped on an error. Pages deleted
	// before the error stay deleted and are counted in Deleted.
	Failed map[string]error

	// ListErr is set when the device list could not be read.
	ListErr error
}

// TotalDeleted sums Deleted over all devices.
func (r SweepReport) TotalDeleted() int {
	total := 0
	for _, n := range r.Deleted {
		total += n
	}
	return total
}

// RetentionSweeper deletes history older than the retention window.
type RetentionSweeper struct {
	store    HistoryPruner
	clock    clock.Clock
	window   time.Duration
	pageSize int
	recorder Recorder
	logger   *slog.Logger
}

// NewRetentionSweeper creates a sweeper over store.
func NewRetentionSweeper(store HistoryPruner, opts ...Option) *RetentionSweeper {
	o := applyOptions(opts)
	return &RetentionSweeper{
		store:    store,
		clock:    o.clock,
		window:   o.window,
		pageSize: o.pageSize,
		recorder: o.recorder,
		logger:   o.logger.With("component", "retention-sweeper"),
	}
}

type deviceSweep struct {
	deviceID string
	deleted  int
	pages    int
}

// Run deletes every history record older than now minus the window.
//
// Devices are swept concurrently. Within a device, pages of at most
// pageSize records are queried and deleted one at a time, each page in
// one atomic batch, until a query comes back empty. Errors stop only the
// affected device.
func (s *RetentionSweeper) Run(ctx context.Context) SweepReport {
	start := time.Now()
	defer func() { s.recorder.ObserveJob(JobRetention, time.Since(start)) }()

	report := SweepReport{
		Cutoff:  s.clock.Now().Add(-s.window),
		Deleted: make(map[string]int),
		Pages:   make(map[string]int),
		Failed:  make(map[string]error),
	}
	s.logger.Info("starting cleanup of historical data", "cutoff", report.Cutoff)

	ids, err := s.store.ListDeviceIDs(ctx)
	if err != nil {
		s.logger.Error("error listing devices", "error", err)
		s.recorder.ObserveWrite(OpList, ResultError)
		report.ListErr = opError(OpList, "", err)
		return report
	}
	report.Devices = len(ids)

	sweeps := make([]*deviceSweep, len(ids))
	for i, id := range ids {
		sweeps[i] = &deviceSweep{deviceID: id}
	}

	errs := allSettled(ctx, sweeps, func(ctx context.Context, ds *deviceSweep) error {
		return s.sweepDevice(ctx, ds, report.Cutoff)
	})

	for i, ds := range sweeps {
		report.Deleted[ds.deviceID] = ds.deleted
		report.Pages[ds.deviceID] = ds.pages
		if errs[i] != nil {
			s.logger.Error("error cleaning up device history",
				"device_id", ds.deviceID,
				"deleted", ds.deleted,
				"error", errs[i],
			)
			report.Failed[ds.deviceID] = errs[i]
		}
	}

	s.logger.Info("historical data cleanup completed",
		"devices", report.Devices,
		"deleted", report.TotalDeleted(),
		"failed", len(report.Failed),
	)
	return report
}

// sweepDevice runs the Querying -> Deleting -> Querying loop for one
// device until an empty page.
func (s *RetentionSweeper) sweepDevice(ctx context.Context, ds *deviceSweep, cutoff time.Time) error {
	var prev []string
	for {
		if err := ctx.Err(); err != nil {
			return opError(OpQuery, ds.deviceID, err)
		}

		page, err := s.store.QueryHistoryBefore(ctx, ds.deviceID, cutoff, s.pageSize)
		if err != nil {
			s.recorder.ObserveWrite(OpQuery, ResultError)
			return opError(OpQuery, ds.deviceID, err)
		}
		if len(page) == 0 {
			return nil
		}
		if prev != nil && slices.Equal(prev, page) {
			return opError(OpDelete, ds.deviceID,
				fmt.Errorf("%w: page of %d starting at %s returned again", ErrNoProgress, len(page), page[0]))
		}

		n, err := s.store.DeleteHistory(ctx, ds.deviceID, page)
		if err != nil {
			s.recorder.ObserveWrite(OpDelete, ResultError)
			return opError(OpDelete, ds.deviceID, err)
		}
		ds.deleted += n
		ds.pages++
		s.recorder.ObserveWrite(OpDelete, ResultOK)
		s.recorder.ObserveHistoryDeleted(ds.deviceID, n)
		s.logger.Debug("deleted history page",
			"device_id", ds.deviceID,
			"page", ds.pages,
			"deleted", n,
		)
		prev = page
	}
}
