package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
	"github.com/evansbry000/SmartPlugApp/internal/testutil"
)

var sweepNow = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithClock(testutil.NewFakeClock(sweepNow)),
		store.WithIDGenerator(testutil.NewSequenceIDs("h")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedHistory(t *testing.T, s *store.Store, deviceID string, n int, at time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := s.AddHistory(ctx, deviceID, record.Document{
			Timestamp: record.At(at.Add(time.Duration(i) * time.Second)),
			Fields:    record.Fields{"temperature": 20.0},
		})
		require.NoError(t, err)
	}
}

// spyPruner records the calls made against a HistoryPruner.
type spyPruner struct {
	HistoryPruner

	mu        sync.Mutex
	queries   map[string]int
	pageSizes map[string][]int
	failQuery map[string]error
	ignoreDel bool
}

func newSpyPruner(inner HistoryPruner) *spyPruner {
	return &spyPruner{
		HistoryPruner: inner,
		queries:       make(map[string]int),
		pageSizes:     make(map[string][]int),
		failQuery:     make(map[string]error),
	}
}

func (p *spyPruner) QueryHistoryBefore(ctx context.Context, deviceID string, cutoff time.Time, limit int) ([]string, error) {
	p.mu.Lock()
	p.queries[deviceID]++
	err := p.failQuery[deviceID]
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.HistoryPruner.QueryHistoryBefore(ctx, deviceID, cutoff, limit)
}

func (p *spyPruner) DeleteHistory(ctx context.Context, deviceID string, ids []string) (int, error) {
	p.mu.Lock()
	p.pageSizes[deviceID] = append(p.pageSizes[deviceID], len(ids))
	ignore := p.ignoreDel
	p.mu.Unlock()
	if ignore {
		return 0, nil
	}
	return p.HistoryPruner.DeleteHistory(ctx, deviceID, ids)
}

func newTestSweeper(p HistoryPruner, opts ...Option) *RetentionSweeper {
	opts = append([]Option{WithClock(testutil.NewFakeClock(sweepNow))}, opts...)
	return NewRetentionSweeper(p, opts...)
}

func TestRetentionSweeper_PagesToExhaustion(t *testing.T) {
	s := createTestStore(t)
	old := sweepNow.Add(-8 * 24 * time.Hour)
	seedHistory(t, s, "plugA", 1200, old)
	seedHistory(t, s, "plugA", 3, sweepNow.Add(-time.Hour))

	spy := newSpyPruner(s)
	report := newTestSweeper(spy).Run(context.Background())

	assert.Empty(t, report.Failed)
	assert.Equal(t, 1200, report.Deleted["plugA"])
	assert.Equal(t, 3, report.Pages["plugA"])
	assert.Equal(t, []int{500, 500, 200}, spy.pageSizes["plugA"])
	assert.Equal(t, 4, spy.queries["plugA"], "three pages plus the empty one")

	remaining, err := s.CountHistory(context.Background(), "plugA")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining, "records inside the window are kept")

	// A second run finds nothing to delete.
	spy2 := newSpyPruner(s)
	again := newTestSweeper(spy2).Run(context.Background())
	assert.Equal(t, 0, again.TotalDeleted())
	assert.Equal(t, 1, spy2.queries["plugA"])
	assert.Empty(t, spy2.pageSizes["plugA"])
}

func TestRetentionSweeper_CutoffIsExclusive(t *testing.T) {
	s := createTestStore(t)
	cutoff := sweepNow.Add(-DefaultRetentionWindow)
	seedHistory(t, s, "plugA", 1, cutoff)
	seedHistory(t, s, "plugA", 1, cutoff.Add(-time.Millisecond))

	report := newTestSweeper(s).Run(context.Background())

	assert.Equal(t, cutoff, report.Cutoff)
	assert.Equal(t, 1, report.Deleted["plugA"])
}

func TestRetentionSweeper_ConfigurableWindowAndPageSize(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "plugA", 25, sweepNow.Add(-2*time.Hour))

	spy := newSpyPruner(s)
	report := newTestSweeper(spy, WithRetentionWindow(time.Hour), WithPageSize(10)).Run(context.Background())

	assert.Equal(t, 25, report.Deleted["plugA"])
	assert.Equal(t, []int{10, 10, 5}, spy.pageSizes["plugA"])
}

func TestRetentionSweeper_DeviceFailureIsolated(t *testing.T) {
	s := createTestStore(t)
	old := sweepNow.Add(-10 * 24 * time.Hour)
	for _, id := range []string{"plugA", "plugB", "plugC"} {
		seedHistory(t, s, id, 5, old)
	}

	spy := newSpyPruner(s)
	spy.failQuery["plugB"] = errors.New("query timeout")
	logger, logs := testutil.NewCaptureLogger()
	report := newTestSweeper(spy, WithLogger(logger)).Run(context.Background())

	assert.Equal(t, 3, report.Devices)
	require.Len(t, report.Failed, 1)
	assert.True(t, IsOp(report.Failed["plugB"], OpQuery))
	assert.Equal(t, 5, report.Deleted["plugA"])
	assert.Equal(t, 5, report.Deleted["plugC"])
	assert.Equal(t, 1, logs.Count("error cleaning up device history"))
}

func TestRetentionSweeper_NoProgressStops(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "plugA", 3, sweepNow.Add(-30*24*time.Hour))

	spy := newSpyPruner(s)
	spy.ignoreDel = true
	report := newTestSweeper(spy).Run(context.Background())

	require.Contains(t, report.Failed, "plugA")
	assert.ErrorIs(t, report.Failed["plugA"], ErrNoProgress)
	assert.Equal(t, 2, spy.queries["plugA"])
}

func TestRetentionSweeper_NoDevices(t *testing.T) {
	s := createTestStore(t)
	report := newTestSweeper(s).Run(context.Background())
	assert.Equal(t, 0, report.Devices)
	assert.Empty(t, report.Failed)
}

func TestRetentionSweeper_ListError(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	report := newTestSweeper(failingLister{}, WithLogger(logger)).Run(context.Background())

	require.Error(t, report.ListErr)
	assert.Equal(t, 1, logs.Count("error listing devices"))
}

func TestRetentionSweeper_RecordsMetrics(t *testing.T) {
	s := createTestStore(t)
	seedHistory(t, s, "plugA", 7, sweepNow.Add(-8*24*time.Hour))

	rec := newCountingRecorder()
	newTestSweeper(s, WithRecorder(rec)).Run(context.Background())

	assert.Equal(t, 7, rec.deleted["plugA"])
	assert.Equal(t, 1, rec.count("delete/ok"))
	assert.Equal(t, 1, rec.jobs[JobRetention])
}

type failingLister struct {
	HistoryPruner
}

func (failingLister) ListDeviceIDs(context.Context) ([]string, error) {
	return nil, errors.New("store closed")
}
