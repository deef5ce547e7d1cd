package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimestamp_AbsentIsServerTime(t *testing.T) {
	ts := NormalizeTimestamp(nil)
	assert.True(t, ts.IsServer())
	assert.False(t, ts.IsZero())
}

func TestNormalizeTimestamp_NumericMillis(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{"float64", float64(1700000000000), time.UnixMilli(1700000000000)},
		{"int", 1700000000123, time.UnixMilli(1700000000123)},
		{"int64", int64(86400000), time.UnixMilli(86400000)},
		{"zero", float64(0), time.UnixMilli(0)},
		{"fractional truncates", 1500.9, time.UnixMilli(1500)},
		{"json.Number", json.Number("1700000000000"), time.UnixMilli(1700000000000)},
		{"numeric string", "1700000000000", time.UnixMilli(1700000000000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NormalizeTimestamp(tt.raw)
			assert.False(t, ts.IsServer())
			assert.True(t, tt.want.Equal(ts.Time()), "got %v want %v", ts.Time(), tt.want)
		})
	}
}

func TestNormalizeTimestamp_PassThrough(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, At(at), NormalizeTimestamp(At(at)))
	assert.Equal(t, At(at), NormalizeTimestamp(at))
	assert.True(t, NormalizeTimestamp(ServerTimestamp()).IsServer())
}

func TestNormalizeTimestamp_RFC3339String(t *testing.T) {
	ts := NormalizeTimestamp("2026-03-01T12:00:00Z")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ts.Time())
}

func TestNormalizeTimestamp_UnrecognizedFallsBackToServer(t *testing.T) {
	for _, raw := range []any{"yesterday", "", true, []any{1}, map[string]any{}} {
		assert.True(t, NormalizeTimestamp(raw).IsServer(), "raw=%v", raw)
	}
}

func TestTimestamp_Resolve(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now, ServerTimestamp().Resolve(now))
	assert.Equal(t, now, Timestamp{}.Resolve(now))
	assert.Equal(t, at, At(at).Resolve(now))
}
