package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
	"github.com/evansbry000/SmartPlugApp/internal/testutil"
)

func setupAssertionStore(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewFakeClock(testStart)),
		store.WithIDGenerator(testutil.NewSequenceIDs("doc")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.UpdateDevice(ctx, "plugA", record.Document{
		Timestamp: record.At(testStart),
		Fields:    record.Fields{"temperature": 30.0, "emergencyStatus": false, "meta": map[string]any{"room": "lab"}},
	}))
	_, err = st.AddHistory(ctx, "plugA", record.Document{
		Timestamp: record.At(testStart.Add(-time.Hour)),
		Fields:    record.Fields{"temperature": 25.0},
	})
	require.NoError(t, err)
	_, err = st.AddHistory(ctx, "plugA", record.Document{
		Timestamp: record.At(testStart),
		Fields:    record.Fields{"temperature": 30.0},
	})
	require.NoError(t, err)

	return &AssertionContext{Store: st, Ctx: ctx}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	actx := setupAssertionStore(t)

	failures := EvaluateAssertions([]Assertion{
		{Type: AssertCount, Path: "smart_plugs/plugA/history", Count: 2},
		{Type: AssertCount, Path: "smart_plugs/plugA/events", Count: 0},
		{Type: AssertDocument, Path: "smart_plugs/plugA", Expect: map[string]any{
			"temperature": 30,
			"meta":        map[string]any{"room": "lab"},
			"timestamp":   testStart,
		}},
		{Type: AssertLatest, Path: "smart_plugs/plugA/history", Expect: map[string]any{"temperature": 30}},
		{Type: AssertDevices, Devices: []string{"plugA"}},
	}, actx)

	assert.Empty(t, failures)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	actx := setupAssertionStore(t)

	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"count", Assertion{Type: AssertCount, Path: "smart_plugs/plugA/history", Count: 3}, "Expected: 3 documents"},
		{"missing field", Assertion{Type: AssertDocument, Path: "smart_plugs/plugA", Expect: map[string]any{"voltage": 230}}, "voltage = <missing>"},
		{"wrong timestamp", Assertion{Type: AssertDocument, Path: "smart_plugs/plugA", Expect: map[string]any{"timestamp": "2020-01-01T00:00:00Z"}}, "timestamp = 2020-01-01T00:00:00Z"},
		{"empty latest", Assertion{Type: AssertLatest, Path: "smart_plugs/plugA/events", Expect: map[string]any{"type": "x"}}, "empty collection"},
		{"devices", Assertion{Type: AssertDevices, Devices: []string{"plugB"}}, "[plugB]"},
		{"unknown", Assertion{Type: "vibes"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions([]Assertion{tt.assertion}, actx)
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.want)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCount,
		Path:     "smart_plugs/plugA/events",
		Expected: "1 documents",
		Actual:   "0 documents",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: count smart_plugs/plugA/events")
	assert.Contains(t, msg, "Expected: 1 documents")
	assert.Contains(t, msg, "Actual: 0 documents")
}
