package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStatus_EmergencyAbsentDefaultsFalse(t *testing.T) {
	rec := DefaultStatus("plugA", Fields{"temperature": 40.0})

	assert.False(t, rec.EmergencyStatus)
	doc := rec.Document()
	assert.Equal(t, false, doc.Fields[FieldEmergencyStatus])
}

func TestDefaultStatus_TimestampAbsentIsServer(t *testing.T) {
	rec := DefaultStatus("plugA", Fields{"temperature": 40.0})
	assert.True(t, rec.Timestamp.IsServer())
}

func TestDefaultStatus_NumericTimestamp(t *testing.T) {
	rec := DefaultStatus("plugA", Fields{"timestamp": float64(1700000000000)})
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), rec.Timestamp.Time())
}

func TestDefaultStatus_CopiesUnknownFields(t *testing.T) {
	payload := Fields{
		"temperature":     95.0,
		"emergencyStatus": true,
		"power":           12.5,
		"relay":           "on",
	}
	rec := DefaultStatus("plugA", payload)

	assert.Equal(t, 95.0, rec.Temperature)
	assert.True(t, rec.EmergencyStatus)
	assert.Equal(t, Fields{"power": 12.5, "relay": "on"}, rec.Extra)

	doc := rec.Document()
	assert.Equal(t, Fields{
		"temperature":     95.0,
		"emergencyStatus": true,
		"power":           12.5,
		"relay":           "on",
	}, doc.Fields)
	assert.NotContains(t, doc.Fields, FieldTimestamp)

	// Input payload untouched.
	assert.Len(t, payload, 4)
}

func TestDefaultStatus_LooseEmergencyFlags(t *testing.T) {
	tests := []struct {
		raw  any
		want bool
	}{
		{true, true},
		{false, false},
		{1.0, true},
		{0.0, false},
		{"true", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"high", true},
		{json.Number("0"), false},
		{json.Number("2"), true},
		{map[string]any{"level": 2.0}, true},
		{nil, false},
	}
	for _, tt := range tests {
		rec := DefaultStatus("p", Fields{"emergencyStatus": tt.raw})
		assert.Equal(t, tt.want, rec.EmergencyStatus, "raw=%v", tt.raw)
	}
}

func TestDefaultStatus_NonBooleanEmergencyStoredAsFlag(t *testing.T) {
	rec := DefaultStatus("plugA", Fields{"emergencyStatus": "high", "temperature": 90.0})
	assert.True(t, rec.EmergencyStatus)
	assert.Equal(t, true, rec.Document().Fields[FieldEmergencyStatus])
}

func TestDefaultStatus_NilPayload(t *testing.T) {
	rec := DefaultStatus("plugA", nil)
	assert.False(t, rec.EmergencyStatus)
	assert.True(t, rec.Timestamp.IsServer())
	assert.Equal(t, Fields{"emergencyStatus": false}, rec.Document().Fields)
}
