package record

import (
	"encoding/json"
	"strconv"
)

// DeviceStatusRecord is the latest known state of one device.
type DeviceStatusRecord struct {
	DeviceID        string
	Temperature     any // opaque; nil when the payload had none
	EmergencyStatus bool
	Timestamp       Timestamp
	Extra           Fields // every other payload field, copied through
}

// DefaultStatus builds a DeviceStatusRecord from a raw status payload.
//
// The timestamp is normalized and emergencyStatus is stored as a boolean
// (false when absent, truthy() otherwise). payload is not modified.
func DefaultStatus(deviceID string, payload Fields) DeviceStatusRecord {
	extra := payload.Clone()
	if extra == nil {
		extra = Fields{}
	}
	rawTS, _ := extra.Take(FieldTimestamp)
	rawEmergency, _ := extra.Take(FieldEmergencyStatus)
	temperature, _ := extra.Take(FieldTemperature)

	return DeviceStatusRecord{
		DeviceID:        deviceID,
		Temperature:     temperature,
		EmergencyStatus: truthy(rawEmergency),
		Timestamp:       NormalizeTimestamp(rawTS),
		Extra:           extra,
	}
}

// Document returns the full defaulted payload for persistence.
func (r DeviceStatusRecord) Document() Document {
	fields := r.Extra.Clone()
	if fields == nil {
		fields = Fields{}
	}
	if r.Temperature != nil {
		fields[FieldTemperature] = r.Temperature
	}
	fields[FieldEmergencyStatus] = r.EmergencyStatus
	return Document{Timestamp: r.Timestamp, Fields: fields}
}

// truthy interprets a loosely typed flag. Booleans and numbers count when
// non-zero. Strings accepted by strconv.ParseBool use that value, and any
// other non-empty string or composite value is set.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case int64:
		return b != 0
	case json.Number:
		f, err := b.Float64()
		return err != nil || f != 0
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
		return b != ""
	default:
		return true
	}
}
