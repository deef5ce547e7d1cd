package record

import "strings"

// Emergency event constants.
const (
	EventTypeEmergency      = "emergency"
	MessageHighTemperature  = "HIGH_TEMPERATURE"
	EventIDSeparator        = "_"
	DefaultFallbackDeviceID = "plug1"
)

// EmergencyEvent records that a device reported an emergency status.
type EmergencyEvent struct {
	DeviceID    string
	Type        string
	Message     string
	Temperature any
	Timestamp   Timestamp
}

// NewEmergencyEvent derives the emergency event for a defaulted status.
// A record without a timestamp gets a fresh server timestamp.
func NewEmergencyEvent(r DeviceStatusRecord) EmergencyEvent {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = ServerTimestamp()
	}
	return EmergencyEvent{
		DeviceID:    r.DeviceID,
		Type:        EventTypeEmergency,
		Message:     MessageHighTemperature,
		Temperature: r.Temperature,
		Timestamp:   ts,
	}
}

// Document returns the event as a durable write.
func (e EmergencyEvent) Document() Document {
	fields := Fields{
		FieldType:    e.Type,
		FieldMessage: e.Message,
	}
	if e.Temperature != nil {
		fields[FieldTemperature] = e.Temperature
	}
	return Document{Timestamp: e.Timestamp, Fields: fields}
}

// LoggedEvent is one ephemeral log entry attributed to a device.
type LoggedEvent struct {
	EventID  string
	DeviceID string
	Document Document
}

// NewLoggedEvent resolves the owning device from eventID and normalizes
// the payload timestamp.
func NewLoggedEvent(eventID, fallbackDeviceID string, payload Fields) LoggedEvent {
	return LoggedEvent{
		EventID:  eventID,
		DeviceID: ResolveEventDevice(eventID, fallbackDeviceID),
		Document: NewDocument(payload),
	}
}

// ResolveEventDevice returns the device owning a log entry. Identifiers of
// the form "{deviceId}_{suffix}" belong to deviceId; identifiers without a
// separator, or with an empty prefix, belong to fallback.
func ResolveEventDevice(eventID, fallback string) string {
	prefix, _, found := strings.Cut(eventID, EventIDSeparator)
	if !found || prefix == "" {
		return fallback
	}
	return prefix
}
