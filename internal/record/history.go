package record

// HistorySnapshot is a point-in-time copy of a device status.
type HistorySnapshot struct {
	DeviceID string
	Document Document
}

// NewHistorySnapshot copies status as-is apart from timestamp normalization.
func NewHistorySnapshot(deviceID string, status Fields) HistorySnapshot {
	return HistorySnapshot{
		DeviceID: deviceID,
		Document: NewDocument(status),
	}
}
