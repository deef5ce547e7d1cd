package record

// Document is one durable-store write: a timestamp plus the remaining
// fields. Fields never carries the timestamp key itself.
type Document struct {
	Timestamp Timestamp
	Fields    Fields
}

// NewDocument splits the timestamp out of payload and normalizes it.
// payload is not modified.
func NewDocument(payload Fields) Document {
	fields := payload.Clone()
	if fields == nil {
		fields = Fields{}
	}
	raw, _ := fields.Take(FieldTimestamp)
	return Document{
		Timestamp: NormalizeTimestamp(raw),
		Fields:    fields,
	}
}
