package store

import (
	"fmt"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// marshalFields converts a document's fields to canonical JSON TEXT.
func marshalFields(fields record.Fields) (string, error) {
	if fields == nil {
		fields = record.Fields{}
	}
	data, err := record.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses canonical JSON TEXT back to fields.
func unmarshalFields(data string) (record.Fields, error) {
	if data == "" || data == "{}" {
		return record.Fields{}, nil
	}
	return record.UnmarshalFields([]byte(data))
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
