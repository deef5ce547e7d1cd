package record

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Timestamp is the durable store's canonical point in time.
//
// A Timestamp is either an absolute instant (At) or the server-time
// sentinel (ServerTimestamp), which carries no value until the durable
// store resolves it at commit. The zero Timestamp behaves like the sentinel.
type Timestamp struct {
	at     time.Time
	server bool
}

// ServerTimestamp returns the sentinel resolved by the store at commit time.
func ServerTimestamp() Timestamp {
	return Timestamp{server: true}
}

// At returns a Timestamp for an absolute instant, stored in UTC.
func At(t time.Time) Timestamp {
	return Timestamp{at: t.UTC()}
}

// FromMillis converts milliseconds since the Unix epoch. Fractional
// milliseconds are truncated toward zero.
func FromMillis(ms float64) Timestamp {
	return At(time.UnixMilli(int64(math.Trunc(ms))))
}

// IsServer reports whether ts is the server-time sentinel.
func (ts Timestamp) IsServer() bool {
	return ts.server
}

// IsZero reports whether ts holds neither an instant nor the sentinel.
func (ts Timestamp) IsZero() bool {
	return !ts.server && ts.at.IsZero()
}

// Time returns the absolute instant, or the zero time for the sentinel.
func (ts Timestamp) Time() time.Time {
	return ts.at
}

// Resolve returns the instant ts denotes, using now for the sentinel.
func (ts Timestamp) Resolve(now time.Time) time.Time {
	if ts.server || ts.at.IsZero() {
		return now.UTC()
	}
	return ts.at
}

func (ts Timestamp) String() string {
	if ts.IsZero() || ts.server {
		return "SERVER_TIMESTAMP"
	}
	return ts.at.Format(time.RFC3339Nano)
}

// NormalizeTimestamp converts a raw payload time value into a Timestamp.
//
// Absent values (nil) become the server-time sentinel. Numbers are read as
// milliseconds since the epoch. A Timestamp or time.Time passes through.
// Strings holding a number are treated as numbers, RFC 3339 strings are
// parsed; anything else falls back to the sentinel. There is no error path.
func NormalizeTimestamp(raw any) Timestamp {
	switch v := raw.(type) {
	case nil:
		return ServerTimestamp()
	case Timestamp:
		if v.IsZero() {
			return ServerTimestamp()
		}
		return v
	case time.Time:
		if v.IsZero() {
			return ServerTimestamp()
		}
		return At(v)
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return At(time.UnixMilli(int64(v)))
	case int32:
		return At(time.UnixMilli(int64(v)))
	case int64:
		return At(time.UnixMilli(v))
	case uint:
		return At(time.UnixMilli(int64(v)))
	case uint32:
		return At(time.UnixMilli(int64(v)))
	case uint64:
		return At(time.UnixMilli(int64(v)))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return fromFloat(f)
		}
		return ServerTimestamp()
	case string:
		return fromString(v)
	default:
		return ServerTimestamp()
	}
}

func fromFloat(f float64) Timestamp {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ServerTimestamp()
	}
	return FromMillis(f)
}

func fromString(s string) Timestamp {
	if s == "" {
		return ServerTimestamp()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromFloat(f)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return At(t)
	}
	return ServerTimestamp()
}
