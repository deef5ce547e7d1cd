package record

import "sort"

// Well-known payload keys.
const (
	FieldTimestamp       = "timestamp"
	FieldEmergencyStatus = "emergencyStatus"
	FieldTemperature     = "temperature"
	FieldType            = "type"
	FieldMessage         = "message"
)

// Fields is an untyped payload as read from the ephemeral store.
// Values are whatever the decoder produced (float64, string, bool, nested
// maps and slices); the engine copies unrecognized keys through untouched.
type Fields map[string]any

// Clone returns a shallow copy. Nested maps and slices are shared.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Take removes key from f and returns its value and whether it was present.
func (f Fields) Take(key string) (any, bool) {
	v, ok := f[key]
	if ok {
		delete(f, key)
	}
	return v, ok
}

// SortedKeys returns the keys in lexical order.
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of base with every key of overlay written over it.
// Keys present only in base are kept.
func Merge(base, overlay Fields) Fields {
	out := make(Fields, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
