package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Path     string // Document or collection path
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Path != "" {
		fmt.Fprintf(&buf, " %s", e.Path)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// AssertionContext provides the durable state assertions read from.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions passed.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertCount:
		return assertCount(a, actx)
	case AssertDocument:
		return assertDocument(a, actx)
	case AssertLatest:
		return assertLatest(a, actx)
	case AssertDevices:
		return assertDevices(a, actx)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertCount checks the number of documents in a sub-collection.
func assertCount(a Assertion, actx *AssertionContext) error {
	deviceID, sub, err := parsePath(a.Path)
	if err != nil {
		return err
	}
	var n int
	if sub == store.SubcollectionEvents {
		n, err = actx.Store.CountEvents(actx.Ctx, deviceID)
	} else {
		n, err = actx.Store.CountHistory(actx.Ctx, deviceID)
	}
	if err != nil {
		return fmt.Errorf("count %s: %w", a.Path, err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Path:     a.Path,
			Expected: fmt.Sprintf("%d documents", a.Count),
			Actual:   fmt.Sprintf("%d documents", n),
		}
	}
	return nil
}

// assertDocument subset-matches the current device document.
func assertDocument(a Assertion, actx *AssertionContext) error {
	deviceID, _, err := parsePath(a.Path)
	if err != nil {
		return err
	}
	snap, err := actx.Store.GetDevice(actx.Ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     a.Type,
			Path:     a.Path,
			Expected: "document to exist",
			Actual:   "not found",
		}
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", a.Path, err)
	}
	return matchSnapshot(a, snap)
}

// assertLatest subset-matches the newest document of a sub-collection.
func assertLatest(a Assertion, actx *AssertionContext) error {
	deviceID, sub, err := parsePath(a.Path)
	if err != nil {
		return err
	}
	var snaps []store.Snapshot
	if sub == store.SubcollectionEvents {
		snaps, err = actx.Store.ListEvents(actx.Ctx, deviceID, 1)
	} else {
		snaps, err = actx.Store.ListHistory(actx.Ctx, deviceID, 1)
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", a.Path, err)
	}
	if len(snaps) == 0 {
		return &AssertionError{
			Type:     a.Type,
			Path:     a.Path,
			Expected: "at least one document",
			Actual:   "empty collection",
		}
	}
	return matchSnapshot(a, snaps[0])
}

// assertDevices checks the exact list of devices with durable records.
func assertDevices(a Assertion, actx *AssertionContext) error {
	ids, err := actx.Store.ListDeviceIDs(actx.Ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	want := slices.Clone(a.Devices)
	sort.Strings(want)
	if !slices.Equal(ids, want) && !(len(ids) == 0 && len(want) == 0) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// matchSnapshot compares expected fields against a stored document.
// The "timestamp" key compares against the document time in RFC 3339.
func matchSnapshot(a Assertion, snap store.Snapshot) error {
	for key, raw := range a.Expect {
		if key == record.FieldTimestamp {
			want := fmt.Sprint(raw)
			if t, ok := raw.(time.Time); ok {
				want = t.UTC().Format(time.RFC3339)
			}
			got := snap.Timestamp.UTC().Format(time.RFC3339)
			if got != want {
				return mismatch(a, key, want, got)
			}
			continue
		}

		want, err := normalizeValue(raw)
		if err != nil {
			return fmt.Errorf("expect %s: %w", key, err)
		}
		got, ok := snap.Fields[key]
		if !ok {
			return mismatch(a, key, want, "<missing>")
		}
		if !valuesEqual(want, got) {
			return mismatch(a, key, want, got)
		}
	}
	return nil
}

// valuesEqual compares two decoded values after a JSON round-trip so
// numeric types line up.
func valuesEqual(want, got any) bool {
	g, err := normalizeValue(got)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(want, g)
}

func mismatch(a Assertion, key string, want, got any) error {
	return &AssertionError{
		Type:     a.Type,
		Path:     a.Path,
		Expected: fmt.Sprintf("%s = %s", key, render(want)),
		Actual:   fmt.Sprintf("%s = %s", key, render(got)),
	}
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
