package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
start: 2026-03-10T08:00:00Z
fallback_device: plug9
retention:
  window: 48h
  page_size: 10
steps:
  - action: write_status
    device: plugA
    value:
      temperature: 21.5
  - action: advance
    duration: 1h
assertions:
  - type: count
    path: smart_plugs/plugA/history
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), scenario.Start.UTC())
	assert.Equal(t, "plug9", scenario.FallbackDevice)
	require.NotNil(t, scenario.Retention)
	assert.Equal(t, "48h", scenario.Retention.Window)
	assert.Equal(t, 10, scenario.Retention.PageSize)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, StepWriteStatus, scenario.Steps[0].Action)
	assert.Equal(t, "plugA", scenario.Steps[0].Device)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_DefaultStart(t *testing.T) {
	path := writeScenario(t, `
name: defaults
description: "No start time"
steps:
  - action: snapshot
assertions:
  - type: devices
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultStart, scenario.Start)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Misspelled field"
stepz:
  - action: snapshot
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownStepField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Misspelled step field"
steps:
  - action: write_status
    devise: plugA
assertions:
  - type: devices
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
steps: [{action: snapshot}]
assertions: [{type: devices}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
steps: [{action: snapshot}]
assertions: [{type: devices}]
`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
assertions: [{type: devices}]
`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
steps: [{action: snapshot}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown action",
			content: `
name: n
description: d
steps: [{action: explode}]
assertions: [{type: devices}]
`,
			wantErr: `unknown action "explode"`,
		},
		{
			name: "write_status without device",
			content: `
name: n
description: d
steps: [{action: write_status, value: {temperature: 1}}]
assertions: [{type: devices}]
`,
			wantErr: "device is required",
		},
		{
			name: "write_status with scalar value",
			content: `
name: n
description: d
steps: [{action: write_status, device: plugA, value: 3}]
assertions: [{type: devices}]
`,
			wantErr: "value must be a mapping",
		},
		{
			name: "append_event without id",
			content: `
name: n
description: d
steps: [{action: append_event, value: {kind: x}}]
assertions: [{type: devices}]
`,
			wantErr: "event_id is required",
		},
		{
			name: "set_field without key",
			content: `
name: n
description: d
steps: [{action: set_field, device: plugA}]
assertions: [{type: devices}]
`,
			wantErr: "device and key are required",
		},
		{
			name: "bad duration",
			content: `
name: n
description: d
steps: [{action: advance, duration: soon}]
assertions: [{type: devices}]
`,
			wantErr: "duration",
		},
		{
			name: "bad retention window",
			content: `
name: n
description: d
retention: {window: -1h}
steps: [{action: sweep}]
assertions: [{type: devices}]
`,
			wantErr: "retention.window",
		},
		{
			name: "count on device document",
			content: `
name: n
description: d
steps: [{action: snapshot}]
assertions: [{type: count, path: smart_plugs/plugA}]
`,
			wantErr: "sub-collection",
		},
		{
			name: "document on sub-collection",
			content: `
name: n
description: d
steps: [{action: snapshot}]
assertions: [{type: document, path: smart_plugs/plugA/events, expect: {a: 1}}]
`,
			wantErr: "device document",
		},
		{
			name: "latest without expect",
			content: `
name: n
description: d
steps: [{action: snapshot}]
assertions: [{type: latest, path: smart_plugs/plugA/history}]
`,
			wantErr: "expect is required",
		},
		{
			name: "unknown assertion",
			content: `
name: n
description: d
steps: [{action: snapshot}]
assertions: [{type: vibes}]
`,
			wantErr: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsePath(t *testing.T) {
	id, sub, err := parsePath("smart_plugs/plugA")
	require.NoError(t, err)
	assert.Equal(t, "plugA", id)
	assert.Empty(t, sub)

	id, sub, err = parsePath("smart_plugs/plugA/history")
	require.NoError(t, err)
	assert.Equal(t, "plugA", id)
	assert.Equal(t, "history", sub)

	for _, bad := range []string{"", "smart_plugs", "smart_plugs/", "devices/plugA", "smart_plugs/plugA/status", "smart_plugs/a/events/x"} {
		_, _, err := parsePath(bad)
		assert.Error(t, err, bad)
	}
}
