package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one replication scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock time. Defaults to DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// FallbackDevice overrides the owner of unprefixed event ids.
	FallbackDevice string `yaml:"fallback_device,omitempty"`

	// Retention overrides the retention window and page size.
	Retention *RetentionSettings `yaml:"retention,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// RetentionSettings overrides retention defaults for a scenario.
type RetentionSettings struct {
	Window   string `yaml:"window,omitempty"`
	PageSize int    `yaml:"page_size,omitempty"`
}

// Step is one action against the tree, the clock or a scheduled job.
type Step struct {
	Action   string `yaml:"action"`
	Device   string `yaml:"device,omitempty"`
	EventID  string `yaml:"event_id,omitempty"`
	Key      string `yaml:"key,omitempty"`
	Value    any    `yaml:"value,omitempty"`
	Duration string `yaml:"duration,omitempty"`
	Repeat   int    `yaml:"repeat,omitempty"`
}

// Step actions.
const (
	StepWriteStatus  = "write_status"
	StepDeleteStatus = "delete_status"
	StepSetField     = "set_field"
	StepAppendEvent  = "append_event"
	StepSnapshot     = "snapshot"
	StepSweep        = "sweep"
	StepAdvance      = "advance"
)

// Assertion validates the final durable state.
type Assertion struct {
	// Type is one of count, document, latest, devices.
	Type string `yaml:"type"`

	// Path addresses smart_plugs/{id} or smart_plugs/{id}/{events|history}.
	Path string `yaml:"path,omitempty"`

	// Count is the expected number of documents (count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected field values (document, latest).
	// Subset match; "timestamp" compares against the RFC 3339 time.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Devices is the expected device list (devices).
	Devices []string `yaml:"devices,omitempty"`
}

// Assertion type constants.
const (
	AssertCount    = "count"
	AssertDocument = "document"
	AssertLatest   = "latest"
	AssertDevices  = "devices"
)

// DefaultStart is the clock start when a scenario does not set one.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Start.IsZero() {
		scenario.Start = DefaultStart
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Retention != nil {
		if s.Retention.Window != "" {
			if d, err := time.ParseDuration(s.Retention.Window); err != nil || d <= 0 {
				return fmt.Errorf("retention.window must be a positive duration")
			}
		}
		if s.Retention.PageSize < 0 {
			return fmt.Errorf("retention.page_size must be positive")
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	if step.Repeat < 0 {
		return fmt.Errorf("steps[%d]: repeat must be non-negative", i)
	}

	switch step.Action {
	case StepWriteStatus:
		if step.Device == "" {
			return fmt.Errorf("steps[%d]: device is required for %s", i, step.Action)
		}
		if _, ok := step.Value.(map[string]any); !ok {
			return fmt.Errorf("steps[%d]: value must be a mapping for %s", i, step.Action)
		}
	case StepDeleteStatus:
		if step.Device == "" {
			return fmt.Errorf("steps[%d]: device is required for %s", i, step.Action)
		}
	case StepSetField:
		if step.Device == "" || step.Key == "" {
			return fmt.Errorf("steps[%d]: device and key are required for %s", i, step.Action)
		}
	case StepAppendEvent:
		if step.EventID == "" {
			return fmt.Errorf("steps[%d]: event_id is required for %s", i, step.Action)
		}
		if step.Value != nil {
			if _, ok := step.Value.(map[string]any); !ok {
				return fmt.Errorf("steps[%d]: value must be a mapping for %s", i, step.Action)
			}
		}
	case StepSnapshot, StepSweep:
	case StepAdvance:
		if _, err := time.ParseDuration(step.Duration); err != nil {
			return fmt.Errorf("steps[%d]: duration: %w", i, err)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertCount, AssertLatest:
		if _, sub, err := parsePath(a.Path); err != nil || sub == "" {
			return fmt.Errorf("assertions[%d]: path must address a sub-collection for %s", index, a.Type)
		}
		if a.Type == AssertCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
		if a.Type == AssertLatest && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for latest", index)
		}
	case AssertDocument:
		if _, sub, err := parsePath(a.Path); err != nil || sub != "" {
			return fmt.Errorf("assertions[%d]: path must address a device document for document", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for document", index)
		}
	case AssertDevices:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parsePath splits smart_plugs/{id}[/{sub}] into device id and
// sub-collection ("" for the device document).
func parsePath(path string) (deviceID, sub string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "smart_plugs" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid path %q", path)
	}
	if len(parts) == 3 {
		if parts[2] != "events" && parts[2] != "history" {
			return "", "", fmt.Errorf("invalid sub-collection in %q", path)
		}
		sub = parts[2]
	}
	return parts[1], sub, nil
}
