package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/engine"
	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
	"github.com/evansbry000/SmartPlugApp/internal/testutil"
)

// Harness is the scenario execution engine.
// It wires the real tree, engine and store with a fake clock and
// sequential document ids.
type Harness struct {
	store    *store.Store
	tree     *ephemeral.Tree
	engine   *engine.Engine
	snapshot *engine.HistorySnapshotter
	sweeper  *engine.RetentionSweeper
	clock    *testutil.FakeClock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// An error is returned only when the scenario could not be executed;
// assertion failures are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with an explicit logger for the engine components.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}
	clk := testutil.NewFakeClock(start)

	st, err := store.Open(":memory:",
		store.WithClock(clk),
		store.WithIDGenerator(testutil.NewSequenceIDs("doc")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := []engine.Option{engine.WithLogger(logger), engine.WithClock(clk)}
	if scenario.FallbackDevice != "" {
		opts = append(opts, engine.WithFallbackDevice(scenario.FallbackDevice))
	}
	if r := scenario.Retention; r != nil {
		if r.Window != "" {
			d, err := time.ParseDuration(r.Window)
			if err != nil {
				return nil, fmt.Errorf("invalid retention window: %w", err)
			}
			opts = append(opts, engine.WithRetentionWindow(d))
		}
		if r.PageSize > 0 {
			opts = append(opts, engine.WithPageSize(r.PageSize))
		}
	}

	tree := ephemeral.NewTree()
	eng := engine.New(
		engine.NewChangeMirror(st, st, opts...),
		engine.NewEventMirror(st, opts...),
		opts...,
	)
	tree.Subscribe(eng)

	h := &Harness{
		store:    st,
		tree:     tree,
		engine:   eng,
		snapshot: engine.NewHistorySnapshotter(tree, st, opts...),
		sweeper:  engine.NewRetentionSweeper(st, opts...),
		clock:    clk,
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		repeat := max(step.Repeat, 1)
		for r := 0; r < repeat; r++ {
			detail, err := h.execute(ctx, step)
			if err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
			}
			result.AddTrace(i, step.Action, detail)
		}
	}

	var dump bytes.Buffer
	if err := st.Dump(ctx, &dump); err != nil {
		return nil, fmt.Errorf("failed to dump store: %w", err)
	}
	result.Dump = dump.String()

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute applies one step and returns its trace detail.
func (h *Harness) execute(ctx context.Context, step Step) (string, error) {
	switch step.Action {
	case StepWriteStatus:
		fields, err := toFields(step.Value)
		if err != nil {
			return "", err
		}
		h.tree.SetStatus(step.Device, fields)
		return h.drain(ctx, step.Device), nil

	case StepDeleteStatus:
		h.tree.RemoveStatus(step.Device)
		return h.drain(ctx, step.Device), nil

	case StepSetField:
		value, err := normalizeValue(step.Value)
		if err != nil {
			return "", err
		}
		h.tree.SetDeviceField(step.Device, step.Key, value)
		return h.drain(ctx, step.Device+"/"+step.Key), nil

	case StepAppendEvent:
		fields, err := toFields(step.Value)
		if err != nil {
			return "", err
		}
		if !h.tree.PushEvent(step.EventID, fields) {
			return fmt.Sprintf("%s ignored", step.EventID), nil
		}
		return h.drain(ctx, step.EventID), nil

	case StepSnapshot:
		report := h.snapshot.Run(ctx)
		if report.FetchErr != nil {
			return "", report.FetchErr
		}
		return fmt.Sprintf("devices=%d written=%d skipped=%d failed=%d",
			report.Devices, len(report.Written), len(report.Skipped), len(report.Failed)), nil

	case StepSweep:
		report := h.sweeper.Run(ctx)
		if report.ListErr != nil {
			return "", report.ListErr
		}
		return fmt.Sprintf("cutoff=%s devices=%d deleted=%d failed=%d",
			report.Cutoff.UTC().Format(time.RFC3339), report.Devices,
			report.TotalDeleted(), len(report.Failed)), nil

	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return "", err
		}
		now := h.clock.Advance(d)
		return "now=" + now.UTC().Format(time.RFC3339), nil

	default:
		return "", fmt.Errorf("unknown action %q", step.Action)
	}
}

func (h *Harness) drain(ctx context.Context, target string) string {
	return fmt.Sprintf("%s triggers=%d", target, h.engine.Drain(ctx))
}

// normalizeValue round-trips a YAML value through JSON so numbers and maps
// have the same shapes as values decoded from the ephemeral store.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}

func toFields(v any) (record.Fields, error) {
	n, err := normalizeValue(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return record.Fields{}, nil
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value must be a mapping, got %T", n)
	}
	return record.Fields(m), nil
}
