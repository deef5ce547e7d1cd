package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/evansbry000/SmartPlugApp/internal/engine"
	"github.com/evansbry000/SmartPlugApp/internal/metrics"
	"github.com/evansbry000/SmartPlugApp/internal/store"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database string
	Window   time.Duration
	PageSize int
}

// SweepResult is the JSON payload of the sweep command.
type SweepResult struct {
	Cutoff  time.Time         `json:"cutoff"`
	Devices int               `json:"devices"`
	Deleted map[string]int    `json:"deleted"`
	Total   int               `json:"total"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired history once",
		Long: `Run the retention job once against the durable store.

History older than the retention window is deleted for every device, in
pages of retention.page_size, until nothing expired remains.

Exit codes:
  0 - All devices swept
  1 - One or more devices failed
  2 - Command error (bad config, database not found)

Examples:
  plugmirror sweep --db ./plugmirror.db
  plugmirror sweep --window 72h --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides database.path)")
	cmd.Flags().DurationVar(&opts.Window, "window", 0, "retention window (overrides retention.window)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "deletion page size (overrides retention.page_size)")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	if opts.Window < 0 || opts.PageSize < 0 {
		return NewExitError(ExitCommandError, "--window and --page-size must not be negative")
	}
	if opts.Window > 0 {
		cfg.Retention.Window = opts.Window
	}
	if opts.PageSize > 0 {
		cfg.Retention.PageSize = opts.PageSize
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)

	st, err := openExisting(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sweeper := engine.NewRetentionSweeper(st,
		engine.WithLogger(logger),
		engine.WithRecorder(metrics.New()),
		engine.WithRetentionWindow(cfg.Retention.Window),
		engine.WithPageSize(cfg.Retention.PageSize),
	)
	report := sweeper.Run(ctx)
	if report.ListErr != nil {
		return WrapExitError(ExitFailure, "failed to list devices", report.ListErr)
	}

	result := SweepResult{
		Cutoff:  report.Cutoff,
		Devices: report.Devices,
		Deleted: report.Deleted,
		Total:   report.TotalDeleted(),
	}
	if len(report.Failed) > 0 {
		result.Failed = make(map[string]string, len(report.Failed))
		for id, err := range report.Failed {
			result.Failed[id] = err.Error()
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	text := func(w io.Writer) { writeSweepText(w, result) }
	if len(result.Failed) > 0 {
		if err := out.Failure("SWEEP_FAILED", "one or more devices failed", result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d device(s) failed", len(result.Failed)))
	}
	return out.Success(result, text)
}

func writeSweepText(w io.Writer, r SweepResult) {
	fmt.Fprintf(w, "Cutoff: %s\n", r.Cutoff.UTC().Format(time.RFC3339))
	ids := make([]string, 0, len(r.Deleted))
	for id := range r.Deleted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if msg, failed := r.Failed[id]; failed {
			fmt.Fprintf(w, "✗ %s: %d deleted, %s\n", id, r.Deleted[id], msg)
			continue
		}
		fmt.Fprintf(w, "✓ %s: %d deleted\n", id, r.Deleted[id])
	}
	fmt.Fprintf(w, "\n%d device(s), %d history record(s) deleted\n", r.Devices, r.Total)
}

// openExisting opens a store that must already exist on disk.
func openExisting(path string) (*store.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
