package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Events   bool
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	DeviceID   string           `json:"deviceId"`
	Collection string           `json:"collection"`
	Records    []store.Snapshot `json:"records"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <device-id>",
		Short: "Show a device's durable history",
		Long: `Show the most recent history snapshots (or events with --events) of a
device from the durable store, newest first.

Examples:
  plugmirror history plug1
  plugmirror history plug1 --limit 5 --format json
  plugmirror history plug1 --events`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides database.path)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "show events instead of history")

	return cmd
}

func runHistory(opts *HistoryOptions, deviceID string, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}

	st, err := openExisting(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := HistoryResult{DeviceID: deviceID, Collection: store.SubcollectionHistory}
	if opts.Events {
		result.Collection = store.SubcollectionEvents
		result.Records, err = st.ListEvents(ctx, deviceID, opts.Limit)
	} else {
		result.Records, err = st.ListHistory(ctx, deviceID, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read "+result.Collection, err)
	}
	if result.Records == nil {
		result.Records = []store.Snapshot{}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result, func(w io.Writer) { writeHistoryText(w, result) })
}

func writeHistoryText(w io.Writer, r HistoryResult) {
	if len(r.Records) == 0 {
		fmt.Fprintf(w, "No %s for %s.\n", r.Collection, r.DeviceID)
		return
	}
	for _, rec := range r.Records {
		fields, err := record.MarshalCanonical(rec.Fields)
		if err != nil {
			fields = []byte(fmt.Sprintf("<%v>", err))
		}
		fmt.Fprintf(w, "%s  %s  %s\n", rec.Timestamp.UTC().Format(time.RFC3339), rec.ID, fields)
	}
}

// requireFile returns a command error when path does not exist.
func requireFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	return nil
}
