package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/evansbry000/SmartPlugApp/internal/record"
	"github.com/evansbry000/SmartPlugApp/internal/store"
	"github.com/evansbry000/SmartPlugApp/internal/testutil"
)

// seedDatabase creates a store file with one device: a current document,
// one event, two expired history records and one fresh one.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugmirror.db")
	st, err := store.Open(path, store.WithIDGenerator(testutil.NewSequenceIDs("doc")))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpdateDevice(ctx, "plugA", record.Document{
		Timestamp: record.At(now),
		Fields:    record.Fields{"temperature": 22.0, "emergencyStatus": false},
	}))
	_, err = st.AddEvent(ctx, "plugA", record.Document{
		Timestamp: record.At(now),
		Fields:    record.Fields{"type": "boot"},
	})
	require.NoError(t, err)
	for _, ts := range []time.Time{old, old.Add(time.Minute), now.Add(-time.Minute)} {
		_, err := st.AddHistory(ctx, "plugA", record.Document{
			Timestamp: record.At(ts),
			Fields:    record.Fields{"temperature": 21.0},
		})
		require.NoError(t, err)
	}
	return path
}

// executeCommand runs cmd with args and returns stdout.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
