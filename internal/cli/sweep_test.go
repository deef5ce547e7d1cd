package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansbry000/SmartPlugApp/internal/store"
)

func TestSweepCommand_DeletesExpiredHistory(t *testing.T) {
	dbPath := seedDatabase(t)

	cmd := NewSweepCommand(&RootOptions{Format: "text", ConfigDir: t.TempDir()})
	out, err := executeCommand(t, cmd, "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ plugA: 2 deleted")
	assert.Contains(t, out, "1 device(s), 2 history record(s) deleted")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountHistory(context.Background(), "plugA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepCommand_JSONOutput(t *testing.T) {
	dbPath := seedDatabase(t)

	cmd := NewSweepCommand(&RootOptions{Format: "json", ConfigDir: t.TempDir()})
	out, err := executeCommand(t, cmd, "--db", dbPath, "--page-size", "1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Devices)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, map[string]int{"plugA": 2}, resp.Data.Deleted)
	assert.Empty(t, resp.Data.Failed)
}

func TestSweepCommand_LongWindowKeepsEverything(t *testing.T) {
	dbPath := seedDatabase(t)

	cmd := NewSweepCommand(&RootOptions{Format: "text", ConfigDir: t.TempDir()})
	out, err := executeCommand(t, cmd, "--db", dbPath, "--window", "87600h")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ plugA: 0 deleted")
}

func TestSweepCommand_MissingDatabase(t *testing.T) {
	cmd := NewSweepCommand(&RootOptions{Format: "text", ConfigDir: t.TempDir()})
	_, err := executeCommand(t, cmd, "--db", "/nonexistent/plugmirror.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSweepCommand_NegativeWindow(t *testing.T) {
	cmd := NewSweepCommand(&RootOptions{Format: "text", ConfigDir: t.TempDir()})
	_, err := executeCommand(t, cmd, "--db", seedDatabase(t), "--window", "-1h")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
