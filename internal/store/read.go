package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// Snapshot is a document as read back from the store.
type Snapshot struct {
	ID        string        `json:"id"`
	DeviceID  string        `json:"deviceId"`
	Timestamp time.Time     `json:"timestamp"`
	Fields    record.Fields `json:"fields"`
}

// ListDeviceIDs returns every device with a durable record: a current-state
// document or at least one history entry. Sorted ascending.
func (s *Store) ListDeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id FROM smart_plugs
		UNION
		SELECT DISTINCT device_id FROM plug_history
		ORDER BY 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list devices: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: iterate: %w", err)
	}
	return ids, nil
}

// QueryHistoryBefore returns up to limit history ids of deviceID whose
// timestamp is strictly before cutoff, oldest first.
func (s *Store) QueryHistoryBefore(ctx context.Context, deviceID string, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM plug_history
		WHERE device_id = ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`, deviceID, toMillis(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", deviceID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("query history for %s: scan: %w", deviceID, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history for %s: iterate: %w", deviceID, err)
	}
	return ids, nil
}

// GetDevice returns the current-state document of a device.
// Returns ErrNotFound if the device was never mirrored.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (Snapshot, error) {
	var fieldsJSON string
	var ts int64
	err := s.db.QueryRowContext(ctx, `
		SELECT fields, timestamp FROM smart_plugs WHERE device_id = ?
	`, deviceID).Scan(&fieldsJSON, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("get device %s: %w", deviceID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	return Snapshot{
		ID:        deviceID,
		DeviceID:  deviceID,
		Timestamp: fromMillis(ts),
		Fields:    fields,
	}, nil
}

// ListEvents returns up to limit events of a device, newest first.
// A limit <= 0 returns every event.
func (s *Store) ListEvents(ctx context.Context, deviceID string, limit int) ([]Snapshot, error) {
	snaps, err := s.listChildren(ctx, "plug_events", deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", deviceID, err)
	}
	return snaps, nil
}

// ListHistory returns up to limit history entries of a device, newest first.
// A limit <= 0 returns every entry.
func (s *Store) ListHistory(ctx context.Context, deviceID string, limit int) ([]Snapshot, error) {
	snaps, err := s.listChildren(ctx, "plug_history", deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", deviceID, err)
	}
	return snaps, nil
}

// CountEvents returns the number of events stored for a device.
func (s *Store) CountEvents(ctx context.Context, deviceID string) (int, error) {
	return s.countChildren(ctx, "plug_events", deviceID)
}

// CountHistory returns the number of history entries stored for a device.
func (s *Store) CountHistory(ctx context.Context, deviceID string) (int, error) {
	return s.countChildren(ctx, "plug_history", deviceID)
}

func (s *Store) listChildren(ctx context.Context, table, deviceID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, fields, timestamp FROM `+table+`
		WHERE device_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return snaps, nil
}

func (s *Store) countChildren(ctx context.Context, table, deviceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE device_id = ?`, deviceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s for %s: %w", table, deviceID, err)
	}
	return n, nil
}

func scanSnapshot(rows *sql.Rows) (Snapshot, error) {
	var snap Snapshot
	var fieldsJSON string
	var ts int64
	if err := rows.Scan(&snap.ID, &snap.DeviceID, &fieldsJSON, &ts); err != nil {
		return Snapshot{}, fmt.Errorf("scan: %w", err)
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Fields = fields
	snap.Timestamp = fromMillis(ts)
	return snap, nil
}
