package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// UpdateDevice writes the current-state document for a device.
//
// Fields in doc replace stored fields of the same name; stored fields that
// doc does not mention are kept. The row is created on the first write.
// A server-time timestamp resolves to the store clock.
func (s *Store) UpdateDevice(ctx context.Context, deviceID string, doc record.Document) error {
	if deviceID == "" {
		return fmt.Errorf("update device: empty device id")
	}

	now := s.clock.Now()
	ts := doc.Timestamp.Resolve(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update device %s: begin tx: %w", deviceID, err)
	}
	defer tx.Rollback() // No-op if committed

	var existingJSON string
	err = tx.QueryRowContext(ctx, `
		SELECT fields FROM smart_plugs WHERE device_id = ?
	`, deviceID).Scan(&existingJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update device %s: read existing: %w", deviceID, err)
	}

	existing, err := unmarshalFields(existingJSON)
	if err != nil {
		return fmt.Errorf("update device %s: %w", deviceID, err)
	}

	fieldsJSON, err := marshalFields(record.Merge(existing, doc.Fields))
	if err != nil {
		return fmt.Errorf("update device %s: %w", deviceID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO smart_plugs (device_id, fields, timestamp, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			fields = excluded.fields,
			timestamp = excluded.timestamp,
			updated_at = excluded.updated_at
	`, deviceID, fieldsJSON, toMillis(ts), toMillis(now))
	if err != nil {
		return fmt.Errorf("update device %s: write: %w", deviceID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update device %s: commit: %w", deviceID, err)
	}
	return nil
}

// AddEvent appends a document to smart_plugs/{deviceID}/events and returns
// its generated id.
func (s *Store) AddEvent(ctx context.Context, deviceID string, doc record.Document) (string, error) {
	id, err := s.addChild(ctx, "plug_events", deviceID, doc)
	if err != nil {
		return "", fmt.Errorf("add event for %s: %w", deviceID, err)
	}
	return id, nil
}

// AddHistory appends a document to smart_plugs/{deviceID}/history and
// returns its generated id.
func (s *Store) AddHistory(ctx context.Context, deviceID string, doc record.Document) (string, error) {
	id, err := s.addChild(ctx, "plug_history", deviceID, doc)
	if err != nil {
		return "", fmt.Errorf("add history for %s: %w", deviceID, err)
	}
	return id, nil
}

// addChild inserts an auto-identified row into a sub-collection table.
// table is one of the fixed sub-collection tables, never caller input.
func (s *Store) addChild(ctx context.Context, table, deviceID string, doc record.Document) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("empty device id")
	}

	fieldsJSON, err := marshalFields(doc.Fields)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	id := s.ids.Generate()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, device_id, fields, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, deviceID, fieldsJSON, toMillis(doc.Timestamp.Resolve(now)), toMillis(now))
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteHistory removes the given history documents of one device in a
// single transaction: either every id is deleted or none is.
// Returns the number of rows removed.
func (s *Store) DeleteHistory(ctx context.Context, deviceID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete history for %s: begin tx: %w", deviceID, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		DELETE FROM plug_history WHERE device_id = ? AND id = ?
	`)
	if err != nil {
		return 0, fmt.Errorf("delete history for %s: prepare: %w", deviceID, err)
	}
	defer stmt.Close()

	deleted := 0
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, deviceID, id)
		if err != nil {
			return 0, fmt.Errorf("delete history for %s: id %s: %w", deviceID, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete history for %s: rows affected: %w", deviceID, err)
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete history for %s: commit: %w", deviceID, err)
	}
	return deleted, nil
}
