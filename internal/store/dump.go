package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Dump writes every stored document to w, one per line, in a stable order:
//
//	smart_plugs/{id} {timestamp} {fields}
//	smart_plugs/{id}/events/{eventId} {timestamp} {fields}
//	smart_plugs/{id}/history/{historyId} {timestamp} {fields}
//
// Devices are ordered by id, children by timestamp then id. Timestamps are
// RFC 3339 UTC; fields are canonical JSON. Used by the scenario harness for
// golden comparisons.
func (s *Store) Dump(ctx context.Context, w io.Writer) error {
	deviceIDs, err := s.dumpDeviceIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range deviceIDs {
		dev, err := s.GetDevice(ctx, id)
		switch {
		case err == nil:
			if err := writeDumpLine(w, CollectionSmartPlugs+"/"+id, dev); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("dump: %w", err)
		}

		for _, sub := range []struct {
			name  string
			table string
		}{
			{SubcollectionEvents, "plug_events"},
			{SubcollectionHistory, "plug_history"},
		} {
			children, err := s.listChildren(ctx, sub.table, id, 0)
			if err != nil {
				return fmt.Errorf("dump %s for %s: %w", sub.name, id, err)
			}
			// listChildren is newest first; dumps read oldest first.
			for i := len(children) - 1; i >= 0; i-- {
				path := fmt.Sprintf("%s/%s/%s/%s", CollectionSmartPlugs, id, sub.name, children[i].ID)
				if err := writeDumpLine(w, path, children[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Store) dumpDeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id FROM smart_plugs
		UNION SELECT device_id FROM plug_events
		UNION SELECT device_id FROM plug_history
		ORDER BY 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("dump: list devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("dump: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func writeDumpLine(w io.Writer, path string, snap Snapshot) error {
	fieldsJSON, err := marshalFields(snap.Fields)
	if err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}
	_, err = fmt.Fprintf(w, "%s %s %s\n", path, snap.Timestamp.Format(time.RFC3339Nano), fieldsJSON)
	return err
}
