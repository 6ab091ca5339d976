package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RecordCreated is emitted for every record appended to a collection.
const RecordCreated = "record.created"

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row inside tx so it commits with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, collection, entityID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,collection,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullable(collection), nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
