package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"draughtsman/internal/domain"
	"draughtsman/internal/events"
)

// TimeLayout is fixed width so lexical order of created_at equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Append stores rec in collection and returns the assigned id. created_at is
// never earlier than the newest record already in the collection.
func (r Repo) Append(ctx context.Context, collection string, rec domain.Record) (string, error) {
	if !domain.ValidCollection(collection) {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	id, err := r.AppendTx(ctx, tx, collection, rec)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (r Repo) AppendTx(ctx context.Context, tx *sql.Tx, collection string, rec domain.Record) (string, error) {
	if !domain.ValidCollection(collection) {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	createdAt := r.now().Format(TimeLayout)
	var latest sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT MAX(created_at) FROM records WHERE collection=?`, collection).Scan(&latest); err != nil {
		return "", fmt.Errorf("read latest created_at: %w", err)
	}
	if latest.Valid && latest.String > createdAt {
		createdAt = latest.String
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO records(id,collection,status,payload_json,created_at) VALUES (?,?,?,?,?)`,
		id, collection, nullable(rec.Status), string(payload), createdAt); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	evt := events.EventPayload{"status": rec.Status, "created_at": createdAt, "fields": fields}
	if err := (events.Writer{Now: r.Now}).Append(ctx, tx, events.RecordCreated, collection, id, evt); err != nil {
		return "", fmt.Errorf("append event: %w", err)
	}
	return id, nil
}

func scanRecord(scan func(dest ...any) error) (domain.StoredRecord, error) {
	var rec domain.StoredRecord
	var status sql.NullString
	var payload string
	if err := scan(&rec.ID, &rec.Collection, &status, &payload, &rec.CreatedAt); err != nil {
		return rec, err
	}
	if status.Valid {
		rec.Status = status.String
	}
	if err := json.Unmarshal([]byte(payload), &rec.Fields); err != nil {
		return rec, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (r Repo) GetRecord(ctx context.Context, id string) (domain.StoredRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,collection,status,payload_json,created_at FROM records WHERE id=?`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredRecord{}, ErrNotFound
	}
	return rec, err
}

// ListRecords returns the newest records first. An empty collection lists all.
func (r Repo) ListRecords(ctx context.Context, collection string, limit int) ([]domain.StoredRecord, error) {
	if collection != "" && !domain.ValidCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if collection != "" {
		clauses = append(clauses, "collection=?")
		args = append(args, collection)
	}
	query := `SELECT id,collection,status,payload_json,created_at FROM records WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountRecords returns the number of records in a collection.
func (r Repo) CountRecords(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection=?`, collection).Scan(&n)
	return n, err
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(collection,''),COALESCE(entity_id,''),payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Collection, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, or 0 for an empty log.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
