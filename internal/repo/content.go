package repo

import (
	"context"
	"database/sql"
	"errors"

	"draughtsman/internal/domain"
)

// UpsertContentTx inserts or replaces a catalog row. position keeps import order.
func (r Repo) UpsertContentTx(ctx context.Context, tx *sql.Tx, item domain.ContentItem, position int) error {
	if item.UpdatedAt == "" {
		item.UpdatedAt = r.now().Format(TimeLayout)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO content_items(kind,slug,position,payload_json,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(kind, slug) DO UPDATE SET position=excluded.position, payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		item.Kind, item.Slug, position, item.PayloadJSON, item.UpdatedAt)
	return err
}

// ReplaceContent swaps every row of kind for items in one transaction.
func (r Repo) ReplaceContent(ctx context.Context, kind string, items []domain.ContentItem) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE kind=?`, kind); err != nil {
		return err
	}
	for i, item := range items {
		item.Kind = kind
		if err := r.UpsertContentTx(ctx, tx, item, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r Repo) ListContent(ctx context.Context, kind string) ([]domain.ContentItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT kind,slug,payload_json,updated_at FROM content_items WHERE kind=? ORDER BY position ASC, slug ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ContentItem
	for rows.Next() {
		var it domain.ContentItem
		if err := rows.Scan(&it.Kind, &it.Slug, &it.PayloadJSON, &it.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r Repo) GetContent(ctx context.Context, kind, slug string) (domain.ContentItem, error) {
	var it domain.ContentItem
	err := r.DB.QueryRowContext(ctx, `SELECT kind,slug,payload_json,updated_at FROM content_items WHERE kind=? AND slug=?`, kind, slug).
		Scan(&it.Kind, &it.Slug, &it.PayloadJSON, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContentItem{}, ErrNotFound
	}
	return it, err
}
