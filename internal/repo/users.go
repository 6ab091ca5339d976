package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"draughtsman/internal/domain"
)

// ErrEmailTaken is returned when a user with the same e-mail exists.
var ErrEmailTaken = errors.New("email already registered")

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt == "" {
		u.CreatedAt = r.now().Format(TimeLayout)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,email,full_name,password_hash,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,full_name,password_hash,created_at FROM users WHERE email=?`, email))
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,full_name,password_hash,created_at FROM users WHERE id=?`, id))
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
