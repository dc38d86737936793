package db

import (
	"context"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

// CreateUser inserts a new account. A taken username or email is a
// conflict.
func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	err := d.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		u.Username, u.PasswordHash, u.Email).
		Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Newf(apperr.KindConflict, "username or email already taken")
	}
	return err
}

// GetUserByUsername fetches an account for login.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := d.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, email, created_at FROM users WHERE username = $1", username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err, "user %s not found", username)
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored bcrypt hash.
func (d *DB) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := d.pool.Exec(ctx,
		"UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "user %d not found", id)
	}
	return nil
}

// GetUserByID fetches an account by primary key.
func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := d.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, email, created_at FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err, "user %d not found", id)
	}
	return &u, nil
}
