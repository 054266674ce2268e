package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/google/uuid"
)

const userColumns = `id, role, full_name, COALESCE(email, ''), COALESCE(phone, ''), verification_status,
        telegram_chat_id, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Role, &u.FullName, &u.Email, &u.Phone, &u.VerificationStatus,
		&u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO users (id, role, full_name, email, phone, verification_status, telegram_chat_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, user.ID, user.Role, user.FullName, nullString(user.Email),
		nullString(user.Phone), user.VerificationStatus, user.TelegramChatID, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FieldError("id", "user is already registered")
		}
		return storeErr("create user", err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// ListUsers returns users with the given role, or everybody for an empty role.
func (db *DB) ListUsers(ctx context.Context, role models.Role) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, storeErr("scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate users", err)
	}
	return users, nil
}

func (db *DB) SetUserVerification(ctx context.Context, id string, from, to models.ModerationStatus) error {
	query := `UPDATE users SET verification_status = ?, updated_at = ? WHERE id = ? AND verification_status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return storeErr("set user verification", err)
	}
	return expectOneRow(result)
}
