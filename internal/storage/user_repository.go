package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/approval-sentinel/internal/models"
)

// UserRepository handles the user records this subsystem consumes
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns one user by ID, or nil when not found
func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, email, COALESCE(telegram_chat_id, ''),
		       email_notifications_enabled, email_min_risk_score, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.TelegramChatID,
		&u.EmailNotificationsEnabled, &u.EmailMinRiskScore, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdateNotificationPrefs updates a user's notification settings
func (r *UserRepository) UpdateNotificationPrefs(ctx context.Context, userID string, enabled bool, minRiskScore int) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE users
		SET email_notifications_enabled = $2, email_min_risk_score = $3
		WHERE id = $1
	`, userID, enabled, minRiskScore)
	if err != nil {
		return fmt.Errorf("failed to update notification prefs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user row for id %s", userID)
	}
	return nil
}
