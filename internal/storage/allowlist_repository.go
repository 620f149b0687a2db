package storage

import (
	"context"
	"fmt"

	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

// AllowlistRepository handles trusted-spender persistence.
// Spender addresses are stored lowercased.
type AllowlistRepository struct {
	db *PostgresDB
}

// NewAllowlistRepository creates a new allowlist repository
func NewAllowlistRepository(db *PostgresDB) *AllowlistRepository {
	return &AllowlistRepository{db: db}
}

// FindTrusted returns the subset of the given spenders present in the
// user's allowlist for a chain. Spenders must already be normalized.
func (r *AllowlistRepository) FindTrusted(ctx context.Context, userID string, chain types.Chain, spenders []string) (map[string]bool, error) {
	trusted := make(map[string]bool)
	if len(spenders) == 0 {
		return trusted, nil
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT spender FROM trusted_spenders
		WHERE user_id = $1 AND chain = $2 AND spender = ANY($3)
	`, userID, chain, spenders)
	if err != nil {
		return nil, fmt.Errorf("failed to query trusted spenders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var spender string
		if err := rows.Scan(&spender); err != nil {
			return nil, fmt.Errorf("failed to scan trusted spender row: %w", err)
		}
		trusted[spender] = true
	}
	return trusted, rows.Err()
}

// ListAll returns every spender in the user's allowlist for a chain
func (r *AllowlistRepository) ListAll(ctx context.Context, userID string, chain types.Chain) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT spender FROM trusted_spenders
		WHERE user_id = $1 AND chain = $2
	`, userID, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted spenders: %w", err)
	}
	defer rows.Close()

	var spenders []string
	for rows.Next() {
		var spender string
		if err := rows.Scan(&spender); err != nil {
			return nil, fmt.Errorf("failed to scan trusted spender row: %w", err)
		}
		spenders = append(spenders, spender)
	}
	return spenders, rows.Err()
}

// List returns the user's allowlist entries, optionally filtered by chain,
// newest first
func (r *AllowlistRepository) List(ctx context.Context, userID string, chain *types.Chain) ([]*models.TrustedSpender, error) {
	query := `
		SELECT user_id, chain, spender, COALESCE(label, ''), created_at
		FROM trusted_spenders
		WHERE user_id = $1
	`
	args := []any{userID}
	if chain != nil {
		query += ` AND chain = $2`
		args = append(args, *chain)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TrustedSpender
	for rows.Next() {
		var t models.TrustedSpender
		if err := rows.Scan(&t.UserID, &t.Chain, &t.Spender, &t.Label, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist row: %w", err)
		}
		entries = append(entries, &t)
	}
	return entries, rows.Err()
}

// Upsert adds a trusted spender, updating the label when it already exists
func (r *AllowlistRepository) Upsert(ctx context.Context, entry *models.TrustedSpender) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO trusted_spenders (user_id, chain, spender, label, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
		ON CONFLICT (user_id, chain, spender) DO UPDATE SET label = NULLIF($4, '')
	`, entry.UserID, entry.Chain, entry.Spender, entry.Label)
	if err != nil {
		return fmt.Errorf("failed to upsert trusted spender: %w", err)
	}
	return nil
}

// Delete removes a trusted spender; returns the number of rows removed
func (r *AllowlistRepository) Delete(ctx context.Context, userID string, chain types.Chain, spender string) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		DELETE FROM trusted_spenders
		WHERE user_id = $1 AND chain = $2 AND spender = $3
	`, userID, chain, spender)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trusted spender: %w", err)
	}
	return tag.RowsAffected(), nil
}
