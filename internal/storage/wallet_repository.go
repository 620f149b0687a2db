package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

// WalletRepository handles wallet and scan-cursor persistence
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetActiveWallets returns all ACTIVE wallets joined with their scan cursor
// and the owner's notification preferences, oldest first.
func (r *WalletRepository) GetActiveWallets(ctx context.Context) ([]*models.WalletWithContext, error) {
	query := `
		SELECT w.id, w.user_id, w.chain, w.address, w.status, w.created_at,
		       c.wallet_id, c.last_scanned_block, c.backfill_status,
		       c.backfill_started_at, c.backfill_finished_at, c.backfill_error, c.updated_at,
		       u.email, COALESCE(u.telegram_chat_id, ''),
		       u.email_notifications_enabled, u.email_min_risk_score
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		LEFT JOIN wallet_cursors c ON c.wallet_id = w.id
		WHERE w.status = $1
		ORDER BY w.created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, types.WalletStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.WalletWithContext
	for rows.Next() {
		var (
			w          models.WalletWithContext
			cursorID   *string
			lastBlock  *int64
			status     *string
			startedAt  *time.Time
			finishedAt *time.Time
			backErr    *string
			updatedAt  *time.Time
		)
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Chain, &w.Address, &w.Status, &w.CreatedAt,
			&cursorID, &lastBlock, &status,
			&startedAt, &finishedAt, &backErr, &updatedAt,
			&w.OwnerEmail, &w.OwnerTelegramChatID,
			&w.EmailNotificationsEnabled, &w.EmailMinRiskScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}

		if cursorID != nil {
			w.Cursor = &models.WalletCursor{
				WalletID:           *cursorID,
				LastScannedBlock:   uint64(*lastBlock),
				BackfillStatus:     types.BackfillStatus(*status),
				BackfillStartedAt:  startedAt,
				BackfillFinishedAt: finishedAt,
				BackfillError:      backErr,
				UpdatedAt:          *updatedAt,
			}
		}

		wallets = append(wallets, &w)
	}

	return wallets, rows.Err()
}

// AdvanceCursor moves a wallet's scan cursor forward. GREATEST keeps the
// cursor monotonically non-decreasing even on a stale replay.
func (r *WalletRepository) AdvanceCursor(ctx context.Context, walletID string, lastScannedBlock uint64) error {
	query := `
		UPDATE wallet_cursors
		SET last_scanned_block = GREATEST(last_scanned_block, $2), updated_at = NOW()
		WHERE wallet_id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, walletID, int64(lastScannedBlock))
	if err != nil {
		return fmt.Errorf("failed to advance cursor for wallet %s: %w", walletID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no cursor row for wallet %s", walletID)
	}
	return nil
}

// MarkBackfillRunning transitions a pending backfill to running
func (r *WalletRepository) MarkBackfillRunning(ctx context.Context, walletID string) error {
	query := `
		UPDATE wallet_cursors
		SET backfill_status = $2, backfill_started_at = NOW(), updated_at = NOW()
		WHERE wallet_id = $1 AND backfill_status = $3
	`

	_, err := r.db.Pool().Exec(ctx, query, walletID, types.BackfillRunning, types.BackfillPending)
	if err != nil {
		return fmt.Errorf("failed to mark backfill running for wallet %s: %w", walletID, err)
	}
	return nil
}

// MarkBackfillDone records that the wallet has caught up to the safe height
func (r *WalletRepository) MarkBackfillDone(ctx context.Context, walletID string) error {
	query := `
		UPDATE wallet_cursors
		SET backfill_status = $2, backfill_finished_at = NOW(), updated_at = NOW()
		WHERE wallet_id = $1 AND backfill_status IN ($3, $4)
	`

	_, err := r.db.Pool().Exec(ctx, query, walletID,
		types.BackfillDone, types.BackfillPending, types.BackfillRunning)
	if err != nil {
		return fmt.Errorf("failed to mark backfill done for wallet %s: %w", walletID, err)
	}
	return nil
}

// CreateWithCursor inserts a wallet together with its initial scan cursor
// in one transaction. The initial block comes from the backfill-window
// policy applied by the caller.
func (r *WalletRepository) CreateWithCursor(ctx context.Context, wallet *models.Wallet, initialBlock uint64, status types.BackfillStatus, backfillErr *string) error {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	wallet.Address = strings.ToLower(wallet.Address)
	if wallet.Status == "" {
		wallet.Status = types.WalletStatusActive
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, chain, address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, wallet.ID, wallet.UserID, wallet.Chain, wallet.Address, wallet.Status)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_cursors (wallet_id, last_scanned_block, backfill_status, backfill_error, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, wallet.ID, int64(initialBlock), status, backfillErr)
	if err != nil {
		return fmt.Errorf("failed to create wallet cursor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wallet creation: %w", err)
	}
	return nil
}

// GetUserIDsByWalletIDs maps wallet IDs to their owner user IDs
func (r *WalletRepository) GetUserIDsByWalletIDs(ctx context.Context, walletIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(walletIDs))
	if len(walletIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, user_id FROM wallets WHERE id = ANY($1)`, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var walletID, userID string
		if err := rows.Scan(&walletID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan wallet owner row: %w", err)
		}
		result[walletID] = userID
	}
	return result, rows.Err()
}

// ListByUser returns a user's wallets, newest first
func (r *WalletRepository) ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, chain, address, status, created_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Chain, &w.Address, &w.Status, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}
	return wallets, rows.Err()
}

// Get returns one wallet by ID, or nil when not found
func (r *WalletRepository) Get(ctx context.Context, walletID string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, chain, address, status, created_at
		FROM wallets
		WHERE id = $1
	`, walletID).Scan(&w.ID, &w.UserID, &w.Chain, &w.Address, &w.Status, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// SetStatus enables or disables scanning for a wallet
func (r *WalletRepository) SetStatus(ctx context.Context, walletID string, status types.WalletStatus) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE wallets SET status = $2 WHERE id = $1`, walletID, status)
	if err != nil {
		return fmt.Errorf("failed to update wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ServiceError{Code: "WALLET_NOT_FOUND", Message: "wallet not found"}
	}
	return nil
}
