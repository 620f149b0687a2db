package models

import (
	"time"

	"github.com/approval-sentinel/internal/types"
)

// Wallet represents a user-registered wallet address monitored on one chain
type Wallet struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Chain     types.Chain        `json:"chain"`
	Address   string             `json:"address"`
	Status    types.WalletStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

// WalletCursor holds the scan position and backfill metadata for a wallet.
// LastScannedBlock is monotonically non-decreasing; it is advanced only
// after a block-range chunk has been fully persisted.
type WalletCursor struct {
	WalletID           string               `json:"walletId"`
	LastScannedBlock   uint64               `json:"lastScannedBlock"`
	BackfillStatus     types.BackfillStatus `json:"backfillStatus"`
	BackfillStartedAt  *time.Time           `json:"backfillStartedAt,omitempty"`
	BackfillFinishedAt *time.Time           `json:"backfillFinishedAt,omitempty"`
	BackfillError      *string              `json:"backfillError,omitempty"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// WalletWithContext bundles a wallet with its cursor and the owner's
// notification preferences, as returned by the active-wallets query.
type WalletWithContext struct {
	Wallet
	Cursor                    *WalletCursor `json:"cursor"`
	OwnerEmail                string        `json:"ownerEmail"`
	OwnerTelegramChatID       string        `json:"ownerTelegramChatId"`
	EmailNotificationsEnabled bool          `json:"emailNotificationsEnabled"`
	EmailMinRiskScore         int           `json:"emailMinRiskScore"`
}
