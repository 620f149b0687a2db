package models

import (
	"time"

	"github.com/approval-sentinel/internal/types"
)

// User holds the subset of the user record this subsystem consumes:
// identity plus notification preferences.
type User struct {
	ID                        string    `json:"id"`
	Email                     string    `json:"email"`
	TelegramChatID            string    `json:"telegramChatId,omitempty"`
	EmailNotificationsEnabled bool      `json:"emailNotificationsEnabled"`
	EmailMinRiskScore         int       `json:"emailMinRiskScore"`
	CreatedAt                 time.Time `json:"createdAt"`
}

// TrustedSpender represents one allowlist entry: a spender address the
// user marked as safe on a chain. Addresses are stored lowercased.
type TrustedSpender struct {
	UserID    string      `json:"userId"`
	Chain     types.Chain `json:"chain"`
	Spender   string      `json:"spender"`
	Label     string      `json:"label,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
