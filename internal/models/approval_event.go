package models

import (
	"fmt"
	"time"

	"github.com/approval-sentinel/internal/types"
)

// RiskMeta holds the audit trail of a risk assessment, stored as JSONB
type RiskMeta struct {
	Reasons    []types.ReasonCode `json:"reasons"`
	IsInfinite bool               `json:"isInfinite"`
	Details    map[string]any     `json:"details,omitempty"`
}

// ApprovalEvent represents one decoded and scored on-chain approval grant.
// Rows are append-only; the natural key (chain, txHash, logIndex) is unique
// and re-ingestion of the same log is a no-op.
type ApprovalEvent struct {
	ID           string             `json:"id"`
	WalletID     string             `json:"walletId"`
	Chain        types.Chain        `json:"chain"`
	Kind         types.ApprovalKind `json:"kind"`
	TokenAddress string             `json:"tokenAddress"`
	Spender      string             `json:"spender"`
	RawValue     *string            `json:"rawValue,omitempty"`
	Approved     *bool              `json:"approved,omitempty"`
	TxHash       string             `json:"txHash"`
	BlockNumber  uint64             `json:"blockNumber"`
	LogIndex     uint32             `json:"logIndex"`
	RiskScore    int                `json:"riskScore"`
	RiskLevel    types.RiskLevel    `json:"riskLevel"`
	RiskMeta     RiskMeta           `json:"riskMeta"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// NaturalKey returns the uniqueness tuple used for deduplication
func (e *ApprovalEvent) NaturalKey() string {
	return fmt.Sprintf("%s:%s:%d", e.Chain, e.TxHash, e.LogIndex)
}
