// Package types provides common type definitions for the approval sentinel system.
package types

import "fmt"

// Chain represents supported blockchain networks
type Chain string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum Chain = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon Chain = "polygon"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum Chain = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism Chain = "optimism"
	// ChainBase represents the Base network
	ChainBase Chain = "base"
)

// AllChains lists every supported chain in a stable order
var AllChains = []Chain{ChainEthereum, ChainPolygon, ChainArbitrum, ChainOptimism, ChainBase}

// ValidChain reports whether c names a supported chain
func ValidChain(c Chain) bool {
	for _, known := range AllChains {
		if c == known {
			return true
		}
	}
	return false
}

// WalletStatus represents whether a wallet is eligible for scanning
type WalletStatus string

const (
	// WalletStatusActive represents a wallet that is scanned every tick
	WalletStatusActive WalletStatus = "ACTIVE"
	// WalletStatusDisabled represents a wallet excluded from scanning
	WalletStatusDisabled WalletStatus = "DISABLED"
)

// ApprovalKind represents the shape of a detected approval event
type ApprovalKind string

const (
	// KindERC20Approval represents an ERC-20 Approval(owner, spender, value) event
	KindERC20Approval ApprovalKind = "ERC20_APPROVAL"
	// KindApprovalForAll represents an NFT ApprovalForAll(owner, operator, approved) event
	KindApprovalForAll ApprovalKind = "APPROVAL_FOR_ALL"
)

// RiskLevel represents the discrete severity bucket of a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// ReasonCode is a discrete tag explaining a contribution to a risk score.
// The set is closed so risk engine output stays exhaustively testable.
type ReasonCode string

const (
	ReasonValuableToken         ReasonCode = "VALUABLE_TOKEN"
	ReasonSpenderNotAllowlisted ReasonCode = "SPENDER_NOT_ALLOWLISTED"
	ReasonInfiniteAllowance     ReasonCode = "INFINITE_ALLOWANCE"
	ReasonHugeAllowance         ReasonCode = "HUGE_ALLOWANCE"
	ReasonApprovalForAllEnabled ReasonCode = "APPROVAL_FOR_ALL_ENABLED"
	ReasonRevoke                ReasonCode = "REVOKE"
)

// BackfillStatus represents the lifecycle of a wallet's historical scan
type BackfillStatus string

const (
	// BackfillPending represents a wallet whose historical scan has not started
	BackfillPending BackfillStatus = "pending"
	// BackfillRunning represents a wallet whose historical scan is in progress
	BackfillRunning BackfillStatus = "running"
	// BackfillDone represents a wallet that has caught up to the safe height
	// at least once; it keeps following the chain tip afterwards
	BackfillDone BackfillStatus = "done"
	// BackfillError represents a wallet whose initial cursor could not be
	// computed; it is excluded from scanning until operator action
	BackfillError BackfillStatus = "error"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
