package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/approval-sentinel/internal/chain"
	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// EVM address pattern (0x followed by 40 hexadecimal characters)
var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAddress validates an EVM address format
func ValidateAddress(address string) error {
	if !evmAddressRegex.MatchString(address) {
		return &types.ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", address),
			Details: map[string]any{"address": address},
		}
	}
	return nil
}

// WalletService registers wallets for monitoring
type WalletService struct {
	wallets *storage.WalletRepository
	source  chain.LogSource
	chains  config.ChainsConfig
	log     *logging.Logger
}

// NewWalletService creates a wallet service
func NewWalletService(wallets *storage.WalletRepository, source chain.LogSource, chains config.ChainsConfig, log *logging.Logger) *WalletService {
	return &WalletService{
		wallets: wallets,
		source:  source,
		chains:  chains,
		log:     log.Named("wallets.service"),
	}
}

// Register creates a wallet and its scan cursor. The initial cursor comes
// from the backfill-window policy: the current height minus the block
// equivalent of the configured backfill window. When the height cannot be
// fetched the wallet is created in backfill status error so the scanner
// never guesses a starting point.
func (s *WalletService) Register(ctx context.Context, userID string, chainID types.Chain, address string) (*models.Wallet, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	cfg, ok := s.chains.Chains[chainID]
	if !ok || cfg.RPCURL == "" {
		return nil, &types.ServiceError{
			Code:    "CHAIN_NOT_CONFIGURED",
			Message: fmt.Sprintf("chain %s is not configured for scanning", chainID),
		}
	}

	wallet := &models.Wallet{
		UserID:  userID,
		Chain:   chainID,
		Address: strings.ToLower(address),
		Status:  types.WalletStatusActive,
	}

	height, err := s.source.CurrentBlockHeight(ctx, chainID)
	if err != nil {
		s.log.WithFields(map[string]any{
			"chain":   chainID,
			"address": wallet.Address,
			"error":   err.Error(),
		}).Error("failed to compute initial cursor")

		msg := fmt.Sprintf("initial cursor: %v", err)
		if createErr := s.wallets.CreateWithCursor(ctx, wallet, 0, types.BackfillError, &msg); createErr != nil {
			return nil, createErr
		}
		return wallet, nil
	}

	initial := backfillStart(height, cfg)
	if err := s.wallets.CreateWithCursor(ctx, wallet, initial, types.BackfillPending, nil); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"walletId":     wallet.ID,
		"chain":        chainID,
		"address":      wallet.Address,
		"initialBlock": initial,
	}).Info("wallet registered")
	return wallet, nil
}

// backfillStart converts the configured backfill window in days to a
// starting block number
func backfillStart(height uint64, cfg config.ChainConfig) uint64 {
	avgBlockSeconds := uint64(cfg.AvgBlockTime.Seconds())
	if avgBlockSeconds == 0 || cfg.BackfillDays <= 0 {
		return height
	}
	window := uint64(cfg.BackfillDays) * 86400 / avgBlockSeconds
	if window >= height {
		return 0
	}
	return height - window
}

// ListByUser returns the user's wallets
func (s *WalletService) ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error) {
	return s.wallets.ListByUser(ctx, userID)
}

// SetStatus enables or disables scanning for a wallet owned by the user
func (s *WalletService) SetStatus(ctx context.Context, userID, walletID string, status types.WalletStatus) error {
	wallet, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return err
	}
	if wallet == nil || wallet.UserID != userID {
		return &types.ServiceError{Code: "WALLET_NOT_FOUND", Message: "wallet not found"}
	}
	return s.wallets.SetStatus(ctx, walletID, status)
}
