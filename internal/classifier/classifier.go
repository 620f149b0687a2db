// Package classifier decodes raw chain logs into typed approval events.
package classifier

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

// Event signature topics for the two monitored approval shapes
var (
	ApprovalTopic       = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	ApprovalForAllTopic = crypto.Keccak256Hash([]byte("ApprovalForAll(address,address,bool)"))
)

// ApprovalTopics returns the topic filter for a wallet: either approval
// signature in position 0, the owner address in position 1.
func ApprovalTopics(owner string) [][]common.Hash {
	return [][]common.Hash{
		{ApprovalTopic, ApprovalForAllTopic},
		{OwnerTopic(owner)},
	}
}

// OwnerTopic left-pads a wallet address to a 32-byte topic value
func OwnerTopic(address string) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32))
}

// Classifier decodes raw logs for a monitored wallet
type Classifier struct {
	log *logging.Logger
}

// New creates a classifier
func New(log *logging.Logger) *Classifier {
	return &Classifier{log: log.Named("classifier")}
}

// Decode turns a raw log into a candidate approval event for the given
// wallet. It returns false when the log cannot be decoded, is not one of
// the monitored event shapes, or its owner is not the wallet under scan.
// Block ranges are queried per owner topic, so logs from unrelated
// contracts can still slip through topic matching; the ownership compare
// is the final filter.
func (c *Classifier) Decode(log ethtypes.Log, wallet *models.Wallet) (*models.ApprovalEvent, bool) {
	if len(log.Topics) < 3 || len(log.Data) != 32 {
		c.log.WithFields(map[string]any{
			"chain":   wallet.Chain,
			"txHash":  log.TxHash.Hex(),
			"topics":  len(log.Topics),
			"dataLen": len(log.Data),
		}).Warn("log decoding failed, dropping")
		return nil, false
	}

	owner := common.BytesToAddress(log.Topics[1].Bytes())
	if !strings.EqualFold(owner.Hex(), wallet.Address) {
		return nil, false
	}

	event := &models.ApprovalEvent{
		WalletID:     wallet.ID,
		Chain:        wallet.Chain,
		TokenAddress: strings.ToLower(log.Address.Hex()),
		Spender:      strings.ToLower(common.BytesToAddress(log.Topics[2].Bytes()).Hex()),
		TxHash:       log.TxHash.Hex(),
		BlockNumber:  log.BlockNumber,
		LogIndex:     uint32(log.Index),
	}

	switch log.Topics[0] {
	case ApprovalTopic:
		event.Kind = types.KindERC20Approval
		value := new(big.Int).SetBytes(log.Data).String()
		event.RawValue = &value
	case ApprovalForAllTopic:
		event.Kind = types.KindApprovalForAll
		approved := new(big.Int).SetBytes(log.Data).Sign() != 0
		event.Approved = &approved
	default:
		c.log.WithFields(map[string]any{
			"chain":  wallet.Chain,
			"txHash": log.TxHash.Hex(),
			"topic0": log.Topics[0].Hex(),
		}).Warn("log signature is not monitored, dropping")
		return nil, false
	}

	return event, true
}
