package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/approval-sentinel/internal/types"
)

// ErrSourceUnavailable marks a provider fault. Callers check it with
// errors.Is and skip the affected wallet until the next tick instead of
// failing the whole scan.
var ErrSourceUnavailable = errors.New("chain source unavailable")

// LogSource exposes the two provider operations the scanner needs
type LogSource interface {
	// CurrentBlockHeight returns the chain's latest block number
	CurrentBlockHeight(ctx context.Context, chain types.Chain) (uint64, error)

	// FilterLogs fetches logs in [fromBlock, toBlock] matching the topic
	// filter. Topic position 0 is the event signature set, position 1 the
	// owner-address topic.
	FilterLogs(ctx context.Context, chain types.Chain, fromBlock, toBlock uint64, topics [][]common.Hash) ([]ethtypes.Log, error)
}

// EthLogSource implements LogSource over a ClientRegistry
type EthLogSource struct {
	registry *ClientRegistry
}

// NewEthLogSource creates a log source backed by the given registry
func NewEthLogSource(registry *ClientRegistry) *EthLogSource {
	return &EthLogSource{registry: registry}
}

// CurrentBlockHeight returns the latest block number for a chain
func (s *EthLogSource) CurrentBlockHeight(ctx context.Context, chain types.Chain) (uint64, error) {
	client, err := s.registry.Client(ctx, chain)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, chain, err)
	}

	height, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: block height: %v", ErrSourceUnavailable, chain, err)
	}
	return height, nil
}

// FilterLogs fetches logs for a block range and topic filter
func (s *EthLogSource) FilterLogs(ctx context.Context, chain types.Chain, fromBlock, toBlock uint64, topics [][]common.Hash) ([]ethtypes.Log, error) {
	client, err := s.registry.Client(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, chain, err)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Topics:    topics,
	}

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: logs [%d, %d]: %v", ErrSourceUnavailable, chain, fromBlock, toBlock, err)
	}
	return logs, nil
}
