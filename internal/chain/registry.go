// Package chain provides access to per-chain JSON-RPC providers.
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/types"
)

// ClientRegistry owns one long-lived RPC client per chain. Clients are
// dialed lazily on first use and reused for the life of the process.
type ClientRegistry struct {
	mu      sync.Mutex
	urls    map[types.Chain]string
	clients map[types.Chain]*ethclient.Client
	log     *logging.Logger
}

// NewClientRegistry creates a registry for the given chain RPC URLs
func NewClientRegistry(urls map[types.Chain]string, log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		urls:    urls,
		clients: make(map[types.Chain]*ethclient.Client),
		log:     log.Named("chain.registry"),
	}
}

// Client returns the cached client for a chain, dialing it on first use
func (r *ClientRegistry) Client(ctx context.Context, chain types.Chain) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[chain]; ok {
		return client, nil
	}

	url, ok := r.urls[chain]
	if !ok || url == "" {
		return nil, fmt.Errorf("no RPC URL configured for chain %s", chain)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC for chain %s: %w", chain, err)
	}

	r.log.WithField("chain", chain).Info("RPC client connected")
	r.clients[chain] = client
	return client, nil
}

// Close closes all dialed clients
func (r *ClientRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chain, client := range r.clients {
		client.Close()
		delete(r.clients, chain)
	}
}
