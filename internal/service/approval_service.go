package service

import (
	"context"
	"fmt"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/risk"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// EventStore is the persistence surface the approval service depends on
type EventStore interface {
	FindByNaturalKeys(ctx context.Context, keys []storage.NaturalKey) ([]*models.ApprovalEvent, error)
	InsertMany(ctx context.Context, events []*models.ApprovalEvent) error
	FindFeed(ctx context.Context, q storage.FeedQuery) ([]*models.ApprovalEvent, error)
}

// WalletOwnerResolver maps wallet IDs to owner user IDs
type WalletOwnerResolver interface {
	GetUserIDsByWalletIDs(ctx context.Context, walletIDs []string) (map[string]string, error)
}

// TrustResolver resolves which of a batch of spenders a user trusts
type TrustResolver interface {
	TrustedSet(ctx context.Context, userID string, chain types.Chain, spenders []string) (map[string]bool, error)
}

// ApprovalService ingests candidate approval events and serves the feed
type ApprovalService struct {
	events  EventStore
	wallets WalletOwnerResolver
	trust   TrustResolver
	risk    *risk.Engine
	log     *logging.Logger
}

// NewApprovalService creates an approval service
func NewApprovalService(events EventStore, wallets WalletOwnerResolver, trust TrustResolver, engine *risk.Engine, log *logging.Logger) *ApprovalService {
	return &ApprovalService{
		events:  events,
		wallets: wallets,
		trust:   trust,
		risk:    engine,
		log:     log.Named("approvals.service"),
	}
}

// Ingest persists a batch of candidate events and returns exactly the rows
// it created. Candidates whose (chain, txHash, logIndex) already exist are
// silently absorbed, and risk is computed only for the genuinely new
// subset, so a replayed chunk costs no trust lookups for known events.
func (s *ApprovalService) Ingest(ctx context.Context, candidates []*models.ApprovalEvent) ([]*models.ApprovalEvent, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	keys := make([]storage.NaturalKey, 0, len(candidates))
	for _, e := range candidates {
		keys = append(keys, storage.NaturalKey{Chain: e.Chain, TxHash: e.TxHash, LogIndex: e.LogIndex})
	}

	existing, err := s.events.FindByNaturalKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing events: %w", err)
	}
	existingKeys := make(map[string]bool, len(existing))
	for _, e := range existing {
		existingKeys[e.NaturalKey()] = true
	}

	var newEvents []*models.ApprovalEvent
	for _, e := range candidates {
		key := e.NaturalKey()
		if existingKeys[key] {
			continue
		}
		existingKeys[key] = true // also dedupes within the batch
		newEvents = append(newEvents, e)
	}
	if len(newEvents) == 0 {
		return nil, nil
	}

	trustByEvent, err := s.resolveTrust(ctx, newEvents)
	if err != nil {
		return nil, err
	}

	for i, e := range newEvents {
		assessment := s.risk.Compute(e, trustByEvent[i])
		e.RiskScore = assessment.Score
		e.RiskLevel = assessment.Level
		e.RiskMeta = assessment.Meta()
	}

	if err := s.events.InsertMany(ctx, newEvents); err != nil {
		return nil, fmt.Errorf("failed to persist events: %w", err)
	}

	return newEvents, nil
}

// resolveTrust runs one allowlist lookup per (user, chain) group covering
// all distinct spenders in that group, then assigns each event its verdict.
// A group whose lookup fails is left unresolved rather than penalized.
func (s *ApprovalService) resolveTrust(ctx context.Context, events []*models.ApprovalEvent) ([]risk.TrustContext, error) {
	walletIDs := make([]string, 0, len(events))
	seenWallets := make(map[string]bool)
	for _, e := range events {
		if !seenWallets[e.WalletID] {
			seenWallets[e.WalletID] = true
			walletIDs = append(walletIDs, e.WalletID)
		}
	}

	owners, err := s.wallets.GetUserIDsByWalletIDs(ctx, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet owners: %w", err)
	}

	type group struct {
		userID string
		chain  types.Chain
	}
	spendersByGroup := make(map[group][]string)
	for _, e := range events {
		userID, ok := owners[e.WalletID]
		if !ok {
			continue
		}
		g := group{userID: userID, chain: e.Chain}
		spendersByGroup[g] = append(spendersByGroup[g], e.Spender)
	}

	trustedByGroup := make(map[group]map[string]bool, len(spendersByGroup))
	for g, spenders := range spendersByGroup {
		trusted, err := s.trust.TrustedSet(ctx, g.userID, g.chain, spenders)
		if err != nil {
			s.log.WithFields(map[string]any{
				"userId": g.userID,
				"chain":  g.chain,
				"error":  err.Error(),
			}).Warn("trust lookup failed, leaving spenders unresolved")
			continue
		}
		trustedByGroup[g] = trusted
	}

	contexts := make([]risk.TrustContext, len(events))
	for i, e := range events {
		userID, ok := owners[e.WalletID]
		if !ok {
			continue
		}
		trusted, ok := trustedByGroup[group{userID: userID, chain: e.Chain}]
		if !ok {
			continue
		}
		verdict := trusted[e.Spender]
		contexts[i] = risk.TrustContext{SpenderTrusted: &verdict}
	}
	return contexts, nil
}

const (
	feedDefaultTake = 50
	feedMaxTake     = 200
)

// Feed returns a user's approval events with take clamped to [1, 200]
func (s *ApprovalService) Feed(ctx context.Context, q storage.FeedQuery) ([]*models.ApprovalEvent, error) {
	if q.Take == 0 {
		q.Take = feedDefaultTake
	}
	if q.Take < 1 {
		q.Take = 1
	}
	if q.Take > feedMaxTake {
		q.Take = feedMaxTake
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return s.events.FindFeed(ctx, q)
}
