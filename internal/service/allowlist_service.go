// Package service implements the domain operations on top of the
// storage repositories.
package service

import (
	"context"
	"strings"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// AllowlistService resolves and maintains per-user trusted spenders
type AllowlistService struct {
	repo  *storage.AllowlistRepository
	cache *storage.TrustCache
	log   *logging.Logger
}

// NewAllowlistService creates an allowlist service. The cache is optional;
// pass nil to resolve every lookup against the database.
func NewAllowlistService(repo *storage.AllowlistRepository, cache *storage.TrustCache, log *logging.Logger) *AllowlistService {
	return &AllowlistService{
		repo:  repo,
		cache: cache,
		log:   log.Named("allowlist.service"),
	}
}

// TrustedSet returns the subset of candidate spenders present in the
// user's allowlist for a chain. Candidates are normalized (lowercased,
// deduplicated, empties dropped) before lookup. Callers batch all
// distinct spenders of a (user, chain) group per tick, so lookup cost is
// bounded by distinct spenders rather than events.
func (s *AllowlistService) TrustedSet(ctx context.Context, userID string, chain types.Chain, spenders []string) (map[string]bool, error) {
	normalized := normalizeAddresses(spenders)
	if len(normalized) == 0 {
		return map[string]bool{}, nil
	}

	if s.cache != nil {
		trusted, hit, err := s.cache.GetTrusted(ctx, userID, chain, normalized)
		if err != nil {
			s.log.WithError(err).Warn("trust cache read failed, falling back to database")
		} else if hit {
			return trusted, nil
		}
	}

	all, err := s.repo.ListAll(ctx, userID, chain)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, userID, chain, all); err != nil {
			s.log.WithError(err).Warn("trust cache write failed")
		}
	}

	allSet := make(map[string]bool, len(all))
	for _, spender := range all {
		allSet[spender] = true
	}

	trusted := make(map[string]bool, len(normalized))
	for _, spender := range normalized {
		if allSet[spender] {
			trusted[spender] = true
		}
	}
	return trusted, nil
}

// List returns the user's allowlist entries
func (s *AllowlistService) List(ctx context.Context, userID string, chain *types.Chain) ([]*models.TrustedSpender, error) {
	return s.repo.List(ctx, userID, chain)
}

// Add upserts a trusted spender and invalidates the cached allowlist
func (s *AllowlistService) Add(ctx context.Context, userID string, chain types.Chain, spender, label string) error {
	entry := &models.TrustedSpender{
		UserID:  userID,
		Chain:   chain,
		Spender: strings.ToLower(spender),
		Label:   label,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return err
	}
	s.invalidate(ctx, userID, chain)
	return nil
}

// Remove deletes a trusted spender; returns how many entries were removed
func (s *AllowlistService) Remove(ctx context.Context, userID string, chain types.Chain, spender string) (int64, error) {
	deleted, err := s.repo.Delete(ctx, userID, chain, strings.ToLower(spender))
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID, chain)
	return deleted, nil
}

func (s *AllowlistService) invalidate(ctx context.Context, userID string, chain types.Chain) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID, chain); err != nil {
		s.log.WithError(err).Warn("trust cache invalidation failed")
	}
}

// normalizeAddresses lowercases, deduplicates and drops empty addresses,
// preserving first-seen order
func normalizeAddresses(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	var out []string
	for _, addr := range addrs {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
