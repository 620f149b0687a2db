package scanner

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/approval-sentinel/internal/chain"
	"github.com/approval-sentinel/internal/classifier"
	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/notify"
	"github.com/approval-sentinel/internal/types"
)

// Fallback batch size when a chain config carries zero blocks per chunk;
// a zero step would never advance the walk.
const defaultBatchSizeBlocks = 2000

// WalletStore is the wallet persistence surface the scanner needs
type WalletStore interface {
	GetActiveWallets(ctx context.Context) ([]*models.WalletWithContext, error)
	AdvanceCursor(ctx context.Context, walletID string, lastScannedBlock uint64) error
	MarkBackfillRunning(ctx context.Context, walletID string) error
	MarkBackfillDone(ctx context.Context, walletID string) error
}

// Ingestor deduplicates, scores and persists decoded approval events,
// returning only the newly created rows
type Ingestor interface {
	Ingest(ctx context.Context, candidates []*models.ApprovalEvent) ([]*models.ApprovalEvent, error)
}

// Scanner walks every active wallet over confirmed block ranges each tick.
// Chains, wallets and chunks are processed sequentially; a wallet's cursor
// advances only after the chunk's events have been persisted, so a crash
// mid-range re-scans at most one chunk (idempotent by the event natural key).
type Scanner struct {
	chains     config.ChainsConfig
	scanCfg    config.ScannerConfig
	source     chain.LogSource
	classifier *classifier.Classifier
	wallets    WalletStore
	ingestor   Ingestor
	notifier   notify.Notifier
	limiters   map[types.Chain]*rate.Limiter
	log        *logging.Logger
}

// NewScanner creates a scan orchestrator
func NewScanner(
	chains config.ChainsConfig,
	scanCfg config.ScannerConfig,
	source chain.LogSource,
	cls *classifier.Classifier,
	wallets WalletStore,
	ingestor Ingestor,
	notifier notify.Notifier,
	log *logging.Logger,
) *Scanner {
	limiters := make(map[types.Chain]*rate.Limiter)
	for name, cc := range chains.Chains {
		if cc.RateLimitDelay > 0 {
			limiters[name] = rate.NewLimiter(rate.Every(cc.RateLimitDelay), 1)
		}
	}

	return &Scanner{
		chains:     chains,
		scanCfg:    scanCfg,
		source:     source,
		classifier: cls,
		wallets:    wallets,
		ingestor:   ingestor,
		notifier:   notifier,
		limiters:   limiters,
		log:        log.Named("scanner"),
	}
}

// ScanTick runs one full pass over all active wallets, grouped by chain.
// A failing chain never blocks the others.
func (s *Scanner) ScanTick(ctx context.Context) error {
	wallets, err := s.wallets.GetActiveWallets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active wallets: %w", err)
	}
	if len(wallets) == 0 {
		s.log.Debug("no active wallets, skipping tick")
		return nil
	}

	byChain := make(map[types.Chain][]*models.WalletWithContext)
	for _, w := range wallets {
		byChain[w.Chain] = append(byChain[w.Chain], w)
	}

	ready, missing := s.chains.ScannableChains()
	for _, name := range missing {
		if len(byChain[name]) > 0 {
			s.log.WithFields(map[string]any{
				"chain":   name,
				"wallets": len(byChain[name]),
			}).Warn("chain has registered wallets but no RPC URL, skipping")
		}
	}

	for _, name := range ready {
		group := byChain[name]
		if len(group) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.scanChain(ctx, name, group)
	}

	return nil
}

// scanChain resolves the chain's safe height once and scans each wallet of
// the group against it
func (s *Scanner) scanChain(ctx context.Context, name types.Chain, group []*models.WalletWithContext) {
	cc := s.chains.Chains[name]

	height, err := s.source.CurrentBlockHeight(ctx, name)
	if err != nil {
		s.log.WithError(err).WithField("chain", name).Warn("failed to resolve chain height, skipping chain this tick")
		return
	}

	if height <= cc.Confirmations {
		s.log.WithFields(map[string]any{
			"chain":  name,
			"height": height,
		}).Debug("chain height below confirmation depth, nothing confirmed yet")
		return
	}
	safeHeight := height - cc.Confirmations

	for _, w := range group {
		if err := ctx.Err(); err != nil {
			return
		}
		s.scanWallet(ctx, cc, w, safeHeight)
	}
}

// scanWallet advances one wallet's cursor toward safeHeight and dispatches
// a digest for any newly persisted events
func (s *Scanner) scanWallet(ctx context.Context, cc config.ChainConfig, w *models.WalletWithContext, safeHeight uint64) {
	if w.Cursor == nil {
		s.log.WithFields(map[string]any{
			"walletId": w.ID,
			"chain":    w.Chain,
		}).Warn("active wallet has no cursor row, skipping")
		return
	}

	switch w.Cursor.BackfillStatus {
	case types.BackfillError:
		s.log.WithFields(map[string]any{
			"walletId": w.ID,
			"chain":    w.Chain,
		}).Debug("wallet backfill errored at registration, skipping")
		return
	case types.BackfillPending:
		if err := s.wallets.MarkBackfillRunning(ctx, w.ID); err != nil {
			s.log.WithError(err).WithField("walletId", w.ID).Error("failed to mark backfill running")
			return
		}
		w.Cursor.BackfillStatus = types.BackfillRunning
	}

	from := w.Cursor.LastScannedBlock + 1
	if from > safeHeight {
		s.finishBackfill(ctx, w)
		return
	}

	newEvents, lastScanned, scanErr := s.scanWalletRange(ctx, cc, w, from, safeHeight)
	if scanErr != nil {
		if errors.Is(scanErr, chain.ErrSourceUnavailable) {
			s.log.WithError(scanErr).WithFields(map[string]any{
				"walletId": w.ID,
				"chain":    w.Chain,
			}).Warn("chain source unavailable, aborting wallet's remaining chunks this tick")
		} else {
			s.log.WithError(scanErr).WithFields(map[string]any{
				"walletId": w.ID,
				"chain":    w.Chain,
			}).Error("wallet scan failed")
		}
	}

	if scanErr == nil && lastScanned >= safeHeight {
		s.finishBackfill(ctx, w)
	}

	if len(newEvents) > 0 {
		s.dispatchDigest(ctx, cc, w, newEvents, from, lastScanned)
	}
}

// scanWalletRange walks [from, to] in chunks of the chain's batch size.
// A zero batch size falls back to the default so the walk always advances.
// Each chunk is fetched, decoded, ingested and only then reflected in the
// cursor; on error the cursor keeps the last fully persisted chunk.
func (s *Scanner) scanWalletRange(ctx context.Context, cc config.ChainConfig, w *models.WalletWithContext, from, to uint64) ([]*models.ApprovalEvent, uint64, error) {
	topics := classifier.ApprovalTopics(w.Address)
	limiter := s.limiters[w.Chain]
	lastScanned := from - 1

	batch := cc.BatchSizeBlocks
	if batch == 0 {
		batch = defaultBatchSizeBlocks
	}

	var newEvents []*models.ApprovalEvent
	for start := from; start <= to; start += batch {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return newEvents, lastScanned, err
			}
		}

		end := start + batch - 1
		if end > to {
			end = to
		}

		logs, err := s.source.FilterLogs(ctx, w.Chain, start, end, topics)
		if err != nil {
			return newEvents, lastScanned, err
		}

		var candidates []*models.ApprovalEvent
		for _, l := range logs {
			if event, ok := s.classifier.Decode(l, &w.Wallet); ok {
				candidates = append(candidates, event)
			}
		}

		created, err := s.ingestor.Ingest(ctx, candidates)
		if err != nil {
			return newEvents, lastScanned, fmt.Errorf("failed to ingest chunk %d-%d: %w", start, end, err)
		}
		newEvents = append(newEvents, created...)

		if err := s.wallets.AdvanceCursor(ctx, w.ID, end); err != nil {
			return newEvents, lastScanned, fmt.Errorf("failed to advance cursor to %d: %w", end, err)
		}
		lastScanned = end
		w.Cursor.LastScannedBlock = end
	}

	return newEvents, lastScanned, nil
}

// finishBackfill flips pending or running backfills to done once the cursor
// has reached the safe height
func (s *Scanner) finishBackfill(ctx context.Context, w *models.WalletWithContext) {
	if w.Cursor.BackfillStatus == types.BackfillDone {
		return
	}
	if err := s.wallets.MarkBackfillDone(ctx, w.ID); err != nil {
		s.log.WithError(err).WithField("walletId", w.ID).Error("failed to mark backfill done")
		return
	}
	w.Cursor.BackfillStatus = types.BackfillDone
	s.log.WithFields(map[string]any{
		"walletId": w.ID,
		"chain":    w.Chain,
	}).Info("wallet backfill complete")
}

// dispatchDigest filters, caps and sends the digest for one wallet's newly
// created events. Notification failures never affect scan progress.
func (s *Scanner) dispatchDigest(ctx context.Context, cc config.ChainConfig, w *models.WalletWithContext, events []*models.ApprovalEvent, from, to uint64) {
	var qualifying []*models.ApprovalEvent
	for _, e := range events {
		if e.RiskScore <= 0 {
			continue
		}
		if e.RiskScore < w.EmailMinRiskScore {
			continue
		}
		qualifying = append(qualifying, e)
	}
	if len(qualifying) == 0 {
		return
	}

	rcpt := notify.Recipient{TelegramChatID: w.OwnerTelegramChatID}
	if w.EmailNotificationsEnabled {
		rcpt.Email = w.OwnerEmail
	}
	if rcpt.Email == "" && rcpt.TelegramChatID == "" {
		s.log.WithFields(map[string]any{
			"walletId": w.ID,
			"events":   len(qualifying),
		}).Debug("qualifying events but no notification channel enabled")
		return
	}

	limit := s.scanCfg.EventsPerEmail
	if limit < 1 {
		limit = 1
	}
	total := len(qualifying)
	shown := qualifying
	if total > limit {
		shown = qualifying[:limit]
	}

	digest := notify.Digest{
		Chain:         w.Chain,
		WalletAddress: w.Address,
		FromBlock:     from,
		ToBlock:       to,
		MoreCount:     total - len(shown),
		TotalEvents:   total,
	}
	for _, e := range shown {
		digest.Events = append(digest.Events, notify.DigestEvent{
			Kind:         e.Kind,
			TokenAddress: e.TokenAddress,
			Spender:      e.Spender,
			RawValue:     e.RawValue,
			Approved:     e.Approved,
			RiskScore:    e.RiskScore,
			RiskLevel:    e.RiskLevel,
			Reasons:      e.RiskMeta.Reasons,
			TxHash:       e.TxHash,
			BlockNumber:  e.BlockNumber,
			TxURL:        cc.ExplorerTxURL + e.TxHash,
		})
	}

	if err := s.notifier.SendScanDigest(ctx, rcpt, digest); err != nil {
		s.log.WithError(err).WithField("walletId", w.ID).Error("failed to send scan digest")
	}
}
