// Package notify delivers per-wallet scan digests to the configured sinks.
// Delivery is fire-and-forget from the scanner's perspective: failures are
// logged here and never propagate back to abort a tick.
package notify

import (
	"context"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/types"
)

// Recipient identifies where a digest should be delivered
type Recipient struct {
	Email          string
	TelegramChatID string
}

// DigestEvent is one approval entry in a scan digest
type DigestEvent struct {
	Kind         types.ApprovalKind
	TokenAddress string
	Spender      string
	RawValue     *string
	Approved     *bool
	RiskScore    int
	RiskLevel    types.RiskLevel
	Reasons      []types.ReasonCode
	TxHash       string
	BlockNumber  uint64
	TxURL        string
}

// Digest summarizes the qualifying events of one wallet scan
type Digest struct {
	Chain         types.Chain
	WalletAddress string
	FromBlock     uint64
	ToBlock       uint64
	Events        []DigestEvent
	MoreCount     int
	TotalEvents   int
}

// Notifier delivers scan digests
type Notifier interface {
	SendScanDigest(ctx context.Context, rcpt Recipient, digest Digest) error
}

// MultiNotifier fans a digest out to several sinks. A failing sink is
// logged and does not stop delivery to the others.
type MultiNotifier struct {
	sinks []Notifier
	log   *logging.Logger
}

// NewMultiNotifier creates a fan-out notifier
func NewMultiNotifier(log *logging.Logger, sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks, log: log.Named("notify")}
}

// SendScanDigest delivers the digest to every sink
func (m *MultiNotifier) SendScanDigest(ctx context.Context, rcpt Recipient, digest Digest) error {
	for _, sink := range m.sinks {
		if err := sink.SendScanDigest(ctx, rcpt, digest); err != nil {
			m.log.WithFields(map[string]any{
				"chain":  digest.Chain,
				"wallet": digest.WalletAddress,
				"error":  err.Error(),
			}).Error("digest delivery failed")
		}
	}
	return nil
}
