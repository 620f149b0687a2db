package notify

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/types"
)

type recordingSink struct {
	digests []Digest
	err     error
}

func (r *recordingSink) SendScanDigest(ctx context.Context, rcpt Recipient, digest Digest) error {
	if r.err != nil {
		return r.err
	}
	r.digests = append(r.digests, digest)
	return nil
}

func testDigest() Digest {
	return Digest{
		Chain:         types.ChainEthereum,
		WalletAddress: "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		FromBlock:     100,
		ToBlock:       200,
		Events: []DigestEvent{
			{
				Kind:         types.KindERC20Approval,
				TokenAddress: "0x2222222222222222222222222222222222222222",
				Spender:      "0x1111111111111111111111111111111111111111",
				RiskScore:    105,
				RiskLevel:    types.RiskLevelCritical,
				Reasons: []types.ReasonCode{
					types.ReasonValuableToken,
					types.ReasonInfiniteAllowance,
				},
				TxHash: "0xdeadbeef",
				TxURL:  "https://etherscan.io/tx/0xdeadbeef",
			},
		},
		MoreCount:   4,
		TotalEvents: 5,
	}
}

func TestMultiNotifierContinuesPastFailingSink(t *testing.T) {
	failing := &recordingSink{err: fmt.Errorf("smtp down")}
	healthy := &recordingSink{}

	m := NewMultiNotifier(logging.New(logging.LevelError, logging.FormatText), failing, healthy)
	err := m.SendScanDigest(context.Background(), Recipient{Email: "a@b.c"}, testDigest())

	require.NoError(t, err)
	assert.Len(t, healthy.digests, 1)
}

func TestDigestTemplateRendering(t *testing.T) {
	var body bytes.Buffer
	data := struct {
		AppName     string
		TotalEvents int
		Digest      Digest
	}{AppName: "Approval Sentinel", TotalEvents: 5, Digest: testDigest()}

	require.NoError(t, digestTemplate.Execute(&body, data))
	html := body.String()

	assert.Contains(t, html, "Approval Sentinel: 5 approval event(s) detected")
	assert.Contains(t, html, "0x2222222222222222222222222222222222222222")
	assert.Contains(t, html, "105 (CRITICAL)")
	assert.Contains(t, html, "VALUABLE_TOKEN, INFINITE_ALLOWANCE")
	assert.Contains(t, html, `href="https://etherscan.io/tx/0xdeadbeef"`)
	assert.Contains(t, html, "and 4 more")
}

func TestDigestTemplateOmitsMoreLineWhenComplete(t *testing.T) {
	d := testDigest()
	d.MoreCount = 0

	var body bytes.Buffer
	data := struct {
		AppName     string
		TotalEvents int
		Digest      Digest
	}{AppName: "Approval Sentinel", TotalEvents: 1, Digest: d}

	require.NoError(t, digestTemplate.Execute(&body, data))
	assert.NotContains(t, body.String(), "more.")
}

func TestMailerDevModeSkipsWithoutHost(t *testing.T) {
	m := NewMailer(config.MailConfig{AppName: "Approval Sentinel"}, logging.New(logging.LevelError, logging.FormatText))

	// no SMTP host configured: must be a silent no-op, not an error
	err := m.SendScanDigest(context.Background(), Recipient{Email: "a@b.c"}, testDigest())
	assert.NoError(t, err)
}

func TestMailerSkipsRecipientWithoutEmail(t *testing.T) {
	m := NewMailer(config.MailConfig{Host: "smtp.example.com", Port: "587"}, logging.New(logging.LevelError, logging.FormatText))

	err := m.SendScanDigest(context.Background(), Recipient{TelegramChatID: "42"}, testDigest())
	assert.NoError(t, err)
}

func TestTelegramSkipsWithoutToken(t *testing.T) {
	tg := NewTelegramNotifier(config.TelegramConfig{}, logging.New(logging.LevelError, logging.FormatText))

	err := tg.SendScanDigest(context.Background(), Recipient{TelegramChatID: "42"}, testDigest())
	assert.NoError(t, err)
}

func TestTelegramSkipsWithoutChatID(t *testing.T) {
	tg := NewTelegramNotifier(config.TelegramConfig{BotToken: "token"}, logging.New(logging.LevelError, logging.FormatText))

	err := tg.SendScanDigest(context.Background(), Recipient{Email: "a@b.c"}, testDigest())
	assert.NoError(t, err)
}
