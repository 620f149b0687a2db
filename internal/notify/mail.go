package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/types"
)

const digestTemplateSrc = `<h2>{{.AppName}}: {{.TotalEvents}} approval event(s) detected</h2>
<p>Wallet <code>{{.Digest.WalletAddress}}</code> on <b>{{.Digest.Chain}}</b>,
blocks {{.Digest.FromBlock}}&ndash;{{.Digest.ToBlock}}.</p>
<table border="1" cellpadding="4" cellspacing="0">
  <tr><th>Kind</th><th>Token</th><th>Spender</th><th>Risk</th><th>Reasons</th><th>Tx</th></tr>
  {{range .Digest.Events}}
  <tr>
    <td>{{.Kind}}</td>
    <td><code>{{.TokenAddress}}</code></td>
    <td><code>{{.Spender}}</code></td>
    <td>{{.RiskScore}} ({{.RiskLevel}})</td>
    <td>{{joinReasons .Reasons}}</td>
    <td><a href="{{.TxURL}}">{{.TxHash}}</a></td>
  </tr>
  {{end}}
</table>
{{if gt .Digest.MoreCount 0}}<p>&hellip;and {{.Digest.MoreCount}} more.</p>{{end}}`

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"joinReasons": func(reasons []types.ReasonCode) string {
		parts := make([]string, len(reasons))
		for i, r := range reasons {
			parts[i] = string(r)
		}
		return strings.Join(parts, ", ")
	},
}).Parse(digestTemplateSrc))

// Mailer delivers digests over SMTP. When no SMTP host is configured the
// mailer runs in dev mode: digests are logged and skipped.
type Mailer struct {
	cfg config.MailConfig
	log *logging.Logger
}

// NewMailer creates an SMTP digest sink
func NewMailer(cfg config.MailConfig, log *logging.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log.Named("notify.mail")}
}

// SendScanDigest renders and sends the digest email
func (m *Mailer) SendScanDigest(ctx context.Context, rcpt Recipient, digest Digest) error {
	if rcpt.Email == "" {
		return nil
	}

	if m.cfg.Host == "" {
		m.log.WithFields(map[string]any{
			"to":     rcpt.Email,
			"chain":  digest.Chain,
			"events": len(digest.Events),
		}).Debug("smtp disabled (dev mode), email skipped")
		return nil
	}

	subject := fmt.Sprintf("%s: %d approval event(s) detected", m.cfg.AppName, len(digest.Events))

	var body bytes.Buffer
	data := struct {
		AppName     string
		TotalEvents int
		Digest      Digest
	}{AppName: m.cfg.AppName, TotalEvents: digest.TotalEvents, Digest: digest}
	if err := digestTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render digest email: %w", err)
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", m.cfg.From),
		fmt.Sprintf("To: %s", rcpt.Email),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		body.String(),
	}, "\r\n")

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{rcpt.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}

	m.log.WithFields(map[string]any{
		"to":      rcpt.Email,
		"subject": subject,
	}).Info("digest email sent")
	return nil
}
