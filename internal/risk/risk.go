// Package risk scores approval events. Compute is a pure function so the
// scoring rules stay deterministic and auditable.
package risk

import (
	"math/big"
	"strings"

	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

// Score contributions per rule
const (
	scoreValuableToken         = 20
	scoreSpenderNotAllowlisted = 25
	scoreInfiniteAllowance     = 60
	scoreHugeAllowance         = 40
	scoreApprovalForAll        = 70
)

// Threshold maps a minimum score to a risk level
type Threshold struct {
	MinScore int
	Level    types.RiskLevel
}

// Thresholds is the score-to-level table, evaluated highest-first.
// It is data rather than code so the buckets can be tuned without
// touching the scoring algorithm.
var Thresholds = []Threshold{
	{MinScore: 80, Level: types.RiskLevelCritical},
	{MinScore: 50, Level: types.RiskLevelHigh},
	{MinScore: 20, Level: types.RiskLevelMedium},
	{MinScore: 0, Level: types.RiskLevelLow},
}

// ScoreToLevel maps a score to its risk level using the threshold table
func ScoreToLevel(score int) types.RiskLevel {
	for _, t := range Thresholds {
		if score >= t.MinScore {
			return t.Level
		}
	}
	return types.RiskLevelLow
}

var (
	// maxUint256 = 2^256 - 1, the infinite-allowance marker
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// hugeAllowanceThreshold = 2^255, the unreasonably-large cutoff
	hugeAllowanceThreshold = new(big.Int).Lsh(big.NewInt(1), 255)
)

// TrustContext carries the resolved allowlist verdict for an event's
// spender. A nil SpenderTrusted means the lookup was not performed;
// absence of information is never penalized.
type TrustContext struct {
	SpenderTrusted *bool
}

// Assessment is the output of a risk computation
type Assessment struct {
	Score      int
	Level      types.RiskLevel
	Reasons    []types.ReasonCode
	IsInfinite bool
	Details    map[string]any
}

// Meta converts an assessment to the persisted riskMeta shape
func (a Assessment) Meta() models.RiskMeta {
	return models.RiskMeta{
		Reasons:    a.Reasons,
		IsInfinite: a.IsInfinite,
		Details:    a.Details,
	}
}

// Engine evaluates events against the per-chain valuable-token sets
type Engine struct {
	valuableTokens map[types.Chain]map[string]bool
}

// NewEngine creates a risk engine. Token addresses in the valuable sets
// must already be lowercased.
func NewEngine(valuableTokens map[types.Chain]map[string]bool) *Engine {
	return &Engine{valuableTokens: valuableTokens}
}

// Compute scores one approval event. Scoring is additive except for the
// revoke override: a zero-value ERC-20 approval or a disabled
// ApprovalForAll always yields score 0 / LOW / [REVOKE].
func (e *Engine) Compute(event *models.ApprovalEvent, trust TrustContext) Assessment {
	details := map[string]any{
		"rawValue": nullable(event.RawValue),
		"approved": nullableBool(event.Approved),
	}

	revoke := Assessment{
		Score:   0,
		Level:   ScoreToLevel(0),
		Reasons: []types.ReasonCode{types.ReasonRevoke},
		Details: details,
	}

	score := 0
	reasons := []types.ReasonCode{}

	if e.valuableTokens[event.Chain][strings.ToLower(event.TokenAddress)] {
		score += scoreValuableToken
		reasons = append(reasons, types.ReasonValuableToken)
	}

	if trust.SpenderTrusted != nil && !*trust.SpenderTrusted {
		score += scoreSpenderNotAllowlisted
		reasons = append(reasons, types.ReasonSpenderNotAllowlisted)
	}

	isInfinite := false

	switch event.Kind {
	case types.KindERC20Approval:
		if v := parseRawValue(event.RawValue); v != nil {
			if v.Sign() == 0 {
				return revoke
			}
			if v.Cmp(maxUint256) == 0 {
				isInfinite = true
				score += scoreInfiniteAllowance
				reasons = append(reasons, types.ReasonInfiniteAllowance)
			} else if v.Cmp(hugeAllowanceThreshold) >= 0 {
				score += scoreHugeAllowance
				reasons = append(reasons, types.ReasonHugeAllowance)
			}
		}

	case types.KindApprovalForAll:
		if event.Approved != nil && !*event.Approved {
			return revoke
		}
		if event.Approved != nil && *event.Approved {
			score += scoreApprovalForAll
			reasons = append(reasons, types.ReasonApprovalForAllEnabled)
		}
	}

	return Assessment{
		Score:      score,
		Level:      ScoreToLevel(score),
		Reasons:    reasons,
		IsInfinite: isInfinite,
		Details:    details,
	}
}

// parseRawValue parses a decimal string as an unsigned big integer,
// returning nil when absent or malformed
func parseRawValue(raw *string) *big.Int {
	if raw == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*raw, 10)
	if !ok || v.Sign() < 0 {
		return nil
	}
	return v
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
