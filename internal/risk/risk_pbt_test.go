package risk

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

func genAmountString() gopter.Gen {
	return gen.UInt64().Map(func(v uint64) string {
		return new(big.Int).SetUint64(v).String()
	})
}

func TestComputeProperties(t *testing.T) {
	engine := testEngine()
	properties := gopter.NewProperties(nil)

	properties.Property("level always matches score", prop.ForAll(
		func(amount string, trusted bool) bool {
			event := erc20Event(usdcMainnet, amount)
			got := engine.Compute(event, TrustContext{SpenderTrusted: &trusted})
			return got.Level == ScoreToLevel(got.Score)
		},
		genAmountString(),
		gen.Bool(),
	))

	properties.Property("zero value always yields a revoke regardless of trust", prop.ForAll(
		func(token string, trusted bool) bool {
			event := erc20Event(token, "0")
			got := engine.Compute(event, TrustContext{SpenderTrusted: &trusted})
			return got.Score == 0 &&
				got.Level == types.RiskLevelLow &&
				len(got.Reasons) == 1 &&
				got.Reasons[0] == types.ReasonRevoke
		},
		gen.RegexMatch("0x[0-9a-f]{40}"),
		gen.Bool(),
	))

	properties.Property("untrusted spender never scores lower than trusted", prop.ForAll(
		func(amount string) bool {
			event := erc20Event(usdcMainnet, amount)
			trusted := engine.Compute(event, TrustContext{SpenderTrusted: boolptr(true)})
			untrusted := engine.Compute(event, TrustContext{SpenderTrusted: boolptr(false)})
			return untrusted.Score >= trusted.Score
		},
		genAmountString(),
	))

	properties.Property("score is non-negative and reasons are from the closed set", prop.ForAll(
		func(amount string, trusted bool) bool {
			event := erc20Event(usdcMainnet, amount)
			got := engine.Compute(event, TrustContext{SpenderTrusted: &trusted})
			if got.Score < 0 {
				return false
			}
			known := map[types.ReasonCode]bool{
				types.ReasonValuableToken:         true,
				types.ReasonSpenderNotAllowlisted: true,
				types.ReasonInfiniteAllowance:     true,
				types.ReasonHugeAllowance:         true,
				types.ReasonApprovalForAllEnabled: true,
				types.ReasonRevoke:                true,
			}
			for _, r := range got.Reasons {
				if !known[r] {
					return false
				}
			}
			return true
		},
		genAmountString(),
		gen.Bool(),
	))

	properties.Property("compute is deterministic", prop.ForAll(
		func(amount string, trusted bool) bool {
			event := erc20Event(usdcMainnet, amount)
			ctx := TrustContext{SpenderTrusted: &trusted}
			a := engine.Compute(event, ctx)
			b := engine.Compute(event, ctx)
			return a.Score == b.Score && a.Level == b.Level && len(a.Reasons) == len(b.Reasons)
		},
		genAmountString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestComputeApprovalForAllProperties(t *testing.T) {
	engine := testEngine()
	properties := gopter.NewProperties(nil)

	properties.Property("disabled operator is always a revoke", prop.ForAll(
		func(trusted bool) bool {
			event := &models.ApprovalEvent{
				Chain:        types.ChainEthereum,
				Kind:         types.KindApprovalForAll,
				TokenAddress: "0x3333333333333333333333333333333333333333",
				Spender:      someSpender,
				Approved:     boolptr(false),
			}
			got := engine.Compute(event, TrustContext{SpenderTrusted: &trusted})
			return got.Score == 0 && got.Reasons[0] == types.ReasonRevoke
		},
		gen.Bool(),
	))

	properties.Property("enabled operator always carries the blanket-approval reason", prop.ForAll(
		func(trusted bool) bool {
			event := &models.ApprovalEvent{
				Chain:        types.ChainEthereum,
				Kind:         types.KindApprovalForAll,
				TokenAddress: "0x3333333333333333333333333333333333333333",
				Spender:      someSpender,
				Approved:     boolptr(true),
			}
			got := engine.Compute(event, TrustContext{SpenderTrusted: &trusted})
			for _, r := range got.Reasons {
				if r == types.ReasonApprovalForAllEnabled {
					return got.Score >= 70
				}
			}
			return false
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
