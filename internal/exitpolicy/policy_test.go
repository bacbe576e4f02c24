package exitpolicy

import (
	"testing"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func marked(outcome domain.Outcome, avg, price string) domain.Position {
	return domain.Position{
		MarketID:      "m1",
		OutcomeID:     "tok",
		Outcome:       outcome,
		Shares:        d("10"),
		AvgEntryPrice: d(avg),
	}.Marked(d(price))
}

func TestEvaluate_TierPriority(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		avg, price string
		want       string
		kind       Kind
	}{
		{"0.20", "0.60", "40", KindProfitTier}, // +200%
		{"0.40", "0.90", "35", KindProfitTier}, // +125%
		{"0.40", "0.60", "25", KindProfitTier}, // +50%
		{"0.50", "0.40", "100", KindStopLoss},  // -20%
	}
	for _, c := range cases {
		got := p.Evaluate(marked(domain.OutcomeA, c.avg, c.price))
		require.Len(t, got, 1, "avg=%s price=%s", c.avg, c.price)
		assert.Equal(t, c.kind, got[0].Kind)
		assert.True(t, got[0].SellPercent.Equal(d(c.want)), "avg=%s price=%s pct=%s", c.avg, c.price, got[0].SellPercent)
	}
}

func TestEvaluate_NoActionInsideBand(t *testing.T) {
	p := DefaultPolicy()
	assert.Empty(t, p.Evaluate(marked(domain.OutcomeA, "0.40", "0.599")))
	assert.Empty(t, p.Evaluate(marked(domain.OutcomeA, "0.50", "0.401")))
}

func TestEvaluate_NearCertaintyIsIndependent(t *testing.T) {
	p := DefaultPolicy()

	got := p.Evaluate(marked(domain.OutcomeA, "0.40", "0.96"))
	require.Len(t, got, 2)
	assert.Equal(t, KindProfitTier, got[0].Kind)
	assert.Equal(t, KindNearCertainty, got[1].Kind)

	// no-like 侧价格 <= 0.05
	got = p.Evaluate(marked(domain.OutcomeB, "0.045", "0.05"))
	require.Len(t, got, 1)
	assert.Equal(t, KindNearCertainty, got[0].Kind)
	assert.True(t, got[0].IsFull())

	// yes-like 侧低价不会触发接近确定
	got = p.Evaluate(marked(domain.OutcomeA, "0.045", "0.05"))
	for _, ins := range got {
		assert.NotEqual(t, KindNearCertainty, ins.Kind)
	}
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.Tiers[0], bad.Tiers[2] = bad.Tiers[2], bad.Tiers[0]
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.StopLossPercent = decimal.NewFromInt(5)
	assert.Error(t, bad.Validate())
}
