package exitpolicy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakePrices) Price(_ context.Context, tokenID string) (decimal.Decimal, error) {
	if err := f.errs[tokenID]; err != nil {
		return decimal.Zero, err
	}
	return f.prices[tokenID], nil
}

type fakeGateway struct {
	mu   sync.Mutex
	reqs []domain.OrderRequest
	fail bool
}

func (g *fakeGateway) Submit(_ context.Context, req domain.OrderRequest) domain.ExecutionResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.fail {
		return domain.FailedResult("rejected", time.Now())
	}
	return domain.ExecutionResult{Success: true, OrderID: "o", ActualPrice: req.Price, ActualAmount: req.Amount, Timestamp: time.Now()}
}

func open(t *testing.T, l *ledger.Ledger, token string, outcome domain.Outcome, shares, avg string) domain.PositionKey {
	t.Helper()
	pos, err := l.RecordBuy(domain.Position{MarketID: "m1", OutcomeID: token, Outcome: outcome, Shares: d(shares), AvgEntryPrice: d(avg)})
	require.NoError(t, err)
	return pos.Key()
}

func TestRunCycle_ScaleOutAt125Percent(t *testing.T) {
	l := ledger.New()
	key := open(t, l, "UP", domain.OutcomeA, "10", "0.40")
	gw := &fakeGateway{}
	r := NewRunner(DefaultPolicy(), &fakePrices{prices: map[string]decimal.Decimal{"UP": d("0.90")}}, gw)

	events := r.RunCycle(context.Background(), l)

	require.Len(t, events, 1)
	// 100% 档卖出 35%：10 × 0.35 = 3.5 份
	assert.True(t, events[0].SharesSold.Equal(d("3.5")), "sold=%s", events[0].SharesSold)
	assert.True(t, events[0].Proceeds.Equal(d("3.15")), "proceeds=%s", events[0].Proceeds)
	require.Len(t, gw.reqs, 1)
	assert.Equal(t, domain.SideSell, gw.reqs[0].Side)
	assert.True(t, gw.reqs[0].Amount.Equal(d("3.5")))
	assert.Equal(t, domain.ValidityFOK, gw.reqs[0].Validity)

	pos, ok := l.Get(key)
	require.True(t, ok)
	assert.True(t, pos.Shares.Equal(d("6.5")), "remaining=%s", pos.Shares)
	assert.True(t, pos.AvgEntryPrice.Equal(d("0.40")))
}

func TestRunCycle_TierThenNearCertaintyClosesRemainder(t *testing.T) {
	l := ledger.New()
	key := open(t, l, "UP", domain.OutcomeA, "10", "0.40")
	gw := &fakeGateway{}
	r := NewRunner(DefaultPolicy(), &fakePrices{prices: map[string]decimal.Decimal{"UP": d("0.96")}}, gw)

	events := r.RunCycle(context.Background(), l)

	require.Len(t, events, 2)
	assert.True(t, events[0].SharesSold.Equal(d("3.5")))
	assert.True(t, events[1].SharesSold.Equal(d("6.5")))
	assert.True(t, events[1].Closed)
	_, ok := l.Get(key)
	assert.False(t, ok)
}

func TestRunCycle_StopLossClosesPosition(t *testing.T) {
	l := ledger.New()
	key := open(t, l, "DOWN", domain.OutcomeB, "8", "0.50")
	gw := &fakeGateway{}
	r := NewRunner(DefaultPolicy(), &fakePrices{prices: map[string]decimal.Decimal{"DOWN": d("0.39")}}, gw)

	events := r.RunCycle(context.Background(), l)

	require.Len(t, events, 1)
	assert.Equal(t, KindStopLoss, events[0].Instruction.Kind)
	assert.True(t, events[0].SharesSold.Equal(d("8")))
	_, ok := l.Get(key)
	assert.False(t, ok)
	assert.True(t, l.Summary().RealizedPnL.Equal(d("-0.88")), "realized=%s", l.Summary().RealizedPnL)
}

func TestRunCycle_FetchFailureIsolatedPerPosition(t *testing.T) {
	l := ledger.New()
	bad := open(t, l, "UP", domain.OutcomeA, "10", "0.40")
	good := open(t, l, "DOWN", domain.OutcomeB, "10", "0.20")
	gw := &fakeGateway{}
	prices := &fakePrices{
		prices: map[string]decimal.Decimal{"DOWN": d("0.30")},
		errs:   map[string]error{"UP": errors.New("timeout")},
	}

	events := NewRunner(DefaultPolicy(), prices, gw).RunCycle(context.Background(), l)

	require.Len(t, events, 1)
	assert.Equal(t, good, events[0].Key)
	pos, _ := l.Get(bad)
	assert.True(t, pos.Shares.Equal(d("10")))
	pos, _ = l.Get(good)
	assert.True(t, pos.Shares.Equal(d("7.5")))
}

func TestRunCycle_GatewayFailureLeavesLedger(t *testing.T) {
	l := ledger.New()
	key := open(t, l, "UP", domain.OutcomeA, "10", "0.40")
	gw := &fakeGateway{fail: true}
	r := NewRunner(DefaultPolicy(), &fakePrices{prices: map[string]decimal.Decimal{"UP": d("0.90")}}, gw)

	events := r.RunCycle(context.Background(), l)

	require.Len(t, events, 1)
	assert.False(t, events[0].Result.Success)
	require.Len(t, gw.reqs, 1, "failed orders are not retried")
	pos, _ := l.Get(key)
	assert.True(t, pos.Shares.Equal(d("10")))
}
