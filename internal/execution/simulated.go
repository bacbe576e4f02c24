package execution

import (
	"context"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/google/uuid"
)

// SimulatedGateway 模拟成交：按请求价格全部成交，不访问任何外部服务。
type SimulatedGateway struct {
	now func() time.Time
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{now: time.Now}
}

// SetClock 测试用
func (g *SimulatedGateway) SetClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

func (g *SimulatedGateway) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	now := g.now()
	if err := ctx.Err(); err != nil {
		return domain.FailedResult(err.Error(), now)
	}
	if req.TokenID == "" {
		return domain.FailedResult("missing token id", now)
	}
	if !req.Price.IsPositive() || !req.Amount.IsPositive() {
		return domain.FailedResult("invalid price or amount", now)
	}

	shares := req.Amount
	if req.Side == domain.SideBuy {
		shares = SharesFor(req.Amount, req.Price)
	}

	log.Debugf("🧪 [模拟] %s token=%s amount=%s price=%s shares=%s",
		req.Side, shortID(req.TokenID), req.Amount.StringFixed(4), req.Price.StringFixed(4), shares.StringFixed(4))

	return domain.ExecutionResult{
		Success:      true,
		OrderID:      "sim-" + uuid.NewString(),
		ActualPrice:  req.Price,
		ActualAmount: shares,
		Timestamp:    now,
	}
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "…" + id[len(id)-4:]
}
