package execution

import (
	"context"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/risk"
)

// Guarded 用断路器包装网关：熔断时拒绝买单（开仓），卖单（平仓）照常放行。
// 每次结果都会反馈给断路器。
type Guarded struct {
	next    Gateway
	breaker *risk.CircuitBreaker
	now     func() time.Time
}

func NewGuarded(next Gateway, breaker *risk.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker, now: time.Now}
}

func (g *Guarded) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	if req.Side == domain.SideBuy {
		if err := g.breaker.AllowTrading(); err != nil {
			log.Warnf("🛑 断路器已打开，拒绝开仓: token=%s", shortID(req.TokenID))
			return domain.FailedResult(err.Error(), g.now())
		}
	}
	res := g.next.Submit(ctx, req)
	if res.Success {
		g.breaker.OnSuccess()
	} else {
		g.breaker.OnError()
	}
	return res
}
