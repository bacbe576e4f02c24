package exitpolicy

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/ledger"
	"github.com/betbot/oddsbot/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "exitpolicy")

// ExitEvent 一次退出指令的执行记录
type ExitEvent struct {
	Key         domain.PositionKey
	Instruction Instruction
	SharesSold  decimal.Decimal
	Proceeds    decimal.Decimal
	Result      domain.ExecutionResult
	Closed      bool
	RealizedPnL decimal.Decimal
}

// Runner 每个监控周期对所有持仓求值并执行减仓
type Runner struct {
	policy       Policy
	prices       ports.OutcomePriceGetter
	gateway      ports.OrderSubmitter
	fetchTimeout time.Duration
}

// NewRunner 创建退出执行器
func NewRunner(policy Policy, prices ports.OutcomePriceGetter, gateway ports.OrderSubmitter) *Runner {
	return &Runner{
		policy:       policy,
		prices:       prices,
		gateway:      gateway,
		fetchTimeout: 5 * time.Second,
	}
}

// SetFetchTimeout 单个仓位取价超时
func (r *Runner) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		r.fetchTimeout = d
	}
}

type quote struct {
	price decimal.Decimal
	err   error
}

// RunCycle 执行一个监控周期。
// 取价并发进行，某个仓位取价失败只跳过该仓位；账本修改在调用方的单线程上顺序完成。
func (r *Runner) RunCycle(ctx context.Context, l *ledger.Ledger) []ExitEvent {
	positions := l.Positions()
	if len(positions) == 0 {
		return nil
	}

	quotes := make([]quote, len(positions))
	var wg sync.WaitGroup
	for i, pos := range positions {
		wg.Add(1)
		go func(i int, tokenID string) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
			defer cancel()
			p, err := r.prices.Price(fetchCtx, tokenID)
			quotes[i] = quote{price: p, err: err}
		}(i, pos.OutcomeID)
	}
	wg.Wait()

	var events []ExitEvent
	for i, pos := range positions {
		q := quotes[i]
		key := pos.Key()
		if q.err != nil {
			log.Warnf("⚠️ 获取价格失败，本周期跳过: position=%s err=%v", key, q.err)
			continue
		}
		if !q.price.IsPositive() {
			log.Debugf("⏭️ 价格为 0，本周期跳过: position=%s", key)
			continue
		}

		marked, err := l.MarkToMarket(key, q.price)
		if err != nil {
			log.Warnf("⚠️ 标记仓位失败: position=%s err=%v", key, err)
			continue
		}

		for _, ins := range r.policy.Evaluate(marked) {
			ev, ok := r.apply(ctx, l, key, ins, q.price)
			if !ok {
				break
			}
			events = append(events, ev)
			if ev.Closed {
				break
			}
		}
	}
	return events
}

// apply 执行一条指令；返回 false 表示仓位已不存在
func (r *Runner) apply(ctx context.Context, l *ledger.Ledger, key domain.PositionKey, ins Instruction, price decimal.Decimal) (ExitEvent, bool) {
	pos, ok := l.Get(key)
	if !ok {
		return ExitEvent{}, false
	}

	shares := pos.Shares
	if !ins.IsFull() {
		shares = pos.Shares.Mul(ins.SellPercent).Div(hundred)
	}
	proceeds := shares.Mul(price)

	ev := ExitEvent{Key: key, Instruction: ins, SharesSold: shares, Proceeds: proceeds}
	ev.Result = r.gateway.Submit(ctx, domain.OrderRequest{
		TokenID:  pos.OutcomeID,
		Side:     domain.SideSell,
		Amount:   shares,
		Price:    price,
		Validity: domain.ValidityFOK,
	})
	if !ev.Result.Success {
		log.Errorf("❌ 减仓下单失败（不自动重试）: position=%s reason=%s shares=%s err=%s",
			key, ins.Reason, shares.StringFixed(4), ev.Result.Error)
		return ev, true
	}

	fillPrice := price
	if ev.Result.ActualPrice.IsPositive() {
		fillPrice = ev.Result.ActualPrice
	}
	out, err := l.RecordSell(key, shares, fillPrice)
	if err != nil {
		log.Errorf("❌ 账本记录卖出失败: position=%s err=%v", key, err)
		return ev, true
	}
	ev.Closed = out.Closed
	ev.RealizedPnL = out.RealizedPnL

	log.Infof("📤 减仓: position=%s reason=%s pct=%s shares=%s proceeds=%s remaining=%s closed=%v",
		key, ins.Reason, ins.SellPercent, shares.StringFixed(4), proceeds.StringFixed(4), out.Remaining.StringFixed(4), out.Closed)
	return ev, true
}
