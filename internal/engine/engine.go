// Package engine 单线程事件循环：串行处理价格信号、快照轮询、分析周期与运营查询，
// 账本与快照只在循环 goroutine 内读写。
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/betbot/oddsbot/internal/decision"
	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/execution"
	"github.com/betbot/oddsbot/internal/exitpolicy"
	"github.com/betbot/oddsbot/internal/hedge"
	"github.com/betbot/oddsbot/internal/ledger"
	"github.com/betbot/oddsbot/internal/market"
	"github.com/betbot/oddsbot/internal/metrics"
	"github.com/betbot/oddsbot/internal/ports"
	"github.com/betbot/oddsbot/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "engine")

// ErrStopped 事件循环已退出
var ErrStopped = errors.New("engine stopped")

// PriceFeed 参考价格来源（refprice.Tracker）
type PriceFeed interface {
	CurrentPrice() decimal.Decimal
	Trend(window time.Duration) domain.Trend
	Ticks() <-chan struct{}
}

// Deps 外部依赖
type Deps struct {
	Feed     PriceFeed
	Provider market.Provider
	Gateway  ports.OrderSubmitter
	Exits    *exitpolicy.Runner
	Breaker  *risk.CircuitBreaker // 可选：用于累计已实现盈亏
	Decision decision.Config
	Clock    Clock
	Mode     func() string
}

type Engine struct {
	cfg  Config
	deps Deps

	clock  Clock
	ledger *ledger.Ledger
	hedger *hedge.Coordinator

	// 以下字段只在循环 goroutine 内访问
	snapshot     domain.MarketSnapshot
	hasSnapshot  bool
	lastDecision *decisionRecord
	lastTickAt   time.Time
	entries      map[string]int // marketID -> 成功开仓次数
	windowEnds   map[string]time.Time
	endedWarned  map[domain.PositionKey]bool

	reqC chan func()
	done chan struct{}
}

type decisionRecord struct {
	decision domain.TradeDecision
	at       time.Time
}

func New(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Mode == nil {
		deps.Mode = func() string { return execution.ModeSimulate }
	}
	l := ledger.New()
	l.SetClock(deps.Clock.Now)

	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		clock:   deps.Clock,
		ledger:  l,
		entries: make(map[string]int),

		windowEnds:  make(map[string]time.Time),
		endedWarned: make(map[domain.PositionKey]bool),
		reqC:    make(chan func(), 16),
		done:    make(chan struct{}),
	}
	if cfg.HedgeRatio > 0 {
		e.hedger = hedge.NewCoordinator(deps.Gateway)
	}
	return e
}

// Run 阻塞运行事件循环，ctx 取消后返回。
// 进行中的下单会等待其返回，但结果在退出后不再处理。
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	log.Infof("🚀 事件循环已启动: mode=%s snapshot=%s analysis=%s", e.deps.Mode(), e.cfg.SnapshotInterval, e.cfg.AnalysisInterval)
	defer log.Infof("事件循环已停止")

	e.refreshSnapshot(ctx)

	snapT := e.clock.NewTicker(e.cfg.SnapshotInterval)
	defer snapT.Stop()
	analysisT := e.clock.NewTicker(e.cfg.AnalysisInterval)
	defer analysisT.Stop()

	var ticks <-chan struct{}
	if e.deps.Feed != nil {
		ticks = e.deps.Feed.Ticks()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			e.lastTickAt = e.clock.Now()
		case <-snapT.C():
			e.refreshSnapshot(ctx)
		case <-analysisT.C():
			e.analyze(ctx)
		case fn := <-e.reqC:
			fn()
		}
	}
}

// query 把 fn 投递到事件循环执行，结果经容量为 1 的 channel 传回。
// 调用方提前返回时循环写入结果也不会阻塞，且不与调用方共享变量。
func query[T any](ctx context.Context, e *Engine, fn func() T) (T, error) {
	var zero T
	resC := make(chan T, 1)
	select {
	case e.reqC <- func() { resC <- fn() }:
	case <-e.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-resC:
		return v, nil
	case <-e.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (e *Engine) refreshSnapshot(ctx context.Context) {
	fetchCtx := ctx
	if e.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.SnapshotTimeout)
		defer cancel()
	}

	snap, err := e.deps.Provider.Current(fetchCtx)
	if errors.Is(err, market.ErrMarketNotFound) {
		if e.hasSnapshot {
			log.Infof("📭 当前周期无市场，清空快照: %v", err)
		}
		e.snapshot, e.hasSnapshot = domain.MarketSnapshot{}, false
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			metrics.SnapshotErrors.Inc()
			log.Warnf("⚠️ 刷新市场快照失败，保留旧快照: %v", err)
		}
		return
	}

	if !e.hasSnapshot || e.snapshot.MarketID != snap.MarketID {
		log.Infof("🔄 新市场: %s threshold=%s up=%s down=%s",
			snap.Slug, snap.ThresholdValue.StringFixed(2), snap.OutcomeAPrice.StringFixed(3), snap.OutcomeBPrice.StringFixed(3))
		// 旧周期的开仓计数不再需要
		for id := range e.entries {
			if id != snap.MarketID {
				delete(e.entries, id)
			}
		}
	}
	e.snapshot, e.hasSnapshot = snap, true
	e.windowEnds[snap.MarketID] = snap.WindowEnd
}

// analyze 一个分析周期：先决策开仓，再执行退出策略。整个周期对账本是原子的。
func (e *Engine) analyze(ctx context.Context) {
	e.evaluateEntry(ctx)

	if e.deps.Exits != nil && e.ledger.Len() > 0 {
		for _, ev := range e.deps.Exits.RunCycle(ctx, e.ledger) {
			if !ev.Result.Success {
				continue
			}
			metrics.Exits.WithLabelValues(string(ev.Instruction.Kind)).Inc()
			e.deps.Breaker.AddRealizedPnL(ev.RealizedPnL)
		}
	}

	e.checkEndedWindows()

	sum := e.ledger.Summary()
	metrics.OpenPositions.Set(float64(sum.Count))
	metrics.UnrealizedPnL.Set(metrics.Float(sum.TotalUnrealizedPnL))
	metrics.RealizedPnL.Set(metrics.Float(sum.RealizedPnL))
}

// checkEndedWindows 统计周期已结束但仍在账本中的仓位，每个仓位只告警一次。
// 这些仓位不自动结算，由运营人员处理。
func (e *Engine) checkEndedWindows() {
	now := e.clock.Now()
	live := make(map[string]bool)
	ended := 0
	for _, pos := range e.ledger.Positions() {
		live[pos.MarketID] = true
		end, ok := e.windowEnds[pos.MarketID]
		if !ok || end.IsZero() || now.Before(end) {
			continue
		}
		ended++
		key := pos.Key()
		if !e.endedWarned[key] {
			e.endedWarned[key] = true
			log.Warnf("⌛ 周期已结束的持仓仍未平仓，等待结算: %s shares=%s ended=%s",
				key, pos.Shares.StringFixed(4), end.Format(time.RFC3339))
		}
	}
	metrics.EndedWindowPositions.Set(float64(ended))

	for key := range e.endedWarned {
		if _, ok := e.ledger.Get(key); !ok {
			delete(e.endedWarned, key)
		}
	}
	for id := range e.windowEnds {
		if !live[id] && (!e.hasSnapshot || id != e.snapshot.MarketID) {
			delete(e.windowEnds, id)
		}
	}
}

func (e *Engine) evaluateEntry(ctx context.Context) {
	if !e.hasSnapshot {
		log.Debugf("⏭️ 无市场快照，跳过本周期")
		return
	}
	if e.deps.Feed == nil {
		log.Debugf("⏭️ 未配置参考价来源，跳过本周期")
		return
	}
	now := e.clock.Now()
	if !e.snapshot.Contains(now) {
		log.Debugf("⏭️ 快照已过期（%s），等待刷新", e.snapshot.Slug)
		return
	}
	ref := e.deps.Feed.CurrentPrice()
	if !ref.IsPositive() {
		log.Debugf("⏭️ 尚无参考价，跳过本周期")
		return
	}

	trend := e.deps.Feed.Trend(e.cfg.TrendWindow)
	dec := decision.Evaluate(e.deps.Decision, ref, e.snapshot, trend)
	e.lastDecision = &decisionRecord{decision: dec, at: now}
	metrics.Decisions.WithLabelValues(string(dec.Action)).Inc()

	if !dec.IsBuy() {
		log.Debugf("决策: %s", dec.Reason)
		return
	}
	if n := e.entries[e.snapshot.MarketID]; n >= e.cfg.MaxEntriesPerMarket {
		log.Debugf("⏭️ 本周期已开仓 %d 次，跳过: %s", n, e.snapshot.Slug)
		return
	}

	log.Infof("🎯 开仓信号: %s confidence=%d amount=%s", dec.Reason, dec.Confidence, dec.SuggestedAmount.StringFixed(2))

	primary := domain.OrderRequest{
		TokenID:  e.snapshot.OutcomeID(dec.Side),
		Side:     domain.SideBuy,
		Amount:   dec.SuggestedAmount,
		Price:    dec.TicketPrice,
		Validity: domain.ValidityFOK,
	}

	hedgeSide := dec.Side.Opposite()
	hedgePrice := e.snapshot.OutcomePrice(hedgeSide)
	if e.hedger != nil && hedgePrice.IsPositive() {
		hedgeReq := domain.OrderRequest{
			TokenID:  e.snapshot.OutcomeID(hedgeSide),
			Side:     domain.SideBuy,
			Amount:   dec.SuggestedAmount.Mul(decimal.NewFromFloat(e.cfg.HedgeRatio)),
			Price:    hedgePrice,
			Validity: domain.ValidityFOK,
		}
		pair := e.hedger.Execute(ctx, primary, hedgeReq)
		if e.recordFill(dec.Side, primary, pair.Primary) {
			e.entries[e.snapshot.MarketID]++
		}
		e.recordFill(hedgeSide, hedgeReq, pair.Hedge)
		return
	}

	res := e.deps.Gateway.Submit(ctx, primary)
	if e.recordFill(dec.Side, primary, res) {
		e.entries[e.snapshot.MarketID]++
	}
}

// recordFill 成功的买单写入账本；返回是否记录成功
func (e *Engine) recordFill(outcome domain.Outcome, req domain.OrderRequest, res domain.ExecutionResult) bool {
	if !res.Success {
		if res.Error != hedge.CancelledReason {
			log.Warnf("❌ 买入失败: token=%s err=%s", req.TokenID, res.Error)
		}
		return false
	}

	price := res.ActualPrice
	if !price.IsPositive() {
		price = req.Price
	}
	shares := res.ActualAmount
	if !shares.IsPositive() {
		shares = execution.SharesFor(req.Amount, price)
	}
	openedAt := res.Timestamp
	if openedAt.IsZero() {
		openedAt = e.clock.Now()
	}

	pos, err := e.ledger.RecordBuy(domain.Position{
		MarketID:      e.snapshot.MarketID,
		OutcomeID:     req.TokenID,
		Outcome:       outcome,
		Shares:        shares,
		AvgEntryPrice: price,
		OpenedAt:      openedAt,
	})
	if err != nil {
		log.Errorf("❌ 账本记录买入失败: %v", err)
		return false
	}
	log.Infof("📥 建仓: %s side=%s shares=%s avg=%s orderID=%s",
		pos.Key(), outcome, pos.Shares.StringFixed(4), pos.AvgEntryPrice.StringFixed(4), res.OrderID)
	return true
}
