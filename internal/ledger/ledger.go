// Package ledger 内存持仓账本：加权平均成本、减仓/平仓与盈亏汇总。
//
// Ledger 本身不是并发安全的，由 engine 的单线程事件循环独占。
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrPositionNotFound 仓位不存在
	ErrPositionNotFound = errors.New("position not found")
	// ErrInsufficientShares 卖出份额超过持仓
	ErrInsufficientShares = errors.New("sell exceeds held shares")
	// ErrInvalidAmount 份额/价格非法
	ErrInvalidAmount = errors.New("invalid amount")
)

// SellOutcome 卖出结果
type SellOutcome struct {
	Remaining   decimal.Decimal
	Closed      bool
	RealizedPnL decimal.Decimal
}

// Summary 账本汇总
type Summary struct {
	Count              int             `json:"count"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	TotalMarketValue   decimal.Decimal `json:"total_market_value"`
	TotalCostBasis     decimal.Decimal `json:"total_cost_basis"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
}

// Ledger 持仓账本
type Ledger struct {
	positions map[domain.PositionKey]domain.Position
	realized  decimal.Decimal
	now       func() time.Time
}

// New 创建账本
func New() *Ledger {
	return &Ledger{
		positions: make(map[domain.PositionKey]domain.Position),
		realized:  decimal.Zero,
		now:       time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (l *Ledger) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// RecordBuy 记录买入成交。
// 新键直接插入；已有键按份额加权合并均价：
// newAvg = (oldShares*oldAvg + newShares*newPrice) / (oldShares+newShares)
func (l *Ledger) RecordBuy(fill domain.Position) (domain.Position, error) {
	if !fill.Shares.IsPositive() || !fill.AvgEntryPrice.IsPositive() || fill.AvgEntryPrice.GreaterThan(decimal.NewFromInt(1)) {
		return domain.Position{}, fmt.Errorf("record buy %s: shares=%s price=%s: %w",
			fill.Key(), fill.Shares, fill.AvgEntryPrice, ErrInvalidAmount)
	}
	key := fill.Key()

	existing, ok := l.positions[key]
	if !ok {
		if fill.OpenedAt.IsZero() {
			fill.OpenedAt = l.now()
		}
		mark := fill.CurrentPrice
		if !mark.IsPositive() {
			mark = fill.AvgEntryPrice
		}
		pos := fill.Marked(mark)
		l.positions[key] = pos
		return pos, nil
	}

	totalShares := existing.Shares.Add(fill.Shares)
	totalCost := existing.Shares.Mul(existing.AvgEntryPrice).Add(fill.Shares.Mul(fill.AvgEntryPrice))

	merged := existing
	merged.Shares = totalShares
	merged.AvgEntryPrice = totalCost.Div(totalShares)
	mark := existing.CurrentPrice
	if fill.CurrentPrice.IsPositive() {
		mark = fill.CurrentPrice
	}
	if !mark.IsPositive() {
		mark = merged.AvgEntryPrice
	}
	merged = merged.Marked(mark)

	l.positions[key] = merged
	return merged, nil
}

// RecordSell 记录卖出。超过持仓份额的请求在修改前被拒绝；
// 剩余份额 < CloseEpsilon 时删除该仓位。均价不因卖出改变。
// sellPrice 用于计算已实现盈亏，<=0 时按当前标记价格计算。
func (l *Ledger) RecordSell(key domain.PositionKey, sharesSold, sellPrice decimal.Decimal) (SellOutcome, error) {
	pos, ok := l.positions[key]
	if !ok {
		return SellOutcome{}, fmt.Errorf("record sell %s: %w", key, ErrPositionNotFound)
	}
	if !sharesSold.IsPositive() {
		return SellOutcome{}, fmt.Errorf("record sell %s: shares=%s: %w", key, sharesSold, ErrInvalidAmount)
	}
	if sharesSold.GreaterThan(pos.Shares) {
		return SellOutcome{}, fmt.Errorf("record sell %s: sell=%s held=%s: %w", key, sharesSold, pos.Shares, ErrInsufficientShares)
	}

	price := sellPrice
	if !price.IsPositive() {
		price = pos.CurrentPrice
	}
	realized := price.Sub(pos.AvgEntryPrice).Mul(sharesSold)
	remaining := pos.Shares.Sub(sharesSold)

	l.realized = l.realized.Add(realized)
	if remaining.LessThan(domain.CloseEpsilon) {
		delete(l.positions, key)
		return SellOutcome{Remaining: decimal.Zero, Closed: true, RealizedPnL: realized}, nil
	}

	pos.Shares = remaining
	l.positions[key] = pos.Marked(pos.CurrentPrice)
	return SellOutcome{Remaining: remaining, RealizedPnL: realized}, nil
}

// MarkToMarket 按当前价格重算未实现盈亏
func (l *Ledger) MarkToMarket(key domain.PositionKey, currentPrice decimal.Decimal) (domain.Position, error) {
	pos, ok := l.positions[key]
	if !ok {
		return domain.Position{}, fmt.Errorf("mark %s: %w", key, ErrPositionNotFound)
	}
	if currentPrice.IsNegative() {
		return domain.Position{}, fmt.Errorf("mark %s: price=%s: %w", key, currentPrice, ErrInvalidAmount)
	}
	pos = pos.Marked(currentPrice)
	l.positions[key] = pos
	return pos, nil
}

// Get 获取仓位副本
func (l *Ledger) Get(key domain.PositionKey) (domain.Position, bool) {
	pos, ok := l.positions[key]
	return pos, ok
}

// Len 当前仓位数
func (l *Ledger) Len() int { return len(l.positions) }

// Positions 返回按开仓时间排序的仓位副本
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Summary 汇总所有仓位
func (l *Ledger) Summary() Summary {
	s := Summary{
		TotalUnrealizedPnL: decimal.Zero,
		TotalMarketValue:   decimal.Zero,
		TotalCostBasis:     decimal.Zero,
		RealizedPnL:        l.realized,
	}
	for _, p := range l.positions {
		s.Count++
		s.TotalUnrealizedPnL = s.TotalUnrealizedPnL.Add(p.UnrealizedPnL)
		s.TotalMarketValue = s.TotalMarketValue.Add(p.MarketValue())
		s.TotalCostBasis = s.TotalCostBasis.Add(p.CostBasis())
	}
	return s
}
