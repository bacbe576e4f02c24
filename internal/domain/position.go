package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseEpsilon 剩余份额低于该值视为平仓（吸收浮点/精度残差）
var CloseEpsilon = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// PositionKey 仓位唯一键
type PositionKey struct {
	MarketID  string
	OutcomeID string
}

func (k PositionKey) String() string { return k.MarketID + "/" + k.OutcomeID }

// Position 仓位领域模型
type Position struct {
	MarketID             string          `json:"market_id"`
	OutcomeID            string          `json:"outcome_id"`
	Outcome              Outcome         `json:"outcome"`
	Shares               decimal.Decimal `json:"shares"`          // 当前持仓份额 >= 0
	AvgEntryPrice        decimal.Decimal `json:"avg_entry_price"` // 买入成交的加权平均价，仅在买入时重算
	CurrentPrice         decimal.Decimal `json:"current_price"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	OpenedAt             time.Time       `json:"opened_at"`
}

// Key 返回仓位键
func (p Position) Key() PositionKey {
	return PositionKey{MarketID: p.MarketID, OutcomeID: p.OutcomeID}
}

// Marked 按当前价格重算未实现盈亏，返回新副本
func (p Position) Marked(currentPrice decimal.Decimal) Position {
	p.CurrentPrice = currentPrice
	diff := currentPrice.Sub(p.AvgEntryPrice)
	p.UnrealizedPnL = diff.Mul(p.Shares)
	if p.AvgEntryPrice.IsPositive() {
		p.UnrealizedPnLPercent = diff.Div(p.AvgEntryPrice).Mul(hundred)
	} else {
		p.UnrealizedPnLPercent = decimal.Zero
	}
	return p
}

// MarketValue 按当前价格计算的市值
func (p Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(p.Shares)
}

// CostBasis 总成本
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgEntryPrice.Mul(p.Shares)
}
