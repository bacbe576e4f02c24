// Package exitpolicy 分阶段退出规则：分档止盈、止损与接近确定时全部平仓。
package exitpolicy

import (
	"fmt"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
)

// Tier 止盈档位：未实现盈亏百分比 >= MinPnLPercent 时卖出 SellPercent
type Tier struct {
	MinPnLPercent decimal.Decimal
	SellPercent   decimal.Decimal
	Reason        string
}

// Kind 退出指令类型
type Kind string

const (
	KindProfitTier    Kind = "profit_tier"
	KindStopLoss      Kind = "stop_loss"
	KindNearCertainty Kind = "near_certainty"
)

// Instruction 退出指令
type Instruction struct {
	Kind        Kind
	SellPercent decimal.Decimal
	Reason      string
}

// IsFull 是否为全部平仓
func (i Instruction) IsFull() bool { return i.SellPercent.GreaterThanOrEqual(hundred) }

// Policy 退出规则
type Policy struct {
	Tiers             []Tier          // 按 MinPnLPercent 从高到低匹配，命中第一个
	StopLossPercent   decimal.Decimal // <= 该值全部止损（负数）
	NearCertaintyHigh decimal.Decimal // yes 侧价格 >= 该值
	NearCertaintyLow  decimal.Decimal // no 侧价格 <= 该值
}

var hundred = decimal.NewFromInt(100)

// DefaultPolicy 默认规则：200%→40%，100%→35%，50%→25%，-20% 止损
func DefaultPolicy() Policy {
	return Policy{
		Tiers: []Tier{
			{MinPnLPercent: decimal.NewFromInt(200), SellPercent: decimal.NewFromInt(40), Reason: "200% profit target"},
			{MinPnLPercent: decimal.NewFromInt(100), SellPercent: decimal.NewFromInt(35), Reason: "100% profit target"},
			{MinPnLPercent: decimal.NewFromInt(50), SellPercent: decimal.NewFromInt(25), Reason: "50% profit target"},
		},
		StopLossPercent:   decimal.NewFromInt(-20),
		NearCertaintyHigh: decimal.RequireFromString("0.95"),
		NearCertaintyLow:  decimal.RequireFromString("0.05"),
	}
}

// Validate 验证规则
func (p Policy) Validate() error {
	for i, t := range p.Tiers {
		if !t.SellPercent.IsPositive() || t.SellPercent.GreaterThan(hundred) {
			return fmt.Errorf("tiers[%d].sell_percent 必须在 (0, 100] 范围内", i)
		}
		if i > 0 && t.MinPnLPercent.GreaterThanOrEqual(p.Tiers[i-1].MinPnLPercent) {
			return fmt.Errorf("tiers 必须按 min_pnl_percent 从高到低排列")
		}
	}
	if !p.StopLossPercent.IsNegative() {
		return fmt.Errorf("stop_loss_percent 必须 < 0")
	}
	if p.NearCertaintyLow.GreaterThanOrEqual(p.NearCertaintyHigh) {
		return fmt.Errorf("near_certainty_low 必须小于 near_certainty_high")
	}
	return nil
}

// Evaluate 对已按当前价标记的仓位求值。
// 分档与止损互斥（第一个命中者生效）；接近确定规则独立判断，可与分档在同一周期同时触发。
func (p Policy) Evaluate(pos domain.Position) []Instruction {
	var out []Instruction

	pct := pos.UnrealizedPnLPercent
	matched := false
	for _, t := range p.Tiers {
		if pct.GreaterThanOrEqual(t.MinPnLPercent) {
			out = append(out, Instruction{Kind: KindProfitTier, SellPercent: t.SellPercent, Reason: t.Reason})
			matched = true
			break
		}
	}
	if !matched && pct.LessThanOrEqual(p.StopLossPercent) {
		out = append(out, Instruction{Kind: KindStopLoss, SellPercent: hundred, Reason: "stop loss"})
	}

	price := pos.CurrentPrice
	if (pos.Outcome.IsYesLike() && price.GreaterThanOrEqual(p.NearCertaintyHigh)) ||
		(!pos.Outcome.IsYesLike() && price.LessThanOrEqual(p.NearCertaintyLow)) {
		out = append(out, Instruction{Kind: KindNearCertainty, SellPercent: hundred, Reason: "near certainty"})
	}
	return out
}
