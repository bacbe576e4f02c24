// Package decision 把参考价、市场快照与趋势组合成交易决策。
//
// Evaluate 是纯函数：相同输入总是得到完全相同的 TradeDecision。
package decision

import (
	"fmt"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Evaluate 计算交易决策
func Evaluate(cfg Config, referencePrice decimal.Decimal, snap domain.MarketSnapshot, trend domain.Trend) domain.TradeDecision {
	distance := referencePrice.Sub(snap.ThresholdValue)
	absDistance := distance.Abs()

	if absDistance.LessThan(cfg.MinDistance) {
		return skip(distance, fmt.Sprintf("距离不足: |%s| < %s (差 %s)",
			distance.StringFixed(2), cfg.MinDistance.String(), cfg.MinDistance.Sub(absDistance).StringFixed(2)))
	}

	side := domain.OutcomeB
	if distance.IsPositive() {
		side = domain.OutcomeA
	}
	p := snap.OutcomePrice(side)

	if !p.IsPositive() {
		return skip(distance, fmt.Sprintf("side %s 无有效报价", side))
	}
	if p.GreaterThan(cfg.MaxTicketPrice) {
		return skip(distance, fmt.Sprintf("报价过高: %s > %s，剩余空间不足", p.String(), cfg.MaxTicketPrice.String()))
	}
	if p.LessThan(cfg.MinTicketPrice) {
		return skip(distance, fmt.Sprintf("报价过低: %s < %s，疑似已成定局", p.String(), cfg.MinTicketPrice.String()))
	}

	riskReward := one.Sub(p).Div(p)

	raw := decimal.Min(cfg.MaxBaseConfidence, absDistance.Div(cfg.DistancePerConfidence))
	switch {
	case trend.Favors(side):
		raw = raw.Add(cfg.TrendAgreeBonus)
	case trend.Opposes(side):
		raw = raw.Sub(cfg.TrendOpposePenalty)
	}

	amount := cfg.BaseAmount.Mul(sizeMultiplier(cfg, absDistance))

	return domain.TradeDecision{
		Action:          domain.ActionFor(side),
		Reason:          fmt.Sprintf("距离=%s 报价=%s 风险收益比=%s 趋势=%s 置信度=%s", distance.StringFixed(2), p.String(), riskReward.StringFixed(2), trend, raw.StringFixed(1)),
		Confidence:      clampConfidence(raw),
		RawConfidence:   raw,
		SuggestedAmount: amount,
		RiskReward:      riskReward,
		Side:            side,
		TicketPrice:     p,
		Distance:        distance,
	}
}

func skip(distance decimal.Decimal, reason string) domain.TradeDecision {
	return domain.TradeDecision{
		Action:          domain.ActionSkip,
		Reason:          reason,
		RawConfidence:   decimal.Zero,
		SuggestedAmount: decimal.Zero,
		RiskReward:      decimal.Zero,
		TicketPrice:     decimal.Zero,
		Distance:        distance,
	}
}

func sizeMultiplier(cfg Config, absDistance decimal.Decimal) decimal.Decimal {
	switch {
	case absDistance.GreaterThanOrEqual(cfg.LargeDistance):
		return cfg.LargeMultiplier
	case absDistance.GreaterThanOrEqual(cfg.MediumDistance):
		return cfg.MediumMultiplier
	case absDistance.LessThan(cfg.SmallDistance):
		return cfg.SmallMultiplier
	}
	return one
}

func clampConfidence(raw decimal.Decimal) int {
	if raw.IsNegative() {
		return 0
	}
	if raw.GreaterThan(hundred) {
		return 100
	}
	return int(raw.IntPart())
}
