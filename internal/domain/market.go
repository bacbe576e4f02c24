package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome 二元市场中的一侧。A 为 Up/YES 一侧，B 为 Down/NO 一侧。
type Outcome string

const (
	OutcomeA Outcome = "A"
	OutcomeB Outcome = "B"
)

// Opposite 返回另一侧
func (o Outcome) Opposite() Outcome {
	if o == OutcomeA {
		return OutcomeB
	}
	return OutcomeA
}

// IsYesLike A 侧在参考价高于阈值时获胜
func (o Outcome) IsYesLike() bool { return o == OutcomeA }

// MarketSnapshot 市场快照（每次轮询整体替换，不做局部更新）
//
// OutcomeAPrice 与 OutcomeBPrice 是两个独立报价，不要求相加为 1。
type MarketSnapshot struct {
	MarketID       string          // 市场 ID（condition id）
	Slug           string          // 市场 slug，例如 btc-updown-15m-1765985400
	ThresholdValue decimal.Decimal // 阈值/目标价（本周期开盘价）
	OutcomeAID     string          // Up token ID
	OutcomeBID     string          // Down token ID
	OutcomeAPrice  decimal.Decimal // Up 报价 [0,1]
	OutcomeBPrice  decimal.Decimal // Down 报价 [0,1]
	WindowStart    time.Time
	WindowEnd      time.Time
}

// IsValid 验证快照是否可用于决策
func (s MarketSnapshot) IsValid() bool {
	return s.MarketID != "" && s.OutcomeAID != "" && s.OutcomeBID != "" && s.ThresholdValue.IsPositive()
}

// OutcomeID 根据一侧获取 token ID
func (s MarketSnapshot) OutcomeID(o Outcome) string {
	if o == OutcomeA {
		return s.OutcomeAID
	}
	return s.OutcomeBID
}

// OutcomePrice 根据一侧获取报价
func (s MarketSnapshot) OutcomePrice(o Outcome) decimal.Decimal {
	if o == OutcomeA {
		return s.OutcomeAPrice
	}
	return s.OutcomeBPrice
}

// OutcomeFor 反查 token 属于哪一侧
func (s MarketSnapshot) OutcomeFor(tokenID string) (Outcome, bool) {
	switch tokenID {
	case s.OutcomeAID:
		return OutcomeA, true
	case s.OutcomeBID:
		return OutcomeB, true
	}
	return "", false
}

// Contains 判断时间点是否落在本市场窗口内
func (s MarketSnapshot) Contains(t time.Time) bool {
	return !t.Before(s.WindowStart) && t.Before(s.WindowEnd)
}
