package domain

import "github.com/shopspring/decimal"

// Action 决策动作
type Action string

const (
	ActionSkip     Action = "skip"
	ActionBuySideA Action = "buy_side_a"
	ActionBuySideB Action = "buy_side_b"
)

// ActionFor 返回买入某一侧对应的动作
func ActionFor(o Outcome) Action {
	if o == OutcomeA {
		return ActionBuySideA
	}
	return ActionBuySideB
}

// TradeDecision 决策结果，是输入的纯函数
type TradeDecision struct {
	Action          Action
	Reason          string
	Confidence      int             // 读取时截断到 [0,100]
	RawConfidence   decimal.Decimal // 未截断的置信度
	SuggestedAmount decimal.Decimal // 建议下单金额（USDC）
	RiskReward      decimal.Decimal
	Side            Outcome         // Skip 时为空
	TicketPrice     decimal.Decimal // 所选一侧的报价
	Distance        decimal.Decimal // 参考价 - 阈值
}

// IsBuy 是否为买入决策
func (d TradeDecision) IsBuy() bool {
	return d.Action == ActionBuySideA || d.Action == ActionBuySideB
}
