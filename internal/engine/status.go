package engine

import (
	"context"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/ledger"
	"github.com/shopspring/decimal"
)

// DecisionView 最近一次决策
type DecisionView struct {
	Action          domain.Action   `json:"action"`
	Reason          string          `json:"reason"`
	Confidence      int             `json:"confidence"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	RiskReward      decimal.Decimal `json:"risk_reward"`
	TicketPrice     decimal.Decimal `json:"ticket_price"`
	At              time.Time       `json:"at"`
}

// SnapshotView 当前市场快照
type SnapshotView struct {
	MarketID      string          `json:"market_id"`
	Slug          string          `json:"slug"`
	Threshold     decimal.Decimal `json:"threshold"`
	OutcomeAPrice decimal.Decimal `json:"outcome_a_price"`
	OutcomeBPrice decimal.Decimal `json:"outcome_b_price"`
	WindowEnd     time.Time       `json:"window_end"`
}

// Status 运营查询结果（在事件循环内生成的一致视图）
type Status struct {
	Mode           string          `json:"mode"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Trend          domain.Trend    `json:"trend"`
	LastTickAt     time.Time       `json:"last_tick_at"`
	Snapshot       *SnapshotView   `json:"snapshot,omitempty"`
	LastDecision   *DecisionView   `json:"last_decision,omitempty"`
	Ledger         ledger.Summary  `json:"ledger"`
}

// Status 通过事件循环读取状态
func (e *Engine) Status(ctx context.Context) (Status, error) {
	return query(ctx, e, e.status)
}

// Positions 通过事件循环读取持仓副本
func (e *Engine) Positions(ctx context.Context) ([]domain.Position, error) {
	return query(ctx, e, e.ledger.Positions)
}

// status 只在循环 goroutine 内调用
func (e *Engine) status() Status {
	st := Status{
		Mode:       e.deps.Mode(),
		LastTickAt: e.lastTickAt,
		Ledger:     e.ledger.Summary(),
	}
	if e.deps.Feed != nil {
		st.ReferencePrice = e.deps.Feed.CurrentPrice()
		st.Trend = e.deps.Feed.Trend(e.cfg.TrendWindow)
	}
	if e.hasSnapshot {
		s := e.snapshot
		st.Snapshot = &SnapshotView{
			MarketID:      s.MarketID,
			Slug:          s.Slug,
			Threshold:     s.ThresholdValue,
			OutcomeAPrice: s.OutcomeAPrice,
			OutcomeBPrice: s.OutcomeBPrice,
			WindowEnd:     s.WindowEnd,
		}
	}
	if r := e.lastDecision; r != nil {
		st.LastDecision = &DecisionView{
			Action:          r.decision.Action,
			Reason:          r.decision.Reason,
			Confidence:      r.decision.Confidence,
			SuggestedAmount: r.decision.SuggestedAmount,
			RiskReward:      r.decision.RiskReward,
			TicketPrice:     r.decision.TicketPrice,
			At:              r.at,
		}
	}
	return st
}
