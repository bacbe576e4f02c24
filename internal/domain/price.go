package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint 参考价格采样（不可变）
type PricePoint struct {
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Trend 短期趋势
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Favors 趋势是否与某一侧方向一致
func (t Trend) Favors(o Outcome) bool {
	return (t == TrendUp && o == OutcomeA) || (t == TrendDown && o == OutcomeB)
}

// Opposes 趋势是否与某一侧方向相反
func (t Trend) Opposes(o Outcome) bool {
	return (t == TrendUp && o == OutcomeB) || (t == TrendDown && o == OutcomeA)
}
