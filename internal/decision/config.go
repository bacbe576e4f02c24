package decision

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config 决策引擎参数，所有阈值/权重均为具名字段，保持 Evaluate 纯函数
type Config struct {
	MinDistance    decimal.Decimal // 参考价与阈值的最小距离，低于此值视为噪音
	MaxTicketPrice decimal.Decimal // 报价上限，高于此值剩余空间不足
	MinTicketPrice decimal.Decimal // 报价下限，低于此值大概率已成定局
	BaseAmount     decimal.Decimal // 基础下单金额（USDC）

	DistancePerConfidence decimal.Decimal // 每 1 点置信度对应的距离
	MaxBaseConfidence     decimal.Decimal // 距离部分的置信度上限
	TrendAgreeBonus       decimal.Decimal // 趋势一致加分
	TrendOpposePenalty    decimal.Decimal // 趋势相反减分

	LargeDistance    decimal.Decimal // 距离 >= LargeDistance 使用 LargeMultiplier
	LargeMultiplier  decimal.Decimal
	MediumDistance   decimal.Decimal // 距离 >= MediumDistance 使用 MediumMultiplier
	MediumMultiplier decimal.Decimal
	SmallDistance    decimal.Decimal // 距离 < SmallDistance 使用 SmallMultiplier
	SmallMultiplier  decimal.Decimal
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		MinDistance:           decimal.NewFromInt(100),
		MaxTicketPrice:        decimal.RequireFromString("0.75"),
		MinTicketPrice:        decimal.RequireFromString("0.10"),
		BaseAmount:            decimal.NewFromInt(5),
		DistancePerConfidence: decimal.NewFromInt(10),
		MaxBaseConfidence:     decimal.NewFromInt(100),
		TrendAgreeBonus:       decimal.NewFromInt(15),
		TrendOpposePenalty:    decimal.NewFromInt(10),
		LargeDistance:         decimal.NewFromInt(1000),
		LargeMultiplier:       decimal.NewFromInt(2),
		MediumDistance:        decimal.NewFromInt(500),
		MediumMultiplier:      decimal.RequireFromString("1.5"),
		SmallDistance:         decimal.NewFromInt(200),
		SmallMultiplier:       decimal.RequireFromString("0.5"),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MinDistance.IsNegative() {
		return fmt.Errorf("min_distance 不能为负数")
	}
	if !c.MaxTicketPrice.IsPositive() || c.MaxTicketPrice.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max_ticket_price 必须在 (0, 1] 范围内")
	}
	if c.MinTicketPrice.IsNegative() || c.MinTicketPrice.GreaterThanOrEqual(c.MaxTicketPrice) {
		return fmt.Errorf("min_ticket_price 必须 >= 0 且小于 max_ticket_price")
	}
	if !c.BaseAmount.IsPositive() {
		return fmt.Errorf("base_amount 必须 > 0")
	}
	if !c.DistancePerConfidence.IsPositive() {
		return fmt.Errorf("distance_per_confidence 必须 > 0")
	}
	if c.MediumDistance.GreaterThan(c.LargeDistance) || c.SmallDistance.GreaterThan(c.MediumDistance) {
		return fmt.Errorf("仓位档位必须满足: small_distance <= medium_distance <= large_distance")
	}
	if c.LargeMultiplier.IsNegative() || c.MediumMultiplier.IsNegative() || c.SmallMultiplier.IsNegative() {
		return fmt.Errorf("仓位倍数不能为负数")
	}
	return nil
}
