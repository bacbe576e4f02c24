package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderValidity 订单有效方式
type OrderValidity string

const (
	// ValidityFOK 立即全部成交否则撤销（核心默认）
	ValidityFOK OrderValidity = "FOK"
	ValidityFAK OrderValidity = "FAK"
	ValidityGTC OrderValidity = "GTC"
)

// OrderRequest 下单请求
//
// Amount 的含义取决于方向：买入为报价货币金额（USDC），卖出为份额数量。
type OrderRequest struct {
	TokenID  string
	Side     Side
	Amount   decimal.Decimal
	Price    decimal.Decimal // 参考/限价，用于模拟成交与份额换算
	Validity OrderValidity
}

// ExecutionResult 每次调用执行网关的结果，创建后不再修改
type ExecutionResult struct {
	Success      bool
	OrderID      string
	ActualPrice  decimal.Decimal
	ActualAmount decimal.Decimal // 成交份额
	Error        string
	Timestamp    time.Time
}

// FailedResult 构造失败结果
func FailedResult(reason string, at time.Time) ExecutionResult {
	return ExecutionResult{Success: false, Error: reason, Timestamp: at}
}
