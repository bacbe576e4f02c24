package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/oddsbot/pkg/restclient"
	"github.com/shopspring/decimal"
)

// CLOBPriceSource 从 CLOB 获取单个 outcome 的当前报价，用于退出策略估值。
type CLOBPriceSource struct {
	http *restclient.Client
	side string
}

// NewCLOBPriceSource side 为空时使用 sell（即卖出可得价格）
func NewCLOBPriceSource(baseURL, side string, timeout time.Duration) *CLOBPriceSource {
	side = strings.ToLower(strings.TrimSpace(side))
	if side == "" {
		side = "sell"
	}
	return &CLOBPriceSource{
		http: restclient.New(baseURL, restclient.Options{Timeout: timeout, RetryCount: 1, RateLimit: 10, Burst: 10, TripAfter: 5}),
		side: side,
	}
}

type priceResponse struct {
	Price decimal.Decimal `json:"price"`
}

func (s *CLOBPriceSource) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	if tokenID == "" {
		return decimal.Zero, fmt.Errorf("empty token id")
	}
	var out priceResponse
	if err := s.http.Get(ctx, "/price", map[string]any{"token_id": tokenID, "side": s.side}, &out); err != nil {
		return decimal.Zero, err
	}
	if out.Price.IsNegative() || out.Price.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("price out of range for %s: %s", tokenID, out.Price)
	}
	return out.Price, nil
}
