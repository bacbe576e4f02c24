package refprice

import (
	"context"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/pkg/restclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const DefaultBinanceURL = "https://api.binance.com"

// BinanceSeeder 通过 Binance 行情接口取一次最新价
type BinanceSeeder struct {
	http   *restclient.Client
	symbol string
	now    func() time.Time
}

func NewBinanceSeeder(baseURL, symbol string) *BinanceSeeder {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	return &BinanceSeeder{
		http:   restclient.New(baseURL, restclient.Options{Timeout: 10 * time.Second, RetryCount: 2}),
		symbol: symbol,
		now:    time.Now,
	}
}

type tickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

func (s *BinanceSeeder) Seed(ctx context.Context) (domain.PricePoint, error) {
	var out tickerPrice
	if err := s.http.Get(ctx, "/api/v3/ticker/price", map[string]any{"symbol": s.symbol}, &out); err != nil {
		return domain.PricePoint{}, err
	}
	if !out.Price.IsPositive() {
		return domain.PricePoint{}, errors.Errorf("invalid seed price for %s: %s", s.symbol, out.Price)
	}
	return domain.PricePoint{Price: out.Price, ObservedAt: s.now()}, nil
}
