package ports

import (
	"context"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
)

// Small capability interfaces shared across layers (engine/exitpolicy/hedge/execution).
//
// NOTE: defined in a neutral package to avoid circular dependencies between
// the engine and the adapters that implement them.

// OrderSubmitter submits a single order. Every call yields an ExecutionResult;
// failures are reported through Success=false, never retried here.
type OrderSubmitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult
}

// OutcomePriceGetter returns the current quoted price of an outcome token.
type OutcomePriceGetter interface {
	Price(ctx context.Context, tokenID string) (decimal.Decimal, error)
}
