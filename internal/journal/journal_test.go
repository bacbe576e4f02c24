package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	j.SetModeFunc(func() string { return "simulate" })

	ctx := context.Background()
	t0 := time.Date(2025, 12, 17, 15, 30, 0, 0, time.UTC)
	buy := domain.OrderRequest{TokenID: "up", Side: domain.SideBuy, Amount: decimal.RequireFromString("2.5"), Price: decimal.RequireFromString("0.4")}
	require.NoError(t, j.Record(ctx, buy, domain.ExecutionResult{
		Success: true, OrderID: "sim-1", ActualPrice: decimal.RequireFromString("0.4"), ActualAmount: decimal.RequireFromString("6.25"), Timestamp: t0,
	}))
	sell := domain.OrderRequest{TokenID: "up", Side: domain.SideSell, Amount: decimal.RequireFromString("6.25"), Price: decimal.RequireFromString("0.9")}
	require.NoError(t, j.Record(ctx, sell, domain.FailedResult("no liquidity", t0.Add(time.Minute))))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.SideSell, entries[0].Side)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "no liquidity", entries[0].Error)

	assert.Equal(t, "sim-1", entries[1].OrderID)
	assert.Equal(t, "simulate", entries[1].Mode)
	assert.True(t, entries[1].ActualAmount.Equal(decimal.RequireFromString("6.25")))
	assert.True(t, entries[1].At.Equal(t0))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
