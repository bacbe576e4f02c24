package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "simulate", cfg.Mode)

	dec := cfg.DecisionConfig()
	assert.True(t, dec.BaseAmount.Equal(decimal.NewFromInt(5)))
	assert.True(t, dec.MaxTicketPrice.Equal(decimal.RequireFromString("0.75")))

	pol := cfg.ExitPolicy()
	require.Len(t, pol.Tiers, 3)
	assert.True(t, pol.Tiers[0].MinPnLPercent.Equal(decimal.NewFromInt(200)))
	assert.True(t, pol.StopLossPercent.Equal(decimal.NewFromInt(-20)))
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	p := writeFile(t, "bot.yaml", `
mode: simulate
decision:
  base_amount: 10
  max_ticket_price: 0.8
  min_ticket_price: 0.1
  distance_per_confidence: 10
  large_distance: 1000
  medium_distance: 500
  small_distance: 200
exit:
  tiers:
    - min_pnl_percent: 80
      sell_percent: 50
  stop_loss_percent: -30
  near_certainty_high: 0.97
  near_certainty_low: 0.03
engine:
  snapshot_interval: 15s
  analysis_interval: 2s
  trend_window: 30s
  max_entries_per_market: 2
  hedge_ratio: 0.25
risk:
  max_consecutive_errors: 3
  daily_loss_limit: 50
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Engine.SnapshotInterval)
	assert.Equal(t, 2, cfg.Engine.MaxEntriesPerMarket)
	assert.InDelta(t, 0.25, cfg.Engine.HedgeRatio, 1e-9)
	assert.Equal(t, int64(3), cfg.Risk.MaxConsecutiveErrors)
	assert.True(t, cfg.DecisionConfig().BaseAmount.Equal(decimal.NewFromInt(10)))

	pol := cfg.ExitPolicy()
	require.Len(t, pol.Tiers, 1)
	assert.Equal(t, "80% profit target", pol.Tiers[0].Reason)
	assert.True(t, pol.StopLossPercent.Equal(decimal.NewFromInt(-30)))

	// 未写出的字段保持默认
	assert.Equal(t, "btc-updown-15m", cfg.Market.SlugPrefix)
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "bot.json", `{"mode":"simulate","api_addr":"127.0.0.1:9999"}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.APIAddr)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	p := writeFile(t, "bot.toml", `mode = "simulate"`)
	_, err := Load(p)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_MODE", "LIVE")
	t.Setenv("BOT_BRIDGE_URL", "http://127.0.0.1:3001")
	t.Setenv("BOT_BASE_AMOUNT", "7.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.Mode)
	assert.Equal(t, "http://127.0.0.1:3001", cfg.Bridge.URL)
	assert.True(t, cfg.DecisionConfig().BaseAmount.Equal(decimal.RequireFromString("7.5")))
}

func TestEnvInvalidNumber(t *testing.T) {
	t.Setenv("BOT_HEDGE_RATIO", "abc")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"live without bridge", func(c *Config) { c.Mode = "live"; c.Bridge.URL = "" }},
		{"unknown mode", func(c *Config) { c.Mode = "paper" }},
		{"zero base amount", func(c *Config) { c.Decision.BaseAmount = 0 }},
		{"positive stop loss", func(c *Config) { c.Exit.StopLossPercent = 5 }},
		{"unsorted tiers", func(c *Config) {
			c.Exit.Tiers = []TierConfig{{MinPnLPercent: 50, SellPercent: 25}, {MinPnLPercent: 100, SellPercent: 35}}
		}},
		{"hedge ratio above one", func(c *Config) { c.Engine.HedgeRatio = 1.5 }},
		{"empty stream url", func(c *Config) { c.Stream.URL = "" }},
		{"negative loss limit", func(c *Config) { c.Risk.DailyLossLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "yml", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().ExitPolicy(), cfg.ExitPolicy())
	assert.Equal(t, 30*time.Second, cfg.Engine.SnapshotInterval)
}
