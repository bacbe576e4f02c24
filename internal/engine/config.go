package engine

import (
	"fmt"
	"time"
)

// Config 事件循环参数
type Config struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval" json:"snapshot_interval"`
	AnalysisInterval time.Duration `yaml:"analysis_interval" json:"analysis_interval"`
	SnapshotTimeout  time.Duration `yaml:"snapshot_timeout" json:"snapshot_timeout"`
	TrendWindow      time.Duration `yaml:"trend_window" json:"trend_window"`

	// MaxEntriesPerMarket 每个市场周期最多开仓次数
	MaxEntriesPerMarket int `yaml:"max_entries_per_market" json:"max_entries_per_market"`
	// HedgeRatio > 0 时，开仓后按 HedgeRatio × 金额买入另一侧
	HedgeRatio float64 `yaml:"hedge_ratio" json:"hedge_ratio"`
}

func DefaultConfig() Config {
	return Config{
		SnapshotInterval:    30 * time.Second,
		AnalysisInterval:    5 * time.Second,
		SnapshotTimeout:     10 * time.Second,
		TrendWindow:         time.Minute,
		MaxEntriesPerMarket: 1,
	}
}

func (c Config) Validate() error {
	if c.SnapshotInterval <= 0 || c.AnalysisInterval <= 0 {
		return fmt.Errorf("engine: snapshot_interval / analysis_interval 必须 > 0")
	}
	if c.TrendWindow <= 0 {
		return fmt.Errorf("engine.trend_window 必须 > 0")
	}
	if c.MaxEntriesPerMarket < 1 {
		return fmt.Errorf("engine.max_entries_per_market 必须 >= 1")
	}
	if c.HedgeRatio < 0 || c.HedgeRatio > 1 {
		return fmt.Errorf("engine.hedge_ratio 必须在 [0,1] 范围内")
	}
	return nil
}
