package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/oddsbot/internal/decision"
	"github.com/betbot/oddsbot/internal/engine"
	"github.com/betbot/oddsbot/internal/execution"
	"github.com/betbot/oddsbot/internal/exitpolicy"
	"github.com/betbot/oddsbot/internal/market"
	"github.com/betbot/oddsbot/internal/refprice"
	"github.com/betbot/oddsbot/internal/risk"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"` // 天
	Compress   bool   `yaml:"compress" json:"compress"`
	ByCycle    bool   `yaml:"by_cycle" json:"by_cycle"` // 按 15 分钟周期命名日志文件
}

// DecisionConfig 决策参数（YAML 使用浮点，运行时转为 decimal）
type DecisionConfig struct {
	MinDistance           float64 `yaml:"min_distance" json:"min_distance"`
	MaxTicketPrice        float64 `yaml:"max_ticket_price" json:"max_ticket_price"`
	MinTicketPrice        float64 `yaml:"min_ticket_price" json:"min_ticket_price"`
	BaseAmount            float64 `yaml:"base_amount" json:"base_amount"`
	DistancePerConfidence float64 `yaml:"distance_per_confidence" json:"distance_per_confidence"`
	MaxBaseConfidence     float64 `yaml:"max_base_confidence" json:"max_base_confidence"`
	TrendAgreeBonus       float64 `yaml:"trend_agree_bonus" json:"trend_agree_bonus"`
	TrendOpposePenalty    float64 `yaml:"trend_oppose_penalty" json:"trend_oppose_penalty"`
	LargeDistance         float64 `yaml:"large_distance" json:"large_distance"`
	LargeMultiplier       float64 `yaml:"large_multiplier" json:"large_multiplier"`
	MediumDistance        float64 `yaml:"medium_distance" json:"medium_distance"`
	MediumMultiplier      float64 `yaml:"medium_multiplier" json:"medium_multiplier"`
	SmallDistance         float64 `yaml:"small_distance" json:"small_distance"`
	SmallMultiplier       float64 `yaml:"small_multiplier" json:"small_multiplier"`
}

// TierConfig 止盈档位
type TierConfig struct {
	MinPnLPercent float64 `yaml:"min_pnl_percent" json:"min_pnl_percent"`
	SellPercent   float64 `yaml:"sell_percent" json:"sell_percent"`
	Reason        string  `yaml:"reason" json:"reason"`
}

// ExitConfig 退出规则
type ExitConfig struct {
	Tiers             []TierConfig  `yaml:"tiers" json:"tiers"`
	StopLossPercent   float64       `yaml:"stop_loss_percent" json:"stop_loss_percent"`
	NearCertaintyHigh float64       `yaml:"near_certainty_high" json:"near_certainty_high"`
	NearCertaintyLow  float64       `yaml:"near_certainty_low" json:"near_certainty_low"`
	PriceSide         string        `yaml:"price_side" json:"price_side"` // CLOB 取价方向，默认 sell
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// Config 应用配置
type Config struct {
	Mode        string                 `yaml:"mode" json:"mode"` // live | simulate
	Log         LogConfig              `yaml:"log" json:"log"`
	Stream      refprice.StreamConfig  `yaml:"stream" json:"stream"`
	Market      market.Config          `yaml:"market" json:"market"`
	Bridge      execution.BridgeConfig `yaml:"bridge" json:"bridge"`
	Decision    DecisionConfig         `yaml:"decision" json:"decision"`
	Exit        ExitConfig             `yaml:"exit" json:"exit"`
	Engine      engine.Config          `yaml:"engine" json:"engine"`
	Risk        risk.Config            `yaml:"risk" json:"risk"`
	DedupTTL    time.Duration          `yaml:"dedup_ttl" json:"dedup_ttl"`
	MetricsAddr string                 `yaml:"metrics_addr" json:"metrics_addr"` // 为空不启动
	APIAddr     string                 `yaml:"api_addr" json:"api_addr"`         // 为空不启动
	JournalPath string                 `yaml:"journal_path" json:"journal_path"` // 为空不记录
}

// Default 默认配置
func Default() *Config {
	dec := decision.DefaultConfig()
	pol := exitpolicy.DefaultPolicy()

	tiers := make([]TierConfig, 0, len(pol.Tiers))
	for _, t := range pol.Tiers {
		tiers = append(tiers, TierConfig{MinPnLPercent: t.MinPnLPercent.InexactFloat64(), SellPercent: t.SellPercent.InexactFloat64(), Reason: t.Reason})
	}

	return &Config{
		Mode: execution.ModeSimulate,
		Log: LogConfig{
			Level:      "info",
			File:       "logs/oddsbot.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Stream: refprice.DefaultStreamConfig(),
		Market: market.DefaultConfig(),
		Bridge: execution.BridgeConfig{Timeout: 10 * time.Second},
		Decision: DecisionConfig{
			MinDistance:           dec.MinDistance.InexactFloat64(),
			MaxTicketPrice:        dec.MaxTicketPrice.InexactFloat64(),
			MinTicketPrice:        dec.MinTicketPrice.InexactFloat64(),
			BaseAmount:            dec.BaseAmount.InexactFloat64(),
			DistancePerConfidence: dec.DistancePerConfidence.InexactFloat64(),
			MaxBaseConfidence:     dec.MaxBaseConfidence.InexactFloat64(),
			TrendAgreeBonus:       dec.TrendAgreeBonus.InexactFloat64(),
			TrendOpposePenalty:    dec.TrendOpposePenalty.InexactFloat64(),
			LargeDistance:         dec.LargeDistance.InexactFloat64(),
			LargeMultiplier:       dec.LargeMultiplier.InexactFloat64(),
			MediumDistance:        dec.MediumDistance.InexactFloat64(),
			MediumMultiplier:      dec.MediumMultiplier.InexactFloat64(),
			SmallDistance:         dec.SmallDistance.InexactFloat64(),
			SmallMultiplier:       dec.SmallMultiplier.InexactFloat64(),
		},
		Exit: ExitConfig{
			Tiers:             tiers,
			StopLossPercent:   pol.StopLossPercent.InexactFloat64(),
			NearCertaintyHigh: pol.NearCertaintyHigh.InexactFloat64(),
			NearCertaintyLow:  pol.NearCertaintyLow.InexactFloat64(),
			PriceSide:         "sell",
			FetchTimeout:      5 * time.Second,
		},
		Engine:      engine.DefaultConfig(),
		Risk:        risk.Config{MaxConsecutiveErrors: 5},
		DedupTTL:    2 * time.Second,
		MetricsAddr: "127.0.0.1:9090",
		APIAddr:     "127.0.0.1:8080",
		JournalPath: "data/journal.db",
	}
}

// Load 加载配置：默认值 <- 配置文件 <- .env / 环境变量
func Load(filePath string) (*Config, error) {
	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

// applyEnv 环境变量覆盖（优先级最高）
func (c *Config) applyEnv() error {
	c.Mode = getEnv("BOT_MODE", c.Mode)
	c.Log.Level = getEnv("BOT_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("BOT_LOG_FILE", c.Log.File)
	c.Bridge.URL = getEnv("BOT_BRIDGE_URL", c.Bridge.URL)
	c.APIAddr = getEnv("BOT_API_ADDR", c.APIAddr)
	c.MetricsAddr = getEnv("BOT_METRICS_ADDR", c.MetricsAddr)
	c.JournalPath = getEnv("BOT_JOURNAL_PATH", c.JournalPath)

	var err error
	if c.Decision.BaseAmount, err = parseFloatEnv("BOT_BASE_AMOUNT", c.Decision.BaseAmount); err != nil {
		return err
	}
	if c.Engine.HedgeRatio, err = parseFloatEnv("BOT_HEDGE_RATIO", c.Engine.HedgeRatio); err != nil {
		return err
	}
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case execution.ModeSimulate:
	case execution.ModeLive:
		if strings.TrimSpace(c.Bridge.URL) == "" {
			return fmt.Errorf("实盘模式需要配置 bridge.url（或 BOT_BRIDGE_URL）")
		}
	default:
		return fmt.Errorf("mode 必须为 live 或 simulate，当前为 %q", c.Mode)
	}

	if err := c.DecisionConfig().Validate(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	if err := c.ExitPolicy().Validate(); err != nil {
		return fmt.Errorf("exit: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Stream.URL == "" {
		return fmt.Errorf("stream.url 不能为空")
	}
	return nil
}

// DecisionConfig 转为决策引擎参数
func (c *Config) DecisionConfig() decision.Config {
	d := c.Decision
	return decision.Config{
		MinDistance:           decimal.NewFromFloat(d.MinDistance),
		MaxTicketPrice:        decimal.NewFromFloat(d.MaxTicketPrice),
		MinTicketPrice:        decimal.NewFromFloat(d.MinTicketPrice),
		BaseAmount:            decimal.NewFromFloat(d.BaseAmount),
		DistancePerConfidence: decimal.NewFromFloat(d.DistancePerConfidence),
		MaxBaseConfidence:     decimal.NewFromFloat(d.MaxBaseConfidence),
		TrendAgreeBonus:       decimal.NewFromFloat(d.TrendAgreeBonus),
		TrendOpposePenalty:    decimal.NewFromFloat(d.TrendOpposePenalty),
		LargeDistance:         decimal.NewFromFloat(d.LargeDistance),
		LargeMultiplier:       decimal.NewFromFloat(d.LargeMultiplier),
		MediumDistance:        decimal.NewFromFloat(d.MediumDistance),
		MediumMultiplier:      decimal.NewFromFloat(d.MediumMultiplier),
		SmallDistance:         decimal.NewFromFloat(d.SmallDistance),
		SmallMultiplier:       decimal.NewFromFloat(d.SmallMultiplier),
	}
}

// ExitPolicy 转为退出规则
func (c *Config) ExitPolicy() exitpolicy.Policy {
	p := exitpolicy.Policy{
		StopLossPercent:   decimal.NewFromFloat(c.Exit.StopLossPercent),
		NearCertaintyHigh: decimal.NewFromFloat(c.Exit.NearCertaintyHigh),
		NearCertaintyLow:  decimal.NewFromFloat(c.Exit.NearCertaintyLow),
	}
	for _, t := range c.Exit.Tiers {
		reason := t.Reason
		if reason == "" {
			reason = fmt.Sprintf("%s%% profit target", strconv.FormatFloat(t.MinPnLPercent, 'f', -1, 64))
		}
		p.Tiers = append(p.Tiers, exitpolicy.Tier{
			MinPnLPercent: decimal.NewFromFloat(t.MinPnLPercent),
			SellPercent:   decimal.NewFromFloat(t.SellPercent),
			Reason:        reason,
		})
	}
	return p
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("环境变量 %s 不是合法数字: %q", key, value)
	}
	return v, nil
}
