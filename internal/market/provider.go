package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/pkg/cache"
	"github.com/betbot/oddsbot/pkg/restclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "market")

// ErrMarketNotFound 当前周期没有可交易的市场
var ErrMarketNotFound = errors.New("market not found")

// Provider 返回当前周期的市场快照
type Provider interface {
	Current(ctx context.Context) (domain.MarketSnapshot, error)
}

const (
	DefaultGammaURL       = "https://gamma-api.polymarket.com"
	DefaultCryptoPriceURL = "https://polymarket.com"
	DefaultCLOBURL        = "https://clob.polymarket.com"
)

// Config 市场数据源配置
type Config struct {
	GammaURL       string        `yaml:"gamma_url" json:"gamma_url"`
	CryptoPriceURL string        `yaml:"crypto_price_url" json:"crypto_price_url"`
	CLOBURL        string        `yaml:"clob_url" json:"clob_url"`
	SlugPrefix     string        `yaml:"slug_prefix" json:"slug_prefix"`
	Symbol         string        `yaml:"symbol" json:"symbol"`
	Window         time.Duration `yaml:"window" json:"window"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		GammaURL:       DefaultGammaURL,
		CryptoPriceURL: DefaultCryptoPriceURL,
		CLOBURL:        DefaultCLOBURL,
		SlugPrefix:     "btc-updown-15m",
		Symbol:         "BTC",
		Window:         15 * time.Minute,
		Timeout:        10 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.GammaURL == "" || c.CryptoPriceURL == "" || c.CLOBURL == "" {
		return fmt.Errorf("market: gamma_url / crypto_price_url / clob_url 不能为空")
	}
	if c.SlugPrefix == "" {
		return fmt.Errorf("market.slug_prefix 不能为空")
	}
	if c.Window < time.Minute {
		return fmt.Errorf("market.window 必须 >= 1m")
	}
	return nil
}

// WindowStart 周期开始时间（按 Unix 时间对齐）
func WindowStart(t time.Time, window time.Duration) time.Time {
	sec := int64(window / time.Second)
	ts := t.Unix()
	return time.Unix(ts-ts%sec, 0).UTC()
}

// Slug 当前周期市场 slug，例如 btc-updown-15m-1765985400
func Slug(prefix string, start time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, start.Unix())
}

// GammaProvider 从 Gamma 获取当前周期市场，并从 crypto-price 接口获取本周期开盘价作为阈值。
type GammaProvider struct {
	cfg    Config
	gamma  *restclient.Client
	crypto *restclient.Client
	now    func() time.Time

	// 周期开盘价在周期内不变，按周期起点缓存
	thresholds *cache.TTL[int64, decimal.Decimal]
}

func NewGammaProvider(cfg Config) *GammaProvider {
	opt := restclient.Options{Timeout: cfg.Timeout, RetryCount: 2, RateLimit: 5, Burst: 5, TripAfter: 5}
	return &GammaProvider{
		cfg:        cfg,
		gamma:      restclient.New(cfg.GammaURL, opt),
		crypto:     restclient.New(cfg.CryptoPriceURL, opt),
		now:        time.Now,
		thresholds: cache.NewTTL[int64, decimal.Decimal](2*cfg.Window, 8),
	}
}

// SetClock 测试用
func (p *GammaProvider) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
		p.thresholds.SetClock(now)
	}
}

// gammaMarket Gamma 的数组字段以 JSON 字符串形式返回
type gammaMarket struct {
	ID            string `json:"id"`
	ConditionID   string `json:"conditionId"`
	Slug          string `json:"slug"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	Closed        bool   `json:"closed"`
}

type cryptoPriceResponse struct {
	OpenPrice  *decimal.Decimal `json:"openPrice"`
	ClosePrice *decimal.Decimal `json:"closePrice"`
	Completed  bool             `json:"completed"`
}

func (p *GammaProvider) Current(ctx context.Context) (domain.MarketSnapshot, error) {
	start := WindowStart(p.now(), p.cfg.Window)
	end := start.Add(p.cfg.Window)
	slug := Slug(p.cfg.SlugPrefix, start)

	var markets []gammaMarket
	err := p.gamma.Get(ctx, "/markets", map[string]any{"slug": slug}, &markets)
	if restclient.IsNotFound(err) {
		return domain.MarketSnapshot{}, fmt.Errorf("%s: %w", slug, ErrMarketNotFound)
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("获取市场 %s 失败: %w", slug, err)
	}
	if len(markets) == 0 || markets[0].Closed {
		return domain.MarketSnapshot{}, fmt.Errorf("%s: %w", slug, ErrMarketNotFound)
	}

	snap, err := toSnapshot(markets[0])
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("解析市场 %s 失败: %w", slug, err)
	}
	snap.Slug = slug
	snap.WindowStart = start
	snap.WindowEnd = end

	threshold, err := p.threshold(ctx, start, end)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	snap.ThresholdValue = threshold
	return snap, nil
}

func (p *GammaProvider) threshold(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	if v, ok := p.thresholds.Get(start.Unix()); ok {
		return v, nil
	}
	var out cryptoPriceResponse
	err := p.crypto.Get(ctx, "/api/crypto/crypto-price", map[string]any{
		"symbol":         p.cfg.Symbol,
		"eventStartTime": start.UTC().Format(time.RFC3339),
		"variant":        "fifteen",
		"endDate":        end.UTC().Format(time.RFC3339),
	}, &out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("获取目标价失败: %w", err)
	}
	if out.OpenPrice == nil || !out.OpenPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("目标价无效或为空")
	}
	p.thresholds.Set(start.Unix(), *out.OpenPrice, 0)
	return *out.OpenPrice, nil
}

func toSnapshot(m gammaMarket) (domain.MarketSnapshot, error) {
	var tokens, prices, outcomes []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokens); err != nil || len(tokens) != 2 {
		return domain.MarketSnapshot{}, fmt.Errorf("clobTokenIds 格式错误: %q", m.ClobTokenIDs)
	}
	if m.OutcomePrices != "" {
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("outcomePrices 格式错误: %q", m.OutcomePrices)
		}
	}
	if m.Outcomes != "" {
		_ = json.Unmarshal([]byte(m.Outcomes), &outcomes)
	}

	// A 为 Up 一侧；Gamma 偶尔把 Down 放在第一位
	ia, ib := 0, 1
	if len(outcomes) == 2 && strings.EqualFold(outcomes[0], "down") {
		ia, ib = 1, 0
	}

	id := m.ConditionID
	if id == "" {
		id = m.ID
	}
	snap := domain.MarketSnapshot{
		MarketID:   id,
		Slug:       m.Slug,
		OutcomeAID: tokens[ia],
		OutcomeBID: tokens[ib],
	}
	if len(prices) == 2 {
		snap.OutcomeAPrice = parsePrice(prices[ia])
		snap.OutcomeBPrice = parsePrice(prices[ib])
	}
	return snap, nil
}

// parsePrice 缺失或非法报价按 0 处理（决策层视为缺失数据）
func parsePrice(s string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || v.IsNegative() {
		log.Debugf("忽略非法报价: %q", s)
		return decimal.Zero
	}
	return v
}
