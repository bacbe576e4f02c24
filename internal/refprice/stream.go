package refprice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// DefaultRTDSURL Polymarket 实时数据服务
const DefaultRTDSURL = "wss://ws-live-data.polymarket.com"

// StreamConfig 价格流配置
type StreamConfig struct {
	URL            string        `yaml:"url" json:"url"`
	Symbol         string        `yaml:"symbol" json:"symbol"`
	SeedURL        string        `yaml:"seed_url" json:"seed_url"`
	SeedSymbol     string        `yaml:"seed_symbol" json:"seed_symbol"`
	PingInterval   time.Duration `yaml:"ping_interval" json:"ping_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"`
	TrendWindow    time.Duration `yaml:"trend_window" json:"trend_window"`
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:            DefaultRTDSURL,
		Symbol:         "btcusdt",
		SeedURL:        DefaultBinanceURL,
		SeedSymbol:     "BTCUSDT",
		PingInterval:   5 * time.Second,
		ReadTimeout:    60 * time.Second,
		ReconnectDelay: time.Second,
		TrendWindow:    time.Minute,
	}
}

type subscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters,omitempty"`
}

type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []subscription `json:"subscriptions"`
}

type rtdsMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type cryptoPricePayload struct {
	Symbol    string           `json:"symbol"`
	Timestamp int64            `json:"timestamp"`
	Value     *decimal.Decimal `json:"value"`
	// 首次订阅时服务端会推送一批历史数据
	Data []struct {
		Timestamp int64           `json:"timestamp"`
		Value     decimal.Decimal `json:"value"`
	} `json:"data"`
}

// WSStream 基于 RTDS crypto_prices 主题的价格流。每次 Run 建立一条连接并订阅一次。
type WSStream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
}

func NewWSStream(cfg StreamConfig) *WSStream {
	def := DefaultStreamConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &WSStream{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (s *WSStream) Run(ctx context.Context, out chan<- domain.PricePoint) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial rtds: %w", err)
	}
	// 返回时一定关闭连接，重连前不会残留旧 socket
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	var writeMu sync.Mutex
	write := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	filters, _ := json.Marshal(map[string]string{"symbol": s.cfg.Symbol})
	sub, _ := json.Marshal(subscribeRequest{
		Action:        "subscribe",
		Subscriptions: []subscription{{Topic: "crypto_prices", Type: "update", Filters: string(filters)}},
	})
	if err := write(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Infof("🔗 已连接价格流: %s symbol=%s", s.cfg.URL, s.cfg.Symbol)

	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := write([]byte("PING")); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		trimmed := strings.TrimSpace(string(data))
		switch trimmed {
		case "":
			continue
		case "PING":
			_ = write([]byte("PONG"))
			continue
		case "PONG":
			continue
		}

		for _, p := range s.parse([]byte(trimmed)) {
			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *WSStream) parse(data []byte) []domain.PricePoint {
	var msg rtdsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debugf("忽略无法解析的消息: %v", err)
		return nil
	}
	if msg.Topic != "crypto_prices" || len(msg.Payload) == 0 {
		return nil
	}
	var pl cryptoPricePayload
	if err := json.Unmarshal(msg.Payload, &pl); err != nil {
		log.Debugf("忽略无法解析的价格: %v", err)
		return nil
	}
	if !strings.EqualFold(pl.Symbol, s.cfg.Symbol) {
		return nil
	}

	var pts []domain.PricePoint
	for _, h := range pl.Data {
		pts = append(pts, domain.PricePoint{Price: h.Value, ObservedAt: time.UnixMilli(h.Timestamp)})
	}
	if pl.Value != nil {
		at := time.Now()
		if pl.Timestamp > 0 {
			at = time.UnixMilli(pl.Timestamp)
		}
		pts = append(pts, domain.PricePoint{Price: *pl.Value, ObservedAt: at})
	}
	return pts
}
