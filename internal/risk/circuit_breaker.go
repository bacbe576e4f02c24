package risk

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// ErrCircuitBreakerOpen 表示断路器已打开，禁止继续开仓。
var ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker open")

// Config 断路器配置。阈值 <= 0 表示关闭对应限制。
type Config struct {
	// MaxConsecutiveErrors 连续下单失败上限
	MaxConsecutiveErrors int64 `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
	// DailyLossLimit 当日最大已实现亏损（USDC），达到或超过时熔断
	DailyLossLimit float64 `yaml:"daily_loss_limit" json:"daily_loss_limit"`
}

func (c Config) Validate() error {
	if c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("risk.max_consecutive_errors 不能为负数")
	}
	if c.DailyLossLimit < 0 {
		return fmt.Errorf("risk.daily_loss_limit 不能为负数")
	}
	return nil
}

// State 断路器只读快照（供状态接口展示）
type State struct {
	Halted            bool   `json:"halted"`
	ConsecutiveErrors int64  `json:"consecutive_errors"`
	DailyPnLCents     int64  `json:"daily_pnl_cents"`
	Reason            string `json:"reason,omitempty"`
}

// CircuitBreaker 快路径全部使用原子变量，可在任意 goroutine 调用。
type CircuitBreaker struct {
	halted atomic.Bool
	reason atomic.Value // string

	consecutiveErrors atomic.Int64
	dailyPnlCents     atomic.Int64
	dayKey            atomic.Int64 // YYYYMMDD

	maxConsecutiveErrors atomic.Int64
	dailyLossLimitCents  atomic.Int64

	now func() time.Time
}

func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{now: time.Now}
	cb.reason.Store("")
	cb.SetConfig(cfg)
	return cb
}

// SetClock 测试用
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	if cb == nil || now == nil {
		return
	}
	cb.now = now
}

func (cb *CircuitBreaker) SetConfig(cfg Config) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
	cb.dailyLossLimitCents.Store(toCents(decimal.NewFromFloat(cfg.DailyLossLimit)))
}

// Halt 手动熔断
func (cb *CircuitBreaker) Halt(reason string) {
	if cb == nil {
		return
	}
	cb.trip(reason)
}

// Resume 手动恢复（同时清空连续错误计数）
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.reason.Store("")
	cb.consecutiveErrors.Store(0)
}

func (cb *CircuitBreaker) trip(reason string) {
	if cb.halted.CompareAndSwap(false, true) {
		cb.reason.Store(reason)
	}
}

// AllowTrading 快路径检查是否允许下单
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}
	if cb.halted.Load() {
		return ErrCircuitBreakerOpen
	}

	maxErr := cb.maxConsecutiveErrors.Load()
	if maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.trip(fmt.Sprintf("连续失败 %d 次", cb.consecutiveErrors.Load()))
		return ErrCircuitBreakerOpen
	}

	limit := cb.dailyLossLimitCents.Load()
	if limit > 0 {
		cb.rollDayIfNeeded()
		if pnl := cb.dailyPnlCents.Load(); pnl <= -limit {
			cb.trip(fmt.Sprintf("当日亏损 %.2f 达到上限", float64(-pnl)/100))
			return ErrCircuitBreakerOpen
		}
	}
	return nil
}

// OnSuccess 一次下单成功后调用，清空连续错误计数
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError 一次下单失败后调用
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// AddRealizedPnL 累加已实现盈亏（负数为亏损）
func (cb *CircuitBreaker) AddRealizedPnL(pnl decimal.Decimal) {
	if cb == nil {
		return
	}
	cb.rollDayIfNeeded()
	cb.dailyPnlCents.Add(toCents(pnl))
}

func (cb *CircuitBreaker) State() State {
	if cb == nil {
		return State{}
	}
	cb.rollDayIfNeeded()
	reason, _ := cb.reason.Load().(string)
	return State{
		Halted:            cb.halted.Load(),
		ConsecutiveErrors: cb.consecutiveErrors.Load(),
		DailyPnLCents:     cb.dailyPnlCents.Load(),
		Reason:            reason,
	}
}

func (cb *CircuitBreaker) rollDayIfNeeded() {
	// 本地时间即可
	now := cb.now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := cb.dayKey.Load()
	if prev == key {
		return
	}
	// 切换成功者负责清零当日 PnL
	if cb.dayKey.CompareAndSwap(prev, key) {
		cb.dailyPnlCents.Store(0)
	}
}

func toCents(v decimal.Decimal) int64 {
	return v.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
