package refprice

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/metrics"
	"github.com/betbot/oddsbot/pkg/sigchan"
	"github.com/betbot/oddsbot/pkg/syncgroup"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "refprice")

// TrendThreshold 窗口内首尾价差超过该值才判定为趋势
var TrendThreshold = decimal.NewFromInt(10)

// Stream 实时价格流。Run 阻塞直到连接断开或 ctx 取消，期间把价格写入 out。
type Stream interface {
	Run(ctx context.Context, out chan<- domain.PricePoint) error
}

// Seeder 启动时一次性获取价格，用于在流就绪前填充历史
type Seeder interface {
	Seed(ctx context.Context) (domain.PricePoint, error)
}

// Tracker 维护参考价格历史，读接口可在任意 goroutine 调用。
type Tracker struct {
	stream         Stream
	seeder         Seeder
	reconnectDelay time.Duration

	mu   sync.RWMutex
	hist *History

	now   func() time.Time
	ticks *sigchan.Chan
	group *syncgroup.SyncGroup
}

func NewTracker(stream Stream, seeder Seeder, capacity int) *Tracker {
	return &Tracker{
		stream:         stream,
		seeder:         seeder,
		reconnectDelay: time.Second,
		hist:           NewHistory(capacity),
		now:            time.Now,
		ticks:          sigchan.New(1),
		group:          syncgroup.NewSyncGroup(),
	}
}

// SetClock 测试用
func (t *Tracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

func (t *Tracker) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		t.reconnectDelay = d
	}
}

// Ticks 每次收到新价格时通知（合并）
func (t *Tracker) Ticks() <-chan struct{} { return t.ticks.C() }

// Start 先做一次 REST 种子查询，然后在后台持续消费价格流（断线固定间隔重连）。
func (t *Tracker) Start(ctx context.Context) {
	if t.seeder != nil {
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		p, err := t.seeder.Seed(seedCtx)
		cancel()
		if err != nil {
			log.Warnf("⚠️ 初始价格查询失败（等待实时流）: %v", err)
		} else {
			t.Observe(p)
			log.Infof("📈 初始参考价: %s", p.Price.StringFixed(2))
		}
	}
	if t.stream == nil {
		return
	}

	out := make(chan domain.PricePoint, 64)
	t.group.Add(func() { t.runStream(ctx, out) })
	t.group.Add(func() { t.drain(ctx, out) })
	t.group.Run()
}

// Wait 等待后台 goroutine 退出（ctx 取消后）
func (t *Tracker) Wait() { t.group.Wait() }

func (t *Tracker) runStream(ctx context.Context, out chan<- domain.PricePoint) {
	for {
		err := t.stream.Run(ctx, out)
		if ctx.Err() != nil {
			return
		}
		metrics.StreamReconnects.Inc()
		log.Warnf("🔌 价格流断开，%s 后重连: %v", t.reconnectDelay, err)

		timer := time.NewTimer(t.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Tracker) drain(ctx context.Context, in <-chan domain.PricePoint) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-in:
			t.Observe(p)
		}
	}
}

// Observe 记录一个价格样本。非正价格被忽略；不晚于最新样本的点（重连时重放的历史批次）也被丢弃，
// 保证缓冲按时间递增。
func (t *Tracker) Observe(p domain.PricePoint) {
	if !p.Price.IsPositive() {
		return
	}
	if p.ObservedAt.IsZero() {
		p.ObservedAt = t.now()
	}
	t.mu.Lock()
	if latest, ok := t.hist.Latest(); ok && !p.ObservedAt.After(latest.ObservedAt) {
		t.mu.Unlock()
		return
	}
	t.hist.Append(p)
	t.mu.Unlock()

	metrics.ReferencePrice.Set(metrics.Float(p.Price))
	t.ticks.Emit()
}

// CurrentPrice 最新价格；尚无样本时返回 0
func (t *Tracker) CurrentPrice() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.hist.Latest()
	if !ok {
		return decimal.Zero
	}
	return p.Price
}

// Trend 比较窗口内最早与最新样本；样本不足两个时为 Flat
func (t *Tracker) Trend(window time.Duration) domain.Trend {
	since := t.now().Add(-window)
	t.mu.RLock()
	pts := t.hist.Window(since)
	t.mu.RUnlock()
	return Classify(pts)
}

// Classify 首尾价差 > +10 为 Up，< -10 为 Down，其余 Flat
func Classify(pts []domain.PricePoint) domain.Trend {
	if len(pts) < 2 {
		return domain.TrendFlat
	}
	diff := pts[len(pts)-1].Price.Sub(pts[0].Price)
	switch {
	case diff.GreaterThan(TrendThreshold):
		return domain.TrendUp
	case diff.LessThan(TrendThreshold.Neg()):
		return domain.TrendDown
	default:
		return domain.TrendFlat
	}
}
