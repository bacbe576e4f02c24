package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/pkg/cache"
)

// ErrDuplicateInFlight 同一订单在 TTL 窗口内重复提交。
var ErrDuplicateInFlight = errors.New("duplicate in-flight")

// InFlightDeduper 按订单 key 占位，TTL 到期自动失效。
type InFlightDeduper struct {
	mu   sync.Mutex // 保证查询与占位是一个原子操作
	keys *cache.TTL[string, time.Time]
	now  func() time.Time
}

// NewInFlightDeduper maxKeys <= 0 不限制；超过上限时淘汰最早到期的 key
func NewInFlightDeduper(ttl time.Duration, maxKeys int) *InFlightDeduper {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &InFlightDeduper{
		keys: cache.NewTTL[string, time.Time](ttl, maxKeys),
		now:  time.Now,
	}
}

// SetClock 测试用
func (d *InFlightDeduper) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	d.now = now
	d.keys.SetClock(now)
}

// TryAcquire 成功返回 nil，重复返回 ErrDuplicateInFlight。
func (d *InFlightDeduper) TryAcquire(key string) error {
	if d == nil || key == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, held := d.keys.Get(key); held {
		return ErrDuplicateInFlight
	}
	d.keys.Set(key, d.now(), 0)
	return nil
}

// Release 提前释放 key
func (d *InFlightDeduper) Release(key string) {
	if d == nil || key == "" {
		return
	}
	d.keys.Delete(key)
}

// Deduped 拒绝 TTL 窗口内完全相同的订单；失败的订单立即释放，允许下个周期再试。
type Deduped struct {
	next  Gateway
	dedup *InFlightDeduper
}

func NewDeduped(next Gateway, dedup *InFlightDeduper) *Deduped {
	return &Deduped{next: next, dedup: dedup}
}

func orderKey(req domain.OrderRequest) string {
	return req.TokenID + "|" + string(req.Side) + "|" + req.Amount.String()
}

func (g *Deduped) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	key := orderKey(req)
	if err := g.dedup.TryAcquire(key); err != nil {
		log.Warnf("⏭️ 重复订单已跳过: token=%s side=%s amount=%s", shortID(req.TokenID), req.Side, req.Amount)
		return domain.FailedResult(err.Error(), g.dedup.now())
	}
	res := g.next.Submit(ctx, req)
	if !res.Success {
		g.dedup.Release(key)
	}
	return res
}
