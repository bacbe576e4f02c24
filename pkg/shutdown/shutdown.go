package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/oddsbot/pkg/logger"
)

// Handler 关闭处理函数，应在 ctx 超时前返回
type Handler func(ctx context.Context) error

type named struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	mu        sync.Mutex
	callbacks []named
	once      sync.Once
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, named{name: name, fn: handler})
}

// Shutdown 并发执行所有关闭回调，阻塞到全部完成或 ctx 超时。
// 重复调用只执行一次。返回未在超时前完成或返回错误的回调名。
func (m *Manager) Shutdown(ctx context.Context) []string {
	var failed []string
	m.once.Do(func() {
		failed = m.run(ctx)
	})
	return failed
}

func (m *Manager) run(ctx context.Context) []string {
	m.mu.Lock()
	callbacks := append([]named(nil), m.callbacks...)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}

	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var (
		wg     sync.WaitGroup
		resMu  sync.Mutex
		done   = make(map[string]bool, len(callbacks))
		failed []string
	)
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(cb named) {
			defer wg.Done()
			err := cb.fn(ctx)
			resMu.Lock()
			defer resMu.Unlock()
			done[cb.name] = true
			if err != nil {
				logger.Warnf("关闭 %s 失败: %v", cb.name, err)
				failed = append(failed, cb.name)
			}
		}(cb)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		logger.Info("所有关闭回调已完成")
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
	}

	resMu.Lock()
	defer resMu.Unlock()
	for _, cb := range callbacks {
		if !done[cb.name] {
			failed = append(failed, cb.name)
		}
	}
	return append([]string(nil), failed...)
}
