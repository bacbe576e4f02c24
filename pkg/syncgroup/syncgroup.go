package syncgroup

import (
	"sync"
)

// SyncGroup 包装 sync.WaitGroup，自动管理 Add()/Done()。
// 先用 Add() 登记，再 Run() 一次性启动；也可以直接 Go()。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []func()
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个待启动的函数
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.pending = append(g.pending, fn)
	g.mu.Unlock()
}

// Run 启动所有已登记的函数，并清空登记列表
func (g *SyncGroup) Run() {
	g.mu.Lock()
	fns := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, fn := range fns {
		g.Go(fn)
	}
}

// Go 立即在新 goroutine 中运行 fn
func (g *SyncGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait 等待所有已启动的 goroutine 退出
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
