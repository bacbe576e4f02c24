package execution

import (
	"context"
	"sync/atomic"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/metrics"
)

const (
	ModeLive     = "live"
	ModeSimulate = "simulate"
)

// ModeGateway 根据运营开关在实盘与模拟之间切换。
type ModeGateway struct {
	live      Gateway
	simulated Gateway
	isLive    atomic.Bool
}

func NewModeGateway(live, simulated Gateway, mode string) *ModeGateway {
	g := &ModeGateway{live: live, simulated: simulated}
	g.SetLive(mode == ModeLive)
	return g
}

func (g *ModeGateway) SetLive(on bool) {
	if on && g.live == nil {
		log.Warnf("⚠️ 未配置实盘网关，保持模拟模式")
		on = false
	}
	g.isLive.Store(on)
}

func (g *ModeGateway) IsLive() bool { return g.isLive.Load() }

func (g *ModeGateway) Mode() string {
	if g.IsLive() {
		return ModeLive
	}
	return ModeSimulate
}

func (g *ModeGateway) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	mode := g.Mode()
	target := g.simulated
	if mode == ModeLive {
		target = g.live
	}
	res := target.Submit(ctx, req)
	metrics.Orders.WithLabelValues(mode, string(req.Side), metrics.ResultLabel(res.Success)).Inc()
	return res
}
