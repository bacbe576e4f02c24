package hedge

import (
	"context"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/ports"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "hedge")

// CancelledReason 主腿失败时对冲腿的合成失败原因
const CancelledReason = "primary failed, hedge cancelled"

// PairResult 主腿与对冲腿的执行结果
type PairResult struct {
	Primary domain.ExecutionResult
	Hedge   domain.ExecutionResult
}

// Both 两腿都成功
func (r PairResult) Both() bool { return r.Primary.Success && r.Hedge.Success }

// Coordinator 先下主腿，仅在主腿成功后才下对冲腿。
type Coordinator struct {
	gateway ports.OrderSubmitter
	now     func() time.Time
}

func NewCoordinator(gateway ports.OrderSubmitter) *Coordinator {
	return &Coordinator{gateway: gateway, now: time.Now}
}

// Execute 顺序执行两腿。主腿失败时不会调用网关提交对冲腿。
func (c *Coordinator) Execute(ctx context.Context, primary, hedge domain.OrderRequest) PairResult {
	var out PairResult
	out.Primary = c.gateway.Submit(ctx, primary)
	if !out.Primary.Success {
		log.Warnf("⚠️ 主腿失败，取消对冲: err=%s", out.Primary.Error)
		out.Hedge = domain.FailedResult(CancelledReason, c.now())
		return out
	}

	out.Hedge = c.gateway.Submit(ctx, hedge)
	if !out.Hedge.Success {
		// 主腿已成交，对冲失败只记录，由退出策略继续管理主腿
		log.Errorf("❌ 对冲腿失败（主腿已成交）: primary=%s err=%s", out.Primary.OrderID, out.Hedge.Error)
	}
	return out
}
