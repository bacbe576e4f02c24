package execution

import (
	"context"

	"github.com/betbot/oddsbot/internal/domain"
)

// Recorder 订单结果审计（只写）。
type Recorder interface {
	Record(ctx context.Context, req domain.OrderRequest, res domain.ExecutionResult) error
}

// JournalingGateway 把每个结果写入审计日志；写入失败只记日志，不影响结果。
type JournalingGateway struct {
	next     Gateway
	recorder Recorder
}

func NewJournalingGateway(next Gateway, recorder Recorder) *JournalingGateway {
	return &JournalingGateway{next: next, recorder: recorder}
}

func (g *JournalingGateway) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	res := g.next.Submit(ctx, req)
	if g.recorder != nil {
		if err := g.recorder.Record(context.WithoutCancel(ctx), req, res); err != nil {
			log.Warnf("写入执行日志失败: %v", err)
		}
	}
	return res
}
