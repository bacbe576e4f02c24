package execution

import (
	"context"
	"strings"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/pkg/restclient"
	"github.com/shopspring/decimal"
)

// BridgeConfig 订单签名 sidecar 配置。签名与凭证由 sidecar 负责。
type BridgeConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BridgeGateway 实盘网关：把订单 POST 给签名 sidecar。下单请求永不重试。
type BridgeGateway struct {
	http *restclient.Client
	now  func() time.Time
}

type bridgeOrder struct {
	TokenID   string `json:"token_id"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	OrderType string `json:"order_type"`
}

type bridgeResponse struct {
	Success      bool   `json:"success"`
	OrderID      string `json:"orderID"`
	ErrorMsg     string `json:"errorMsg"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
}

func NewBridgeGateway(cfg BridgeConfig) *BridgeGateway {
	return &BridgeGateway{
		http: restclient.New(cfg.URL, restclient.Options{Timeout: cfg.Timeout, RetryCount: 0}),
		now:  time.Now,
	}
}

func (g *BridgeGateway) Submit(ctx context.Context, req domain.OrderRequest) domain.ExecutionResult {
	validity := req.Validity
	if validity == "" {
		validity = domain.ValidityFOK
	}
	body := bridgeOrder{
		TokenID:   req.TokenID,
		Side:      string(req.Side),
		Amount:    req.Amount.String(),
		Price:     req.Price.String(),
		OrderType: string(validity),
	}

	var out bridgeResponse
	if err := g.http.PostJSON(ctx, "/order", body, &out); err != nil {
		log.Errorf("❌ [实盘] 下单请求失败: token=%s side=%s err=%v", shortID(req.TokenID), req.Side, err)
		return domain.FailedResult(err.Error(), g.now())
	}
	if !out.Success {
		msg := strings.TrimSpace(out.ErrorMsg)
		if msg == "" {
			msg = "order rejected"
		}
		return domain.FailedResult(msg, g.now())
	}

	shares, price := fillFromAmounts(req, out.MakingAmount, out.TakingAmount)
	log.Infof("✅ [实盘] 下单成功: orderID=%s side=%s shares=%s price=%s",
		out.OrderID, req.Side, shares.StringFixed(4), price.StringFixed(4))
	return domain.ExecutionResult{
		Success:      true,
		OrderID:      out.OrderID,
		ActualPrice:  price,
		ActualAmount: shares,
		Timestamp:    g.now(),
	}
}

// fillFromAmounts 买单 making=USDC taking=份额；卖单相反。缺失时退回请求值。
func fillFromAmounts(req domain.OrderRequest, making, taking string) (shares, price decimal.Decimal) {
	m, errM := decimal.NewFromString(making)
	t, errT := decimal.NewFromString(taking)
	if errM != nil || errT != nil || !m.IsPositive() || !t.IsPositive() {
		if req.Side == domain.SideBuy {
			return SharesFor(req.Amount, req.Price), req.Price
		}
		return req.Amount, req.Price
	}
	usdc, sh := m, t
	if req.Side == domain.SideSell {
		usdc, sh = t, m
	}
	return sh, usdc.Div(sh)
}
