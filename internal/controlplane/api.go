// Package controlplane 运营 HTTP 接口：健康检查、运行状态、持仓、执行记录与模式切换。
package controlplane

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/engine"
	"github.com/betbot/oddsbot/internal/execution"
	"github.com/betbot/oddsbot/internal/journal"
	"github.com/betbot/oddsbot/internal/risk"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "controlplane")

// StatusSource 由 engine.Engine 实现
type StatusSource interface {
	Status(ctx context.Context) (engine.Status, error)
	Positions(ctx context.Context) ([]domain.Position, error)
}

// ModeSwitch 由 execution.ModeGateway 实现
type ModeSwitch interface {
	SetLive(on bool)
	Mode() string
}

// JournalReader 由 journal.Journal 实现
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Deps struct {
	Engine  StatusSource
	Mode    ModeSwitch
	Journal JournalReader        // 可选
	Breaker *risk.CircuitBreaker // 可选
}

type API struct {
	deps Deps
}

func New(deps Deps) *API {
	return &API{deps: deps}
}

func (a *API) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/status", a.handleStatus)
	r.GET("/positions", a.handlePositions)
	r.GET("/orders", a.handleOrders)
	r.POST("/mode", a.handleMode)
	r.GET("/risk", a.handleRisk)
	r.POST("/risk/resume", a.handleRiskResume)
	r.POST("/risk/halt", a.handleRiskHalt)
	return r
}

func writeError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

func engineError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrStopped) {
		writeError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(c, http.StatusGatewayTimeout, err.Error())
}

func (a *API) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	st, err := a.deps.Engine.Status(ctx)
	if err != nil {
		engineError(c, err)
		return
	}
	resp := gin.H{"engine": st}
	if a.deps.Breaker != nil {
		resp["risk"] = a.deps.Breaker.State()
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handlePositions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	ps, err := a.deps.Engine.Positions(ctx)
	if err != nil {
		engineError(c, err)
		return
	}
	if ps == nil {
		ps = []domain.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": ps})
}

func (a *API) handleOrders(c *gin.Context) {
	if a.deps.Journal == nil {
		writeError(c, http.StatusNotFound, "journal disabled")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := a.deps.Journal.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": entries})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (a *API) handleMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case execution.ModeLive:
		a.deps.Mode.SetLive(true)
	case execution.ModeSimulate:
		a.deps.Mode.SetLive(false)
	default:
		writeError(c, http.StatusBadRequest, "mode must be live or simulate")
		return
	}
	log.Warnf("⚙️ 交易模式已切换: %s", a.deps.Mode.Mode())
	c.JSON(http.StatusOK, gin.H{"mode": a.deps.Mode.Mode()})
}

func (a *API) handleRisk(c *gin.Context) {
	if a.deps.Breaker == nil {
		writeError(c, http.StatusNotFound, "circuit breaker disabled")
		return
	}
	c.JSON(http.StatusOK, a.deps.Breaker.State())
}

func (a *API) handleRiskResume(c *gin.Context) {
	if a.deps.Breaker == nil {
		writeError(c, http.StatusNotFound, "circuit breaker disabled")
		return
	}
	a.deps.Breaker.Resume()
	log.Warnf("✅ 断路器已人工恢复")
	c.JSON(http.StatusOK, a.deps.Breaker.State())
}

func (a *API) handleRiskHalt(c *gin.Context) {
	if a.deps.Breaker == nil {
		writeError(c, http.StatusNotFound, "circuit breaker disabled")
		return
	}
	a.deps.Breaker.Halt("manual")
	log.Warnf("🛑 断路器已人工熔断")
	c.JSON(http.StatusOK, a.deps.Breaker.State())
}

// StartAsync 非阻塞启动 HTTP 服务，ctx 取消时优雅关闭
func (a *API) StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Addr:              listenAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("controlplane listening on %s", ln.Addr())
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()
	return s, nil
}
