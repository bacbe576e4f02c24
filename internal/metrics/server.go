package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "metrics")

// Handler /metrics（prometheus）与 /debug/pprof/*
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorLog: log,
	}))
	for path, h := range map[string]http.HandlerFunc{
		"/debug/pprof/":        pprof.Index,
		"/debug/pprof/cmdline": pprof.Cmdline,
		"/debug/pprof/profile": pprof.Profile,
		"/debug/pprof/symbol":  pprof.Symbol,
		"/debug/pprof/trace":   pprof.Trace,
	} {
		mux.Handle(path, h)
	}
	return mux
}

// Server 指标服务
type Server struct {
	http *http.Server
	ln   net.Listener
}

// Listen 绑定端口（":0" 取随机端口），不开始服务
func Listen(listenAddr string) (*Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		http: &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
	}, nil
}

// Addr 实际监听地址
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve 阻塞服务直到 ctx 取消，然后在 2s 内优雅关闭
func (s *Server) Serve(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() { errC <- s.http.Serve(s.ln) }()
	log.Infof("📊 metrics listening on %s", s.Addr())

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// StartAsync Listen + 后台 Serve
func StartAsync(ctx context.Context, listenAddr string) (*Server, error) {
	s, err := Listen(listenAddr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			log.Errorf("metrics server 退出: %v", err)
		}
	}()
	return s, nil
}
