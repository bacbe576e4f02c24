package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/betbot/oddsbot/internal/controlplane"
	"github.com/betbot/oddsbot/internal/engine"
	"github.com/betbot/oddsbot/internal/execution"
	"github.com/betbot/oddsbot/internal/exitpolicy"
	"github.com/betbot/oddsbot/internal/journal"
	"github.com/betbot/oddsbot/internal/market"
	"github.com/betbot/oddsbot/internal/metrics"
	"github.com/betbot/oddsbot/internal/refprice"
	"github.com/betbot/oddsbot/internal/risk"
	"github.com/betbot/oddsbot/pkg/config"
	"github.com/betbot/oddsbot/pkg/logger"
	"github.com/betbot/oddsbot/pkg/shutdown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "oddsbot",
	Short: "BTC 15 分钟涨跌市场交易机器人",
	Long: `oddsbot 跟踪 BTC 实时参考价，在 Polymarket 15 分钟涨跌市场中
按距离与趋势打分开仓，并按分档止盈、止损规则退出。`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.InitDefault(); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		logCfg := logger.Config{
			Level:         cfg.Log.Level,
			OutputFile:    cfg.Log.File,
			MaxSize:       cfg.Log.MaxSize,
			MaxBackups:    cfg.Log.MaxBackups,
			MaxAge:        cfg.Log.MaxAge,
			Compress:      cfg.Log.Compress,
			ByCycle:       cfg.Log.ByCycle,
			CycleDuration: cfg.Market.Window,
		}
		if err := logger.Init(logCfg); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return run(cfg, logCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（支持 .yaml, .yml, .json）")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logCfg logger.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.StartRotation(ctx, logCfg)
	logrus.Infof("🚀 oddsbot 启动: mode=%s market=%s", cfg.Mode, cfg.Market.SlugPrefix)

	// 参考价
	tracker := refprice.NewTracker(
		refprice.NewWSStream(cfg.Stream),
		refprice.NewBinanceSeeder(cfg.Stream.SeedURL, cfg.Stream.SeedSymbol),
		refprice.DefaultHistoryCapacity,
	)
	tracker.SetReconnectDelay(cfg.Stream.ReconnectDelay)
	tracker.Start(ctx)

	// 市场数据
	provider := market.NewGammaProvider(cfg.Market)
	prices := market.NewCLOBPriceSource(cfg.Market.CLOBURL, cfg.Exit.PriceSide, cfg.Exit.FetchTimeout)

	// 下单链路：journal <- dedupe <- breaker <- live/simulate
	breaker := risk.NewCircuitBreaker(cfg.Risk)
	var live execution.Gateway
	if cfg.Bridge.URL != "" {
		live = execution.NewBridgeGateway(cfg.Bridge)
	}
	modeGW := execution.NewModeGateway(live, execution.NewSimulatedGateway(), cfg.Mode)
	var gateway execution.Gateway = execution.NewDeduped(
		execution.NewGuarded(modeGW, breaker),
		execution.NewInFlightDeduper(cfg.DedupTTL, 1024),
	)

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("打开成交日志失败: %w", err)
		}
		j.SetModeFunc(modeGW.Mode)
		jr = j
		gateway = execution.NewJournalingGateway(gateway, j)
	}

	exits := exitpolicy.NewRunner(cfg.ExitPolicy(), prices, gateway)
	exits.SetFetchTimeout(cfg.Exit.FetchTimeout)
	eng := engine.New(cfg.Engine, engine.Deps{
		Feed:     tracker,
		Provider: provider,
		Gateway:  gateway,
		Exits:    exits,
		Breaker:  breaker,
		Decision: cfg.DecisionConfig(),
		Mode:     modeGW.Mode,
	})

	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsAddr); err != nil {
			return fmt.Errorf("启动 metrics 失败: %w", err)
		}
	}
	if cfg.APIAddr != "" {
		deps := controlplane.Deps{Engine: eng, Mode: modeGW, Breaker: breaker}
		if jr != nil {
			deps.Journal = jr
		}
		if _, err := controlplane.New(deps).StartAsync(ctx, cfg.APIAddr); err != nil {
			return fmt.Errorf("启动控制面失败: %w", err)
		}
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	sm := shutdown.NewManager()
	sm.OnShutdown("engine", func(ctx context.Context) error {
		select {
		case err := <-engineDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	sm.OnShutdown("refprice", func(ctx context.Context) error {
		tracker.Wait()
		return nil
	})

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigC:
		logrus.Infof("收到信号 %s，开始退出", sig)
	case err := <-engineDone:
		// 引擎意外退出时仍走完整关闭流程
		engineDone <- err
		logrus.Warnf("⚠️ 引擎提前退出: %v", err)
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if failed := sm.Shutdown(shutdownCtx); len(failed) > 0 {
		logrus.Warnf("以下组件未能正常关闭: %v", failed)
	}

	if jr != nil {
		if err := jr.Close(); err != nil {
			logrus.Warnf("关闭成交日志失败: %v", err)
		}
	}
	logger.Close()
	return nil
}
