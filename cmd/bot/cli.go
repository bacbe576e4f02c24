package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/betbot/oddsbot/pkg/config"
	"github.com/betbot/oddsbot/pkg/restclient"
)

var (
	apiAddr    string
	apiTimeout time.Duration
	orderLimit int
)

// addAPIFlags 运营子命令共用的控制面地址参数
func addAPIFlags(fs *pflag.FlagSet) {
	fs.StringVar(&apiAddr, "api", "http://127.0.0.1:8080", "控制面地址")
	fs.DurationVar(&apiTimeout, "timeout", 5*time.Second, "请求超时")
}

func apiGet(cmd *cobra.Command, endpoint string, params map[string]any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()
	var out any
	if err := restclient.New(apiAddr, restclient.Options{Timeout: apiTimeout}).Get(ctx, endpoint, params, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func apiPost(cmd *cobra.Command, endpoint string, body any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()
	var out any
	if err := restclient.New(apiAddr, restclient.Options{Timeout: apiTimeout}).PostJSON(ctx, endpoint, body, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看引擎状态（参考价、市场快照、最近决策、持仓汇总）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiGet(cmd, "/status", nil)
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "查看当前持仓",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiGet(cmd, "/positions", nil)
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "查看最近的下单记录",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiGet(cmd, "/orders", map[string]any{"limit": orderLimit})
	},
}

var modeCmd = &cobra.Command{
	Use:       "mode live|simulate",
	Short:     "切换交易模式",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"live", "simulate"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiPost(cmd, "/mode", map[string]string{"mode": args[0]})
	},
}

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "人工熔断，停止开新仓（退出单不受影响）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiPost(cmd, "/risk/halt", struct{}{})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "解除熔断",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiPost(cmd, "/risk/resume", struct{}{})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "打印合并后的生效配置（默认值 <- 配置文件 <- 环境变量）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, positionsCmd, ordersCmd, modeCmd, haltCmd, resumeCmd} {
		addAPIFlags(c.Flags())
		rootCmd.AddCommand(c)
	}
	ordersCmd.Flags().IntVar(&orderLimit, "limit", 20, "返回条数")
	rootCmd.AddCommand(configCmd)
}
