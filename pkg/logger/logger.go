package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "06-01-02 15:04:05" // yy-mm-dd HH:MM:ss

var (
	// Logger 全局日志实例
	Logger = logrus.StandardLogger()

	mu          sync.Mutex
	currentFile string
	currentPer  int64
	fileWriter  *lumberjack.Logger
	stdout      io.Writer = os.Stdout
)

// Config 日志配置
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // 为空则只输出到控制台
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	// ByCycle 按市场周期命名日志文件，例如 logs/oddsbot_25-10-19_14-15.log
	ByCycle       bool
	CycleDuration time.Duration
}

// CycleFileName 周期日志文件名
func CycleFileName(basePath string, period time.Time) string {
	dir := filepath.Dir(basePath)
	ext := filepath.Ext(basePath)
	name := strings.TrimSuffix(filepath.Base(basePath), ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, period.Format("06-01-02_15-04"), ext))
}

// Init 初始化日志系统。所有 logrus.WithField 创建的 logger 共享同一输出。
func Init(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		ForceColors:     true,
	})

	if cfg.OutputFile == "" {
		mu.Lock()
		closeFileLocked()
		mu.Unlock()
		logrus.SetOutput(stdout)
		return nil
	}
	return rotate(cfg, time.Now(), true)
}

// InitDefault 默认配置：info 级别，按 15 分钟周期命名
func InitDefault() error {
	return Init(Config{
		Level:         "info",
		OutputFile:    "logs/oddsbot.log",
		MaxSize:       100,
		MaxBackups:    3,
		MaxAge:        7,
		Compress:      true,
		ByCycle:       true,
		CycleDuration: 15 * time.Minute,
	})
}

func cycleOf(cfg Config) time.Duration {
	if cfg.CycleDuration <= 0 {
		return 15 * time.Minute
	}
	return cfg.CycleDuration
}

// rotate 周期变化（或 force）时切换日志文件
func rotate(cfg Config, now time.Time, force bool) error {
	mu.Lock()
	defer mu.Unlock()

	path := cfg.OutputFile
	period := now.Truncate(cycleOf(cfg))
	if cfg.ByCycle {
		if !force && period.Unix() == currentPer {
			return nil
		}
		path = CycleFileName(cfg.OutputFile, period)
	}
	if !force && path == currentFile {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	old := currentFile
	closeFileLocked()
	fileWriter = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	currentFile = path
	currentPer = period.Unix()
	logrus.SetOutput(io.MultiWriter(stdout, fileWriter))

	if old != "" && old != path {
		logrus.Infof("📝 日志文件已切换: %s -> %s", old, path)
	}
	return nil
}

func closeFileLocked() {
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	currentFile = ""
	currentPer = 0
}

// StartRotation 后台每分钟检查周期，ctx 取消后退出
func StartRotation(ctx context.Context, cfg Config) {
	if !cfg.ByCycle || cfg.OutputFile == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := rotate(cfg, now, false); err != nil {
					logrus.Errorf("检查日志轮转失败: %v", err)
				}
			}
		}
	}()
}

// Close 关闭日志文件，输出回到控制台
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	logrus.SetOutput(stdout)
}

// CurrentFile 当前日志文件路径
func CurrentFile() string {
	mu.Lock()
	defer mu.Unlock()
	return currentFile
}

func Info(args ...interface{}) { Logger.Info(args...) }

func Infof(format string, args ...interface{}) { Logger.Infof(format, args...) }

func Warnf(format string, args ...interface{}) { Logger.Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}
