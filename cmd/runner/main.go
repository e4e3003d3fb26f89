package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"hyperliquid-mm/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	instruments := flag.String("instruments", "", "逗号分隔的标的名，留空运行配置中的全部标的")
	dryRun := flag.Bool("dryRun", false, "纸面撮合，不真正下单")
	paperCoin := flag.Float64("paperCoin", 0, "dry run 现货初始币余额")
	paperQuote := flag.Float64("paperQuote", 1000, "dry run 现货初始计价币余额")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件")
	watch := flag.Bool("watch", true, "监听配置文件变更并热更新报价参数")
	flag.Parse()

	c, err := container.New(container.Options{
		ConfigPath:  *cfgPath,
		Instruments: splitList(*instruments),
		DryRun:      *dryRun,
		PaperCoin:   *paperCoin,
		PaperQuote:  *paperQuote,
		MetricsAddr: *metricsAddr,
		Watch:       *watch,
	})
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buildCtx, cancelBuild := context.WithTimeout(ctx, 30*time.Second)
	err = c.Build(buildCtx)
	cancelBuild()
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	lg := c.Logger()

	if err := c.Start(ctx); err != nil {
		lg.LogError(err, zap.String("action", "start"))
		os.Exit(1)
	}
	notify(lg.Logger, daemon.SdNotifyReady)
	go watchdog(ctx, c, lg.Logger)

	<-ctx.Done()
	lg.Info("shutdown signal received")
	notify(lg.Logger, daemon.SdNotifyStopping)
	if err := c.Stop(); err != nil {
		os.Exit(1)
	}
}

// watchdog 在 systemd 启用 WatchdogSec 时按一半间隔上报存活；组件不健康时停止上报。
func watchdog(ctx context.Context, c *container.Container, logger *zap.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				logger.Warn("health check failed, skipping watchdog ping", zap.Error(err))
				continue
			}
			notify(logger, daemon.SdNotifyWatchdog)
		}
	}
}

func notify(logger *zap.Logger, state string) {
	// 非 systemd 环境下 sent=false，忽略
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Warn("sd_notify failed", zap.String("state", state), zap.Error(err))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
