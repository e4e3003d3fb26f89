package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"hyperliquid-mm/config"
	"hyperliquid-mm/internal/container"
	"hyperliquid-mm/order"
)

// 撤销标的的全部挂单。不平仓：仓位由人工处理。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	name := flag.String("instrument", "", "标的名，留空处理配置中的全部标的")
	dryRun := flag.Bool("dryRun", false, "只列出将被撤销的挂单")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	names := []string{*name}
	if *name == "" {
		names = container.NewFromConfig(cfg, container.Options{}).InstrumentNames()
	}

	failed := 0
	for _, n := range names {
		failed += cleanup(cfg, n, *dryRun)
	}
	if failed > 0 {
		log.Fatalf("❌ %d 笔撤单失败", failed)
	}
	fmt.Println("✅ 清理完成")
}

func cleanup(cfg config.AppConfig, name string, dryRun bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	inst, _, err := container.OpenInstrument(ctx, cfg, name, !dryRun)
	if err != nil {
		log.Fatalf("初始化 %s 失败: %v", name, err)
	}

	orders, err := inst.OpenOrders(ctx)
	if err != nil {
		log.Fatalf("获取 %s 挂单失败: %v", name, err)
	}
	buys, sells := order.CountBySide(orders)
	fmt.Printf("🔸 %s: %d 笔挂单 (买 %d / 卖 %d)\n", name, len(orders), buys, sells)
	if dryRun {
		for _, o := range orders {
			fmt.Printf("  %-4s %.4f x %.6f oid=%d\n", o.Side, o.Price, o.Size, o.ID)
		}
		return 0
	}

	failed := 0
	for _, o := range orders {
		if res := inst.Cancel(ctx, o.ID); !res.OK {
			failed++
			fmt.Printf("  撤单失败 oid=%d: %v\n", o.ID, res.Err)
		}
	}
	if left, err := inst.OpenOrders(ctx); err == nil {
		fmt.Printf("  剩余挂单: %d\n", len(left))
	}
	return failed
}
