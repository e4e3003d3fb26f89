package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"hyperliquid-mm/config"
	"hyperliquid-mm/internal/container"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
	"hyperliquid-mm/strategy"
)

// 计算当前状态下会挂出的阶梯，只读不下单。-offline 时使用内置预设与给定的中间价/库存。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	name := flag.String("instrument", "btc-perp", "标的名")
	offline := flag.Bool("offline", false, "不连接交易所，使用内置预设")
	mid := flag.Float64("mid", 0, "offline 中间价")
	ratio := flag.Float64("ratio", 0, "offline 库存比例")
	vol := flag.Float64("vol", market.NeutralMultiplier, "offline 波动率乘数")
	flag.Parse()

	if *offline {
		ic, ok := config.Presets()[*name]
		if !ok {
			log.Fatalf("未知预设: %s", *name)
		}
		if *mid <= 0 {
			log.Fatal("offline 模式需要 -mid")
		}
		preview(ic, *mid, *ratio, *vol)
		return
	}

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	inst, ic, err := container.OpenInstrument(ctx, cfg, *name, false)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	m, err := inst.MidPrice(ctx)
	if err != nil {
		log.Fatalf("获取中间价失败: %v", err)
	}
	est := market.NewVolatilityEstimator(ic.VolatilityConfig(), inst).Estimate(ctx, m)
	if est.Fallback != "" {
		fmt.Printf("波动率回退: %s\n", est.Fallback)
	}

	snap := inventory.Snapshot{Kind: ic.InventoryKind(), Mid: m, MaxValue: ic.Risk.MaxPositionNotional, Target: ic.Spot.TargetRatio}
	if snap.Kind == inventory.KindSpot {
		if snap.Spot, err = inst.SpotBalances(ctx); err != nil {
			log.Fatalf("获取现货余额失败: %v", err)
		}
	} else if snap.Perp, err = inst.PerpPosition(ctx); err != nil {
		log.Fatalf("获取仓位失败: %v", err)
	}
	fmt.Printf("ATR: %.4f (%d 根)\n", est.ATR, est.Candles)
	preview(ic, m, snap.SkewInput(), est.Multiplier)
}

func preview(ic config.InstrumentConfig, mid, ratio, vol float64) {
	q, err := strategy.NewQuoter(ic.QuoterConfig())
	if err != nil {
		log.Fatalf("报价配置无效: %v", err)
	}
	fmt.Printf("中间价: %.4f  库存比例: %+.4f  偏移: %+.4f  波动率乘数: %.3f\n",
		mid, ratio, strategy.InventoryAdjustment(ratio, ic.QuoterConfig().Skew), vol)
	for _, side := range []order.Side{order.Sell, order.Buy} {
		l := q.Quote(side, mid, ratio, vol)
		fmt.Printf("\n%s  合计 %.6f / 名义 %.2f\n", side, strategy.TotalQuantity(l.Intents), strategy.TotalNotional(l.Intents))
		fmt.Printf("  价差: %v\n", l.Spreads)
		for i, in := range l.Intents {
			// 取整后的实际距离
			dist := math.Abs(in.Price/mid-1) * 100
			fmt.Printf("  #%d %12.4f x %.6f  距中间价 %.4f%%  (%.2f)\n", i+1, in.Price, in.Quantity, dist, in.Notional())
		}
	}
}
