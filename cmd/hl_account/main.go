package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"hyperliquid-mm/config"
	"hyperliquid-mm/internal/container"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/order"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	name := flag.String("instrument", "btc-perp", "标的名")
	flag.Parse()

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

	mid, err := inst.MidPrice(ctx)
	if err != nil {
		log.Fatalf("获取中间价失败: %v", err)
	}
	fmt.Printf("账户: %s  标的: %s (%s)  中间价: %.4f\n", cfg.Gateway.AccountAddress, *name, inst.Market.Symbol, mid)

	if ic.InventoryKind() == inventory.KindSpot {
		bal, err := inst.SpotBalances(ctx)
		if err != nil {
			log.Fatalf("获取现货余额失败: %v", err)
		}
		fmt.Printf("%s: %.6f (价值 %.2f)  %s: %.2f  币占比: %.2f%%  状态: %s\n",
			ic.Spot.CoinKey, bal.Coin, bal.CoinValue(mid), ic.Spot.QuoteKey, bal.Quote,
			bal.CoinRatio(mid)*100, bal.Status(mid, ic.Spot.TargetRatio, 0.1))
	} else {
		pos, err := inst.PerpPosition(ctx)
		if err != nil {
			log.Fatalf("获取仓位失败: %v", err)
		}
		fmt.Printf("仓位: %.6f  开仓价: %.4f  名义: %.2f  浮盈亏: %.4f  状态: %s\n",
			pos.Size, pos.EntryPrice, pos.Value(mid), pos.UnrealizedPnl, pos.Status(ic.PositionDust))
		if av, err := inst.AccountValue(ctx); err == nil {
			fmt.Printf("账户净值: %.2f\n", av)
		}
	}

	orders, err := inst.OpenOrders(ctx)
	if err != nil {
		log.Fatalf("获取挂单失败: %v", err)
	}
	printOrders(orders, time.Now())
}

// printOrders 按价格从高到低打印挂单（卖单在上），附挂单时长。
func printOrders(orders []order.OpenOrder, now time.Time) {
	buys, sells := order.CountBySide(orders)
	fmt.Printf("\n挂单: %d (买 %d / 卖 %d)\n", len(orders), buys, sells)
	sort.Slice(orders, func(i, j int) bool { return orders[i].Price > orders[j].Price })
	for _, o := range orders {
		fmt.Printf("  %-4s %12.4f x %-12.6f oid=%d  %.1f 分钟\n",
			o.Side, o.Price, o.Size, o.ID, o.Age(now).Minutes())
	}
}
