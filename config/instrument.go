package config

import (
	"strings"
	"time"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
	"hyperliquid-mm/risk"
	"hyperliquid-mm/strategy"
)

// 以下方法把 YAML 结构转换为各领域包的配置类型。

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (ic InstrumentConfig) InventoryKind() inventory.Kind {
	if ic.Kind == "spot" {
		return inventory.KindSpot
	}
	return inventory.KindPerp
}

func (ic InstrumentConfig) TierTable() []strategy.Tier {
	out := make([]strategy.Tier, len(ic.Tiers))
	for i, t := range ic.Tiers {
		out[i] = strategy.Tier{Ratio: t.Ratio, BuySpread: t.BuySpread, SellSpread: t.SellSpread}
	}
	return out
}

func (ic InstrumentConfig) Precision() order.Precision {
	return order.Precision{TickSize: ic.TickSize, SizeDecimals: ic.SizeDecimals}
}

func (ic InstrumentConfig) QuoterConfig() strategy.QuoterConfig {
	return strategy.QuoterConfig{
		Tiers:         ic.TierTable(),
		Skew:          strategy.SkewConfig{Multiplier: deref(ic.Skew.Multiplier), MinSpread: ic.Skew.MinSpread},
		OrderNotional: ic.OrderNotional,
		Precision:     ic.Precision(),
	}
}

func (ic InstrumentConfig) VolatilityConfig() market.VolatilityConfig {
	v := ic.Volatility
	return market.VolatilityConfig{
		Interval:      v.Interval,
		Period:        v.Period,
		Padding:       deref(v.Padding),
		BaseSpread:    v.BaseSpread,
		MultiplierMin: v.MultiplierMin,
		MultiplierMax: v.MultiplierMax,
	}
}

func (ic InstrumentConfig) Limits() risk.Limits {
	reserve := true
	if ic.Risk.ReserveRestingSells != nil {
		reserve = *ic.Risk.ReserveRestingSells
	}
	return risk.Limits{
		MaxOpenOrders:       ic.MaxOpenOrders,
		OpenOrderMode:       risk.OpenOrderMode(ic.OpenOrderMode),
		MaxPositionNotional: ic.Risk.MaxPositionNotional,
		MaxCoinRatio:        ic.Risk.MaxCoinRatio,
		MinSellRatio:        deref(ic.Risk.MinSellRatio),
		MinCoinBalance:      ic.Risk.MinCoinBalance,
		ReserveRestingSells: reserve,
	}
}

func (ic InstrumentConfig) OrderExpiry() time.Duration {
	return time.Duration(ic.OrderExpiryMinutes) * time.Minute
}

func (l LoopConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSec) * time.Second
}

func (l LoopConfig) ErrorBackoff() time.Duration {
	return time.Duration(l.ErrorBackoffSec) * time.Second
}

func (l LoopConfig) OrderDelay() time.Duration {
	return time.Duration(deref(l.OrderDelayMs)) * time.Millisecond
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

// Mainnet 由 baseURL 推断签名使用的链（testnet 域名为测试网）。
func (g GatewayConfig) Mainnet() bool {
	return !strings.Contains(g.BaseURL, "testnet")
}
