package engine

import (
	"fmt"
	"time"

	"hyperliquid-mm/config"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
	"hyperliquid-mm/risk"
	"hyperliquid-mm/strategy"
)

// Config 一个标的的引擎参数；永续、HIP-3 永续与现货共用同一结构。
type Config struct {
	Instrument   string
	Kind         inventory.Kind
	Quoter       strategy.QuoterConfig
	Volatility   market.VolatilityConfig
	Limits       risk.Limits
	TargetRatio  float64 // 现货目标币占比
	PositionDust float64
	OrderExpiry  time.Duration
	TimeInForce  order.TimeInForce
	OrderDelay   time.Duration
	Interval     time.Duration
	ErrorBackoff time.Duration
}

const (
	defaultInterval     = 60 * time.Second
	defaultErrorBackoff = 5 * time.Second
	defaultOrderDelay   = 200 * time.Millisecond
	statusBand          = 0.1
)

// ConfigFromInstrument 把 YAML 配置映射为引擎参数。
func ConfigFromInstrument(name string, ic config.InstrumentConfig, loop config.LoopConfig) Config {
	return Config{
		Instrument:   name,
		Kind:         ic.InventoryKind(),
		Quoter:       ic.QuoterConfig(),
		Volatility:   ic.VolatilityConfig(),
		Limits:       ic.Limits(),
		TargetRatio:  ic.Spot.TargetRatio,
		PositionDust: ic.PositionDust,
		OrderExpiry:  ic.OrderExpiry(),
		TimeInForce:  order.TimeInForce(ic.TimeInForce),
		OrderDelay:   loop.OrderDelay(),
		Interval:     loop.Interval(),
		ErrorBackoff: loop.ErrorBackoff(),
	}
}

func (c Config) withDefaults() Config {
	if c.Kind == "" {
		c.Kind = inventory.KindPerp
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = defaultErrorBackoff
	}
	if c.OrderDelay < 0 {
		c.OrderDelay = defaultOrderDelay
	}
	if c.TimeInForce == "" {
		c.TimeInForce = order.Gtc
	}
	if c.Kind == inventory.KindSpot && c.TargetRatio == 0 {
		c.TargetRatio = inventory.NeutralCoinRatio
	}
	return c
}

func (c Config) validate() error {
	if c.Instrument == "" {
		return fmt.Errorf("instrument name is required")
	}
	if c.OrderExpiry <= 0 {
		return fmt.Errorf("order expiry must be > 0")
	}
	if c.Kind == inventory.KindPerp && c.Limits.MaxPositionNotional <= 0 {
		return fmt.Errorf("perp requires max position notional > 0")
	}
	return nil
}
