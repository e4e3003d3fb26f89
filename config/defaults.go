package config

import (
	"strconv"
	"strings"

	"hyperliquid-mm/infrastructure/logger"
)

const (
	DefaultBaseURL         = "https://api.hyperliquid.xyz"
	DefaultWSURL           = "wss://api.hyperliquid.xyz/ws"
	DefaultIntervalSec     = 60
	DefaultErrorBackoffSec = 5
	DefaultOrderDelayMs    = 200
	DefaultExpiryMinutes   = 15
	DefaultPositionDust    = 0.001

	// SpotAssetOffset 现货资产 id = 10000 + spot index。
	SpotAssetOffset = 10000
	// DexAssetOffset HIP-3 dex 永续资产 id = 100000 + dex 序号*10000 + meta index。
	DexAssetOffset = 100000
)

// ApplyDefaults 填充未配置的字段，在校验之前调用。
func ApplyDefaults(cfg *AppConfig) {
	g := &cfg.Gateway
	if g.BaseURL == "" {
		g.BaseURL = DefaultBaseURL
	}
	if g.WSURL == "" {
		g.WSURL = DefaultWSURL
	}
	if g.TimeoutMs == 0 {
		g.TimeoutMs = 10000
	}
	if g.RestRate == 0 {
		g.RestRate = 10
	}
	if g.RestBurst == 0 {
		g.RestBurst = 20
	}

	applyLogDefaults(&cfg.Log)

	if cfg.Alert.ThrottleSec == 0 {
		cfg.Alert.ThrottleSec = 300
	}

	if cfg.Loop.IntervalSec == 0 {
		cfg.Loop.IntervalSec = DefaultIntervalSec
	}
	if cfg.Loop.ErrorBackoffSec == 0 {
		cfg.Loop.ErrorBackoffSec = DefaultErrorBackoffSec
	}
	if cfg.Loop.OrderDelayMs == nil {
		cfg.Loop.OrderDelayMs = ptr(DefaultOrderDelayMs)
	}

	for name, ic := range cfg.Instruments {
		applyInstrumentDefaults(&ic)
		cfg.Instruments[name] = ic
	}
}

// applyLogDefaults 逐字段补缺省值，已配置的输出与文件路径保持不变。
func applyLogDefaults(l *logger.Config) {
	d := logger.DefaultConfig()
	if l.Level == "" {
		l.Level = d.Level
	}
	if len(l.Outputs) == 0 {
		l.Outputs = d.Outputs
	}
	if l.Format == "" {
		l.Format = d.Format
	}
	if l.MaxSize == 0 {
		l.MaxSize = d.MaxSize
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = d.MaxBackups
	}
	if l.MaxAge == 0 {
		l.MaxAge = d.MaxAge
	}
}

func applyInstrumentDefaults(ic *InstrumentConfig) {
	var base InstrumentConfig
	if ic.Kind == "spot" {
		base = SpotPreset()
	} else {
		if ic.Kind == "" {
			ic.Kind = "perp"
		}
		base = PerpPreset()
	}

	if ic.Symbol == "" {
		ic.Symbol = ic.Coin
	}
	// @N 形式的现货可直接推出资产 id，其余未填写的在启动时查询 meta
	if ic.AssetID == nil && ic.Kind == "spot" {
		if idx, ok := spotIndex(ic.Symbol); ok {
			ic.AssetID = ptr(SpotAssetOffset + idx)
		}
	}
	if ic.OrderNotional == 0 {
		ic.OrderNotional = base.OrderNotional
	}
	if ic.MaxOpenOrders == 0 {
		ic.MaxOpenOrders = base.MaxOpenOrders
	}
	if ic.OpenOrderMode == "" {
		ic.OpenOrderMode = base.OpenOrderMode
	}
	if ic.OrderExpiryMinutes == 0 {
		ic.OrderExpiryMinutes = base.OrderExpiryMinutes
	}
	if ic.TimeInForce == "" {
		ic.TimeInForce = base.TimeInForce
	}
	if ic.PositionDust == 0 {
		ic.PositionDust = base.PositionDust
	}
	if len(ic.Tiers) == 0 {
		ic.Tiers = base.Tiers
	}
	if ic.Skew.Multiplier == nil {
		ic.Skew.Multiplier = base.Skew.Multiplier
	}
	if ic.Skew.MinSpread == 0 {
		ic.Skew.MinSpread = base.Skew.MinSpread
	}

	v, bv := &ic.Volatility, base.Volatility
	if v.Interval == "" {
		v.Interval = bv.Interval
	}
	if v.Period == 0 {
		v.Period = bv.Period
	}
	if v.Padding == nil {
		v.Padding = bv.Padding
	}
	if v.BaseSpread == 0 {
		v.BaseSpread = bv.BaseSpread
	}
	if v.MultiplierMin == 0 {
		v.MultiplierMin = bv.MultiplierMin
	}
	if v.MultiplierMax == 0 {
		v.MultiplierMax = bv.MultiplierMax
	}

	r, br := &ic.Risk, base.Risk
	if r.MaxPositionNotional == 0 {
		r.MaxPositionNotional = br.MaxPositionNotional
	}
	if r.MaxCoinRatio == 0 {
		r.MaxCoinRatio = br.MaxCoinRatio
	}
	if r.MinSellRatio == nil {
		r.MinSellRatio = br.MinSellRatio
	}
	if r.MinCoinBalance == 0 {
		r.MinCoinBalance = br.MinCoinBalance
	}
	if r.ReserveRestingSells == nil {
		r.ReserveRestingSells = br.ReserveRestingSells
	}

	if ic.Kind == "spot" {
		if ic.Spot.CoinKey == "" {
			ic.Spot.CoinKey = base.Spot.CoinKey
		}
		if ic.Spot.QuoteKey == "" {
			ic.Spot.QuoteKey = base.Spot.QuoteKey
		}
		if ic.Spot.TargetRatio == 0 {
			ic.Spot.TargetRatio = base.Spot.TargetRatio
		}
	}
}

func spotIndex(symbol string) (int, bool) {
	if !strings.HasPrefix(symbol, "@") {
		return 0, false
	}
	idx, err := strconv.Atoi(symbol[1:])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
