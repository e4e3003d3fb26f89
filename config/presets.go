package config

func ptr[T any](v T) *T { return &v }

func defaultTiers() []TierConfig {
	spreads := []float64{0.001, 0.002, 0.003, 0.004, 0.005}
	ratios := []float64{0.50, 0.20, 0.10, 0.10, 0.10}
	out := make([]TierConfig, len(spreads))
	for i := range spreads {
		out[i] = TierConfig{Ratio: ratios[i], BuySpread: spreads[i], SellSpread: spreads[i]}
	}
	return out
}

func defaultVolatility(max float64) VolatilityConfig {
	return VolatilityConfig{
		Interval:      "5m",
		Period:        14,
		Padding:       ptr(5),
		BaseSpread:    0.001,
		MultiplierMin: 0.5,
		MultiplierMax: max,
	}
}

// PerpPreset BTC 永续：5 档，单侧 $500，仓位上限 $10000，偏移系数 0.25。
func PerpPreset() InstrumentConfig {
	return InstrumentConfig{
		Kind:               "perp",
		Coin:               "BTC",
		Symbol:             "BTC",
		AssetID:            ptr(0),
		TickSize:           1,
		SizeDecimals:       3,
		OrderNotional:      500,
		MaxOpenOrders:      50,
		OpenOrderMode:      "slots",
		OrderExpiryMinutes: DefaultExpiryMinutes,
		TimeInForce:        "Gtc",
		PositionDust:       DefaultPositionDust,
		Tiers:              defaultTiers(),
		Skew:               SkewConfig{Multiplier: ptr(0.25), MinSpread: 0.0001},
		Volatility:         defaultVolatility(2.0),
		Risk:               RiskConfig{MaxPositionNotional: 10000, ReserveRestingSells: ptr(true)},
	}
}

// DexPerpPreset HIP-3 dex 永续（xyz:XYZ100），偏移系数 1.5。
func DexPerpPreset() InstrumentConfig {
	ic := PerpPreset()
	ic.Coin = "xyz:XYZ100"
	ic.Symbol = "xyz:XYZ100"
	ic.Dex = "xyz"
	ic.AssetID = ptr(110000)
	ic.SizeDecimals = 4
	ic.Skew.Multiplier = ptr(1.5)
	return ic
}

// SpotPreset BTC/USDC 现货（@142）：目标币占比 50%，占比上限 70%。
func SpotPreset() InstrumentConfig {
	return InstrumentConfig{
		Kind:               "spot",
		Coin:               "BTC",
		Symbol:             "@142",
		AssetID:            ptr(SpotAssetOffset + 142),
		TickSize:           1,
		SizeDecimals:       5,
		OrderNotional:      500,
		MaxOpenOrders:      30,
		OpenOrderMode:      "per_side",
		OrderExpiryMinutes: DefaultExpiryMinutes,
		TimeInForce:        "Gtc",
		PositionDust:       DefaultPositionDust,
		Tiers:              defaultTiers(),
		Skew:               SkewConfig{Multiplier: ptr(1.0), MinSpread: 0.0001},
		Volatility:         defaultVolatility(3.0),
		Risk: RiskConfig{
			MaxCoinRatio:        0.7,
			MinSellRatio:        ptr(0.1),
			MinCoinBalance:      0.0001,
			ReserveRestingSells: ptr(true),
		},
		Spot: SpotConfig{CoinKey: "UBTC", QuoteKey: "USDC", TargetRatio: 0.5},
	}
}

// Presets 按名称索引的内置标的配置，供 cmd 工具在无配置文件时使用。
func Presets() map[string]InstrumentConfig {
	return map[string]InstrumentConfig{
		"btc-perp": PerpPreset(),
		"xyz-perp": DexPerpPreset(),
		"btc-spot": SpotPreset(),
	}
}
