package strategy

import "math"

// DefaultMinSpread 价差下限（0.01%）。
const DefaultMinSpread = 0.0001

// SkewConfig 库存偏移配置。
type SkewConfig struct {
	Multiplier float64 // 库存比例 -> 价差偏移的系数
	MinSpread  float64 // 调整后价差的下限，必须 > 0
}

// AdjustedSpreads 根据库存比例与波动率乘数调整各档价差。
// adj = inventoryRatio*multiplier；买侧 s*(1+adj)*vol，卖侧 s*(1-adj)*vol，
// 结果不低于 MinSpread。多头库存时买侧变宽、卖侧变窄，推动报价回归目标库存。
func AdjustedSpreads(tiers []Tier, inventoryRatio, volMultiplier float64, cfg SkewConfig) (buy, sell []float64) {
	floor := cfg.MinSpread
	if floor <= 0 {
		floor = DefaultMinSpread
	}
	adj := inventoryRatio * cfg.Multiplier
	buy = make([]float64, len(tiers))
	sell = make([]float64, len(tiers))
	for i, t := range tiers {
		buy[i] = math.Max(floor, t.BuySpread*(1+adj)*volMultiplier)
		sell[i] = math.Max(floor, t.SellSpread*(1-adj)*volMultiplier)
	}
	return buy, sell
}

// InventoryAdjustment returns the signed skew applied to the base spreads.
func InventoryAdjustment(inventoryRatio float64, cfg SkewConfig) float64 {
	return inventoryRatio * cfg.Multiplier
}
