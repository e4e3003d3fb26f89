package inventory

import "math"

// PerpPosition 永续合约仓位快照，Size 带符号（正为多、负为空）。
type PerpPosition struct {
	Size          float64
	EntryPrice    float64
	UnrealizedPnl float64
	MarginUsed    float64
}

// Value returns the signed notional at mid.
func (p PerpPosition) Value(mid float64) float64 {
	return p.Size * mid
}

// Ratio 返回仓位价值与最大仓位名义之比（带符号）；maxNotional<=0 时为 0。
func (p PerpPosition) Ratio(mid, maxNotional float64) float64 {
	if maxNotional <= 0 || mid <= 0 {
		return 0
	}
	return p.Value(mid) / maxNotional
}

// Status 返回 Neutral/Long/Short。
func (p PerpPosition) Status(dust float64) string {
	switch {
	case math.Abs(p.Size) < dust:
		return "Neutral"
	case p.Size > 0:
		return "Long"
	default:
		return "Short"
	}
}

// SpotBalances 现货账户中基础币与计价币的余额。
type SpotBalances struct {
	Coin  float64
	Quote float64
}

// FromMap 从 coin→amount 映射中取出基础币与计价币余额，缺失视为 0。
func FromMap(balances map[string]float64, coinKey, quoteKey string) SpotBalances {
	return SpotBalances{Coin: balances[coinKey], Quote: balances[quoteKey]}
}

// CoinValue returns the quote value of the coin balance.
func (b SpotBalances) CoinValue(mid float64) float64 {
	return b.Coin * mid
}

// TotalValue returns coin value plus quote balance.
func (b SpotBalances) TotalValue(mid float64) float64 {
	return b.CoinValue(mid) + b.Quote
}

// NeutralCoinRatio 账户总值为 0 时使用的币占比。
const NeutralCoinRatio = 0.5

// CoinRatio 基础币价值占账户总值的比例，范围 [0,1]。
func (b SpotBalances) CoinRatio(mid float64) float64 {
	total := b.TotalValue(mid)
	if total <= 0 {
		return NeutralCoinRatio
	}
	return b.CoinValue(mid) / total
}

// Status 按与目标占比的偏离返回 Balanced / Coin heavy / Quote heavy。
func (b SpotBalances) Status(mid, target, band float64) string {
	dev := b.CoinRatio(mid) - target
	switch {
	case math.Abs(dev) < band:
		return "Balanced"
	case dev > 0:
		return "Coin heavy"
	default:
		return "Quote heavy"
	}
}
