package strategy

import (
	"errors"
	"fmt"
	"math"

	"hyperliquid-mm/order"
)

// Tier 定义阶梯中的一档：预算占比与两侧的基础价差。
type Tier struct {
	Ratio      float64
	BuySpread  float64
	SellSpread float64
}

// DefaultTiers 五档阶梯，最紧的一档预算最大。
func DefaultTiers() []Tier {
	return []Tier{
		{Ratio: 0.50, BuySpread: 0.001, SellSpread: 0.001},
		{Ratio: 0.20, BuySpread: 0.002, SellSpread: 0.002},
		{Ratio: 0.10, BuySpread: 0.003, SellSpread: 0.003},
		{Ratio: 0.10, BuySpread: 0.004, SellSpread: 0.004},
		{Ratio: 0.10, BuySpread: 0.005, SellSpread: 0.005},
	}
}

const ratioTolerance = 1e-6

// ValidateTiers 检查档位非空、价差为正、预算占比之和为 1。
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("at least one tier is required")
	}
	sum := 0.0
	for i, t := range tiers {
		if t.Ratio <= 0 {
			return fmt.Errorf("tier %d ratio must be > 0", i)
		}
		if t.BuySpread <= 0 || t.SellSpread <= 0 {
			return fmt.Errorf("tier %d spreads must be > 0", i)
		}
		sum += t.Ratio
	}
	if math.Abs(sum-1) > ratioTolerance {
		return fmt.Errorf("tier ratios sum to %.6f, want 1", sum)
	}
	return nil
}

// Ratios returns the budget ratio of every tier.
func Ratios(tiers []Tier) []float64 {
	out := make([]float64, len(tiers))
	for i, t := range tiers {
		out[i] = t.Ratio
	}
	return out
}

// BuildLadder 生成一侧的阶梯挂单：
// notional_i = total*ratio_i；买价 mid*(1-s_i)，卖价 mid*(1+s_i)，按 tick 取整；
// qty_i = notional_i/price_i，按数量精度取整。取整后价格或数量不为正的档位被丢弃。
func BuildLadder(side order.Side, mid float64, spreads, ratios []float64, totalNotional float64, prec order.Precision) []order.Intent {
	if mid <= 0 || totalNotional <= 0 {
		return nil
	}
	n := len(spreads)
	if len(ratios) < n {
		n = len(ratios)
	}
	out := make([]order.Intent, 0, n)
	for i := 0; i < n; i++ {
		raw := mid * (1 + spreads[i])
		if side.IsBuy() {
			raw = mid * (1 - spreads[i])
		}
		price := prec.RoundPrice(raw)
		if price <= 0 {
			continue
		}
		qty := prec.RoundQty(totalNotional * ratios[i] / price)
		if qty <= 0 {
			continue
		}
		out = append(out, order.Intent{Side: side, Price: price, Quantity: qty})
	}
	return out
}

// TotalQuantity sums the quantity of a ladder.
func TotalQuantity(intents []order.Intent) float64 {
	total := 0.0
	for _, in := range intents {
		total += in.Quantity
	}
	return total
}

// TotalNotional sums price*quantity of a ladder.
func TotalNotional(intents []order.Intent) float64 {
	total := 0.0
	for _, in := range intents {
		total += in.Notional()
	}
	return total
}
