package risk

import (
	"fmt"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/order"
)

// OpenOrderMode 挂单数量检查方式。
type OpenOrderMode string

const (
	// ModeSlots 要求本侧现有挂单加上整套阶梯不超过上限。
	ModeSlots OpenOrderMode = "slots"
	// ModePerSide 只要求本侧现有挂单未达到上限。
	ModePerSide OpenOrderMode = "per_side"
)

// DefaultMinCoinBalance 低于该数量视为没有可卖的币。
const DefaultMinCoinBalance = 0.0001

// Limits 配置。
type Limits struct {
	MaxOpenOrders       int
	OpenOrderMode       OpenOrderMode
	MaxPositionNotional float64 // 永续：最大仓位名义（双向）
	MaxCoinRatio        float64 // 现货：币占比达到该值后停止买入
	MinSellRatio        float64 // 现货：币占比低于该值时不挂卖单
	MinCoinBalance      float64 // 现货：低于该余额视为 0
	ReserveRestingSells bool    // 现货：卖单覆盖检查扣除已挂卖单数量
}

// State 是一侧挂单前的只读风控输入。
type State struct {
	Kind           inventory.Kind
	OpenForSide    int
	TierCount      int
	PositionValue  float64 // 永续：带符号仓位名义
	CoinRatio      float64 // 现货
	CoinBalance    float64 // 现货
	QuoteBalance   float64 // 现货
	OrderNotional  float64 // 本侧阶梯的总名义预算
	RestingSellQty float64 // 现货：已挂卖单数量
}

// Gate 是纯判定函数集合，无副作用；调用方负责执行结论（跳过 + 记录）。
type Gate struct {
	limits Limits
}

// NewGate 创建风控闸门。
func NewGate(limits Limits) *Gate {
	if limits.OpenOrderMode == "" {
		limits.OpenOrderMode = ModeSlots
	}
	if limits.MinCoinBalance <= 0 {
		limits.MinCoinBalance = DefaultMinCoinBalance
	}
	return &Gate{limits: limits}
}

// Limits returns the effective limits.
func (g *Gate) Limits() Limits { return g.limits }

// CheckOpenOrders 校验本侧挂单数量。
func (g *Gate) CheckOpenOrders(openForSide, tierCount int) error {
	max := g.limits.MaxOpenOrders
	if max <= 0 {
		return nil
	}
	if g.limits.OpenOrderMode == ModePerSide {
		if openForSide >= max {
			return fmt.Errorf("%w: %d >= %d", ErrOpenOrderLimit, openForSide, max)
		}
		return nil
	}
	if openForSide+tierCount > max {
		return fmt.Errorf("%w: need %d, %d available", ErrOpenOrderSlots, tierCount, max-openForSide)
	}
	return nil
}

// CheckPerp 永续仓位上限（含边界）：多头仓位价值 >= 上限时禁止买，<= -上限时禁止卖。
func (g *Gate) CheckPerp(side order.Side, positionValue float64) error {
	max := g.limits.MaxPositionNotional
	if max <= 0 {
		return nil
	}
	if side.IsBuy() && positionValue >= max {
		return fmt.Errorf("%w: long %.2f >= %.2f", ErrPositionLimit, positionValue, max)
	}
	if !side.IsBuy() && positionValue <= -max {
		return fmt.Errorf("%w: short %.2f <= -%.2f", ErrPositionLimit, positionValue, max)
	}
	return nil
}

// CheckSpotBuy 现货买入：币占比达到上限或计价币不足一轮预算时拒绝。
func (g *Gate) CheckSpotBuy(coinRatio, quoteBalance, orderNotional float64) error {
	if g.limits.MaxCoinRatio > 0 && coinRatio >= g.limits.MaxCoinRatio {
		return fmt.Errorf("%w: ratio %.4f >= %.4f", ErrCoinRatioLimit, coinRatio, g.limits.MaxCoinRatio)
	}
	if quoteBalance < orderNotional {
		return fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientQuote, quoteBalance, orderNotional)
	}
	return nil
}

// CheckSpotSellRatio 币占比低于 MinSellRatio 时不挂卖单。
func (g *Gate) CheckSpotSellRatio(coinRatio float64) error {
	if g.limits.MinSellRatio > 0 && coinRatio < g.limits.MinSellRatio {
		return fmt.Errorf("%w: ratio %.4f < min sell %.4f", ErrCoinRatioLimit, coinRatio, g.limits.MinSellRatio)
	}
	return nil
}

// CheckSpotSell 现货卖出：余额约为 0，或阶梯总数量超过可用余额时拒绝。
// 开启 ReserveRestingSells 时可用余额扣除已挂卖单数量，避免跨轮超卖。
func (g *Gate) CheckSpotSell(coinBalance, ladderQty, restingSellQty float64) error {
	if coinBalance < g.limits.MinCoinBalance {
		return fmt.Errorf("%w: balance %.8f too low", ErrInsufficientCoin, coinBalance)
	}
	available := coinBalance
	if g.limits.ReserveRestingSells {
		available -= restingSellQty
	}
	if ladderQty > available {
		return fmt.Errorf("%w: need %.8f, have %.8f", ErrInsufficientCoin, ladderQty, available)
	}
	return nil
}

// MayQuote 执行阶梯构建前的检查。现货卖出的数量覆盖检查依赖阶梯，见 CheckSpotSell。
func (g *Gate) MayQuote(side order.Side, st State) error {
	checks := []Check{func() error { return g.CheckOpenOrders(st.OpenForSide, st.TierCount) }}
	switch {
	case st.Kind == inventory.KindSpot && side.IsBuy():
		checks = append(checks, func() error { return g.CheckSpotBuy(st.CoinRatio, st.QuoteBalance, st.OrderNotional) })
	case st.Kind == inventory.KindSpot:
		checks = append(checks,
			func() error { return g.CheckSpotSellRatio(st.CoinRatio) },
			func() error {
				if st.CoinBalance < g.limits.MinCoinBalance {
					return fmt.Errorf("%w: balance %.8f too low", ErrInsufficientCoin, st.CoinBalance)
				}
				return nil
			})
	default:
		checks = append(checks, func() error { return g.CheckPerp(side, st.PositionValue) })
	}
	return All(checks...)
}
