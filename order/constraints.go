package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision 描述交易对的价格 tick 与数量小数位。
type Precision struct {
	TickSize     float64
	SizeDecimals int32
}

// RoundPrice 将价格四舍五入到最近的 tick。
func (p Precision) RoundPrice(price float64) float64 {
	if p.TickSize <= 0 {
		return price
	}
	tick := decimal.NewFromFloat(p.TickSize)
	v := decimal.NewFromFloat(price).Div(tick).Round(0).Mul(tick)
	f, _ := v.Float64()
	return f
}

// RoundQty 将数量四舍五入到 SizeDecimals 位小数。
func (p Precision) RoundQty(qty float64) float64 {
	f, _ := decimal.NewFromFloat(qty).Round(p.SizeDecimals).Float64()
	return f
}

// Validate 检查订单价格/数量是否为正且符合精度。
func (p Precision) Validate(price, qty float64) error {
	if price <= 0 {
		return fmt.Errorf("price %.8f must be > 0", price)
	}
	if qty <= 0 {
		return fmt.Errorf("qty %.8f must be > 0", qty)
	}
	if p.TickSize > 0 && !isMultiple(price, p.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tickSize %.8f", price, p.TickSize)
	}
	if !decimal.NewFromFloat(qty).Equal(decimal.NewFromFloat(qty).Round(p.SizeDecimals)) {
		return fmt.Errorf("qty %.8f exceeds %d size decimals", qty, p.SizeDecimals)
	}
	return nil
}

func isMultiple(value, step float64) bool {
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	return v.Mod(s).IsZero()
}
