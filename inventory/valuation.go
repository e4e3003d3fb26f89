package inventory

// Kind 标的类型。
type Kind string

const (
	KindPerp Kind = "perp"
	KindSpot Kind = "spot"
)

// Snapshot 是一轮迭代读取到的库存状态，只读。
type Snapshot struct {
	Kind     Kind
	Mid      float64
	Perp     PerpPosition
	Spot     SpotBalances
	MaxValue float64 // 永续：最大仓位名义
	Target   float64 // 现货：目标币占比
}

// SkewInput 返回送入价差偏移计算的库存比例：
// 永续为带符号的仓位比例；现货为币占比减去目标占比。
func (s Snapshot) SkewInput() float64 {
	if s.Kind == KindSpot {
		return s.Spot.CoinRatio(s.Mid) - s.Target
	}
	return s.Perp.Ratio(s.Mid, s.MaxValue)
}

// PositionValue returns the signed perp notional, or the coin value for spot.
func (s Snapshot) PositionValue() float64 {
	if s.Kind == KindSpot {
		return s.Spot.CoinValue(s.Mid)
	}
	return s.Perp.Value(s.Mid)
}
