package strategy

import (
	"errors"
	"fmt"

	"hyperliquid-mm/order"
)

// QuoterConfig 阶梯报价参数。
type QuoterConfig struct {
	Tiers         []Tier
	Skew          SkewConfig
	OrderNotional float64 // 每轮每侧的总名义预算
	Precision     order.Precision
}

// Ladder 一侧的报价结果，Spreads 与 Intents 按档位对齐（丢弃的档位除外）。
type Ladder struct {
	Side    order.Side
	Spreads []float64
	Intents []order.Intent
}

// Quoter 根据库存比例与波动率乘数生成阶梯报价，无内部状态。
type Quoter struct {
	cfg    QuoterConfig
	ratios []float64
}

// NewQuoter 校验配置并创建报价器。
func NewQuoter(cfg QuoterConfig) (*Quoter, error) {
	if err := ValidateTiers(cfg.Tiers); err != nil {
		return nil, fmt.Errorf("invalid tiers: %w", err)
	}
	if cfg.OrderNotional <= 0 {
		return nil, errors.New("order notional must be > 0")
	}
	if cfg.Skew.MinSpread <= 0 {
		cfg.Skew.MinSpread = DefaultMinSpread
	}
	return &Quoter{cfg: cfg, ratios: Ratios(cfg.Tiers)}, nil
}

// TierCount returns the number of rungs per side.
func (q *Quoter) TierCount() int { return len(q.cfg.Tiers) }

// OrderNotional returns the per-side budget.
func (q *Quoter) OrderNotional() float64 { return q.cfg.OrderNotional }

// Spreads returns the adjusted spreads for both sides.
func (q *Quoter) Spreads(inventoryRatio, volMultiplier float64) (buy, sell []float64) {
	return AdjustedSpreads(q.cfg.Tiers, inventoryRatio, volMultiplier, q.cfg.Skew)
}

// Quote 生成指定方向的阶梯。
func (q *Quoter) Quote(side order.Side, mid, inventoryRatio, volMultiplier float64) Ladder {
	buy, sell := q.Spreads(inventoryRatio, volMultiplier)
	spreads := sell
	if side.IsBuy() {
		spreads = buy
	}
	return Ladder{
		Side:    side,
		Spreads: spreads,
		Intents: BuildLadder(side, mid, spreads, q.ratios, q.cfg.OrderNotional, q.cfg.Precision),
	}
}
