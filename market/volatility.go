package market

import (
	"context"
	"math"
)

// CandleSource 提供最近的 K 线，按时间升序返回；失败时可返回空切片或错误。
type CandleSource interface {
	Candles(ctx context.Context, interval string, count int) ([]Candle, error)
}

// VolatilityConfig ATR 波动率乘数配置
type VolatilityConfig struct {
	Interval      string  // K 线周期，如 5m
	Period        int     // ATR 周期
	Padding       int     // 额外多取的 K 线数量
	BaseSpread    float64 // 基准价差，ATR/mid 与之相比得到乘数
	MultiplierMin float64
	MultiplierMax float64
}

// DefaultVolatilityConfig 返回默认配置
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		Interval:      "5m",
		Period:        14,
		Padding:       5,
		BaseSpread:    0.001,
		MultiplierMin: 0.5,
		MultiplierMax: 2.0,
	}
}

// NeutralMultiplier is returned whenever volatility cannot be estimated.
const NeutralMultiplier = 1.0

// TrueRanges returns TR for every bar after the first.
func TrueRanges(candles []Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		c := candles[i]
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		out = append(out, tr)
	}
	return out
}

// ATR 使用 Wilder 平滑计算平均真实波幅：前 period 个 TR 取均值作为种子，
// 之后 ATR = TR/period + ATR*(1-1/period)。K 线不足 period+1 根时返回 false。
func ATR(candles []Candle, period int) (float64, bool) {
	if period < 1 || len(candles) < period+1 {
		return 0, false
	}
	trs := TrueRanges(candles)
	sum := 0.0
	for _, tr := range trs[:period] {
		sum += tr
	}
	atr := sum / float64(period)
	k := 1 / float64(period)
	for _, tr := range trs[period:] {
		atr = tr*k + atr*(1-k)
	}
	if math.IsNaN(atr) || math.IsInf(atr, 0) {
		return 0, false
	}
	return atr, true
}

// VolMultiplier 将 ATR 转换为价差乘数并限制在 [min, max]。
func VolMultiplier(atr, mid float64, cfg VolatilityConfig) float64 {
	if mid <= 0 || cfg.BaseSpread <= 0 || math.IsNaN(atr) || atr < 0 {
		return NeutralMultiplier
	}
	raw := (atr / mid) / cfg.BaseSpread
	return clamp(raw, cfg.MultiplierMin, cfg.MultiplierMax)
}

// Estimate 记录一次估算的中间结果，便于日志。
type Estimate struct {
	Multiplier float64
	ATR        float64
	Candles    int
	Fallback   string // 非空表示使用了中性乘数
}

// VolatilityEstimator 每次调用都重新拉取 K 线并从头计算，不保留状态。
type VolatilityEstimator struct {
	cfg    VolatilityConfig
	source CandleSource
}

// NewVolatilityEstimator 创建估算器，非法参数回退默认值。
func NewVolatilityEstimator(cfg VolatilityConfig, source CandleSource) *VolatilityEstimator {
	def := DefaultVolatilityConfig()
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	if cfg.BaseSpread <= 0 {
		cfg.BaseSpread = def.BaseSpread
	}
	if cfg.MultiplierMin <= 0 {
		cfg.MultiplierMin = def.MultiplierMin
	}
	if cfg.MultiplierMax < cfg.MultiplierMin {
		cfg.MultiplierMax = cfg.MultiplierMin
	}
	return &VolatilityEstimator{cfg: cfg, source: source}
}

// Config returns the effective configuration.
func (v *VolatilityEstimator) Config() VolatilityConfig { return v.cfg }

// Estimate 拉取 period+padding 根 K 线并计算乘数；任何失败都返回中性乘数，不返回错误。
func (v *VolatilityEstimator) Estimate(ctx context.Context, mid float64) Estimate {
	if mid <= 0 {
		return Estimate{Multiplier: NeutralMultiplier, Fallback: "non-positive mid"}
	}
	if v.source == nil {
		return Estimate{Multiplier: NeutralMultiplier, Fallback: "no candle source"}
	}
	candles, err := v.source.Candles(ctx, v.cfg.Interval, v.cfg.Period+v.cfg.Padding)
	if err != nil {
		return Estimate{Multiplier: NeutralMultiplier, Fallback: "candles unavailable: " + err.Error()}
	}
	atr, ok := ATR(candles, v.cfg.Period)
	if !ok {
		return Estimate{Multiplier: NeutralMultiplier, Candles: len(candles), Fallback: "not enough candles"}
	}
	return Estimate{
		Multiplier: VolMultiplier(atr, mid, v.cfg),
		ATR:        atr,
		Candles:    len(candles),
	}
}

// Multiplier is Estimate without the diagnostics.
func (v *VolatilityEstimator) Multiplier(ctx context.Context, mid float64) float64 {
	return v.Estimate(ctx, mid).Multiplier
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
