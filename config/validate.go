package config

import (
	"errors"
	"fmt"

	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
	"hyperliquid-mm/strategy"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present and ranges are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required")
	}
	if cfg.Gateway.AccountAddress == "" {
		return errors.New("gateway.accountAddress is required (or MM_ACCOUNT_ADDRESS)")
	}
	if cfg.Gateway.RestRate < 0 || cfg.Gateway.RestBurst < 0 {
		return errors.New("gateway.restRate/restBurst must be >= 0")
	}
	if cfg.Loop.IntervalSec < 0 || cfg.Loop.ErrorBackoffSec < 0 || cfg.Loop.OrderDelay() < 0 {
		return errors.New("loop intervals must be >= 0")
	}
	if len(cfg.Instruments) == 0 {
		return errors.New("instruments config is required")
	}
	for name, ic := range cfg.Instruments {
		if err := ValidateInstrument(ic); err != nil {
			return fmt.Errorf("instrument %s: %w", name, err)
		}
	}
	return nil
}

// ValidateInstrument 校验单个标的配置（需在 ApplyDefaults 之后调用）。
func ValidateInstrument(ic InstrumentConfig) error {
	switch ic.Kind {
	case "perp", "spot":
	default:
		return ErrInvalid(fmt.Sprintf("kind %q must be perp or spot", ic.Kind))
	}
	if ic.Coin == "" {
		return ErrInvalid("coin is required")
	}
	if err := validateAssetID(ic); err != nil {
		return err
	}
	if ic.TickSize <= 0 {
		return ErrInvalid("tickSize must be > 0")
	}
	if ic.SizeDecimals < 0 {
		return ErrInvalid("sizeDecimals must be >= 0")
	}
	if ic.OrderNotional <= 0 {
		return ErrInvalid("orderNotional must be > 0")
	}
	if ic.MaxOpenOrders < 0 {
		return ErrInvalid("maxOpenOrders must be >= 0")
	}
	switch ic.OpenOrderMode {
	case "slots", "per_side":
	default:
		return ErrInvalid(fmt.Sprintf("openOrderMode %q must be slots or per_side", ic.OpenOrderMode))
	}
	if ic.OrderExpiryMinutes <= 0 {
		return ErrInvalid("orderExpiryMinutes must be > 0")
	}
	switch order.TimeInForce(ic.TimeInForce) {
	case order.Gtc, order.Alo, order.Ioc:
	default:
		return ErrInvalid(fmt.Sprintf("timeInForce %q must be Gtc, Alo or Ioc", ic.TimeInForce))
	}
	if err := strategy.ValidateTiers(ic.TierTable()); err != nil {
		return ErrInvalid(fmt.Sprintf("tiers: %v", err))
	}
	if ic.Skew.MinSpread <= 0 {
		return ErrInvalid("skew.minSpread must be > 0")
	}
	if ic.Skew.Multiplier != nil && *ic.Skew.Multiplier < 0 {
		return ErrInvalid("skew.multiplier must be >= 0")
	}

	v := ic.Volatility
	if _, err := market.ParseInterval(v.Interval); err != nil {
		return ErrInvalid(fmt.Sprintf("volatility.interval: %v", err))
	}
	if v.Period < 1 || (v.Padding != nil && *v.Padding < 0) {
		return ErrInvalid("volatility.period must be >= 1 and padding >= 0")
	}
	if v.BaseSpread <= 0 {
		return ErrInvalid("volatility.baseSpread must be > 0")
	}
	if v.MultiplierMin <= 0 || v.MultiplierMax < v.MultiplierMin {
		return ErrInvalid("volatility multiplier bounds must satisfy 0 < min <= max")
	}

	if ic.Kind == "perp" && ic.Risk.MaxPositionNotional <= 0 {
		return ErrInvalid("risk.maxPositionNotional must be > 0")
	}
	if ic.Kind == "spot" {
		if ic.Risk.MaxCoinRatio <= 0 || ic.Risk.MaxCoinRatio > 1 {
			return ErrInvalid("risk.maxCoinRatio must be in (0,1]")
		}
		if msr := ic.Limits().MinSellRatio; msr < 0 || msr >= ic.Risk.MaxCoinRatio {
			return ErrInvalid("risk.minSellRatio must be in [0, maxCoinRatio)")
		}
		if ic.Spot.CoinKey == "" || ic.Spot.QuoteKey == "" {
			return ErrInvalid("spot.coinKey/quoteKey is required")
		}
		if ic.Spot.TargetRatio <= 0 || ic.Spot.TargetRatio >= 1 {
			return ErrInvalid("spot.targetRatio must be in (0,1)")
		}
	}
	return nil
}

// validateAssetID 只检查显式填写的资产 id 是否落在对应市场的编号区间：
// 普通永续 [0,10000)，现货 [10000,100000)，HIP-3 dex 永续 >= 100000。
func validateAssetID(ic InstrumentConfig) error {
	if ic.AssetID == nil {
		return nil
	}
	id := *ic.AssetID
	switch {
	case ic.Kind == "spot":
		if id < SpotAssetOffset || id >= DexAssetOffset {
			return ErrInvalid(fmt.Sprintf("assetID %d is not a spot asset (expected %d..%d)", id, SpotAssetOffset, DexAssetOffset-1))
		}
	case ic.Dex != "":
		if id < DexAssetOffset {
			return ErrInvalid(fmt.Sprintf("assetID %d is not a dex perp asset (expected >= %d)", id, DexAssetOffset))
		}
	default:
		if id < 0 || id >= SpotAssetOffset {
			return ErrInvalid(fmt.Sprintf("assetID %d is not a perp asset (expected 0..%d)", id, SpotAssetOffset-1))
		}
	}
	return nil
}
