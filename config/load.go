package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hyperliquid-mm/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string                      `yaml:"env"`
	Gateway     GatewayConfig               `yaml:"gateway"`
	Log         logger.Config               `yaml:"log"`
	Metrics     MetricsConfig               `yaml:"metrics"`
	Alert       AlertConfig                 `yaml:"alert"`
	Loop        LoopConfig                  `yaml:"loop"`
	Instruments map[string]InstrumentConfig `yaml:"instruments"`
}

type GatewayConfig struct {
	BaseURL        string  `yaml:"baseURL"` // info 与 exchange 共用的 REST 根地址
	WSURL          string  `yaml:"wsURL"`
	PrivateKey     string  `yaml:"privateKey"`
	AccountAddress string  `yaml:"accountAddress"`
	VaultAddress   string  `yaml:"vaultAddress"`
	TimeoutMs      int     `yaml:"timeoutMs"`
	RetryCount     int     `yaml:"retryCount"`
	RestRate       float64 `yaml:"restRate"` // 每秒请求数
	RestBurst      int     `yaml:"restBurst"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 为空则不启动 /metrics
}

type AlertConfig struct {
	WebhookURL  string `yaml:"webhookURL"`  // 为空只写日志
	ThrottleSec int    `yaml:"throttleSec"` // 同一告警的最小间隔
}

type LoopConfig struct {
	IntervalSec     int  `yaml:"intervalSec"`     // 两轮之间的休眠
	ErrorBackoffSec int  `yaml:"errorBackoffSec"` // 异常后的额外休眠
	OrderDelayMs    *int `yaml:"orderDelayMs"`    // 相邻两笔下单的间隔，0 表示不等待
}

// InstrumentConfig 统一描述永续、HIP-3 永续与现货三种标的。
type InstrumentConfig struct {
	Kind               string           `yaml:"kind"`   // perp | spot
	Coin               string           `yaml:"coin"`   // 显示名称，例如 BTC、xyz:XYZ100
	Symbol             string           `yaml:"symbol"` // 接口中的市场名；现货为 @index，空则同 coin
	Dex                string           `yaml:"dex"`    // HIP-3 dex 名称，普通永续为空
	// AssetID 为空时启动时按 meta/spotMeta 解析，显式填写则直接使用。
	AssetID            *int             `yaml:"assetID"`
	TickSize           float64          `yaml:"tickSize"`
	SizeDecimals       int32            `yaml:"sizeDecimals"`
	OrderNotional      float64          `yaml:"orderNotional"` // 每轮每侧名义预算（USD）
	MaxOpenOrders      int              `yaml:"maxOpenOrders"`
	OpenOrderMode      string           `yaml:"openOrderMode"` // slots | per_side
	OrderExpiryMinutes int              `yaml:"orderExpiryMinutes"`
	TimeInForce        string           `yaml:"timeInForce"`
	PositionDust       float64          `yaml:"positionDust"`
	Tiers              []TierConfig     `yaml:"tiers"`
	Skew               SkewConfig       `yaml:"skew"`
	Volatility         VolatilityConfig `yaml:"volatility"`
	Risk               RiskConfig       `yaml:"risk"`
	Spot               SpotConfig       `yaml:"spot"`
}

type TierConfig struct {
	Ratio      float64 `yaml:"ratio"`
	BuySpread  float64 `yaml:"buySpread"`
	SellSpread float64 `yaml:"sellSpread"`
}

type SkewConfig struct {
	Multiplier *float64 `yaml:"multiplier"` // 0 表示不做库存偏移
	MinSpread  float64  `yaml:"minSpread"`
}

type VolatilityConfig struct {
	Interval      string  `yaml:"interval"`
	Period        int     `yaml:"period"`
	Padding       *int    `yaml:"padding"`
	BaseSpread    float64 `yaml:"baseSpread"`
	MultiplierMin float64 `yaml:"multiplierMin"`
	MultiplierMax float64 `yaml:"multiplierMax"`
}

type RiskConfig struct {
	MaxPositionNotional float64  `yaml:"maxPositionNotional"` // 永续
	MaxCoinRatio        float64  `yaml:"maxCoinRatio"`        // 现货
	MinSellRatio        *float64 `yaml:"minSellRatio"`        // 现货
	MinCoinBalance      float64  `yaml:"minCoinBalance"`      // 现货
	ReserveRestingSells *bool    `yaml:"reserveRestingSells"` // 现货，默认开启
}

type SpotConfig struct {
	CoinKey     string  `yaml:"coinKey"`  // spotClearinghouseState 中基础币名称，例如 UBTC
	QuoteKey    string  `yaml:"quoteKey"` // 计价币名称，例如 USDC
	TargetRatio float64 `yaml:"targetRatio"`
}

// Load reads YAML config from path, fills defaults and validates.
func Load(path string) (AppConfig, error) {
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parse(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// LoadWithEnvOverrides loads .env (if any), then config, then overrides secrets from env vars.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := parse(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_PRIVATE_KEY"); v != "" {
		cfg.Gateway.PrivateKey = v
	}
	if v := os.Getenv("MM_ACCOUNT_ADDRESS"); v != "" {
		cfg.Gateway.AccountAddress = v
	}
	if v := os.Getenv("MM_VAULT_ADDRESS"); v != "" {
		cfg.Gateway.VaultAddress = v
	}
	return cfg, Validate(cfg)
}

// Instrument returns the named instrument config.
func (c AppConfig) Instrument(name string) (InstrumentConfig, error) {
	ic, ok := c.Instruments[name]
	if !ok {
		return InstrumentConfig{}, fmt.Errorf("instrument %q not configured", name)
	}
	return ic, nil
}
