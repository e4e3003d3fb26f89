package container

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"hyperliquid-mm/config"
	"hyperliquid-mm/gateway"
	"hyperliquid-mm/infrastructure/alert"
	"hyperliquid-mm/infrastructure/logger"
	"hyperliquid-mm/internal/engine"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/metrics"
	"hyperliquid-mm/sim"
)

// Options 启动参数（来自命令行）。
type Options struct {
	ConfigPath  string
	Instruments []string // 为空则运行配置中的全部标的
	DryRun      bool
	PaperCoin   float64 // dry run 现货初始币余额
	PaperQuote  float64 // dry run 现货初始计价币余额
	MetricsAddr string  // 非空时覆盖配置
	Watch       bool    // 监听配置文件热更新
}

// Container 组装并管理报价进程的全部组件。
type Container struct {
	opts Options
	cfg  config.AppConfig

	logger *logger.Logger
	alerts *alert.Manager

	info    *gateway.InfoClient
	exch    *gateway.ExchangeClient
	feeds   map[string]*gateway.MidFeed // 按 dex 共享
	insts   map[string]*gateway.Instrument
	engines map[string]*engine.Engine

	lifecycle *LifecycleManager
}

// New 加载配置并创建 Container。
func New(opts Options) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg, opts), nil
}

// NewFromConfig 使用已加载的配置创建 Container。
func NewFromConfig(cfg config.AppConfig, opts Options) *Container {
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	return &Container{
		opts:      opts,
		cfg:       cfg,
		feeds:     make(map[string]*gateway.MidFeed),
		insts:     make(map[string]*gateway.Instrument),
		engines:   make(map[string]*engine.Engine),
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件；未配置 assetID 的标的在此查询交易所 meta。
func (c *Container) Build(ctx context.Context) error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}
	if err := c.buildEngines(ctx); err != nil {
		return fmt.Errorf("build engines failed: %w", err)
	}
	c.registerLifecycleComponents()
	c.logger.Info("container built",
		zap.Bool("dry_run", c.opts.DryRun),
		zap.Strings("instruments", c.InstrumentNames()))
	return nil
}

func (c *Container) buildInfrastructure() error {
	if c.logger == nil {
		l, err := logger.New(c.cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger failed: %w", err)
		}
		c.logger = l
	}
	channels := []alert.Channel{alert.NewLogChannel(c.logger.Logger)}
	if c.cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel(c.cfg.Alert.WebhookURL, 5*time.Second))
	}
	c.alerts = alert.NewManager(channels, time.Duration(c.cfg.Alert.ThrottleSec)*time.Second)
	return nil
}

func (c *Container) buildGateway() error {
	info, exch, err := NewClients(c.cfg.Gateway, !c.opts.DryRun)
	if err != nil {
		return err
	}
	c.info, c.exch = info, exch
	return nil
}

// NewClients 根据网关配置创建 info 与 exchange 客户端；trading 为 false 时不需要私钥，exchange 为 nil。
func NewClients(g config.GatewayConfig, trading bool) (*gateway.InfoClient, *gateway.ExchangeClient, error) {
	opts := gateway.ClientOptions{
		BaseURL:    g.BaseURL,
		Timeout:    g.Timeout(),
		RetryCount: g.RetryCount,
		Limiter:    gateway.NewTokenBucketLimiter(g.RestRate, g.RestBurst),
	}
	info := gateway.NewInfoClient(opts)
	if !trading {
		return info, nil, nil
	}
	if g.PrivateKey == "" {
		return nil, nil, fmt.Errorf("gateway.privateKey is required for trading (or MM_PRIVATE_KEY)")
	}
	signer, err := gateway.NewSigner(g.PrivateKey, g.Mainnet())
	if err != nil {
		return nil, nil, err
	}
	return info, gateway.NewExchangeClient(opts, signer, g.VaultAddress), nil
}

// OpenInstrument 为 cmd 工具创建单个标的的 gateway 适配器，并解析资产 id。
func OpenInstrument(ctx context.Context, cfg config.AppConfig, name string, trading bool) (*gateway.Instrument, config.InstrumentConfig, error) {
	ic, err := cfg.Instrument(name)
	if err != nil {
		return nil, ic, err
	}
	info, exch, err := NewClients(cfg.Gateway, trading)
	if err != nil {
		return nil, ic, err
	}
	inst := gateway.NewInstrument(gateway.MarketFromConfig(ic), cfg.Gateway.AccountAddress, info, exch)
	if err := inst.ResolveAsset(ctx); err != nil {
		return nil, ic, fmt.Errorf("instrument %s: %w", name, err)
	}
	return inst, ic, nil
}

func (c *Container) buildEngines(ctx context.Context) error {
	for _, name := range c.InstrumentNames() {
		ic, err := c.cfg.Instrument(name)
		if err != nil {
			return err
		}
		market := gateway.MarketFromConfig(ic)
		inst := gateway.NewInstrument(market, c.cfg.Gateway.AccountAddress, c.info, c.exch)
		if err := inst.ResolveAsset(ctx); err != nil {
			return fmt.Errorf("instrument %s: %w", name, err)
		}
		if market.AssetID == gateway.UnresolvedAsset {
			c.logger.Info("asset id resolved", zap.String("instrument", name),
				zap.String("symbol", market.Symbol), zap.Int("asset", inst.Market.AssetID))
		}
		if c.cfg.Gateway.WSURL != "" {
			inst.Feed = c.feed(market.Dex)
		}
		c.insts[name] = inst

		var ex engine.Exchange = inst
		if c.opts.DryRun {
			paper := sim.NewPaperExchange(inst, ic.InventoryKind(), c.logger.Named("paper").With(zap.String("instrument", name)))
			if ic.InventoryKind() == inventory.KindSpot {
				paper.SetSpotBalances(inventory.SpotBalances{Coin: c.opts.PaperCoin, Quote: c.opts.PaperQuote})
			}
			ex = paper
		}

		eng, err := engine.New(engine.ConfigFromInstrument(name, ic, c.cfg.Loop), ex, c.logger)
		if err != nil {
			return fmt.Errorf("instrument %s: %w", name, err)
		}
		eng.SetAlerter(c.alerts)
		c.engines[name] = eng
	}
	return nil
}

func (c *Container) feed(dex string) *gateway.MidFeed {
	if f, ok := c.feeds[dex]; ok {
		return f
	}
	f := gateway.NewMidFeed(c.cfg.Gateway.WSURL, dex, c.logger.Named("ws"))
	c.feeds[dex] = f
	return f
}

func (c *Container) registerLifecycleComponents() {
	zl := c.logger.Logger
	if c.cfg.Metrics.Addr != "" {
		addr := c.cfg.Metrics.Addr
		c.lifecycle.Register(newRunComponent("metrics_server", zl, func(ctx context.Context) error {
			return metrics.ServeMetrics(ctx, addr, zl)
		}))
	}
	dexes := make([]string, 0, len(c.feeds))
	for dex := range c.feeds {
		dexes = append(dexes, dex)
	}
	sort.Strings(dexes)
	for _, dex := range dexes {
		c.lifecycle.Register(newRunComponent("mid_feed:"+dex, zl, c.feeds[dex].Run))
	}
	if c.opts.Watch && c.opts.ConfigPath != "" {
		c.lifecycle.Register(newRunComponent("config_watcher", zl, func(ctx context.Context) error {
			w, err := config.NewWatcher(c.opts.ConfigPath, 2*time.Second, zl)
			if err != nil {
				return err
			}
			return w.Run(ctx, c.ApplyConfig)
		}))
	}
	for _, name := range c.InstrumentNames() {
		c.lifecycle.Register(newRunComponent("engine:"+name, zl, c.engines[name].Run))
	}
}

// ApplyConfig 把热更新后的标的参数下发到引擎；非法或缺失的标的保持原配置。
// 市场标识（coin、symbol、dex、assetID、现货余额键）与进程级配置（地址、密钥）需重启生效，
// 标识变化的标的整体保持原配置。
func (c *Container) ApplyConfig(cfg config.AppConfig) {
	for name, eng := range c.engines {
		ic, err := cfg.Instrument(name)
		if err != nil {
			c.logger.Warn("instrument removed from config, keeping previous", zap.String("instrument", name))
			continue
		}
		if inst, ok := c.insts[name]; ok && !sameMarket(inst.Market, gateway.MarketFromConfig(ic)) {
			c.logger.Warn("market identity changed, restart required; keeping previous config",
				zap.String("instrument", name),
				zap.String("symbol", inst.Market.Symbol),
				zap.String("new_symbol", ic.Symbol),
				zap.String("new_coin", ic.Coin))
			continue
		}
		if err := eng.SetConfig(engine.ConfigFromInstrument(name, ic, cfg.Loop)); err != nil {
			c.logger.Warn("engine config rejected", zap.String("instrument", name), zap.Error(err))
			continue
		}
		c.logger.Info("engine config updated", zap.String("instrument", name))
	}
}

// sameMarket 比较市场标识；新配置未写 assetID 时沿用已解析的 id。
func sameMarket(cur, next gateway.Market) bool {
	if next.AssetID == gateway.UnresolvedAsset {
		next.AssetID = cur.AssetID
	}
	return cur == next
}

// InstrumentNames 返回本进程运行的标的名（有序）。
func (c *Container) InstrumentNames() []string {
	names := c.opts.Instruments
	if len(names) == 0 {
		for name := range c.cfg.Instruments {
			names = append(names, name)
		}
	}
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// Engine returns the engine for an instrument, or nil.
func (c *Container) Engine(name string) *engine.Engine { return c.engines[name] }

// Logger returns the process logger.
func (c *Container) Logger() *logger.Logger { return c.logger }

// Start 启动全部组件。
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// Stop 停止全部组件。挂单不在此撤销：过期挂单由下一次启动的清理或 emergency_cleanup 处理。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")
	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, zap.String("action", "stop"))
	}
	_ = c.logger.Close()
	return err
}

// HealthCheck 检查组件健康状态
func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}
