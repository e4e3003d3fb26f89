package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hyperliquid-mm/infrastructure/logger"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/metrics"
	"hyperliquid-mm/order"
	"hyperliquid-mm/risk"
	"hyperliquid-mm/strategy"
)

// MarketData 行情读取。
type MarketData interface {
	MidPrice(ctx context.Context) (float64, error)
	Candles(ctx context.Context, interval string, count int) ([]market.Candle, error)
}

// Account 账户读取。
type Account interface {
	PerpPosition(ctx context.Context) (inventory.PerpPosition, error)
	SpotBalances(ctx context.Context) (inventory.SpotBalances, error)
	OpenOrders(ctx context.Context) ([]order.OpenOrder, error)
}

// Exchange 引擎依赖的全部交易所能力，由 gateway.Instrument 或 sim.PaperExchange 实现。
type Exchange interface {
	MarketData
	Account
	order.Executor
}

// AccountValuer 可选：永续账户净值，仅用于日志。
type AccountValuer interface {
	AccountValue(ctx context.Context) (float64, error)
}

// Alerter 可选：循环异常告警。
type Alerter interface {
	LoopFailure(ctx context.Context, instrument string, err error) error
}

// runtime 由 Config 构建的组件，整体原子替换。
type runtime struct {
	cfg       Config
	quoter    *strategy.Quoter
	gate      *risk.Gate
	estimator *market.VolatilityEstimator
	placer    *order.Placer
	reaper    *order.Reaper
}

// Engine 单标的报价循环：读取状态 -> 计算阶梯 -> 风控 -> 下单 -> 清理过期挂单。
// 同一时刻只有一个 goroutine 执行迭代；轮次之间不保留状态。
type Engine struct {
	ex  Exchange
	log *logger.Logger
	rt  atomic.Pointer[runtime]

	alerter Alerter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建引擎。
func New(cfg Config, ex Exchange, log *logger.Logger) (*Engine, error) {
	if ex == nil {
		return nil, errors.New("exchange is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		ex:    ex,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}
	if err := e.SetConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// SetConfig 校验并替换配置，从下一轮迭代开始生效。
func (e *Engine) SetConfig(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	q, err := strategy.NewQuoter(cfg.Quoter)
	if err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	zl := e.log.Logger.With(zap.String("instrument", cfg.Instrument))
	e.rt.Store(&runtime{
		cfg:       cfg,
		quoter:    q,
		gate:      risk.NewGate(cfg.Limits),
		estimator: market.NewVolatilityEstimator(cfg.Volatility, e.ex),
		placer:    order.NewPlacer(e.ex, cfg.Quoter.Precision, cfg.TimeInForce, cfg.OrderDelay, zl),
		reaper:    order.NewReaper(cfg.OrderExpiry, e.ex, zl),
	})
	return nil
}

// SetAlerter 设置告警通道，需在 Run 之前调用。
func (e *Engine) SetAlerter(a Alerter) { e.alerter = a }

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.rt.Load().cfg }

// SideReport 一侧的处理结果。
type SideReport struct {
	Side      order.Side
	Denied    error // 风控否决原因
	Ladder    strategy.Ladder
	Placement order.PlacementReport
}

// IterationReport 单轮迭代的结果摘要。
type IterationReport struct {
	Mid            float64
	Volatility     market.Estimate
	InventoryRatio float64
	SkewAdjustment float64
	PositionValue  float64
	Status         string
	Inventory      inventory.Snapshot
	OpenBuys       int
	OpenSells      int
	Buy            SideReport
	Sell           SideReport
	Reap           order.ReapReport
	ReapErr        error
}

// RunIteration 执行一轮。报价部分失败时返回包装 ErrDataUnavailable 的错误，
// 过期挂单清理无论如何都会执行。
func (e *Engine) RunIteration(ctx context.Context) (IterationReport, error) {
	rt := e.rt.Load()
	start := e.now()
	var rep IterationReport

	err := e.quote(ctx, rt, &rep)
	if err != nil {
		e.log.Warn("quoting skipped", zap.String("instrument", rt.cfg.Instrument), zap.Error(err))
		metrics.RecordIterationError(rt.cfg.Instrument, "quote")
	}

	e.reap(ctx, rt, &rep)
	metrics.ObserveIteration(rt.cfg.Instrument, e.now().Sub(start))
	return rep, err
}

func (e *Engine) quote(ctx context.Context, rt *runtime, rep *IterationReport) error {
	cfg := rt.cfg

	mid, err := e.ex.MidPrice(ctx)
	if err != nil || mid <= 0 {
		return unavailable("mid price", err)
	}
	rep.Mid = mid

	rep.Volatility = rt.estimator.Estimate(ctx, mid)
	if rep.Volatility.Fallback != "" {
		e.log.Debug("volatility fallback",
			zap.String("instrument", cfg.Instrument),
			zap.String("reason", rep.Volatility.Fallback))
	}

	snap := inventory.Snapshot{Kind: cfg.Kind, Mid: mid, MaxValue: cfg.Limits.MaxPositionNotional, Target: cfg.TargetRatio}
	if cfg.Kind == inventory.KindSpot {
		bal, err := e.ex.SpotBalances(ctx)
		if err != nil {
			return unavailable("spot balances", err)
		}
		snap.Spot = bal
		rep.Status = bal.Status(mid, cfg.TargetRatio, statusBand)
	} else {
		pos, err := e.ex.PerpPosition(ctx)
		if err != nil {
			return unavailable("perp position", err)
		}
		snap.Perp = pos
		rep.Status = pos.Status(cfg.PositionDust)
	}
	rep.Inventory = snap
	rep.InventoryRatio = snap.SkewInput()
	rep.SkewAdjustment = strategy.InventoryAdjustment(rep.InventoryRatio, cfg.Quoter.Skew)
	rep.PositionValue = snap.PositionValue()

	open, err := e.ex.OpenOrders(ctx)
	if err != nil {
		return unavailable("open orders", err)
	}
	rep.OpenBuys, rep.OpenSells = order.CountBySide(open)

	metrics.UpdateMarketMetrics(cfg.Instrument, mid, rep.Volatility.Multiplier, rep.InventoryRatio, rep.PositionValue)
	e.logSummary(ctx, rt, rep)

	rep.Buy = e.quoteSide(ctx, rt, order.Buy, rep, open)
	rep.Sell = e.quoteSide(ctx, rt, order.Sell, rep, open)
	return nil
}

// quoteSide 风控 -> 构建阶梯 -> 顺序下单。任一侧失败不影响另一侧。
func (e *Engine) quoteSide(ctx context.Context, rt *runtime, side order.Side, rep *IterationReport, open []order.OpenOrder) SideReport {
	cfg := rt.cfg
	sr := SideReport{Side: side}
	openForSide := rep.OpenBuys
	if !side.IsBuy() {
		openForSide = rep.OpenSells
	}

	st := risk.State{
		Kind:          cfg.Kind,
		OpenForSide:   openForSide,
		TierCount:     rt.quoter.TierCount(),
		PositionValue: rep.PositionValue,
		CoinRatio:     rep.Inventory.Spot.CoinRatio(rep.Mid),
		CoinBalance:   rep.Inventory.Spot.Coin,
		QuoteBalance:  rep.Inventory.Spot.Quote,
		OrderNotional: rt.quoter.OrderNotional(),
	}
	if err := rt.gate.MayQuote(side, st); err != nil {
		return e.deny(cfg, sr, err)
	}

	sr.Ladder = rt.quoter.Quote(side, rep.Mid, rep.InventoryRatio, rep.Volatility.Multiplier)
	if len(sr.Ladder.Intents) == 0 {
		e.log.Info("empty ladder, side skipped",
			zap.String("instrument", cfg.Instrument),
			zap.String("side", string(side)))
		return sr
	}

	if cfg.Kind == inventory.KindSpot && !side.IsBuy() {
		need := strategy.TotalQuantity(sr.Ladder.Intents)
		resting := order.RestingSize(open, order.Sell)
		if err := rt.gate.CheckSpotSell(rep.Inventory.Spot.Coin, need, resting); err != nil {
			return e.deny(cfg, sr, err)
		}
	}

	sr.Placement = rt.placer.PlaceLadder(ctx, sr.Ladder.Intents)
	failed := sr.Placement.Attempted - sr.Placement.Succeeded
	metrics.RecordPlacement(cfg.Instrument, string(side), sr.Placement.Succeeded, failed, sr.Placement.Filled)
	e.log.LogOrder("ladder_placed", string(side),
		zap.String("instrument", cfg.Instrument),
		zap.Int("placed", sr.Placement.Succeeded),
		zap.Int("attempted", sr.Placement.Attempted),
		zap.Int("filled", sr.Placement.Filled),
		zap.Float64s("spreads", sr.Ladder.Spreads))
	return sr
}

func (e *Engine) deny(cfg Config, sr SideReport, err error) SideReport {
	sr.Denied = err
	reason := risk.Reason(err)
	metrics.RecordRiskDenial(cfg.Instrument, string(sr.Side), reason)
	e.log.LogRisk("side_denied",
		zap.String("instrument", cfg.Instrument),
		zap.String("side", string(sr.Side)),
		zap.String("reason", reason),
		zap.Error(err))
	return sr
}

// reap 重新读取挂单（包含本轮刚提交的）并撤销过期订单。
func (e *Engine) reap(ctx context.Context, rt *runtime, rep *IterationReport) {
	cfg := rt.cfg
	open, err := e.ex.OpenOrders(ctx)
	if err != nil {
		rep.ReapErr = unavailable("open orders for reaper", err)
		metrics.RecordIterationError(cfg.Instrument, "reap")
		e.log.Warn("reaper skipped", zap.String("instrument", cfg.Instrument), zap.Error(err))
		return
	}
	rep.Reap = rt.reaper.Reap(ctx, open, e.now())
	metrics.RecordReap(cfg.Instrument, rep.Reap.CancelledBuy, rep.Reap.CancelledSell, rep.Reap.Failed)
}

func (e *Engine) logSummary(ctx context.Context, rt *runtime, rep *IterationReport) {
	cfg := rt.cfg
	fields := []zap.Field{
		zap.String("instrument", cfg.Instrument),
		zap.String("kind", string(cfg.Kind)),
		zap.Float64("mid", rep.Mid),
		zap.Float64("vol_multiplier", rep.Volatility.Multiplier),
		zap.Float64("atr", rep.Volatility.ATR),
		zap.Float64("inventory_ratio", rep.InventoryRatio),
		zap.Float64("inventory_adj", rep.SkewAdjustment),
		zap.Float64("position_value", rep.PositionValue),
		zap.String("status", rep.Status),
		zap.Int("open_buys", rep.OpenBuys),
		zap.Int("open_sells", rep.OpenSells),
	}
	if cfg.Kind == inventory.KindPerp {
		if av, ok := e.ex.(AccountValuer); ok {
			if v, err := av.AccountValue(ctx); err == nil {
				fields = append(fields, zap.Float64("account_value", v))
			}
		}
	}
	e.log.Info("iteration", fields...)
}

// Run 循环执行迭代直到 ctx 结束。数据不可用时照常等待 Interval；
// 其他错误或 panic 记录为 FatalLoopError 并等待 ErrorBackoff。
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.Config()
	e.log.Info("engine started",
		zap.String("instrument", cfg.Instrument),
		zap.Duration("interval", cfg.Interval))
	for {
		if err := ctx.Err(); err != nil {
			e.log.Info("engine stopped", zap.String("instrument", e.Config().Instrument))
			return err
		}
		wait := e.Config().Interval
		if err := e.safeIteration(ctx); err != nil {
			var fatal *FatalLoopError
			if errors.As(err, &fatal) {
				e.log.LogError(fatal, zap.String("instrument", e.Config().Instrument))
				metrics.RecordIterationError(e.Config().Instrument, "fatal")
				wait = e.Config().ErrorBackoff
				if e.alerter != nil {
					if aerr := e.alerter.LoopFailure(ctx, e.Config().Instrument, fatal); aerr != nil {
						e.log.Warn("send alert failed", zap.Error(aerr))
					}
				}
			}
		}
		if err := e.sleep(ctx, wait); err != nil {
			e.log.Info("engine stopped", zap.String("instrument", e.Config().Instrument))
			return err
		}
	}
}

func (e *Engine) safeIteration(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalLoopError{Panic: r}
		}
	}()
	_, err = e.RunIteration(ctx)
	if err != nil && !errors.Is(err, ErrDataUnavailable) && ctx.Err() == nil {
		return &FatalLoopError{Err: err}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
