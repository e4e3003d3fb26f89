package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperliquid-mm/config"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
	"hyperliquid-mm/risk"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeExchange struct {
	mu         sync.Mutex
	mid        float64
	midErr     error
	panicOnMid bool
	candles    []market.Candle
	pos        inventory.PerpPosition
	bal        inventory.SpotBalances
	open       []order.OpenOrder
	openErr    error
	failSide   order.Side
	placed     []order.Intent
	cancelled  []int64
	nextID     int64
}

func (f *fakeExchange) MidPrice(context.Context) (float64, error) {
	if f.panicOnMid {
		panic("boom")
	}
	return f.mid, f.midErr
}

func (f *fakeExchange) Candles(_ context.Context, _ string, count int) ([]market.Candle, error) {
	if len(f.candles) > count {
		return f.candles[len(f.candles)-count:], nil
	}
	return f.candles, nil
}

func (f *fakeExchange) PerpPosition(context.Context) (inventory.PerpPosition, error) {
	return f.pos, nil
}

func (f *fakeExchange) SpotBalances(context.Context) (inventory.SpotBalances, error) {
	return f.bal, nil
}

func (f *fakeExchange) OpenOrders(context.Context) ([]order.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make([]order.OpenOrder, len(f.open))
	copy(out, f.open)
	return out, nil
}

func (f *fakeExchange) Place(_ context.Context, in order.Intent, _ order.TimeInForce) order.PlaceResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, in)
	if f.failSide == in.Side {
		return order.Rejected(errors.New("insufficient margin"))
	}
	f.nextID++
	id := 1000 + f.nextID
	f.open = append(f.open, order.OpenOrder{ID: id, Side: in.Side, Price: in.Price, Size: in.Quantity, PlacedAt: testNow})
	return order.PlaceResult{Status: order.StatusResting, OrderID: id}
}

func (f *fakeExchange) Cancel(_ context.Context, id int64) order.CancelResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	for i, o := range f.open {
		if o.ID == id {
			f.open = append(f.open[:i], f.open[i+1:]...)
			break
		}
	}
	return order.CancelResult{OK: true}
}

func (f *fakeExchange) placedBySide(side order.Side) []order.Intent {
	var out []order.Intent
	for _, in := range f.placed {
		if in.Side == side {
			out = append(out, in)
		}
	}
	return out
}

// flatCandles 每根 K 线 high-low = rng，ATR 恰为 rng。
func flatCandles(n int, mid, rng float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: mid, High: mid + rng/2, Low: mid - rng/2, Close: mid,
			OpenTime: testNow.Add(time.Duration(i-n) * 5 * time.Minute)}
	}
	return out
}

func newTestEngine(t *testing.T, ic config.InstrumentConfig, ex *fakeExchange) *Engine {
	t.Helper()
	cfg := ConfigFromInstrument("test", ic, config.LoopConfig{IntervalSec: 60, ErrorBackoffSec: 5})
	e, err := New(cfg, ex, nil)
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return e
}

func TestIterationPlacesBothLadders(t *testing.T) {
	ex := &fakeExchange{mid: 50000, candles: flatCandles(19, 50000, 50)}
	e := newTestEngine(t, config.PerpPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, rep.Volatility.Multiplier)
	assert.Equal(t, "Neutral", rep.Status)
	assert.Zero(t, rep.InventoryRatio)

	buys := ex.placedBySide(order.Buy)
	sells := ex.placedBySide(order.Sell)
	require.Len(t, buys, 5)
	require.Len(t, sells, 5)
	assert.Equal(t, 49950.0, buys[0].Price)
	assert.Equal(t, 0.005, buys[0].Quantity)
	assert.Equal(t, 49750.0, buys[4].Price)
	assert.Equal(t, 50050.0, sells[0].Price)
	assert.Equal(t, 5, rep.Buy.Placement.Succeeded)
	assert.Empty(t, ex.cancelled, "fresh orders must not be reaped")
}

func TestIterationLongAtLimitOnlySells(t *testing.T) {
	ex := &fakeExchange{
		mid:     50000,
		candles: flatCandles(19, 50000, 50),
		pos:     inventory.PerpPosition{Size: 0.2, EntryPrice: 49000},
	}
	e := newTestEngine(t, config.PerpPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, rep.PositionValue)
	assert.Equal(t, "Long", rep.Status)
	assert.ErrorIs(t, rep.Buy.Denied, risk.ErrPositionLimit)
	assert.NoError(t, rep.Sell.Denied)
	assert.Empty(t, ex.placedBySide(order.Buy))
	require.Len(t, ex.placedBySide(order.Sell), 5)

	// ratio 1 * 0.25: 卖侧价差收窄到 0.00075
	assert.InDelta(t, 0.25, rep.SkewAdjustment, 1e-12)
	assert.InDelta(t, 0.00075, rep.Sell.Ladder.Spreads[0], 1e-12)
}

func TestIterationSideFailureDoesNotBlockOtherSide(t *testing.T) {
	ex := &fakeExchange{mid: 50000, candles: flatCandles(19, 50000, 50), failSide: order.Buy}
	e := newTestEngine(t, config.PerpPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Buy.Placement.Attempted)
	assert.Equal(t, 0, rep.Buy.Placement.Succeeded)
	assert.Len(t, rep.Buy.Placement.Failures(), 5)
	assert.Equal(t, 5, rep.Sell.Placement.Succeeded)
}

func TestIterationMidUnavailableStillReaps(t *testing.T) {
	ex := &fakeExchange{
		midErr: errors.New("timeout"),
		open: []order.OpenOrder{
			{ID: 1, Side: order.Buy, Price: 49000, Size: 0.01, PlacedAt: testNow.Add(-15*time.Minute - time.Second)},
			{ID: 2, Side: order.Sell, Price: 51000, Size: 0.01, PlacedAt: testNow.Add(-15*time.Minute + time.Second)},
		},
	}
	e := newTestEngine(t, config.PerpPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Empty(t, ex.placed)
	assert.Equal(t, []int64{1}, ex.cancelled)
	assert.Equal(t, 1, rep.Reap.CancelledBuy)
}

func TestIterationOpenOrdersUnavailable(t *testing.T) {
	ex := &fakeExchange{mid: 50000, openErr: errors.New("502")}
	e := newTestEngine(t, config.PerpPreset(), ex)
	rep, err := e.RunIteration(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, rep.ReapErr, ErrDataUnavailable)
	assert.Empty(t, ex.placed)
}

func TestIterationVolatilityFallback(t *testing.T) {
	ex := &fakeExchange{mid: 50000}
	e := newTestEngine(t, config.PerpPreset(), ex)
	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.NeutralMultiplier, rep.Volatility.Multiplier)
	assert.NotEmpty(t, rep.Volatility.Fallback)
	assert.Len(t, ex.placed, 10)
}

func TestIterationSlotsModeDeniesWhenFull(t *testing.T) {
	ex := &fakeExchange{mid: 50000, candles: flatCandles(19, 50000, 50)}
	for i := 0; i < 46; i++ {
		ex.open = append(ex.open, order.OpenOrder{ID: int64(i + 1), Side: order.Buy, Price: 40000, Size: 0.001, PlacedAt: testNow})
	}
	e := newTestEngine(t, config.PerpPreset(), ex)
	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, rep.Buy.Denied, risk.ErrOpenOrderSlots)
	assert.Equal(t, 5, rep.Sell.Placement.Succeeded)
}

func TestSpotIterationCoinHeavy(t *testing.T) {
	ex := &fakeExchange{
		mid:     50000,
		candles: flatCandles(19, 50000, 50),
		bal:     inventory.SpotBalances{Coin: 0.015, Quote: 250},
	}
	e := newTestEngine(t, config.SpotPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Coin heavy", rep.Status)
	assert.InDelta(t, 0.25, rep.InventoryRatio, 1e-12)
	assert.ErrorIs(t, rep.Buy.Denied, risk.ErrCoinRatioLimit)
	assert.NoError(t, rep.Sell.Denied)
	assert.Equal(t, 5, rep.Sell.Placement.Succeeded)
}

func TestSpotSellReservesRestingSells(t *testing.T) {
	ex := &fakeExchange{
		mid:     50000,
		candles: flatCandles(19, 50000, 50),
		bal:     inventory.SpotBalances{Coin: 0.015, Quote: 250},
		open:    []order.OpenOrder{{ID: 7, Side: order.Sell, Price: 50100, Size: 0.006, PlacedAt: testNow}},
	}
	e := newTestEngine(t, config.SpotPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, rep.Sell.Denied, risk.ErrInsufficientCoin)
	assert.Empty(t, ex.placed)
}

func TestSpotQuoteHeavyBuysOnly(t *testing.T) {
	ex := &fakeExchange{
		mid:     50000,
		candles: flatCandles(19, 50000, 50),
		bal:     inventory.SpotBalances{Coin: 0.001, Quote: 1000},
	}
	e := newTestEngine(t, config.SpotPreset(), ex)

	rep, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Quote heavy", rep.Status)
	// 币占比 ~4.8% < minSellRatio 10%
	assert.ErrorIs(t, rep.Sell.Denied, risk.ErrCoinRatioLimit)
	assert.Equal(t, 5, rep.Buy.Placement.Succeeded)
}

type recordingAlerter struct{ errs []error }

func (a *recordingAlerter) LoopFailure(_ context.Context, _ string, err error) error {
	a.errs = append(a.errs, err)
	return nil
}

func TestRunBacksOffAfterPanic(t *testing.T) {
	ex := &fakeExchange{panicOnMid: true}
	e := newTestEngine(t, config.PerpPreset(), ex)
	alerts := &recordingAlerter{}
	e.SetAlerter(alerts)

	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 2 {
			cancel()
			return context.Canceled
		}
		ex.panicOnMid = false
		ex.mid = 50000
		return nil
	}

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, waits, 2)
	assert.Equal(t, 5*time.Second, waits[0])
	assert.Equal(t, 60*time.Second, waits[1])

	require.Len(t, alerts.errs, 1)
	var fatal *FatalLoopError
	require.ErrorAs(t, alerts.errs[0], &fatal)
	assert.Equal(t, "boom", fatal.Panic)
}

func TestRunDataUnavailableUsesNormalInterval(t *testing.T) {
	ex := &fakeExchange{midErr: errors.New("down")}
	e := newTestEngine(t, config.PerpPreset(), ex)

	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		cancel()
		return context.Canceled
	}
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{60 * time.Second}, waits)
}

func TestSetConfigSwapsAndValidates(t *testing.T) {
	ex := &fakeExchange{mid: 50000, candles: flatCandles(19, 50000, 50)}
	e := newTestEngine(t, config.PerpPreset(), ex)

	bad := e.Config()
	bad.Quoter.OrderNotional = 0
	assert.Error(t, e.SetConfig(bad))
	assert.Equal(t, 500.0, e.Config().Quoter.OrderNotional)

	good := e.Config()
	good.Quoter.OrderNotional = 1000
	require.NoError(t, e.SetConfig(good))
	_, err := e.RunIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.01, ex.placedBySide(order.Buy)[0].Quantity)
}

func TestNewRequiresExchange(t *testing.T) {
	_, err := New(Config{Instrument: "x"}, nil, nil)
	assert.Error(t, err)
}

func TestConfigFromInstrument(t *testing.T) {
	delay := 200
	cfg := ConfigFromInstrument("xyz", config.DexPerpPreset(), config.LoopConfig{IntervalSec: 30, ErrorBackoffSec: 5, OrderDelayMs: &delay})
	assert.Equal(t, inventory.KindPerp, cfg.Kind)
	assert.Equal(t, 1.5, cfg.Quoter.Skew.Multiplier)
	assert.Equal(t, int32(4), cfg.Quoter.Precision.SizeDecimals)
	assert.Equal(t, 15*time.Minute, cfg.OrderExpiry)
	assert.Equal(t, 200*time.Millisecond, cfg.OrderDelay)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, risk.ModeSlots, cfg.Limits.OpenOrderMode)
}
