package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
)

type fixedMarket struct {
	mid float64
	err error
}

func (f *fixedMarket) MidPrice(context.Context) (float64, error) { return f.mid, f.err }

func (f *fixedMarket) Candles(context.Context, string, int) ([]market.Candle, error) {
	return []market.Candle{{High: f.mid + 1, Low: f.mid - 1, Close: f.mid}}, nil
}

func TestPaperRestsThenFillsOnCross(t *testing.T) {
	src := &fixedMarket{mid: 100}
	p := NewPaperExchange(src, inventory.KindPerp, nil)
	ctx := context.Background()

	res := p.Place(ctx, order.Intent{Side: order.Buy, Price: 99, Quantity: 2}, order.Gtc)
	require.Equal(t, order.StatusResting, res.Status)
	res = p.Place(ctx, order.Intent{Side: order.Sell, Price: 101, Quantity: 1}, order.Gtc)
	require.Equal(t, order.StatusResting, res.Status)

	orders, _ := p.OpenOrders(ctx)
	assert.Len(t, orders, 2)

	src.mid = 98.5
	_, err := p.MidPrice(ctx)
	require.NoError(t, err)

	pos, _ := p.PerpPosition(ctx)
	assert.Equal(t, 2.0, pos.Size)
	assert.Equal(t, 99.0, pos.EntryPrice)
	orders, _ = p.OpenOrders(ctx)
	require.Len(t, orders, 1)
	assert.Equal(t, order.Sell, orders[0].Side)
	assert.Equal(t, 1, p.Fills())
}

func TestPaperImmediateFillAndTif(t *testing.T) {
	p := NewPaperExchange(&fixedMarket{mid: 100}, inventory.KindPerp, nil)
	ctx := context.Background()

	res := p.Place(ctx, order.Intent{Side: order.Sell, Price: 99, Quantity: 1}, order.Gtc)
	assert.Equal(t, order.StatusFilled, res.Status)
	assert.Equal(t, 99.0, res.AvgPrice)

	res = p.Place(ctx, order.Intent{Side: order.Sell, Price: 99, Quantity: 1}, order.Alo)
	assert.Equal(t, order.StatusRejected, res.Status)
	assert.ErrorIs(t, res.Err, order.ErrExecution)

	res = p.Place(ctx, order.Intent{Side: order.Buy, Price: 90, Quantity: 1}, order.Ioc)
	assert.Equal(t, order.StatusRejected, res.Status)

	pos, _ := p.PerpPosition(ctx)
	assert.Equal(t, -1.0, pos.Size)
}

func TestPaperSpotBalances(t *testing.T) {
	p := NewPaperExchange(&fixedMarket{mid: 100}, inventory.KindSpot, nil)
	p.SetSpotBalances(inventory.SpotBalances{Coin: 1, Quote: 50})
	ctx := context.Background()

	res := p.Place(ctx, order.Intent{Side: order.Buy, Price: 100, Quantity: 1}, order.Gtc)
	assert.Equal(t, order.StatusRejected, res.Status, "quote balance too small")

	res = p.Place(ctx, order.Intent{Side: order.Sell, Price: 100, Quantity: 0.5}, order.Gtc)
	require.Equal(t, order.StatusFilled, res.Status)
	bal, _ := p.SpotBalances(ctx)
	assert.InDelta(t, 0.5, bal.Coin, 1e-12)
	assert.InDelta(t, 100.0, bal.Quote, 1e-12)
}

func TestPaperCancel(t *testing.T) {
	p := NewPaperExchange(&fixedMarket{mid: 100}, inventory.KindPerp, nil)
	placedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return placedAt }
	ctx := context.Background()
	res := p.Place(ctx, order.Intent{Side: order.Buy, Price: 95, Quantity: 1}, order.Gtc)
	require.True(t, res.OK())

	orders, _ := p.OpenOrders(ctx)
	require.Len(t, orders, 1)
	assert.Equal(t, placedAt, orders[0].PlacedAt)

	assert.True(t, p.Cancel(ctx, res.OrderID).OK)
	cr := p.Cancel(ctx, res.OrderID)
	assert.False(t, cr.OK)
	assert.ErrorIs(t, cr.Err, order.ErrExecution)
}

func TestPaperMidError(t *testing.T) {
	p := NewPaperExchange(&fixedMarket{err: errors.New("down")}, inventory.KindPerp, nil)
	_, err := p.MidPrice(context.Background())
	assert.Error(t, err)
}

func TestApplyPerpFill(t *testing.T) {
	pos := applyPerpFill(inventory.PerpPosition{}, 1, 100)
	pos = applyPerpFill(pos, 1, 110)
	assert.InDelta(t, 105.0, pos.EntryPrice, 1e-12)
	pos = applyPerpFill(pos, -3, 120)
	assert.Equal(t, -1.0, pos.Size)
	assert.Equal(t, 120.0, pos.EntryPrice)
	pos = applyPerpFill(pos, 1, 100)
	assert.Zero(t, pos.Size)
	assert.Zero(t, pos.EntryPrice)
}
