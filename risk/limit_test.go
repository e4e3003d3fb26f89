package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/order"
)

func perpGate() *Gate {
	return NewGate(Limits{MaxOpenOrders: 50, OpenOrderMode: ModeSlots, MaxPositionNotional: 10000})
}

func spotGate() *Gate {
	return NewGate(Limits{
		MaxOpenOrders:       30,
		OpenOrderMode:       ModePerSide,
		MaxCoinRatio:        0.7,
		MinSellRatio:        0.1,
		ReserveRestingSells: true,
	})
}

func TestCheckPerpBoundaryIsInclusive(t *testing.T) {
	g := perpGate()

	err := g.CheckPerp(order.Buy, 10000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPositionLimit))
	assert.True(t, IsDenied(err))
	assert.NoError(t, g.CheckPerp(order.Sell, 10000))

	assert.NoError(t, g.CheckPerp(order.Buy, 9999.99))
	assert.NoError(t, g.CheckPerp(order.Buy, -10000))

	err = g.CheckPerp(order.Sell, -10000)
	assert.ErrorIs(t, err, ErrPositionLimit)
	assert.NoError(t, g.CheckPerp(order.Sell, -9999.99))
}

func TestCheckOpenOrdersModes(t *testing.T) {
	slots := perpGate()
	assert.NoError(t, slots.CheckOpenOrders(45, 5))
	err := slots.CheckOpenOrders(46, 5)
	assert.ErrorIs(t, err, ErrOpenOrderSlots)

	perSide := spotGate()
	assert.NoError(t, perSide.CheckOpenOrders(29, 5))
	assert.ErrorIs(t, perSide.CheckOpenOrders(30, 5), ErrOpenOrderLimit)

	unlimited := NewGate(Limits{})
	assert.NoError(t, unlimited.CheckOpenOrders(1000, 5))
}

func TestCheckSpotBuy(t *testing.T) {
	g := spotGate()
	assert.NoError(t, g.CheckSpotBuy(0.5, 1000, 500))
	assert.ErrorIs(t, g.CheckSpotBuy(0.7, 1000, 500), ErrCoinRatioLimit)
	assert.ErrorIs(t, g.CheckSpotBuy(0.4, 499.99, 500), ErrInsufficientQuote)
	assert.NoError(t, g.CheckSpotBuy(0.4, 500, 500))
}

func TestCheckSpotSell(t *testing.T) {
	g := spotGate()
	assert.ErrorIs(t, g.CheckSpotSell(0.00005, 0, 0), ErrInsufficientCoin)
	assert.NoError(t, g.CheckSpotSell(0.01, 0.01, 0))
	assert.ErrorIs(t, g.CheckSpotSell(0.01, 0.011, 0), ErrInsufficientCoin)

	// 已挂卖单占用余额
	assert.ErrorIs(t, g.CheckSpotSell(0.01, 0.008, 0.005), ErrInsufficientCoin)

	noReserve := NewGate(Limits{MaxCoinRatio: 0.7})
	assert.NoError(t, noReserve.CheckSpotSell(0.01, 0.008, 0.005))
}

func TestCheckSpotSellRatio(t *testing.T) {
	g := spotGate()
	assert.ErrorIs(t, g.CheckSpotSellRatio(0.09), ErrCoinRatioLimit)
	assert.NoError(t, g.CheckSpotSellRatio(0.1))
}

func TestMayQuoteComposesChecks(t *testing.T) {
	g := perpGate()
	err := g.MayQuote(order.Buy, State{Kind: inventory.KindPerp, OpenForSide: 46, TierCount: 5, PositionValue: 20000})
	// 挂单数量检查在前
	assert.ErrorIs(t, err, ErrOpenOrderSlots)

	err = g.MayQuote(order.Buy, State{Kind: inventory.KindPerp, TierCount: 5, PositionValue: 20000})
	assert.ErrorIs(t, err, ErrPositionLimit)
	assert.Equal(t, "position_limit", Reason(err))

	s := spotGate()
	assert.NoError(t, s.MayQuote(order.Buy, State{Kind: inventory.KindSpot, TierCount: 5, CoinRatio: 0.5, QuoteBalance: 600, OrderNotional: 500}))
	err = s.MayQuote(order.Sell, State{Kind: inventory.KindSpot, TierCount: 5, CoinRatio: 0.05, CoinBalance: 1})
	assert.ErrorIs(t, err, ErrCoinRatioLimit)
	err = s.MayQuote(order.Sell, State{Kind: inventory.KindSpot, TierCount: 5, CoinRatio: 0.5, CoinBalance: 0})
	assert.ErrorIs(t, err, ErrInsufficientCoin)
}

func TestReasonAndIsDenied(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "other", Reason(errors.New("x")))
	assert.False(t, IsDenied(errors.New("x")))
	assert.True(t, IsDenied(ErrInsufficientQuote))
}
