package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperliquid-mm/order"
)

func TestValidateTiers(t *testing.T) {
	require.NoError(t, ValidateTiers(DefaultTiers()))

	bad := DefaultTiers()
	bad[0].Ratio = 0.6
	assert.Error(t, ValidateTiers(bad))

	neg := DefaultTiers()
	neg[1].SellSpread = 0
	assert.Error(t, ValidateTiers(neg))

	assert.Error(t, ValidateTiers(nil))
}

func TestBuildLadderBuySide(t *testing.T) {
	tiers := DefaultTiers()
	buy, _ := AdjustedSpreads(tiers, 0, 1, SkewConfig{Multiplier: 0.25})
	prec := order.Precision{TickSize: 1, SizeDecimals: 3}

	got := BuildLadder(order.Buy, 50000, buy, Ratios(tiers), 500, prec)
	require.Len(t, got, 5)
	wantPrices := []float64{49950, 49900, 49850, 49800, 49750}
	wantQty := []float64{0.005, 0.002, 0.001, 0.001, 0.001}
	for i, in := range got {
		assert.Equal(t, order.Buy, in.Side)
		assert.Equal(t, wantPrices[i], in.Price)
		assert.Equal(t, wantQty[i], in.Quantity)
	}
}

func TestBuildLadderSellSideAboveMid(t *testing.T) {
	tiers := DefaultTiers()
	_, sell := AdjustedSpreads(tiers, 0, 1, SkewConfig{Multiplier: 0.25})
	got := BuildLadder(order.Sell, 50000, sell, Ratios(tiers), 500, order.Precision{TickSize: 1, SizeDecimals: 5})
	require.Len(t, got, 5)
	assert.Equal(t, 50050.0, got[0].Price)
	assert.Equal(t, 50250.0, got[4].Price)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Price, got[i-1].Price)
	}
}

func TestBuildLadderDropsZeroQuantityTiers(t *testing.T) {
	tiers := DefaultTiers()
	buy, _ := AdjustedSpreads(tiers, 0, 1, SkewConfig{})
	// 数量精度 0 位、预算远小于单价：所有档位数量取整为 0
	got := BuildLadder(order.Buy, 50000, buy, Ratios(tiers), 500, order.Precision{TickSize: 1, SizeDecimals: 0})
	assert.Empty(t, got)
	assert.Empty(t, BuildLadder(order.Buy, 0, buy, Ratios(tiers), 500, order.Precision{TickSize: 1}))
}

func TestLadderReproducesNotional(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	tiers := DefaultTiers()
	sum := 0.0
	for _, ratio := range Ratios(tiers) {
		sum += ratio
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	for i := 0; i < 200; i++ {
		mid := 10 + r.Float64()*100000
		notional := 100 + r.Float64()*5000
		prec := order.Precision{TickSize: 0.01, SizeDecimals: 5}
		side := order.Buy
		if i%2 == 1 {
			side = order.Sell
		}
		buy, sell := AdjustedSpreads(tiers, (r.Float64()-0.5)*2, 0.5+r.Float64()*1.5, SkewConfig{Multiplier: 1})
		spreads := buy
		if side == order.Sell {
			spreads = sell
		}
		got := BuildLadder(side, mid, spreads, Ratios(tiers), notional, prec)

		tolerance := 0.0
		for _, in := range got {
			tolerance += 0.5 * math.Pow10(-int(prec.SizeDecimals)) * in.Price
		}
		// 有档位被丢弃时总名义必然不足，不做比较
		if len(got) < len(tiers) {
			continue
		}
		require.InDelta(t, notional, TotalNotional(got), tolerance+1e-6)
	}
}

func TestQuoterQuote(t *testing.T) {
	q, err := NewQuoter(QuoterConfig{
		Tiers:         DefaultTiers(),
		Skew:          SkewConfig{Multiplier: 0.25},
		OrderNotional: 500,
		Precision:     order.Precision{TickSize: 1, SizeDecimals: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, q.TierCount())

	l := q.Quote(order.Sell, 50000, 0, 1)
	assert.Equal(t, order.Sell, l.Side)
	assert.Len(t, l.Intents, 5)
	assert.Equal(t, DefaultTiers()[0].SellSpread, l.Spreads[0])

	_, err = NewQuoter(QuoterConfig{Tiers: DefaultTiers()})
	assert.Error(t, err)
}
