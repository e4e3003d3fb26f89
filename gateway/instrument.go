package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"hyperliquid-mm/config"
	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
)

// Market 标的在交易所接口中的标识。
type Market struct {
	Coin     string // K 线查询使用的币名
	Symbol   string // allMids / openOrders / 仓位使用的市场名
	Dex      string
	AssetID  int // UnresolvedAsset 表示尚未解析
	Spot     bool
	CoinKey  string
	QuoteKey string
}

// MarketFromConfig 从标的配置构造 Market。
func MarketFromConfig(ic config.InstrumentConfig) Market {
	symbol := ic.Symbol
	if symbol == "" {
		symbol = ic.Coin
	}
	asset := UnresolvedAsset
	if ic.AssetID != nil {
		asset = *ic.AssetID
	}
	return Market{
		Coin:     ic.Coin,
		Symbol:   symbol,
		Dex:      ic.Dex,
		AssetID:  asset,
		Spot:     ic.Kind == "spot",
		CoinKey:  ic.Spot.CoinKey,
		QuoteKey: ic.Spot.QuoteKey,
	}
}

// DefaultFeedMaxAge ws 缓存的中间价超过该时长未更新则回退到 REST。
const DefaultFeedMaxAge = 10 * time.Second

// Instrument 把 info/exchange 客户端适配为引擎需要的行情、账户与执行接口。
type Instrument struct {
	Market     Market
	User       string
	Info       *InfoClient
	Exchange   *ExchangeClient // 为空时只读
	Feed       *MidFeed        // 可选
	FeedMaxAge time.Duration
	now        func() time.Time
}

// NewInstrument 创建适配器。
func NewInstrument(m Market, user string, info *InfoClient, exch *ExchangeClient) *Instrument {
	return &Instrument{
		Market:     m,
		User:       user,
		Info:       info,
		Exchange:   exch,
		FeedMaxAge: DefaultFeedMaxAge,
		now:        time.Now,
	}
}

// MidPrice 优先使用 ws 缓存，过期或缺失时走 REST。
func (i *Instrument) MidPrice(ctx context.Context) (float64, error) {
	if i.Feed != nil {
		if mid, ok := i.Feed.Mid(i.Market.Symbol, i.FeedMaxAge); ok {
			return mid, nil
		}
	}
	return i.Info.Mid(ctx, i.Market.Symbol, i.Market.Dex)
}

// Candles 返回截止当前的 count 根 K 线。
func (i *Instrument) Candles(ctx context.Context, interval string, count int) ([]market.Candle, error) {
	d, err := market.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	end := i.now()
	return i.Info.CandleSnapshot(ctx, i.Market.Coin, interval, market.WindowStart(d, count, end), end)
}

// PerpPosition 返回当前仓位，无仓位时为零值。
func (i *Instrument) PerpPosition(ctx context.Context) (inventory.PerpPosition, error) {
	st, err := i.Info.ClearinghouseState(ctx, i.User, i.Market.Dex, i.Market.Symbol)
	if err != nil {
		return inventory.PerpPosition{}, err
	}
	return st.Position, nil
}

// AccountValue 主永续账户净值（不区分 dex），仅用于日志。
func (i *Instrument) AccountValue(ctx context.Context) (float64, error) {
	st, err := i.Info.ClearinghouseState(ctx, i.User, "", "")
	if err != nil {
		return 0, err
	}
	return st.AccountValue, nil
}

// SpotBalances 返回基础币与计价币余额。
func (i *Instrument) SpotBalances(ctx context.Context) (inventory.SpotBalances, error) {
	m, err := i.Info.SpotBalances(ctx, i.User)
	if err != nil {
		return inventory.SpotBalances{}, err
	}
	return inventory.FromMap(m, i.Market.CoinKey, i.Market.QuoteKey), nil
}

// OpenOrders 返回本市场的挂单。
func (i *Instrument) OpenOrders(ctx context.Context) ([]order.OpenOrder, error) {
	return i.Info.OpenOrders(ctx, i.User, i.Market.Dex, i.Market.Symbol)
}

// Place 提交限价单，错误统一包装为 order.ErrExecution。
func (i *Instrument) Place(ctx context.Context, in order.Intent, tif order.TimeInForce) order.PlaceResult {
	if i.Exchange == nil {
		return order.Rejected(errors.New("read-only instrument"))
	}
	if i.Market.AssetID == UnresolvedAsset {
		return order.Rejected(errors.Errorf("asset id for %s not resolved", i.Market.Symbol))
	}
	st, err := i.Exchange.Order(ctx, OrderRequest{
		Asset: i.Market.AssetID,
		IsBuy: in.Side.IsBuy(),
		Price: in.Price,
		Size:  in.Quantity,
		Tif:   string(tif),
	})
	if err != nil {
		return order.Rejected(err)
	}
	if st.Filled {
		return order.PlaceResult{Status: order.StatusFilled, OrderID: st.Oid, FilledSize: st.FilledSize, AvgPrice: st.AvgPrice}
	}
	return order.PlaceResult{Status: order.StatusResting, OrderID: st.Oid}
}

// Cancel 撤销挂单。
func (i *Instrument) Cancel(ctx context.Context, orderID int64) order.CancelResult {
	if i.Exchange == nil {
		return order.CancelFailed(errors.New("read-only instrument"))
	}
	if i.Market.AssetID == UnresolvedAsset {
		return order.CancelFailed(errors.Errorf("asset id for %s not resolved", i.Market.Symbol))
	}
	if err := i.Exchange.Cancel(ctx, i.Market.AssetID, orderID); err != nil {
		return order.CancelFailed(err)
	}
	return order.CancelResult{OK: true}
}
