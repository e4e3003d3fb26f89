package sim

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/order"
)

// MarketSource 提供行情（通常是只读的 gateway.Instrument）。
type MarketSource interface {
	MidPrice(ctx context.Context) (float64, error)
	Candles(ctx context.Context, interval string, count int) ([]market.Candle, error)
}

// PaperExchange 纸面撮合：行情来自真实数据源，订单与账户在内存中模拟。
// 买单价格 >= 中间价（卖单 <= 中间价）时按挂单价立即成交，否则挂单；
// 每次取得新的中间价后，已挂订单若被穿越则成交。
type PaperExchange struct {
	src    MarketSource
	kind   inventory.Kind
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	nextID int64
	orders map[int64]order.OpenOrder
	perp   inventory.PerpPosition
	spot   inventory.SpotBalances
	fills  int
}

// NewPaperExchange 创建纸面交易所。
func NewPaperExchange(src MarketSource, kind inventory.Kind, logger *zap.Logger) *PaperExchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperExchange{
		src:    src,
		kind:   kind,
		logger: logger,
		now:    time.Now,
		nextID: 1,
		orders: make(map[int64]order.OpenOrder),
	}
}

// SetPerpPosition 设置初始永续仓位。
func (p *PaperExchange) SetPerpPosition(pos inventory.PerpPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perp = pos
}

// SetSpotBalances 设置初始现货余额。
func (p *PaperExchange) SetSpotBalances(b inventory.SpotBalances) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spot = b
}

// Fills 返回累计成交笔数。
func (p *PaperExchange) Fills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fills
}

func (p *PaperExchange) MidPrice(ctx context.Context) (float64, error) {
	if p.src == nil {
		return 0, errors.New("no market source")
	}
	mid, err := p.src.MidPrice(ctx)
	if err != nil {
		return 0, err
	}
	p.Match(mid)
	return mid, nil
}

func (p *PaperExchange) Candles(ctx context.Context, interval string, count int) ([]market.Candle, error) {
	if p.src == nil {
		return nil, errors.New("no market source")
	}
	return p.src.Candles(ctx, interval, count)
}

func (p *PaperExchange) PerpPosition(context.Context) (inventory.PerpPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perp, nil
}

func (p *PaperExchange) SpotBalances(context.Context) (inventory.SpotBalances, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spot, nil
}

// OpenOrders 按订单 id 升序返回挂单。
func (p *PaperExchange) OpenOrders(context.Context) ([]order.OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]order.OpenOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Place 模拟下单。Ioc 单未能立即成交则拒绝，Alo 单会穿越时拒绝。
func (p *PaperExchange) Place(ctx context.Context, in order.Intent, tif order.TimeInForce) order.PlaceResult {
	if err := ctx.Err(); err != nil {
		return order.Rejected(err)
	}
	if in.Price <= 0 || in.Quantity <= 0 {
		return order.Rejected(errors.New("invalid price or quantity"))
	}
	mid := 0.0
	if p.src != nil {
		if m, err := p.src.MidPrice(ctx); err == nil {
			mid = m
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++

	if mid > 0 && crosses(in.Side, in.Price, mid) {
		if tif == order.Alo {
			return order.Rejected(errors.New("post-only order would cross"))
		}
		if err := p.applyFill(in.Side, in.Price, in.Quantity); err != nil {
			return order.Rejected(err)
		}
		return order.PlaceResult{Status: order.StatusFilled, OrderID: id, FilledSize: in.Quantity, AvgPrice: in.Price}
	}
	if tif == order.Ioc {
		return order.Rejected(errors.New("ioc order could not fill"))
	}
	p.orders[id] = order.OpenOrder{ID: id, Side: in.Side, Price: in.Price, Size: in.Quantity, PlacedAt: p.now()}
	return order.PlaceResult{Status: order.StatusResting, OrderID: id}
}

func (p *PaperExchange) Cancel(_ context.Context, orderID int64) order.CancelResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[orderID]; !ok {
		return order.CancelFailed(errors.New("order not found"))
	}
	delete(p.orders, orderID)
	return order.CancelResult{OK: true}
}

// Match 用最新中间价撮合被穿越的挂单，返回成交笔数。
func (p *PaperExchange) Match(mid float64) int {
	if mid <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, o := range p.orders {
		if !crosses(o.Side, o.Price, mid) {
			continue
		}
		if err := p.applyFill(o.Side, o.Price, o.Size); err != nil {
			p.logger.Debug("paper fill skipped", zap.Int64("oid", id), zap.Error(err))
			continue
		}
		delete(p.orders, id)
		n++
	}
	return n
}

func crosses(side order.Side, price, mid float64) bool {
	if side.IsBuy() {
		return price >= mid
	}
	return price <= mid
}

// applyFill 更新仓位/余额，调用方持有锁。
func (p *PaperExchange) applyFill(side order.Side, price, qty float64) error {
	notional := price * qty
	if p.kind == inventory.KindSpot {
		if side.IsBuy() {
			if p.spot.Quote < notional {
				return errors.New("insufficient quote balance")
			}
			p.spot.Quote -= notional
			p.spot.Coin += qty
		} else {
			if p.spot.Coin < qty {
				return errors.New("insufficient coin balance")
			}
			p.spot.Coin -= qty
			p.spot.Quote += notional
		}
	} else {
		signed := qty
		if !side.IsBuy() {
			signed = -qty
		}
		p.perp = applyPerpFill(p.perp, signed, price)
	}
	p.fills++
	p.logger.Info("paper fill",
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("qty", qty))
	return nil
}

// applyPerpFill 更新仓位数量与开仓均价；反向成交按原均价平仓。
func applyPerpFill(pos inventory.PerpPosition, signedQty, price float64) inventory.PerpPosition {
	newSize := pos.Size + signedQty
	switch {
	case pos.Size == 0 || (pos.Size > 0) == (signedQty > 0):
		pos.EntryPrice = (pos.Size*pos.EntryPrice + signedQty*price) / newSize
	case newSize == 0:
		pos.EntryPrice = 0
	case (newSize > 0) != (pos.Size > 0):
		// 反手：剩余部分以成交价开仓
		pos.EntryPrice = price
	}
	pos.Size = newSize
	return pos
}
