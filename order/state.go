package order

import (
	"errors"
	"fmt"
	"time"
)

// Side 订单方向。永续合约的 long/short 分别对应 Buy/Sell。
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// IsBuy reports whether the side adds long exposure.
func (s Side) IsBuy() bool { return s == Buy }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce of a resting limit order.
type TimeInForce string

const (
	Gtc TimeInForce = "Gtc"
	Alo TimeInForce = "Alo" // post-only
	Ioc TimeInForce = "Ioc"
)

// Intent 是本轮计算出的一档挂单，不持久化，生成后立即提交。
type Intent struct {
	Side     Side
	Price    float64
	Quantity float64
}

// Notional returns price*quantity.
func (i Intent) Notional() float64 { return i.Price * i.Quantity }

// OpenOrder 交易所上仍在挂着的订单。
type OpenOrder struct {
	ID       int64
	Side     Side
	Price    float64
	Size     float64
	PlacedAt time.Time
}

// Age returns how long the order has been resting at now.
func (o OpenOrder) Age(now time.Time) time.Duration { return now.Sub(o.PlacedAt) }

// CountBySide 统计各方向挂单数量。
func CountBySide(orders []OpenOrder) (buys, sells int) {
	for _, o := range orders {
		if o.Side == Buy {
			buys++
		} else {
			sells++
		}
	}
	return
}

// RestingSize 返回某方向挂单的总数量。
func RestingSize(orders []OpenOrder, side Side) float64 {
	total := 0.0
	for _, o := range orders {
		if o.Side == side {
			total += o.Size
		}
	}
	return total
}

// ErrExecution marks a failed order placement or cancellation.
var ErrExecution = errors.New("execution failure")

// PlaceStatus 下单结果类型。
type PlaceStatus string

const (
	StatusResting  PlaceStatus = "RESTING"
	StatusFilled   PlaceStatus = "FILLED"
	StatusRejected PlaceStatus = "REJECTED"
)

// PlaceResult 下单回报；Status 为 Rejected 时 Err 非空。
type PlaceResult struct {
	Status     PlaceStatus
	OrderID    int64
	FilledSize float64
	AvgPrice   float64
	Err        error
}

// OK reports whether the exchange accepted the order.
func (r PlaceResult) OK() bool { return r.Status == StatusResting || r.Status == StatusFilled }

// Rejected builds a failed PlaceResult wrapping ErrExecution.
func Rejected(err error) PlaceResult {
	if err == nil {
		err = ErrExecution
	} else if !errors.Is(err, ErrExecution) {
		err = fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return PlaceResult{Status: StatusRejected, Err: err}
}

// CancelResult 撤单回报。
type CancelResult struct {
	OK  bool
	Err error
}

// CancelFailed builds a failed CancelResult wrapping ErrExecution.
func CancelFailed(err error) CancelResult {
	if err == nil {
		err = ErrExecution
	} else if !errors.Is(err, ErrExecution) {
		err = fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return CancelResult{Err: err}
}
