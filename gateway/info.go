package gateway

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"hyperliquid-mm/inventory"
	"hyperliquid-mm/market"
	"hyperliquid-mm/metrics"
	"hyperliquid-mm/order"
)

// ErrNoMid 表示 allMids 中没有该市场或价格非正。
var ErrNoMid = errors.New("mid price not available")

// ClientOptions REST 客户端参数。
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Limiter    RateLimiter
}

func newRestyClient(opts ClientOptions) *resty.Client {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && resp.StatusCode() == 429
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			metrics.ObserveREST(endpointOf(resp.Request), strconv.Itoa(resp.StatusCode()), resp.Time())
			return nil
		}).
		OnError(func(req *resty.Request, _ error) {
			metrics.ObserveREST(endpointOf(req), "error", 0)
		})
}

// endpointOf 返回 "info" 或 "exchange"。
func endpointOf(req *resty.Request) string {
	if req == nil {
		return "unknown"
	}
	return path.Base(req.URL)
}

// InfoClient 封装 POST /info 只读查询。
type InfoClient struct {
	http    *resty.Client
	limiter RateLimiter
}

// NewInfoClient 创建 info 客户端。
func NewInfoClient(opts ClientOptions) *InfoClient {
	return &InfoClient{http: newRestyClient(opts), limiter: opts.Limiter}
}

func (c *InfoClient) post(ctx context.Context, req infoRequest, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		Post("/info")
	if err != nil {
		return errors.Wrapf(err, "info %s", req.Type)
	}
	if resp.IsError() {
		return errors.Errorf("info %s: status %d: %s", req.Type, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// AllMids 返回 市场名→中间价。
func (c *InfoClient) AllMids(ctx context.Context, dex string) (map[string]float64, error) {
	var raw map[string]wireNum
	if err := c.post(ctx, infoRequest{Type: "allMids", Dex: dex}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = float64(v)
	}
	return out, nil
}

// Mid 返回单个市场的中间价。
func (c *InfoClient) Mid(ctx context.Context, key, dex string) (float64, error) {
	mids, err := c.AllMids(ctx, dex)
	if err != nil {
		return 0, err
	}
	mid, ok := mids[key]
	if !ok || mid <= 0 {
		return 0, errors.Wrapf(ErrNoMid, "market %s", key)
	}
	return mid, nil
}

// CandleSnapshot 返回 [start, end] 区间内的 K 线，按开盘时间升序。
func (c *InfoClient) CandleSnapshot(ctx context.Context, coin, interval string, start, end time.Time) ([]market.Candle, error) {
	var raw []wireCandle
	req := infoRequest{Type: "candleSnapshot", Req: &candleQuery{
		Coin:      coin,
		Interval:  interval,
		StartTime: start.UnixMilli(),
		EndTime:   end.UnixMilli(),
	}}
	if err := c.post(ctx, req, &raw); err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		out = append(out, market.Candle{
			Open:     float64(k.Open),
			High:     float64(k.High),
			Low:      float64(k.Low),
			Close:    float64(k.Close),
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		})
	}
	return out, nil
}

// PerpState 永续账户中某个币的仓位与账户净值。
type PerpState struct {
	Position     inventory.PerpPosition
	AccountValue float64
}

// ClearinghouseState 查询永续仓位；没有该币仓位时返回零仓位。
func (c *InfoClient) ClearinghouseState(ctx context.Context, user, dex, coin string) (PerpState, error) {
	var raw clearinghouseState
	if err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: user, Dex: dex}, &raw); err != nil {
		return PerpState{}, err
	}
	st := PerpState{AccountValue: float64(raw.MarginSummary.AccountValue)}
	for _, ap := range raw.AssetPositions {
		p := ap.Position
		if p.Coin != coin {
			continue
		}
		st.Position = inventory.PerpPosition{
			Size:          float64(p.Szi),
			EntryPrice:    float64(p.EntryPx),
			UnrealizedPnl: float64(p.UnrealizedPnl),
			MarginUsed:    float64(p.MarginUsed),
		}
		break
	}
	return st, nil
}

// SpotBalances 返回 coin→total 余额。
func (c *InfoClient) SpotBalances(ctx context.Context, user string) (map[string]float64, error) {
	var raw spotClearinghouseState
	if err := c.post(ctx, infoRequest{Type: "spotClearinghouseState", User: user}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw.Balances))
	for _, b := range raw.Balances {
		out[b.Coin] = float64(b.Total)
	}
	return out, nil
}

// OpenOrders 返回某市场上的挂单；symbol 为空时返回全部。
func (c *InfoClient) OpenOrders(ctx context.Context, user, dex, symbol string) ([]order.OpenOrder, error) {
	var raw []wireOpenOrder
	if err := c.post(ctx, infoRequest{Type: "openOrders", User: user, Dex: dex}, &raw); err != nil {
		return nil, err
	}
	out := make([]order.OpenOrder, 0, len(raw))
	for _, o := range raw {
		if symbol != "" && o.Coin != symbol {
			continue
		}
		side := order.Sell
		if o.Side == "B" {
			side = order.Buy
		}
		out = append(out, order.OpenOrder{
			ID:       o.Oid,
			Side:     side,
			Price:    float64(o.LimitPx),
			Size:     float64(o.Sz),
			PlacedAt: time.UnixMilli(o.Timestamp),
		})
	}
	return out, nil
}
