package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrRejected 交易所返回 status=err 或订单状态为 error。
var ErrRejected = errors.New("exchange rejected")

type limitOrderType struct {
	Tif string `msgpack:"tif" json:"tif"`
}

type orderType struct {
	Limit limitOrderType `msgpack:"limit" json:"limit"`
}

// orderWire 字段顺序与交易所签名时使用的顺序一致，不可调整。
type orderWire struct {
	Asset      int       `msgpack:"a" json:"a"`
	IsBuy      bool      `msgpack:"b" json:"b"`
	LimitPx    string    `msgpack:"p" json:"p"`
	Size       string    `msgpack:"s" json:"s"`
	ReduceOnly bool      `msgpack:"r" json:"r"`
	OrderType  orderType `msgpack:"t" json:"t"`
	Cloid      string    `msgpack:"c,omitempty" json:"c,omitempty"`
}

type orderAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []orderWire `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

type cancelWire struct {
	Asset int   `msgpack:"a" json:"a"`
	Oid   int64 `msgpack:"o" json:"o"`
}

type cancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []cancelWire `msgpack:"cancels" json:"cancels"`
}

type exchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
}

type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type statusesPayload struct {
	Type string `json:"type"`
	Data struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data"`
}

// OrderStatus 单笔下单的交易所回报。
type OrderStatus struct {
	Resting    bool
	Filled     bool
	Oid        int64
	FilledSize float64
	AvgPrice   float64
}

// OrderRequest 一笔限价单。
type OrderRequest struct {
	Asset      int
	IsBuy      bool
	Price      float64
	Size       float64
	ReduceOnly bool
	Tif        string
}

// ExchangeClient 负责签名并提交 /exchange 请求。
type ExchangeClient struct {
	http    *resty.Client
	limiter RateLimiter
	signer  *Signer
	vault   string

	mu        sync.Mutex
	lastNonce int64
	now       func() time.Time
}

// NewExchangeClient 创建下单客户端；vault 为空表示以签名地址本身交易。
func NewExchangeClient(opts ClientOptions, signer *Signer, vault string) *ExchangeClient {
	return &ExchangeClient{
		http:    newRestyClient(opts),
		limiter: opts.Limiter,
		signer:  signer,
		vault:   vault,
		now:     time.Now,
	}
}

// nextNonce 毫秒时间戳，保证单调递增。
func (c *ExchangeClient) nextNonce() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// NewCloid 生成 16 字节的客户端订单 id（0x 前缀十六进制）。
func NewCloid() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}

func (c *ExchangeClient) post(ctx context.Context, action any) (*statusesPayload, error) {
	if c.signer == nil {
		return nil, errors.New("exchange client has no signer")
	}
	nonce := c.nextNonce()
	sig, err := c.signer.SignL1Action(action, c.vault, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "sign action")
	}
	req := exchangeRequest{Action: action, Nonce: nonce, Signature: sig}
	if c.vault != "" {
		v := strings.ToLower(c.vault)
		req.VaultAddress = &v
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}

	var out exchangeResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/exchange")
	if err != nil {
		return nil, errors.Wrap(err, "exchange request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("exchange status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.Status != "ok" {
		return nil, errors.Wrapf(ErrRejected, "%s", strings.Trim(string(out.Response), `"`))
	}
	var payload statusesPayload
	if len(out.Response) > 0 {
		if err := json.Unmarshal(out.Response, &payload); err != nil {
			return nil, errors.Wrap(err, "decode exchange response")
		}
	}
	return &payload, nil
}

// Order 提交一笔限价单。
func (c *ExchangeClient) Order(ctx context.Context, req OrderRequest) (OrderStatus, error) {
	tif := req.Tif
	if tif == "" {
		tif = "Gtc"
	}
	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      req.Asset,
			IsBuy:      req.IsBuy,
			LimitPx:    FloatToWire(req.Price),
			Size:       FloatToWire(req.Size),
			ReduceOnly: req.ReduceOnly,
			OrderType:  orderType{Limit: limitOrderType{Tif: tif}},
			Cloid:      NewCloid(),
		}},
		Grouping: "na",
	}
	payload, err := c.post(ctx, action)
	if err != nil {
		return OrderStatus{}, err
	}
	if len(payload.Data.Statuses) == 0 {
		return OrderStatus{}, errors.New("exchange returned no order status")
	}
	return parseOrderStatus(payload.Data.Statuses[0])
}

func parseOrderStatus(raw json.RawMessage) (OrderStatus, error) {
	var st struct {
		Resting *struct {
			Oid int64 `json:"oid"`
		} `json:"resting"`
		Filled *struct {
			Oid     int64   `json:"oid"`
			TotalSz wireNum `json:"totalSz"`
			AvgPx   wireNum `json:"avgPx"`
		} `json:"filled"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return OrderStatus{}, errors.Wrap(err, "decode order status")
	}
	switch {
	case st.Error != "":
		return OrderStatus{}, errors.Wrap(ErrRejected, st.Error)
	case st.Filled != nil:
		return OrderStatus{
			Filled:     true,
			Oid:        st.Filled.Oid,
			FilledSize: float64(st.Filled.TotalSz),
			AvgPrice:   float64(st.Filled.AvgPx),
		}, nil
	case st.Resting != nil:
		return OrderStatus{Resting: true, Oid: st.Resting.Oid}, nil
	}
	return OrderStatus{}, errors.Errorf("unknown order status %s", string(raw))
}

// Cancel 撤销一笔挂单。
func (c *ExchangeClient) Cancel(ctx context.Context, asset int, oid int64) error {
	action := cancelAction{Type: "cancel", Cancels: []cancelWire{{Asset: asset, Oid: oid}}}
	payload, err := c.post(ctx, action)
	if err != nil {
		return err
	}
	for _, raw := range payload.Data.Statuses {
		var st struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &st) == nil && st.Error != "" {
			return errors.Wrap(ErrRejected, st.Error)
		}
	}
	return nil
}
