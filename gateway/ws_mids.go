package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 90 * time.Second
	wsMinBackoff   = time.Second
	wsMaxBackoff   = 30 * time.Second
)

type wsSubscribe struct {
	Method       string         `json:"method"`
	Subscription map[string]any `json:"subscription,omitempty"`
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]wireNum `json:"mids"`
}

// MidFeed 订阅 allMids 推送并缓存最新中间价，REST 轮询的补充；
// 断线后指数退避重连。
type MidFeed struct {
	URL    string
	Dex    string
	Dialer *websocket.Dialer
	Logger *zap.Logger

	mu         sync.RWMutex
	mids       map[string]float64
	updated    time.Time
	now        func() time.Time
	minBackoff time.Duration
}

// NewMidFeed 创建 allMids 订阅。
func NewMidFeed(url, dex string, logger *zap.Logger) *MidFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MidFeed{
		URL:    url,
		Dex:    dex,
		Dialer: websocket.DefaultDialer,
		Logger: logger,
		mids:   make(map[string]float64),
		now:    time.Now,

		minBackoff: wsMinBackoff,
	}
}

// Mid 返回缓存的中间价；超过 maxAge 未更新视为不可用。
func (f *MidFeed) Mid(key string, maxAge time.Duration) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.updated.IsZero() || (maxAge > 0 && f.now().Sub(f.updated) > maxAge) {
		return 0, false
	}
	mid, ok := f.mids[key]
	return mid, ok && mid > 0
}

func (f *MidFeed) apply(mids map[string]wireNum) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range mids {
		f.mids[k] = float64(v)
	}
	f.updated = f.now()
}

// Run 阻塞运行直到 ctx 结束。连接期间收到过消息则退避从最小值重新开始。
func (f *MidFeed) Run(ctx context.Context) error {
	backoff := f.minBackoff
	for {
		received, err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			backoff = f.minBackoff
		}
		f.Logger.Warn("mid feed disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

// runOnce 维持一次连接直到出错；received 表示本次连接是否读到过消息。
func (f *MidFeed) runOnce(ctx context.Context) (received bool, err error) {
	conn, _, err := f.Dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	sub := map[string]any{"type": "allMids"}
	if f.Dex != "" {
		sub["dex"] = f.Dex
	}
	if err := conn.WriteJSON(wsSubscribe{Method: "subscribe", Subscription: sub}); err != nil {
		return false, err
	}
	f.Logger.Info("mid feed subscribed", zap.String("url", f.URL), zap.String("dex", f.Dex))

	done := make(chan struct{})
	defer close(done)
	var writeMu sync.Mutex
	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				_ = conn.Close()
				return
			case <-t.C:
				writeMu.Lock()
				err := conn.WriteJSON(wsSubscribe{Method: "ping"})
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		received = true
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.Logger.Debug("mid feed bad message", zap.Error(err))
			continue
		}
		if msg.Channel != "allMids" {
			continue
		}
		var data allMidsData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			f.Logger.Debug("mid feed bad allMids payload", zap.Error(err))
			continue
		}
		f.apply(data.Mids)
	}
}
