package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperliquid-mm/order"
)

// infoServer 按请求 type 返回预置的 JSON，并记录最后一次请求。
type infoServer struct {
	t         *testing.T
	responses map[string]string
	last      map[string]infoRequest
	status    int
}

func newInfoServer(t *testing.T, responses map[string]string) (*infoServer, *httptest.Server) {
	s := &infoServer{t: t, responses: responses, last: map[string]infoRequest{}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		var req infoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.last[req.Type] = req
		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		body, ok := s.responses[req.Type]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return s, ts
}

func TestInfoClientMid(t *testing.T) {
	srv, ts := newInfoServer(t, map[string]string{
		"allMids": `{"BTC":"50000.5","@142":"49990","ETH":"0"}`,
	})
	cli := NewInfoClient(ClientOptions{BaseURL: ts.URL + "/"})

	mid, err := cli.Mid(context.Background(), "BTC", "")
	require.NoError(t, err)
	assert.Equal(t, 50000.5, mid)

	mid, err = cli.Mid(context.Background(), "@142", "")
	require.NoError(t, err)
	assert.Equal(t, 49990.0, mid)

	_, err = cli.Mid(context.Background(), "ETH", "")
	assert.ErrorIs(t, err, ErrNoMid)
	_, err = cli.Mid(context.Background(), "SOL", "xyz")
	assert.ErrorIs(t, err, ErrNoMid)
	assert.Equal(t, "xyz", srv.last["allMids"].Dex)
}

func TestInfoClientCandleSnapshot(t *testing.T) {
	srv, ts := newInfoServer(t, map[string]string{
		"candleSnapshot": `[
			{"t":1700000000000,"T":1700000299999,"s":"BTC","i":"5m","o":"100","c":"101","h":"102.5","l":"99","v":"12.3","n":10},
			{"t":1700000300000,"T":1700000599999,"s":"BTC","i":"5m","o":"101","c":"100","h":"101.5","l":"99.5","v":"3","n":4}
		]`,
	})
	cli := NewInfoClient(ClientOptions{BaseURL: ts.URL})
	end := time.UnixMilli(1700000600000)
	start := end.Add(-10 * time.Minute)
	candles, err := cli.CandleSnapshot(context.Background(), "BTC", "5m", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 102.5, candles[0].High)
	assert.Equal(t, 99.0, candles[0].Low)
	assert.Equal(t, int64(1700000300000), candles[1].OpenTime.UnixMilli())

	req := srv.last["candleSnapshot"].Req
	require.NotNil(t, req)
	assert.Equal(t, "BTC", req.Coin)
	assert.Equal(t, "5m", req.Interval)
	assert.Equal(t, start.UnixMilli(), req.StartTime)
	assert.Equal(t, end.UnixMilli(), req.EndTime)
}

func TestInfoClientClearinghouseState(t *testing.T) {
	srv, ts := newInfoServer(t, map[string]string{
		"clearinghouseState": `{
			"assetPositions":[
				{"position":{"coin":"ETH","szi":"1.0","entryPx":"3000"}},
				{"position":{"coin":"xyz:XYZ100","szi":"-0.25","entryPx":"200","unrealizedPnl":"-1.5","marginUsed":"10"}}
			],
			"marginSummary":{"accountValue":"12345.6"}
		}`,
	})
	cli := NewInfoClient(ClientOptions{BaseURL: ts.URL})
	st, err := cli.ClearinghouseState(context.Background(), "0xabc", "xyz", "xyz:XYZ100")
	require.NoError(t, err)
	assert.Equal(t, -0.25, st.Position.Size)
	assert.Equal(t, 200.0, st.Position.EntryPrice)
	assert.Equal(t, -1.5, st.Position.UnrealizedPnl)
	assert.Equal(t, 12345.6, st.AccountValue)
	assert.Equal(t, "0xabc", srv.last["clearinghouseState"].User)
	assert.Equal(t, "xyz", srv.last["clearinghouseState"].Dex)

	st, err = cli.ClearinghouseState(context.Background(), "0xabc", "", "BTC")
	require.NoError(t, err)
	assert.Zero(t, st.Position.Size)
}

func TestInfoClientSpotBalancesAndOpenOrders(t *testing.T) {
	_, ts := newInfoServer(t, map[string]string{
		"spotClearinghouseState": `{"balances":[{"coin":"USDC","total":"1000.5","hold":"0"},{"coin":"UBTC","total":"0.02","hold":"0.01"}]}`,
		"openOrders": `[
			{"coin":"@142","side":"B","limitPx":"49900","sz":"0.001","oid":11,"timestamp":1700000000000},
			{"coin":"@142","side":"A","limitPx":"50100","sz":"0.002","oid":12,"timestamp":1700000001000},
			{"coin":"BTC","side":"A","limitPx":"50100","sz":"1","oid":13,"timestamp":1700000001000}
		]`,
	})
	cli := NewInfoClient(ClientOptions{BaseURL: ts.URL})

	bal, err := cli.SpotBalances(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1000.5, bal["USDC"])
	assert.Equal(t, 0.02, bal["UBTC"])

	orders, err := cli.OpenOrders(context.Background(), "0xabc", "", "@142")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, order.Buy, orders[0].Side)
	assert.Equal(t, order.Sell, orders[1].Side)
	assert.Equal(t, int64(12), orders[1].ID)
	assert.Equal(t, 0.002, orders[1].Size)
	assert.Equal(t, int64(1700000001000), orders[1].PlacedAt.UnixMilli())

	all, err := cli.OpenOrders(context.Background(), "0xabc", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInfoClientHTTPError(t *testing.T) {
	srv, ts := newInfoServer(t, nil)
	srv.status = http.StatusInternalServerError
	cli := NewInfoClient(ClientOptions{BaseURL: ts.URL})
	_, err := cli.AllMids(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFloatToWire(t *testing.T) {
	assert.Equal(t, "50000", FloatToWire(50000))
	assert.Equal(t, "0.00123", FloatToWire(0.0012300))
	assert.Equal(t, "49950.5", FloatToWire(49950.5))
	assert.Equal(t, "0", FloatToWire(1e-10))
}
