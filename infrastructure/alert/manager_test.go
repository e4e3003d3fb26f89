package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	name   string
	alerts []Alert
	err    error
}

func (c *mockChannel) Send(_ context.Context, a Alert) error {
	if c.err != nil {
		return c.err
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *mockChannel) Name() string { return c.name }

func TestManagerThrottlesPerInstrument(t *testing.T) {
	mock := &mockChannel{name: "mock"}
	mgr := NewManager([]Channel{mock}, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr.throttle.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, mgr.LoopFailure(ctx, "btc-perp", errors.New("boom")))
	require.NoError(t, mgr.LoopFailure(ctx, "btc-perp", errors.New("boom again")))
	require.NoError(t, mgr.LoopFailure(ctx, "btc-spot", errors.New("boom")))
	assert.Len(t, mock.alerts, 2)

	now = now.Add(time.Minute)
	require.NoError(t, mgr.LoopFailure(ctx, "btc-perp", errors.New("boom")))
	require.Len(t, mock.alerts, 3)
	assert.Equal(t, LevelError, mock.alerts[2].Level)
	assert.Equal(t, "boom", mock.alerts[2].Fields["error"])
	assert.Equal(t, now, mock.alerts[2].Timestamp)
}

func TestManagerFailsOnlyWhenAllChannelsFail(t *testing.T) {
	bad := &mockChannel{name: "bad", err: errors.New("down")}
	good := &mockChannel{name: "good"}

	mgr := NewManager([]Channel{bad, good}, 0)
	assert.NoError(t, mgr.Send(context.Background(), Alert{Level: LevelWarning, Message: "x"}))
	assert.Len(t, good.alerts, 1)

	mgr = NewManager([]Channel{bad}, 0)
	err := mgr.Send(context.Background(), Alert{Level: LevelWarning, Message: "x"})
	assert.ErrorContains(t, err, "channel bad failed")
	assert.Equal(t, []string{"bad"}, mgr.Channels())
}

func TestWebhookChannel(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, time.Second)
	err := ch.Send(context.Background(), Alert{Level: LevelCritical, Instrument: "btc-perp", Message: "halted", Timestamp: time.UnixMilli(1000)})
	require.NoError(t, err)
	assert.Equal(t, "[CRITICAL] btc-perp halted", got.Text)
	assert.Equal(t, int64(1000), got.Timestamp)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	assert.Error(t, NewWebhookChannel(failing.URL, time.Second).Send(context.Background(), Alert{Message: "x"}))
}

func TestLogChannelNeverFails(t *testing.T) {
	assert.NoError(t, NewLogChannel(nil).Send(context.Background(), Alert{Message: "x", Fields: map[string]any{"k": 1}}))
}
