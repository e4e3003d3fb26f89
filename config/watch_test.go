package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	go func() {
		_ = w.Run(ctx, func(c AppConfig) {
			select {
			case ch <- c:
			default:
			}
		})
	}()

	// 给 watcher 一点时间完成注册
	time.Sleep(50 * time.Millisecond)
	updated := minimalConfig + "\nloop:\n  intervalSec: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	// 写入过程中可能先读到截断的文件，直到拿到新值为止
	deadline := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-ch:
			if cfg.Loop.IntervalSec == 30 {
				return
			}
		case <-deadline:
			t.Fatal("expected reload callback")
		}
	}
}

func TestWatcherKeepsPreviousOnInvalid(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	w.load = func(string) (AppConfig, error) { return AppConfig{}, errors.New("bad yaml") }
	called := false
	w.handleChange(func(AppConfig) { called = true })
	assert.False(t, called)
	assert.True(t, w.lastReload.IsZero())
}

func TestWatcherCooldown(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	w, err := NewWatcher(path, time.Hour, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	w.load = func(string) (AppConfig, error) { return AppConfig{Env: "x"}, nil }
	n := 0
	w.handleChange(func(AppConfig) { n++ })
	w.handleChange(func(AppConfig) { n++ })
	assert.Equal(t, 1, n)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx, nil), context.Canceled)
}
