package alert

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level      Level
	Instrument string
	Message    string
	Timestamp  time.Time
	Fields     map[string]any
}

// Channel 告警通道接口
type Channel interface {
	Send(ctx context.Context, a Alert) error
	Name() string
}

// Throttler 按 key 限流：同一 key 在 interval 内只放行一次。
type Throttler struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	interval time.Duration
	now      func() time.Time
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSent[key] = now
	return true
}

// Manager 把告警分发到所有通道，同一标的同一消息在限流窗口内只发送一次。
type Manager struct {
	channels []Channel
	throttle *Throttler
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{channels: channels, throttle: NewThrottler(throttleInterval)}
}

// Send 发送告警。被限流时静默返回 nil；所有通道都失败时返回最后一个错误。
func (m *Manager) Send(ctx context.Context, a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = m.throttle.now()
	}
	if !m.throttle.Allow(fmt.Sprintf("%s:%s:%s", a.Level, a.Instrument, a.Message)) {
		return nil
	}
	var lastErr error
	ok := 0
	for _, ch := range m.channels {
		if err := ch.Send(ctx, a); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
			continue
		}
		ok++
	}
	if ok == 0 {
		return lastErr
	}
	return nil
}

// LoopFailure 报告报价循环中逃逸的错误。
func (m *Manager) LoopFailure(ctx context.Context, instrument string, err error) error {
	return m.Send(ctx, Alert{
		Level:      LevelError,
		Instrument: instrument,
		Message:    "quote loop iteration failed",
		Fields:     map[string]any{"error": err.Error()},
	})
}

// Channels returns the configured channel names.
func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
