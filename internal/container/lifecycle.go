package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll 按顺序启动所有组件，失败时逆序回滚已启动的组件。
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop()
			}
			return fmt.Errorf("start %s failed: %w", component.Name(), err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", component.Name(), err)
		}
	}
	return nil
}

// runComponent 在独立 goroutine 中运行 run，直到 Stop 取消其 context。
// run 在 Stop 之前自行退出视为不健康。
type runComponent struct {
	name   string
	run    func(ctx context.Context) error
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	exitErr error
	exited  bool
}

func newRunComponent(name string, logger *zap.Logger, run func(ctx context.Context) error) *runComponent {
	return &runComponent{name: name, run: run, logger: logger}
}

func (c *runComponent) Name() string { return c.name }

func (c *runComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		err := c.run(runCtx)
		c.mu.Lock()
		c.exited = true
		c.exitErr = err
		c.mu.Unlock()
		if err != nil && runCtx.Err() == nil {
			c.logger.Error("component exited", zap.String("component", c.name), zap.Error(err))
		}
	}()
	c.logger.Info("component started", zap.String("component", c.name))
	return nil
}

func (c *runComponent) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	c.logger.Info("component stopped", zap.String("component", c.name))
	return nil
}

func (c *runComponent) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.cancel == nil:
		return fmt.Errorf("not started")
	case c.exited && c.exitErr != nil:
		return c.exitErr
	case c.exited:
		return fmt.Errorf("exited")
	}
	return nil
}
