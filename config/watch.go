package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReloadCooldown 两次重载之间的最小间隔，避免编辑器多次写入触发多次重载。
const DefaultReloadCooldown = 2 * time.Second

// Watcher 监听配置文件变化，重新加载并校验后通过回调交给调用方。
// 校验失败的配置不会下发，旧配置继续生效。
type Watcher struct {
	path     string
	cooldown time.Duration
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
	load     func(string) (AppConfig, error)

	mu         sync.Mutex
	lastReload time.Time
}

// NewWatcher 创建配置监听器。监听所在目录，以兼容 rename 方式保存文件的编辑器。
func NewWatcher(path string, cooldown time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cooldown < 0 {
		cooldown = 0
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		cooldown: cooldown,
		logger:   logger,
		fsw:      fsw,
		load:     LoadWithEnvOverrides,
	}, nil
}

// Run 阻塞直到 ctx 结束或 watcher 关闭。
func (w *Watcher) Run(ctx context.Context, onUpdate func(AppConfig)) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// 只处理写入和创建事件
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleChange(onUpdate)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleChange(onUpdate func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastReload.IsZero() && time.Since(w.lastReload) < w.cooldown {
		return
	}
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.lastReload = time.Now()
	w.logger.Info("config reloaded", zap.String("path", w.path))
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
