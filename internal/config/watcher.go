package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Watcher 监听配置文件变更并触发回调。
// 审批服务运行期只允许调整日志级别等轻量配置,数据库等变更需重启生效,
// 是否应用由回调方自行决定。
type Watcher struct {
	viper     *viper.Viper
	logger    *logrus.Logger
	mu        sync.Mutex
	current   *Config
	callbacks []func(*Config)
	stopped   bool
	reloads   int
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger *logrus.Logger) *Watcher {
	v := viper.New()
	v.SetConfigFile(configPath)
	return &Watcher{
		viper:   v,
		logger:  logger,
		current: cfg,
	}
}

// OnConfigChange 注册配置变更回调,回调在文件变更且解析成功后调用
func (w *Watcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *Watcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.handleChange(e)
	})
	return nil
}

func (w *Watcher) handleChange(e fsnotify.Event) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}

	var newCfg Config
	if err := w.viper.Unmarshal(&newCfg); err != nil {
		w.mu.Unlock()
		w.logger.WithError(err).Warn("config file changed but could not be parsed, keeping previous config")
		return
	}

	w.current = &newCfg
	w.reloads++
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.WithField("event", e.Name).Info("config reloaded")

	// 回调在锁外执行,避免回调内再次访问 Watcher 时死锁
	for _, callback := range callbacks {
		callback(&newCfg)
	}
}

// Stop 停止配置监听,之后的文件变更不再触发回调
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// Current 获取最近一次成功加载的配置
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
