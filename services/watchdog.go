package services

import (
	"context"
	"time"

	"apollo-supervisor/internal/logger"
)

// Watchdog 周期性地重启已退出的核心服务
type Watchdog struct {
	core     *CoreServiceManager
	interval time.Duration
}

func NewWatchdog(core *CoreServiceManager, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watchdog{core: core, interval: interval}
}

/**
 * Run 看门狗主循环
 * @param {context.Context} ctx - 取消后退出
 * @description
 * - 每个interval调用一次CoreServiceManager.Recover
 * - 单次检查中的panic会被记录，不会结束循环
 * @example
 * go watchdog.Run(ctx)
 */
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Infof("Watchdog started, interval: %s", w.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Watchdog stopped")
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watchdog) tick() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Watchdog check panic: %v", r)
		}
	}()
	watchdogTicks.Inc()
	w.core.Recover()
}
