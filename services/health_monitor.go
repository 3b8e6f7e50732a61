package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
)

// HealthChecker 对应用的健康检查接口发起一次有超时的GET请求
type HealthChecker struct {
	client *http.Client
	path   string
}

func NewHealthChecker(timeout time.Duration, path string) *HealthChecker {
	if path == "" {
		path = "/health"
	}
	return &HealthChecker{
		client: &http.Client{Timeout: timeout},
		path:   path,
	}
}

/**
 * Check 探测一次
 * @param {context.Context} ctx - 记录被移除时取消
 * @param {int} port - 应用端口
 * @returns {models.HealthStatus} healthy/unresponsive/unreachable
 * @description
 * - 状态码小于400为healthy
 * - 其他HTTP响应为unresponsive
 * - 连接失败、超时为unreachable
 */
func (h *HealthChecker) Check(ctx context.Context, port int) models.HealthStatus {
	url := fmt.Sprintf("http://localhost:%d%s", port, h.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.HealthUnreachable
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return models.HealthUnreachable
	}
	resp.Body.Close()
	if resp.StatusCode < http.StatusBadRequest {
		return models.HealthHealthy
	}
	return models.HealthUnresponsive
}

/**
 * HealthMonitor 单个应用的健康监测任务
 * @description
 * - 每个AppRecord一个协程，应用启动后立即探测一次，然后按interval轮询
 * - 记录被移除(ctx取消)后退出，不会再写入状态
 * - 只更新观测状态，不会重启应用
 */
type HealthMonitor struct {
	checker  *HealthChecker
	interval time.Duration
}

func NewHealthMonitor(checker *HealthChecker, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{checker: checker, interval: interval}
}

// Run 轮询直到记录被移除
func (hm *HealthMonitor) Run(rec *AppRecord) {
	ctx := rec.ctx
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("Health monitor for '%s' exited", rec.Folder)
			return
		case <-timer.C:
		}

		status := hm.checker.Check(ctx, rec.Port)
		if ctx.Err() != nil {
			logger.Debugf("Health monitor for '%s' exited", rec.Folder)
			return
		}
		prev := rec.setHealth(status)
		recordHealth(string(status))
		if prev != status {
			logger.Infof("App '%s' (port %d) health: %s -> %s", rec.Folder, rec.Port, prev, status)
		}
		timer.Reset(hm.interval)
	}
}
