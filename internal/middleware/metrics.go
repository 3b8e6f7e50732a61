package middleware

import (
	"strconv"
	"time"

	"apollo-supervisor/internal/logger"
	"apollo-supervisor/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 按路由模板统计请求数和处理时间
 * - 状态码>=400的请求计为错误请求
 * - 为/healthz提供请求数据
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 标签使用路由模板而不是实际路径
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		statusCode := c.Writer.Status()
		services.RecordRequest(path, strconv.Itoa(statusCode), time.Since(start).Seconds(), statusCode >= 400)
	}
}

// AccessLog 记录每个请求，级别随状态码变化
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		elapsed := time.Since(start)
		switch {
		case status >= 500:
			logger.Errorf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, elapsed)
		case status >= 400:
			logger.Warnf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, elapsed)
		default:
			logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, elapsed)
		}
	}
}
