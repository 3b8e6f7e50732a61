package controllers

import (
	"net/http"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/models"
	"apollo-supervisor/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	supervisor *services.Supervisor
}

/**
 * Create new API controller instance
 * @param {*services.Supervisor} supervisor - Supervisor used for health reporting
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(supervisor *services.Supervisor) *APIController {
	return &APIController{
		supervisor: supervisor,
	}
}

/**
 * Register system routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz: supervisor liveness
 * - /metrics: prometheus exposition
 * - /api/supervisor/reload: reload configuration
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/supervisor/reload", a.ReloadConfig)
}

// @Summary 重新加载配置
// @Description 重新读取配置文件，目前只有日志级别会立即生效
// @Tags System
// @Produce json
// @Success 200 {object} models.MessageResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/supervisor/reload [post]
func (a *APIController) ReloadConfig(c *gin.Context) {
	if err := config.ReloadConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "config.reload_failed",
			Error: "Failed to reload configuration: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, &models.MessageResponse{
		Message: "Configuration reloaded successfully",
	})
}

// @Summary 存活探针
// @Description 返回监督进程版本、启动时间、运行时长和关键指标
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, a.supervisor.GetHealthz())
}
