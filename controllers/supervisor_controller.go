package controllers

import (
	"fmt"
	"net/http"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/services"

	"github.com/gin-gonic/gin"
)

type SupervisorController struct {
	supervisor *services.Supervisor
}

/**
 * Create new supervisor controller instance
 * @param {*services.Supervisor} supervisor - Supervisor owning core services and apps
 * @returns {*SupervisorController} New supervisor controller instance
 * @example
 * sup := services.NewSupervisor(&cfg)
 * controller := controllers.NewSupervisorController(sup)
 */
func NewSupervisorController(supervisor *services.Supervisor) *SupervisorController {
	return &SupervisorController{
		supervisor: supervisor,
	}
}

/**
 * Register supervisor API routes
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Registers routes under /api/supervisor for:
 *   - Core services (start_core/stop_core/core_status, per service start/stop/get)
 *   - Apps (launch/start/stop/status)
 *   - Port assignment snapshot
 */
func (s *SupervisorController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/supervisor")
	// 核心服务
	api.POST("/start_core", s.StartCore)
	api.POST("/stop_core", s.StopCore)
	api.GET("/core_status", s.CoreStatus)
	api.POST("/core/:name/start", s.StartCoreService)
	api.POST("/core/:name/stop", s.StopCoreService)
	api.GET("/core/:name", s.GetCoreService)
	// 应用
	api.POST("/launch", s.LaunchApp)
	api.POST("/start", s.StartApp)
	api.POST("/stop", s.StopApp)
	api.GET("/status", s.AppsStatus)
	api.GET("/status/:folder", s.GetApp)
	api.GET("/ports", s.Ports)
}

// errorResponse 把错误转换成HTTP状态码和响应体
func errorResponse(err error) (int, *models.ErrorResponse) {
	if se, ok := services.AsSupervisorError(err); ok {
		return se.HTTPStatus(), &models.ErrorResponse{
			Code:       string(se.Code),
			Error:      se.Message,
			Suggestion: se.Suggestion,
		}
	}
	return http.StatusInternalServerError, &models.ErrorResponse{
		Code:  "INTERNAL",
		Error: err.Error(),
	}
}

func writeError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	c.JSON(status, resp)
}

// bindApp 解析launch/start请求，body为空或字段缺失时返回false
func bindApp(c *gin.Context) (models.AppRequest, bool) {
	var req models.AppRequest
	_ = c.ShouldBindJSON(&req)
	return req, req.Source != "" && req.Category != "" && req.Folder != ""
}

// StartCore starts every core service
//
//	@Summary		Start core services
//	@Description	Start all configured core services in order, services already running are left alone
//	@Tags			Core
//	@Produce		json
//	@Success		200	{object}	models.CoreActionResponse	"Per service result"
//	@Router			/api/supervisor/start_core [post]
func (s *SupervisorController) StartCore(c *gin.Context) {
	c.JSON(http.StatusOK, &models.CoreActionResponse{
		Message: "Core services start attempted",
		Details: s.supervisor.StartCoreServices(),
	})
}

// StopCore stops every core service
//
//	@Summary		Stop core services
//	@Description	Stop all configured core services in order
//	@Tags			Core
//	@Produce		json
//	@Success		200	{object}	models.CoreActionResponse	"Per service result"
//	@Router			/api/supervisor/stop_core [post]
func (s *SupervisorController) StopCore(c *gin.Context) {
	c.JSON(http.StatusOK, &models.CoreActionResponse{
		Message: "Core services stop attempted",
		Details: s.supervisor.StopCoreServices(),
	})
}

// CoreStatus returns status of every core service
//
//	@Summary		Core services status
//	@Description	Running flag, pid and port of every core service, pid is 0 when not running
//	@Tags			Core
//	@Produce		json
//	@Success		200	{object}	map[string]models.CoreServiceStatus
//	@Router			/api/supervisor/core_status [get]
func (s *SupervisorController) CoreStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.supervisor.CoreServicesStatus())
}

// StartCoreService starts one core service
//
//	@Summary		Start core service
//	@Tags			Core
//	@Produce		json
//	@Param			name	path		string	true	"Core service name"
//	@Success		200		{object}	models.CoreServiceResult
//	@Failure		404		{object}	models.ErrorResponse	"Service not found"
//	@Failure		500		{object}	models.ErrorResponse	"Required file missing or spawn failed"
//	@Router			/api/supervisor/core/{name}/start [post]
func (s *SupervisorController) StartCoreService(c *gin.Context) {
	result, err := s.supervisor.StartCore(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &result)
}

// StopCoreService stops one core service
//
//	@Summary		Stop core service
//	@Description	Two-phase stop, a stop timeout is reported in the result but the service is still marked stopped
//	@Tags			Core
//	@Produce		json
//	@Param			name	path		string	true	"Core service name"
//	@Success		200		{object}	models.CoreServiceResult
//	@Failure		404		{object}	models.ErrorResponse	"Service not found"
//	@Router			/api/supervisor/core/{name}/stop [post]
func (s *SupervisorController) StopCoreService(c *gin.Context) {
	result, err := s.supervisor.StopCore(c.Param("name"))
	if err != nil && !services.IsErrorCode(err, services.ErrorCodeStopTimeout) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &result)
}

// GetCoreService returns status of one core service
//
//	@Summary		Get core service
//	@Tags			Core
//	@Produce		json
//	@Param			name	path		string	true	"Core service name"
//	@Success		200		{object}	models.CoreServiceStatus
//	@Failure		404		{object}	models.ErrorResponse	"Service not found"
//	@Router			/api/supervisor/core/{name} [get]
func (s *SupervisorController) GetCoreService(c *gin.Context) {
	st, err := s.supervisor.CoreStatus(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &st)
}

// LaunchApp launches an app or returns the URL of the running one
//
//	@Summary		Launch app
//	@Description	Idempotent: an app already running returns its existing URL
//	@Tags			Apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.AppRequest		true	"source/category/folder"
//	@Success		200		{object}	models.LaunchResponse	"{success:true, message, url}"
//	@Failure		400		{object}	models.LaunchResponse	"Missing required fields"
//	@Failure		404		{object}	models.LaunchResponse	"No start.py found"
//	@Failure		409		{object}	models.LaunchResponse	"Folder owned by another app"
//	@Failure		500		{object}	models.LaunchResponse	"Runtime missing or spawn failed"
//	@Failure		503		{object}	models.LaunchResponse	"No free port"
//	@Router			/api/supervisor/launch [post]
func (s *SupervisorController) LaunchApp(c *gin.Context) {
	req, ok := bindApp(c)
	if !ok {
		c.JSON(http.StatusBadRequest, &models.LaunchResponse{
			Success: false,
			Error:   "Missing required fields",
			Code:    string(services.ErrorCodeInvalidRequest),
		})
		return
	}
	result, err := s.supervisor.LaunchApp(req.Source, req.Category, req.Folder)
	if err != nil {
		status, resp := errorResponse(err)
		c.JSON(status, &models.LaunchResponse{
			Success: false,
			Error:   resp.Error,
			Code:    resp.Code,
		})
		return
	}
	message := fmt.Sprintf("%s launched", req.Folder)
	if result.AlreadyRunning {
		message = fmt.Sprintf("%s already running", req.Folder)
	}
	c.JSON(http.StatusOK, &models.LaunchResponse{
		Success: true,
		Message: message,
		URL:     result.URL,
	})
}

// StartApp starts an app and returns its pid and port
//
//	@Summary		Start app
//	@Tags			Apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.AppRequest			true	"source/category/folder"
//	@Success		200		{object}	models.StartAppResponse
//	@Failure		400		{object}	models.ErrorResponse	"Missing required fields"
//	@Failure		404		{object}	models.ErrorResponse	"No start.py found"
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/api/supervisor/start [post]
func (s *SupervisorController) StartApp(c *gin.Context) {
	req, ok := bindApp(c)
	if !ok {
		writeError(c, services.ErrInvalidRequest("Missing required fields"))
		return
	}
	result, err := s.supervisor.LaunchApp(req.Source, req.Category, req.Folder)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.AlreadyRunning {
		c.JSON(http.StatusOK, &models.StartAppResponse{
			Message: fmt.Sprintf("%s is already running", req.Folder),
		})
		return
	}
	c.JSON(http.StatusOK, &models.StartAppResponse{
		Message: fmt.Sprintf("%s started", req.Folder),
		Pid:     result.App.Pid,
		Port:    result.App.Port,
	})
}

// StopApp stops an app and releases its port
//
//	@Summary		Stop app
//	@Tags			Apps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.StopAppRequest	true	"folder"
//	@Success		200		{object}	models.MessageResponse	"Stopped, warning is set when the process ignored the kill"
//	@Failure		400		{object}	models.ErrorResponse	"Missing folder"
//	@Failure		404		{object}	models.ErrorResponse	"App not running"
//	@Router			/api/supervisor/stop [post]
func (s *SupervisorController) StopApp(c *gin.Context) {
	var req models.StopAppRequest
	_ = c.ShouldBindJSON(&req)
	if req.Folder == "" {
		writeError(c, services.ErrInvalidRequest("Missing required fields"))
		return
	}
	resp := &models.MessageResponse{Message: fmt.Sprintf("%s stopped", req.Folder)}
	if err := s.supervisor.StopApp(req.Folder); err != nil {
		se, ok := services.AsSupervisorError(err)
		if !ok || se.Code != services.ErrorCodeStopTimeout {
			writeError(c, err)
			return
		}
		resp.Warning = se.Message
	}
	c.JSON(http.StatusOK, resp)
}

// AppsStatus returns status of every tracked app
//
//	@Summary		Apps status
//	@Tags			Apps
//	@Produce		json
//	@Success		200	{object}	map[string]models.AppStatus
//	@Router			/api/supervisor/status [get]
func (s *SupervisorController) AppsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.supervisor.AppsStatus())
}

// GetApp returns status of one app
//
//	@Summary		Get app
//	@Tags			Apps
//	@Produce		json
//	@Param			folder	path		string	true	"App folder"
//	@Success		200		{object}	models.AppStatus
//	@Failure		404		{object}	models.ErrorResponse	"App not running"
//	@Router			/api/supervisor/status/{folder} [get]
func (s *SupervisorController) GetApp(c *gin.Context) {
	st, err := s.supervisor.AppStatus(c.Param("folder"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &st)
}

// Ports returns the port assignment table
//
//	@Summary		Port assignments
//	@Tags			Apps
//	@Produce		json
//	@Success		200	{object}	models.PortAllocation
//	@Router			/api/supervisor/ports [get]
func (s *SupervisorController) Ports(c *gin.Context) {
	snapshot := s.supervisor.PortSnapshot()
	c.JSON(http.StatusOK, &snapshot)
}
