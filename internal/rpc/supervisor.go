package rpc

import (
	"context"
	"net/url"

	"apollo-supervisor/internal/models"
)

func (c *Client) StartCore(ctx context.Context) (*models.CoreActionResponse, error) {
	var resp models.CoreActionResponse
	if err := c.post(ctx, "/api/supervisor/start_core", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StopCore(ctx context.Context) (*models.CoreActionResponse, error) {
	var resp models.CoreActionResponse
	if err := c.post(ctx, "/api/supervisor/stop_core", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CoreStatus(ctx context.Context) (map[string]models.CoreServiceStatus, error) {
	resp := map[string]models.CoreServiceStatus{}
	if err := c.get(ctx, "/api/supervisor/core_status", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// StartCoreService 启动单个核心服务
func (c *Client) StartCoreService(ctx context.Context, name string) (*models.CoreServiceResult, error) {
	var resp models.CoreServiceResult
	if err := c.post(ctx, "/api/supervisor/core/"+url.PathEscape(name)+"/start", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopCoreService 停止单个核心服务
func (c *Client) StopCoreService(ctx context.Context, name string) (*models.CoreServiceResult, error) {
	var resp models.CoreServiceResult
	if err := c.post(ctx, "/api/supervisor/core/"+url.PathEscape(name)+"/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetCoreService(ctx context.Context, name string) (*models.CoreServiceStatus, error) {
	var resp models.CoreServiceStatus
	if err := c.get(ctx, "/api/supervisor/core/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

/**
 * Launch an app through the supervisor
 * @param {models.AppRequest} req - source/category/folder
 * @returns {*models.LaunchResponse} success flag, message and URL
 * @returns {error} *APIError when the supervisor refuses the launch
 */
func (c *Client) Launch(ctx context.Context, req models.AppRequest) (*models.LaunchResponse, error) {
	var resp models.LaunchResponse
	if err := c.post(ctx, "/api/supervisor/launch", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StartApp(ctx context.Context, req models.AppRequest) (*models.StartAppResponse, error) {
	var resp models.StartAppResponse
	if err := c.post(ctx, "/api/supervisor/start", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StopApp(ctx context.Context, folder string) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.post(ctx, "/api/supervisor/stop", &models.StopAppRequest{Folder: folder}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AppsStatus(ctx context.Context) (map[string]models.AppStatus, error) {
	resp := map[string]models.AppStatus{}
	if err := c.get(ctx, "/api/supervisor/status", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AppStatus(ctx context.Context, folder string) (*models.AppStatus, error) {
	var resp models.AppStatus
	if err := c.get(ctx, "/api/supervisor/status/"+url.PathEscape(folder), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Ports(ctx context.Context) (*models.PortAllocation, error) {
	var resp models.PortAllocation
	if err := c.get(ctx, "/api/supervisor/ports", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reload 让监督进程重新读取配置文件
func (c *Client) Reload(ctx context.Context) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.post(ctx, "/api/supervisor/reload", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Healthz(ctx context.Context) (*models.HealthResponse, error) {
	var resp models.HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
