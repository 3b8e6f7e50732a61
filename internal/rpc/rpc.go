package rpc

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	BaseURL string        // 监督进程地址，如http://127.0.0.1:5500
	Timeout time.Duration // 单个请求的超时时间
}

// DefaultHTTPConfig 按当前配置中的侦听地址生成客户端配置
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		BaseURL: BaseURLFromAddress(config.App().Server.Address),
		Timeout: 30 * time.Second,
	}
}

/**
 * Convert a listen address into a base URL
 * @param {string} address - Listen address such as ":5500", "0.0.0.0:5500" or "http://host:port"
 * @returns {string} Base URL reachable from the local machine
 * @example
 * BaseURLFromAddress(":5500") // http://127.0.0.1:5500
 */
func BaseURLFromAddress(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return strings.TrimRight(address, "/")
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "http://127.0.0.1:5500"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// APIError 监督进程返回的错误响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Suggestion string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// Client 基于resty的监督进程客户端
type Client struct {
	config *HTTPConfig
	resty  *resty.Client
}

/**
 * Create new client for the supervisor HTTP API
 * @param {HTTPConfig} cfg - Client configuration, nil for DefaultHTTPConfig
 * @returns {*Client} Client ready to use
 * @example
 * client := rpc.NewClient(nil)
 * status, err := client.CoreStatus(ctx)
 */
func NewClient(cfg *HTTPConfig) *Client {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "apollo-supervisor-cli")
	return &Client{config: cfg, resty: r}
}

func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	req := c.resty.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{})
	if result != nil {
		req.SetResult(result)
	}
	if body != nil {
		req.SetBody(body)
	}
	logger.Debugf("Sending %s request to %s%s", method, c.config.BaseURL, path)
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*models.ErrorResponse); ok && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		apiErr.Suggestion = body.Suggestion
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, resty.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, resty.MethodPost, path, body, result)
}
