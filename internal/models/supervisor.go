package models

import "time"

// CoreServiceStatus 核心服务状态，pid为0表示未运行
type CoreServiceStatus struct {
	Running      bool      `json:"running"`
	Pid          int       `json:"pid"`
	Port         int       `json:"port"`
	Status       RunStatus `json:"status"`
	RestartCount int       `json:"restartCount"`
	StartTime    time.Time `json:"startTime,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

// CoreServiceResult 一次启动/停止操作的结果
type CoreServiceResult struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"` // started/already_running/stopped/not_running/failed
	Message string `json:"message"`
	Pid     int    `json:"pid,omitempty"`
	Port    int    `json:"port,omitempty"`
	Code    string `json:"code,omitempty"`
}

const (
	OutcomeStarted        = "started"
	OutcomeAlreadyRunning = "already_running"
	OutcomeStopped        = "stopped"
	OutcomeNotRunning     = "not_running"
	OutcomeFailed         = "failed"
)

// CoreActionResponse start_core/stop_core的响应
type CoreActionResponse struct {
	Message string              `json:"message"`
	Details []CoreServiceResult `json:"details"`
}

// AppStatus 应用状态
type AppStatus struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	Category  string       `json:"category"`
	Folder    string       `json:"folder"`
	Pid       int          `json:"pid"`
	Port      int          `json:"port"`
	Status    HealthStatus `json:"status"`
	Running   bool         `json:"running"`
	CreatedAt time.Time    `json:"createdAt"`
	LastCheck time.Time    `json:"lastCheck,omitempty"`
}

// AppRequest launch/start请求
type AppRequest struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Folder   string `json:"folder"`
}

// StopAppRequest stop请求
type StopAppRequest struct {
	Folder string `json:"folder"`
}

// LaunchResponse launch的响应，失败时success=false并携带error
type LaunchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// StartAppResponse start的响应
type StartAppResponse struct {
	Message string `json:"message"`
	Pid     int    `json:"pid,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// MessageResponse 只带消息的响应
type MessageResponse struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// PortAllocation 端口分配记录
type PortAllocation struct {
	Min       int         `json:"min"`
	Max       int         `json:"max"`
	Assigned  map[int]int `json:"assigned"` // port -> pid
	Reserved  []int       `json:"reserved"` // 已分配但还没有绑定到进程的端口
	Available int         `json:"available"`
}
