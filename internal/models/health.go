package models

// HealthStatus 应用健康状态，由健康监测协程写入
type HealthStatus string

const (
	HealthStarting     HealthStatus = "starting"     //已启动，尚未完成第一次探测
	HealthHealthy      HealthStatus = "healthy"      //探测返回的状态码小于400
	HealthUnresponsive HealthStatus = "unresponsive" //有HTTP响应但状态码不小于400
	HealthUnreachable  HealthStatus = "unreachable"  //连接失败或超时
)

// HealthResponse 健康检查响应结构
// @Description 监督进程自身的健康检查数据
type HealthResponse struct {
	Version   string  `json:"version" example:"1.0.0" description:"服务版本"`
	StartTime string  `json:"startTime" example:"2024-01-01T10:00:00Z" description:"启动时间"`
	Status    string  `json:"status" example:"UP" description:"健康状态"`
	Uptime    string  `json:"uptime" example:"1h30m45s" description:"运行时长"`
	Metrics   Metrics `json:"metrics" description:"关键指标"`
}

// Metrics 关键指标结构
type Metrics struct {
	TotalRequests       int64 `json:"totalRequests" example:"1000" description:"总请求数"`
	ErrorRequests       int64 `json:"errorRequests" example:"5" description:"出错请求数"`
	RunningCoreServices int   `json:"runningCoreServices" example:"2" description:"运行中的核心服务数"`
	TotalCoreServices   int   `json:"totalCoreServices" example:"2" description:"核心服务总数"`
	RunningApps         int   `json:"runningApps" example:"3" description:"运行中的应用数"`
	HealthyApps         int   `json:"healthyApps" example:"3" description:"健康的应用数"`
	AssignedPorts       int   `json:"assignedPorts" example:"3" description:"已分配端口数"`
}
