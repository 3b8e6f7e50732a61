package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
)

// Version 监督进程版本，由cmd在启动时设置
var Version = "dev"

/**
 * Supervisor 监督进程的全部状态
 * @description
 * - 持有进程锁，并共享给核心服务管理器和应用管理器
 * - 持有端口分配器、看门狗
 * - 控制接口只通过Supervisor访问各管理器
 */
type Supervisor struct {
	cfg       *config.AppConfig
	mutex     sync.Mutex
	ports     *PortAllocator
	core      *CoreServiceManager
	apps      *AppLifecycleManager
	watchdog  *Watchdog
	startTime time.Time

	stopWatchdog context.CancelFunc
	watchdogDone chan struct{}
}

/**
 * NewSupervisor 按配置创建监督进程
 * @param {config.AppConfig} cfg - 应用配置
 * @returns {Supervisor} 还没有启动任何进程的监督进程
 * @example
 * sup := services.NewSupervisor(config.App())
 * sup.StartCoreServices()
 * sup.StartWatchdog(ctx)
 */
func NewSupervisor(cfg *config.AppConfig) *Supervisor {
	s := &Supervisor{
		cfg:       cfg,
		startTime: time.Now(),
	}
	s.ports = NewPortAllocator(cfg.Ports.Min, cfg.Ports.Max, cfg.Ports.ProbeTimeout)
	s.core = NewCoreServiceManager(&s.mutex, cfg)
	s.apps = NewAppLifecycleManager(&s.mutex, s.ports, cfg)
	s.watchdog = NewWatchdog(s.core, cfg.Watchdog.Interval)
	return s
}

func (s *Supervisor) Core() *CoreServiceManager {
	return s.core
}

func (s *Supervisor) Apps() *AppLifecycleManager {
	return s.apps
}

func (s *Supervisor) Ports() *PortAllocator {
	return s.ports
}

// StartCoreServices 按配置顺序启动所有核心服务，每个服务返回一条结果
func (s *Supervisor) StartCoreServices() []models.CoreServiceResult {
	return s.core.StartAll()
}

// StopCoreServices 按配置顺序停止所有核心服务
func (s *Supervisor) StopCoreServices() []models.CoreServiceResult {
	return s.core.StopAll()
}

func (s *Supervisor) CoreServicesStatus() map[string]models.CoreServiceStatus {
	return s.core.StatusAll()
}

func (s *Supervisor) StartCore(name string) (models.CoreServiceResult, error) {
	return s.core.Start(name)
}

func (s *Supervisor) StopCore(name string) (models.CoreServiceResult, error) {
	return s.core.Stop(name)
}

func (s *Supervisor) CoreStatus(name string) (models.CoreServiceStatus, error) {
	return s.core.Status(name)
}

/**
 * LaunchApp 启动应用并返回访问地址
 * @param {string} source - 来源
 * @param {string} category - 分类
 * @param {string} folder - 应用目录
 * @returns {LaunchResult} URL为http://localhost:<port>
 * @returns {error} *SupervisorError
 */
func (s *Supervisor) LaunchApp(source, category, folder string) (LaunchResult, error) {
	return s.apps.Launch(source, category, folder)
}

func (s *Supervisor) StopApp(folder string) error {
	return s.apps.Stop(folder)
}

func (s *Supervisor) AppsStatus() map[string]models.AppStatus {
	return s.apps.Status()
}

func (s *Supervisor) AppStatus(folder string) (models.AppStatus, error) {
	return s.apps.StatusOf(folder)
}

func (s *Supervisor) PortSnapshot() models.PortAllocation {
	return s.ports.Snapshot()
}

/**
 * StartWatchdog 启动看门狗协程
 * @param {context.Context} ctx - 取消后看门狗退出
 * @description
 * - watchdog.enabled为false时不启动
 * - 重复调用只会启动一个看门狗
 */
func (s *Supervisor) StartWatchdog(ctx context.Context) {
	if !s.cfg.Watchdog.Enabled {
		logger.Info("Watchdog is disabled")
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stopWatchdog != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stopWatchdog = cancel
	s.watchdogDone = done
	go func() {
		defer close(done)
		s.watchdog.Run(ctx)
	}()
}

func (s *Supervisor) haltWatchdog() {
	s.mutex.Lock()
	cancel, done := s.stopWatchdog, s.watchdogDone
	s.stopWatchdog, s.watchdogDone = nil, nil
	s.mutex.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

/**
 * Shutdown 停止看门狗、所有应用和核心服务
 * @param {context.Context} ctx - 超时后不再等待应用进程退出
 * @returns {error} 第一个停止失败的错误
 * @description
 * - 先停看门狗，避免退出过程中服务被重新拉起
 * - 应用与核心服务并发停止
 */
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.haltWatchdog()

	var g errgroup.Group
	g.Go(func() error {
		return s.apps.StopAll(ctx)
	})
	g.Go(func() error {
		for _, result := range s.core.StopAll() {
			if result.Code != "" {
				return fmt.Errorf("%s: %s", result.Name, result.Message)
			}
		}
		return nil
	})
	err := g.Wait()
	if err != nil {
		logger.Errorf("Shutdown error: %v", err)
	} else {
		logger.Info("All supervised processes stopped")
	}
	return err
}

// ApplyConfig 配置文件变化后生效可以热更新的配置项
func (s *Supervisor) ApplyConfig(cfg *config.AppConfig) {
	logger.SetLevel(cfg.Log.Level)
	logger.Infof("Configuration applied, log level: %s", logger.Level())
}

/**
 * GetHealthz 监督进程自身的健康状态
 * @returns {models.HealthResponse} 版本、运行时长、请求数、进程数
 */
func (s *Supervisor) GetHealthz() models.HealthResponse {
	metrics := models.Metrics{
		TotalRequests: GetTotalRequestCount(),
		ErrorRequests: GetTotalErrorCount(),
		AssignedPorts: s.ports.Count(),
	}
	for _, st := range s.core.StatusAll() {
		metrics.TotalCoreServices++
		if st.Running {
			metrics.RunningCoreServices++
		}
	}
	for _, st := range s.apps.Status() {
		if st.Running {
			metrics.RunningApps++
		}
		if st.Status == models.HealthHealthy {
			metrics.HealthyApps++
		}
	}
	return models.HealthResponse{
		Version:   Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Metrics:   metrics,
	}
}
