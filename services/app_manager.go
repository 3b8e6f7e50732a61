package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/proc"
)

/**
 * AppRecord 一个按需启动的应用
 * @property {string} ID - 记录ID(uuid)
 * @property {string} Source - 来源目录
 * @property {string} Category - 分类目录
 * @property {string} Folder - 应用目录，也是应用表的键
 * @property {int} Port - 分配的端口
 * @property {atomic.String} health - 健康状态，只由健康监测协程写入
 * @property {atomic.Int64} lastCheck - 最近一次探测时间(UnixNano)
 * @property {context.Context} ctx - 记录被移除时取消
 */
type AppRecord struct {
	ID        string
	Source    string
	Category  string
	Folder    string
	Dir       string
	Port      int
	CreatedAt time.Time

	handle    *proc.Handle
	health    *atomic.String
	lastCheck *atomic.Int64
	polls     *atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
	monitored chan struct{} // 健康监测协程退出后关闭
}

func (r *AppRecord) setHealth(status models.HealthStatus) models.HealthStatus {
	r.lastCheck.Store(time.Now().UnixNano())
	r.polls.Inc()
	prev := r.health.Load()
	r.health.Store(string(status))
	return models.HealthStatus(prev)
}

// Health 最近一次观测到的健康状态
func (r *AppRecord) Health() models.HealthStatus {
	return models.HealthStatus(r.health.Load())
}

// Polls 已完成的健康探测次数
func (r *AppRecord) Polls() int64 {
	return r.polls.Load()
}

func (r *AppRecord) URL() string {
	return fmt.Sprintf("http://localhost:%d", r.Port)
}

func (r *AppRecord) snapshot() models.AppStatus {
	st := models.AppStatus{
		ID:        r.ID,
		Source:    r.Source,
		Category:  r.Category,
		Folder:    r.Folder,
		Pid:       r.handle.Pid(),
		Port:      r.Port,
		Status:    r.Health(),
		Running:   r.handle.IsAlive(),
		CreatedAt: r.CreatedAt,
	}
	if ns := r.lastCheck.Load(); ns > 0 {
		st.LastCheck = time.Unix(0, ns)
	}
	return st
}

// LaunchResult Launch的结果
type LaunchResult struct {
	App            models.AppStatus
	URL            string
	AlreadyRunning bool
}

/**
 * AppLifecycleManager 管理按需启动的应用
 * @description
 * - 应用表以folder为键，与核心服务共享同一把进程锁
 * - 同一folder最多只有一个存活进程，重复launch直接返回已有端口
 * - 每个应用一个健康监测协程，记录移除时结束
 */
type AppLifecycleManager struct {
	mutex       *sync.Mutex
	ports       *PortAllocator
	monitor     *HealthMonitor
	appsRoot    string
	entry       string
	runtime     string
	portEnv     string
	env         []string
	stopTimeout time.Duration
	killWait    time.Duration
	apps        map[string]*AppRecord
	monitors    sync.WaitGroup
}

func NewAppLifecycleManager(mutex *sync.Mutex, ports *PortAllocator, cfg *config.AppConfig) *AppLifecycleManager {
	rt := cfg.Apps.RuntimeUnix
	if runtime.GOOS == "windows" {
		rt = cfg.Apps.RuntimeWindows
	}
	portEnv := cfg.Apps.PortEnv
	if portEnv == "" {
		portEnv = "PORT"
	}
	return &AppLifecycleManager{
		mutex:       mutex,
		ports:       ports,
		monitor:     NewHealthMonitor(NewHealthChecker(cfg.Health.Timeout, cfg.Health.Path), cfg.Health.Interval),
		appsRoot:    cfg.AppsRoot(),
		entry:       cfg.Apps.Entry,
		runtime:     filepath.FromSlash(rt),
		portEnv:     portEnv,
		env:         cfg.Supervisor.Env,
		stopTimeout: cfg.Supervisor.StopTimeout,
		killWait:    cfg.Supervisor.KillWait,
		apps:        make(map[string]*AppRecord),
	}
}

// validName 目录名不能为空，也不能跳出apps目录
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && filepath.Base(s) == s
}

/**
 * Launch 启动应用(幂等)
 * @param {string} source - 来源
 * @param {string} category - 分类
 * @param {string} folder - 应用目录
 * @returns {LaunchResult} 应用状态与访问地址，已在运行时AlreadyRunning为true
 * @returns {error} 参数缺失、入口文件/解释器不存在、端口耗尽、进程创建失败
 * @description
 * - 同一folder已有存活进程时直接返回其端口，不分配新端口也不创建新进程
 * - folder被其他source/category的应用占用时返回ALREADY_RUNNING
 * - 已退出的旧记录先回收(释放端口、结束监测)
 * - 进程创建失败时释放已分配的端口
 */
func (m *AppLifecycleManager) Launch(source, category, folder string) (LaunchResult, error) {
	if source == "" || category == "" || folder == "" {
		return LaunchResult{}, ErrInvalidRequest("Missing required fields")
	}
	if !validName(source) || !validName(category) || !validName(folder) {
		return LaunchResult{}, ErrInvalidRequest("source, category and folder must be plain directory names")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if rec, ok := m.apps[folder]; ok {
		if rec.handle.IsAlive() {
			if rec.Source != source || rec.Category != category {
				recordLaunch(models.OutcomeFailed)
				return LaunchResult{}, NewError(ErrorCodeAlreadyRunning,
					fmt.Sprintf("%s is already running from %s/%s", folder, rec.Source, rec.Category)).
					WithContext("port", rec.Port)
			}
			recordLaunch(models.OutcomeAlreadyRunning)
			return LaunchResult{App: rec.snapshot(), URL: rec.URL(), AlreadyRunning: true}, nil
		}
		logger.Warnf("App '%s' (PID: %d) exited, reaping record", folder, rec.handle.Pid())
		m.removeLocked(rec)
	}

	rec, err := m.spawnLocked(source, category, folder)
	if err != nil {
		recordLaunch(models.OutcomeFailed)
		return LaunchResult{}, err
	}
	recordLaunch(models.OutcomeStarted)
	return LaunchResult{App: rec.snapshot(), URL: rec.URL()}, nil
}

func (m *AppLifecycleManager) spawnLocked(source, category, folder string) (*AppRecord, error) {
	appPath := filepath.Join(m.appsRoot, source, category, folder)
	entry := filepath.Join(appPath, m.entry)
	interpreter := filepath.Join(appPath, m.runtime)

	if info, err := os.Stat(entry); err != nil || info.IsDir() {
		return nil, ErrMissingEntryPoint(appPath, m.entry)
	}
	if info, err := os.Stat(interpreter); err != nil || info.IsDir() {
		return nil, ErrMissingRuntime(folder, interpreter)
	}

	port, err := m.ports.Allocate()
	if err != nil {
		return nil, err
	}

	env := append(append([]string{}, m.env...), m.portEnv+"="+strconv.Itoa(port))
	handle, err := proc.Launch(proc.Options{
		Title:   folder,
		Command: interpreter,
		Args:    []string{entry},
		Dir:     appPath,
		Env:     env,
	})
	if err != nil {
		m.ports.Release(port)
		return nil, ErrSpawnFailed(folder, err).WithContext("path", appPath)
	}
	m.ports.Bind(handle.Pid(), port)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &AppRecord{
		ID:        uuid.NewString(),
		Source:    source,
		Category:  category,
		Folder:    folder,
		Dir:       appPath,
		Port:      port,
		CreatedAt: time.Now(),
		handle:    handle,
		health:    atomic.NewString(string(models.HealthStarting)),
		lastCheck: atomic.NewInt64(0),
		polls:     atomic.NewInt64(0),
		ctx:       ctx,
		cancel:    cancel,
		monitored: make(chan struct{}),
	}
	m.apps[folder] = rec
	updateAppGauge(len(m.apps))

	m.monitors.Add(1)
	go func() {
		defer m.monitors.Done()
		defer close(rec.monitored)
		m.monitor.Run(rec)
	}()

	logger.Infof("App '%s' started (PID: %d) on port %d", folder, handle.Pid(), port)
	return rec, nil
}

// removeLocked 释放端口、移除记录并结束健康监测
func (m *AppLifecycleManager) removeLocked(rec *AppRecord) {
	m.ports.Release(rec.Port)
	if m.apps[rec.Folder] == rec {
		delete(m.apps, rec.Folder)
	}
	rec.cancel()
	updateAppGauge(len(m.apps))
}

/**
 * Stop 停止应用
 * @param {string} folder - 应用目录
 * @returns {error} 没有该应用时返回NOT_RUNNING，强制结束后仍未退出时返回STOP_TIMEOUT
 * @description
 * - 两阶段停止进程，释放端口，移除记录
 * - 返回前等待健康监测协程退出，之后不会再有探测
 * - 超时时记录仍会被移除
 */
func (m *AppLifecycleManager) Stop(folder string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec, ok := m.apps[folder]
	if !ok {
		return ErrNotRunning(folder)
	}
	pid := rec.handle.Pid()
	err := rec.handle.Stop(m.stopTimeout, m.killWait)
	m.removeLocked(rec)
	<-rec.monitored
	if err != nil {
		se := ErrStopTimeout(folder, pid, err)
		logger.Errorf("Stop app '%s' error: %v", folder, se)
		return se
	}
	logger.Infof("App '%s' (PID: %d) stopped, port %d released", folder, pid, rec.Port)
	return nil
}

// Status 所有应用的状态快照
func (m *AppLifecycleManager) Status() map[string]models.AppStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	result := make(map[string]models.AppStatus, len(m.apps))
	for folder, rec := range m.apps {
		result[folder] = rec.snapshot()
	}
	return result
}

// StatusOf 单个应用的状态快照
func (m *AppLifecycleManager) StatusOf(folder string) (models.AppStatus, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	rec, ok := m.apps[folder]
	if !ok {
		return models.AppStatus{}, ErrNotRunning(folder)
	}
	return rec.snapshot(), nil
}

func (m *AppLifecycleManager) record(folder string) *AppRecord {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.apps[folder]
}

/**
 * StopAll 停止所有应用，监督进程退出时调用
 * @param {context.Context} ctx - 取消时不再等待剩余进程
 * @returns {error} 第一个停止失败的错误，一个进程超时不影响其他进程的停止
 * @description
 * - 先在锁内移除全部记录，再并发停止各进程
 * - 等待所有健康监测协程退出
 */
func (m *AppLifecycleManager) StopAll(ctx context.Context) error {
	m.mutex.Lock()
	recs := make([]*AppRecord, 0, len(m.apps))
	for _, rec := range m.apps {
		recs = append(recs, rec)
		m.removeLocked(rec)
	}
	m.mutex.Unlock()

	var g errgroup.Group
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- rec.handle.Stop(m.stopTimeout, m.killWait) }()
			select {
			case err := <-done:
				if err != nil {
					return ErrStopTimeout(rec.Folder, rec.handle.Pid(), err)
				}
				logger.Infof("App '%s' (PID: %d) stopped", rec.Folder, rec.handle.Pid())
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err := g.Wait()
	m.monitors.Wait()
	return err
}
