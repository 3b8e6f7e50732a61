package services

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/proc"
	"apollo-supervisor/internal/utils"
)

const (
	triggerAPI      = "api"
	triggerWatchdog = "watchdog"
)

/**
 * CoreService 核心服务实例
 * @property {config.ServiceConfig} Spec - 服务配置，启动后不可变
 * @property {*proc.Handle} handle - 当前进程，未启动时为nil
 * @property {models.RunStatus} status - stopped/starting/running
 * @property {int} restartCount - 被看门狗重启的次数
 * @property {bool} stoppedByUser - 是否通过控制接口停止
 */
type CoreService struct {
	Spec          config.ServiceConfig
	handle        *proc.Handle
	status        models.RunStatus
	restartCount  int
	startTime     time.Time
	lastError     string
	stoppedByUser bool
}

// commandData 命令行模板可以引用的字段
type commandData struct {
	Name string
	Port int
	Dir  string
	Root string
}

/**
 * CoreServiceManager 管理固定的一组核心服务
 * @description
 * - 所有操作都持有与AppLifecycleManager共享的进程锁
 * - 服务按配置顺序启动/停止
 * - 同一服务名最多只有一个存活进程
 */
type CoreServiceManager struct {
	mutex       *sync.Mutex
	root        string
	env         []string
	stopTimeout time.Duration
	killWait    time.Duration
	skipStopped bool
	order       []string
	services    map[string]*CoreService
}

func NewCoreServiceManager(mutex *sync.Mutex, cfg *config.AppConfig) *CoreServiceManager {
	m := &CoreServiceManager{
		mutex:       mutex,
		root:        cfg.Supervisor.Root,
		env:         cfg.Supervisor.Env,
		stopTimeout: cfg.Supervisor.StopTimeout,
		killWait:    cfg.Supervisor.KillWait,
		skipStopped: cfg.Watchdog.SkipStopped,
		services:    make(map[string]*CoreService),
	}
	for _, spec := range cfg.CoreServices {
		if _, exist := m.services[spec.Name]; exist {
			logger.Warnf("Duplicate core service '%s' ignored", spec.Name)
			continue
		}
		m.order = append(m.order, spec.Name)
		m.services[spec.Name] = &CoreService{
			Spec:   spec,
			status: models.StatusStopped,
		}
	}
	return m
}

func (m *CoreServiceManager) get(name string) (*CoreService, error) {
	svc, ok := m.services[name]
	if !ok {
		return nil, ErrServiceNotFound(name)
	}
	return svc, nil
}

/**
 * Start 启动核心服务
 * @param {string} name - 服务名
 * @returns {models.CoreServiceResult} 启动结果，已在运行时outcome为already_running
 * @returns {error} 服务不存在、缺少文件、命令不存在、目录不存在或进程创建失败
 * @description
 * - 检查顺序: 必需文件 -> 是否已运行 -> 命令是否存在 -> 工作目录
 * - 已在运行时不做任何事，返回当前pid和访问地址
 */
func (m *CoreServiceManager) Start(name string) (models.CoreServiceResult, error) {
	svc, err := m.get(name)
	if err != nil {
		return failedResult(name, err), err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	svc.stoppedByUser = false
	return m.startLocked(svc, triggerAPI)
}

func (m *CoreServiceManager) startLocked(svc *CoreService, trigger string) (models.CoreServiceResult, error) {
	spec := &svc.Spec
	dir := spec.WorkDir(m.root)

	if artifact := spec.ArtifactPath(m.root); artifact != "" {
		if _, err := os.Stat(artifact); err != nil {
			return m.fail(svc, trigger, ErrMissingArtifact(spec.Name, artifact))
		}
	}

	if svc.handle.IsAlive() {
		return models.CoreServiceResult{
			Name:    spec.Name,
			Outcome: models.OutcomeAlreadyRunning,
			Message: fmt.Sprintf("%s already running (PID: %d) at http://localhost:%d", spec.Name, svc.handle.Pid(), spec.Port),
			Pid:     svc.handle.Pid(),
			Port:    spec.Port,
		}, nil
	}

	if len(spec.Command) == 0 {
		return m.fail(svc, trigger, ErrCommandNotFound(spec.Name, "", fmt.Errorf("empty command")))
	}
	argv, err := utils.ExpandCommandLine(spec.Command, commandData{Name: spec.Name, Port: spec.Port, Dir: dir, Root: m.root})
	if err != nil {
		return m.fail(svc, trigger, ErrSpawnFailed(spec.Name, err))
	}
	command := argv[0]
	if strings.ContainsRune(command, filepath.Separator) && !filepath.IsAbs(command) {
		command = filepath.Join(dir, command)
	}
	if _, err := exec.LookPath(command); err != nil {
		return m.fail(svc, trigger, ErrCommandNotFound(spec.Name, argv[0], err))
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return m.fail(svc, trigger, ErrNoWorkingDirectory(spec.Name, dir))
	}

	logger.Infof("Starting '%s' in %s with command: %v", spec.Name, dir, argv)
	svc.status = models.StatusStarting
	handle, err := proc.Launch(proc.Options{
		Title:   spec.Name,
		Command: command,
		Args:    argv[1:],
		Dir:     dir,
		Env:     append(append([]string{}, m.env...), spec.Env...),
	})
	if err != nil {
		return m.fail(svc, trigger, ErrSpawnFailed(spec.Name, err))
	}

	if svc.handle != nil && trigger == triggerWatchdog {
		svc.restartCount++
	}
	svc.handle = handle
	svc.status = models.StatusRunning
	svc.startTime = handle.StartTime()
	svc.lastError = ""
	recordCoreStart(spec.Name, trigger, models.OutcomeStarted)

	return models.CoreServiceResult{
		Name:    spec.Name,
		Outcome: models.OutcomeStarted,
		Message: fmt.Sprintf("%s started (PID: %d) at http://localhost:%d", spec.Name, handle.Pid(), spec.Port),
		Pid:     handle.Pid(),
		Port:    spec.Port,
	}, nil
}

func (m *CoreServiceManager) fail(svc *CoreService, trigger string, err *SupervisorError) (models.CoreServiceResult, error) {
	if !svc.handle.IsAlive() {
		svc.status = models.StatusStopped
	}
	svc.lastError = err.Error()
	recordCoreStart(svc.Spec.Name, trigger, models.OutcomeFailed)
	logger.Errorf("Start core service '%s' failed: %v", svc.Spec.Name, err)
	return failedResult(svc.Spec.Name, err), err
}

func failedResult(name string, err error) models.CoreServiceResult {
	result := models.CoreServiceResult{
		Name:    name,
		Outcome: models.OutcomeFailed,
		Message: "ERROR: " + err.Error(),
	}
	if se, ok := AsSupervisorError(err); ok {
		result.Message = "ERROR: " + se.Message
		result.Code = string(se.Code)
	}
	return result
}

/**
 * Stop 停止核心服务
 * @param {string} name - 服务名
 * @returns {models.CoreServiceResult} 停止结果，未运行时outcome为not_running
 * @returns {error} 服务不存在，或强制结束后进程仍未退出(STOP_TIMEOUT)
 * @description
 * - 无论是否超时，进程句柄都会被清除
 */
func (m *CoreServiceManager) Stop(name string) (models.CoreServiceResult, error) {
	svc, err := m.get(name)
	if err != nil {
		return failedResult(name, err), err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	svc.stoppedByUser = true
	return m.stopLocked(svc)
}

func (m *CoreServiceManager) stopLocked(svc *CoreService) (models.CoreServiceResult, error) {
	name := svc.Spec.Name
	handle := svc.handle
	if !handle.IsAlive() {
		svc.handle = nil
		svc.status = models.StatusStopped
		return models.CoreServiceResult{
			Name:    name,
			Outcome: models.OutcomeNotRunning,
			Message: fmt.Sprintf("%s is not running", name),
		}, nil
	}

	pid := handle.Pid()
	err := handle.Stop(m.stopTimeout, m.killWait)
	svc.handle = nil
	svc.status = models.StatusStopped
	result := models.CoreServiceResult{
		Name:    name,
		Outcome: models.OutcomeStopped,
		Message: fmt.Sprintf("%s stopped", name),
		Pid:     pid,
	}
	if err != nil {
		se := ErrStopTimeout(name, pid, err)
		svc.lastError = se.Error()
		result.Code = string(se.Code)
		result.Message = fmt.Sprintf("%s stopped with timeout: %s", name, se.Message)
		logger.Errorf("Stop core service '%s' error: %v", name, se)
		return result, se
	}
	logger.Infof("Core service '%s' (PID: %d) stopped", name, pid)
	return result, nil
}

// Status 查询单个服务的状态
func (m *CoreServiceManager) Status(name string) (models.CoreServiceStatus, error) {
	svc, err := m.get(name)
	if err != nil {
		return models.CoreServiceStatus{}, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return svc.statusLocked(), nil
}

// StatusAll 查询所有服务的状态
func (m *CoreServiceManager) StatusAll() map[string]models.CoreServiceStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	result := make(map[string]models.CoreServiceStatus, len(m.services))
	for name, svc := range m.services {
		result[name] = svc.statusLocked()
	}
	return result
}

func (svc *CoreService) statusLocked() models.CoreServiceStatus {
	st := models.CoreServiceStatus{
		Port:         svc.Spec.Port,
		Status:       svc.status,
		RestartCount: svc.restartCount,
		LastError:    svc.lastError,
	}
	if svc.handle.IsAlive() {
		st.Running = true
		st.Pid = svc.handle.Pid()
		st.StartTime = svc.startTime
	} else {
		// 进程已退出，等待看门狗或控制接口重新启动
		st.Status = models.StatusStopped
	}
	return st
}

// StartAll 按配置顺序启动所有服务
func (m *CoreServiceManager) StartAll() []models.CoreServiceResult {
	results := make([]models.CoreServiceResult, 0, len(m.order))
	for _, name := range m.order {
		result, _ := m.Start(name)
		results = append(results, result)
	}
	return results
}

// StopAll 按配置顺序停止所有服务
func (m *CoreServiceManager) StopAll() []models.CoreServiceResult {
	results := make([]models.CoreServiceResult, 0, len(m.order))
	for _, name := range m.order {
		result, _ := m.Stop(name)
		results = append(results, result)
	}
	return results
}

/**
 * Recover 重启所有未运行的核心服务，由看门狗周期调用
 * @returns {[]models.CoreServiceResult} 本次尝试重启的服务的结果
 * @description
 * - 每个服务单独加锁，一个服务失败不影响其他服务
 * - skipStopped为true时，跳过通过控制接口停止的服务
 */
func (m *CoreServiceManager) Recover() []models.CoreServiceResult {
	var results []models.CoreServiceResult
	for _, name := range m.order {
		if result, attempted := m.recoverOne(m.services[name]); attempted {
			results = append(results, result)
		}
	}
	return results
}

func (m *CoreServiceManager) recoverOne(svc *CoreService) (models.CoreServiceResult, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if svc.handle.IsAlive() {
		return models.CoreServiceResult{}, false
	}
	if m.skipStopped && svc.stoppedByUser {
		return models.CoreServiceResult{}, false
	}
	if svc.handle != nil {
		logger.Warnf("Core service '%s' exited (%s), restarting...", svc.Spec.Name, svc.handle.Detail().ExitReason)
	} else {
		logger.Warnf("Core service '%s' is not running, restarting...", svc.Spec.Name)
	}
	result, err := m.startLocked(svc, triggerWatchdog)
	if err == nil {
		logger.Infof("%s", result.Message)
	}
	return result, true
}
