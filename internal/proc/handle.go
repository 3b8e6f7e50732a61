package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"apollo-supervisor/internal/logger"
	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/utils"
)

// ErrStopTimeout 强制结束后进程仍未退出
var ErrStopTimeout = errors.New("process did not exit after forced kill")

const defaultWaitDelay = 2 * time.Second

/**
 * Launch options
 * @property {string} title - Label used to tag forwarded output, e.g. "backend"
 * @property {string} command - Executable, resolved from PATH when not a path
 * @property {[]string} args - Arguments
 * @property {string} dir - Working directory
 * @property {[]string} env - KEY=VALUE pairs added on top of the supervisor environment
 * @property {time.Duration} waitDelay - How long output copying may outlive the process
 */
type Options struct {
	Title     string
	Command   string
	Args      []string
	Dir       string
	Env       []string
	WaitDelay time.Duration
}

/**
 * Handle 一个被监督的操作系统进程
 * @property {string} Title - 显示用的名字
 * @property {int} pid - 进程ID
 * @property {chan} done - 进程退出并被回收后关闭
 * @description
 * - 进程运行在独立进程组中，停止时按组发信号
 * - 后台协程负责Wait，退出码在退出时立即记录
 * - IsAlive不阻塞，只看是否已经记录了退出状态
 */
type Handle struct {
	Title   string
	Command string
	Args    []string
	WorkDir string

	cmd       *exec.Cmd
	pid       int
	startTime time.Time
	done      chan struct{}
	stdout    *lineWriter
	stderr    *lineWriter

	mutex      sync.Mutex
	exitTime   time.Time
	exitCode   int
	exitReason string
	forced     bool
}

/**
 * Launch 启动进程
 * @param {Options} opts - 启动参数
 * @returns {*Handle} 进程句柄
 * @returns {error} 进程无法创建时返回错误
 * @description
 * - 子进程放入新的进程组
 * - stdout/stderr按行转发到日志，带"[title stdout]"前缀
 * - 启动后台协程等待进程退出
 */
func Launch(opts Options) (*Handle, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("empty command")
	}
	title := opts.Title
	if title == "" {
		title = opts.Command
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = utils.MergeEnv(os.Environ(), opts.Env...)
	utils.SetNewPG(cmd)

	h := &Handle{
		Title:    title,
		Command:  opts.Command,
		Args:     opts.Args,
		WorkDir:  opts.Dir,
		cmd:      cmd,
		done:     make(chan struct{}),
		stdout:   newLineWriter(title+" stdout", logger.Infof),
		stderr:   newLineWriter(title+" stderr", logger.Warnf),
		exitCode: -1,
	}
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	logger.Infof("Executing command: %s %s (dir: %s)", opts.Command, strings.Join(opts.Args, " "), opts.Dir)
	if err := cmd.Start(); err != nil {
		logger.Errorf("Failed to start process '%s', error: %v", title, err)
		return nil, err
	}
	h.pid = cmd.Process.Pid
	h.startTime = time.Now()
	logger.Infof("Process '%s' started (PID: %d)", title, h.pid)

	go h.wait()
	return h, nil
}

// wait 回收进程并记录退出状态
func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.stdout.Flush()
	h.stderr.Flush()

	h.mutex.Lock()
	h.exitTime = time.Now()
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	switch {
	case h.forced:
		h.exitReason = "killed"
	case err != nil:
		h.exitReason = fmt.Sprintf("exited with error: %v", err)
	default:
		h.exitReason = "exited normally"
	}
	reason := h.exitReason
	h.mutex.Unlock()

	close(h.done)
	logger.Infof("Process '%s' (PID: %d) %s", h.Title, h.pid, reason)
}

func (h *Handle) Pid() int {
	return h.pid
}

func (h *Handle) StartTime() time.Time {
	return h.startTime
}

// Done 进程退出并被回收后关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// IsAlive 进程是否仍在运行(非阻塞)
func (h *Handle) IsAlive() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

/**
 * Stop 两阶段停止进程
 * @param {time.Duration} timeout - 优雅退出的等待时间
 * @param {time.Duration} killWait - 强制结束后的等待时间
 * @returns {error} 强制结束后仍未退出时返回ErrStopTimeout
 * @description
 * - 先向进程组发送终止请求(SIGTERM/taskkill)，等待timeout
 * - 仍未退出则强制结束整个进程组(SIGKILL/taskkill /F)，再等待killWait
 * - 已经退出的进程直接返回nil
 */
func (h *Handle) Stop(timeout, killWait time.Duration) error {
	if !h.IsAlive() {
		return nil
	}
	if err := utils.TerminateProcessGroup(h.pid); err != nil {
		logger.Warnf("Failed to terminate process '%s' (PID: %d): %v", h.Title, h.pid, err)
	}
	if h.waitExit(timeout) {
		logger.Infof("Process '%s' (PID: %d) terminated gracefully", h.Title, h.pid)
		return nil
	}

	logger.Warnf("Graceful termination timed out after %v, force killing process '%s' (PID: %d)", timeout, h.Title, h.pid)
	h.mutex.Lock()
	h.forced = true
	h.mutex.Unlock()
	if err := utils.KillProcessGroup(h.pid); err != nil {
		logger.Warnf("Failed to kill process group '%s' (PID: %d): %v", h.Title, h.pid, err)
		_ = h.cmd.Process.Kill()
	}
	if h.waitExit(killWait) {
		return nil
	}
	logger.Errorf("Process '%s' (PID: %d) still alive %v after forced kill", h.Title, h.pid, killWait)
	return ErrStopTimeout
}

func (h *Handle) waitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

func (h *Handle) Detail() models.ProcessDetail {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return models.ProcessDetail{
		Title:      h.Title,
		Command:    h.Command,
		Args:       h.Args,
		WorkDir:    h.WorkDir,
		Pid:        h.pid,
		Alive:      h.IsAlive(),
		StartTime:  h.startTime,
		ExitTime:   h.exitTime,
		ExitCode:   h.exitCode,
		ExitReason: h.exitReason,
	}
}
