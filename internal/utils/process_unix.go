//go:build !windows

package utils

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// SetNewPG 设置进程属性，让子进程成为新进程组的组长，便于按组终止
func SetNewPG(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

/**
 * Ask a process group to terminate (SIGTERM)
 * @param {int} pid - Pid of the group leader
 * @returns {error} Returns error if the signal cannot be delivered
 * @description
 * - Signals the whole group so grandchildren (shells, dev servers) exit too
 * - Falls back to signalling the single process when it is not a group leader
 * - A group that already vanished is not an error
 */
func TerminateProcessGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// KillProcessGroup 强制结束整个进程组(SIGKILL)
func KillProcessGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return syscall.EINVAL
	}
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		// 不是进程组组长，只给该进程发信号
		err = syscall.Kill(pid, sig)
	}
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// IsProcessRunning 检查进程是否存在(signal 0)
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return false, nil
		}
		// EPERM: 进程存在但属于其他用户
		if errors.Is(err, syscall.EPERM) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}
