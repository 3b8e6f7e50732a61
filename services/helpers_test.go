package services

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"apollo-supervisor/internal/config"

	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh scripts")
	}
}

// newTestConfig 临时目录下的配置，端口范围取一个不常用的区间
func newTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Supervisor.Root = t.TempDir()
	cfg.Supervisor.StopTimeout = 2 * time.Second
	cfg.Supervisor.KillWait = 2 * time.Second
	cfg.Ports.Min = 47100
	cfg.Ports.Max = 47199
	cfg.Health.Interval = 50 * time.Millisecond
	cfg.Health.Timeout = 500 * time.Millisecond
	cfg.Watchdog.Interval = 50 * time.Millisecond
	cfg.CoreServices = nil
	return cfg
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

/**
 * 在apps目录下创建一个应用，venv/bin/python是一个执行script的shell脚本
 * 返回应用目录
 */
func writeApp(t *testing.T, cfg *config.AppConfig, source, category, folder, script string) string {
	t.Helper()
	dir := filepath.Join(cfg.AppsRoot(), source, category, folder)
	writeFile(t, filepath.Join(dir, "start.py"), "print('hello')\n", 0644)
	writeFile(t, filepath.Join(dir, "venv", "bin", "python"), "#!/bin/sh\n"+script+"\n", 0755)
	return dir
}

const sleepScript = "exec sleep 30"

// noProbe 端口探测总是返回空闲
func noProbe(int) bool {
	return false
}
