package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppManager(t *testing.T, cfg *config.AppConfig) *AppLifecycleManager {
	t.Helper()
	ports := NewPortAllocator(cfg.Ports.Min, cfg.Ports.Max, cfg.Ports.ProbeTimeout)
	ports.SetProbe(noProbe)
	m := NewAppLifecycleManager(&sync.Mutex{}, ports, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.StopAll(ctx)
	})
	return m
}

func TestLaunchMissingFields(t *testing.T) {
	cfg := newTestConfig(t)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "", "slides")
	require.Error(t, err)
	se, ok := AsSupervisorError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInvalidRequest, se.Code)
	assert.Equal(t, "Missing required fields", se.Message)

	_, err = m.Launch("Apollo", "..", "slides")
	assert.True(t, IsErrorCode(err, ErrorCodeInvalidRequest))
	_, err = m.Launch("Apollo", "a/b", "slides")
	assert.True(t, IsErrorCode(err, ErrorCodeInvalidRequest))
}

func TestLaunchMissingEntryAndRuntime(t *testing.T) {
	cfg := newTestConfig(t)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "productivity", "slides")
	assert.True(t, IsErrorCode(err, ErrorCodeMissingEntryPoint))

	dir := filepath.Join(cfg.AppsRoot(), "Apollo", "productivity", "slides")
	writeFile(t, filepath.Join(dir, "start.py"), "", 0644)
	_, err = m.Launch("Apollo", "productivity", "slides")
	assert.True(t, IsErrorCode(err, ErrorCodeMissingRuntime))

	// 失败的启动不占用端口
	assert.Equal(t, 0, m.ports.Count())
	assert.Empty(t, m.Status())
}

func TestLaunchFirstPortAndIdempotent(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	m := newTestAppManager(t, cfg)

	first, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.False(t, first.AlreadyRunning)
	assert.Equal(t, cfg.Ports.Min, first.App.Port)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d", cfg.Ports.Min), first.URL)
	assert.NotEmpty(t, first.App.ID)

	second, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.True(t, second.AlreadyRunning)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.App.Pid, second.App.Pid)
	assert.Equal(t, 1, m.ports.Count())

	require.NoError(t, m.Stop("slides"))
	assert.NotContains(t, m.ports.Snapshot().Assigned, first.App.Port)
	assert.Empty(t, m.Status())

	err = m.Stop("slides")
	assert.True(t, IsErrorCode(err, ErrorCodeNotRunning))
	assert.Equal(t, "slides is not running", err.(*SupervisorError).Message)

	// 端口释放后重新启动拿到同一个端口
	third, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.Equal(t, first.App.Port, third.App.Port)
	assert.NotEqual(t, first.App.Pid, third.App.Pid)
}

func TestLaunchInjectsPort(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	dir := writeApp(t, cfg, "Apollo", "docs", "notes", "echo $PORT > port.txt\nexec sleep 30")
	m := newTestAppManager(t, cfg)

	result, err := m.Launch("Apollo", "docs", "notes")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, "port.txt"))
		return err == nil && strings.TrimSpace(string(data)) == fmt.Sprint(result.App.Port)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConcurrentLaunchSameFolder(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	m := newTestAppManager(t, cfg)

	const n = 8
	results := make([]LaunchResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := m.Launch("Apollo", "productivity", "slides")
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	started := 0
	for _, r := range results {
		assert.Equal(t, results[0].URL, r.URL)
		assert.Equal(t, results[0].App.Pid, r.App.Pid)
		if !r.AlreadyRunning {
			started++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, m.ports.Count())
}

func TestConcurrentLaunchDistinctPorts(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	const n = 5
	for i := 0; i < n; i++ {
		writeApp(t, cfg, "Apollo", "games", fmt.Sprintf("game%d", i), sleepScript)
	}
	m := newTestAppManager(t, cfg)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Launch("Apollo", "games", fmt.Sprintf("game%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	status := m.Status()
	require.Len(t, status, n)
	seen := map[int]bool{}
	for _, st := range status {
		assert.False(t, seen[st.Port], "port %d shared", st.Port)
		seen[st.Port] = true
		assert.True(t, st.Running)
	}
	assert.Equal(t, n, m.ports.Count())
}

func TestLaunchFolderOwnedByOtherApp(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	writeApp(t, cfg, "Other", "productivity", "slides", sleepScript)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)

	_, err = m.Launch("Other", "productivity", "slides")
	assert.True(t, IsErrorCode(err, ErrorCodeAlreadyRunning))
	se, _ := AsSupervisorError(err)
	assert.Equal(t, 409, se.HTTPStatus())
}

func TestLaunchReapsExitedApp(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	m := newTestAppManager(t, cfg)

	first, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	require.NoError(t, utils.KillProcessGroup(first.App.Pid))
	assert.Eventually(t, func() bool {
		st, err := m.StatusOf("slides")
		return err == nil && !st.Running
	}, 5*time.Second, 20*time.Millisecond)

	second, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.False(t, second.AlreadyRunning)
	assert.NotEqual(t, first.App.Pid, second.App.Pid)
	assert.Equal(t, first.App.Port, second.App.Port)
	assert.Equal(t, 1, m.ports.Count())
}

// 已退出应用的pid被其他进程复用时，两边的端口都不能被释放或重复分配
func TestExitedAppPidReused(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", "exit 0")
	m := newTestAppManager(t, cfg)

	first, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	rec := m.record("slides")
	require.NotNil(t, rec)
	<-rec.handle.Done()

	// 另一个应用拿到了同一个pid
	other, err := m.ports.Allocate()
	require.NoError(t, err)
	m.ports.Bind(first.App.Pid, other)

	assigned := m.ports.Snapshot().Assigned
	assert.Equal(t, first.App.Pid, assigned[first.App.Port])
	assert.Equal(t, first.App.Pid, assigned[other])

	next, err := m.ports.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, first.App.Port, next)
	m.ports.Release(next)

	// 重新启动slides只释放它自己的旧端口
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	second, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.NotEqual(t, other, second.App.Port)

	assigned = m.ports.Snapshot().Assigned
	assert.Equal(t, first.App.Pid, assigned[other])
	assert.Equal(t, second.App.Pid, assigned[second.App.Port])
	assert.Len(t, assigned, 2)
}

func TestStopEndsHealthMonitor(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "productivity", "slides")
	require.NoError(t, err)
	rec := m.record("slides")
	require.NotNil(t, rec)
	assert.Eventually(t, func() bool { return rec.Polls() >= 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop("slides"))
	assert.Error(t, rec.ctx.Err())

	polls := rec.Polls()
	time.Sleep(2 * cfg.Health.Interval)
	assert.Equal(t, polls, rec.Polls())
	assert.Nil(t, m.record("slides"))
}

func TestLaunchNoFreePort(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	cfg.Ports.Max = cfg.Ports.Min
	writeApp(t, cfg, "Apollo", "a", "one", sleepScript)
	writeApp(t, cfg, "Apollo", "a", "two", sleepScript)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "a", "one")
	require.NoError(t, err)
	_, err = m.Launch("Apollo", "a", "two")
	assert.True(t, IsErrorCode(err, ErrorCodeNoFreePort))
	_, err = m.StatusOf("two")
	assert.True(t, IsErrorCode(err, ErrorCodeNotRunning))
}

func TestLaunchSpawnFailureReleasesPort(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	dir := filepath.Join(cfg.AppsRoot(), "Apollo", "a", "broken")
	writeFile(t, filepath.Join(dir, "start.py"), "", 0644)
	// 解释器存在但没有执行权限
	writeFile(t, filepath.Join(dir, "venv", "bin", "python"), "#!/bin/sh\n", 0644)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "a", "broken")
	assert.True(t, IsErrorCode(err, ErrorCodeSpawnFailed))
	assert.Equal(t, 0, m.ports.Count())
	assert.Empty(t, m.Status())
}

func TestStopAllClearsEverything(t *testing.T) {
	skipOnWindows(t)
	cfg := newTestConfig(t)
	writeApp(t, cfg, "Apollo", "a", "one", sleepScript)
	writeApp(t, cfg, "Apollo", "a", "two", sleepScript)
	m := newTestAppManager(t, cfg)

	one, err := m.Launch("Apollo", "a", "one")
	require.NoError(t, err)
	_, err = m.Launch("Apollo", "a", "two")
	require.NoError(t, err)
	rec := m.record("one")
	require.NotNil(t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.StopAll(ctx))

	assert.Empty(t, m.Status())
	assert.Equal(t, 0, m.ports.Count())
	assert.False(t, rec.handle.IsAlive())
	assert.Error(t, rec.ctx.Err())
	running, _ := utils.IsProcessRunning(one.App.Pid)
	assert.False(t, running)
}

// 一个应用停止失败时，其他应用的停止过程照常完成
func TestStopAllWaitsForEveryApp(t *testing.T) {
	if testing.Short() {
		t.Skip("slow")
	}
	skipOnWindows(t)
	cfg := newTestConfig(t)
	cfg.Supervisor.StopTimeout = 300 * time.Millisecond
	cfg.Supervisor.KillWait = time.Nanosecond
	writeApp(t, cfg, "Apollo", "a", "stubborn", `trap "" TERM; while true; do sleep 0.05; done`)
	writeApp(t, cfg, "Apollo", "a", "polite", `trap 'sleep 0.1; exit 0' TERM; while true; do sleep 0.05; done`)
	m := newTestAppManager(t, cfg)

	_, err := m.Launch("Apollo", "a", "stubborn")
	require.NoError(t, err)
	_, err = m.Launch("Apollo", "a", "polite")
	require.NoError(t, err)
	stubborn := m.record("stubborn")
	polite := m.record("polite")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = m.StopAll(ctx)
	if err != nil {
		assert.True(t, IsErrorCode(err, ErrorCodeStopTimeout), err.Error())
	}

	assert.False(t, polite.handle.IsAlive())
	assert.Equal(t, "exited normally", polite.handle.Detail().ExitReason)
	assert.Empty(t, m.Status())
	assert.Equal(t, 0, m.ports.Count())
	assert.Eventually(t, func() bool { return !stubborn.handle.IsAlive() }, 5*time.Second, 20*time.Millisecond)
}
