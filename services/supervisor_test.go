package services

import (
	"context"
	"testing"
	"time"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("slow")
	}
	skipOnWindows(t)
	cfg := newTestConfig(t)
	cfg.CoreServices = append(cfg.CoreServices, sleeper("backend"))
	mkdir(t, cfg, "backend")
	writeApp(t, cfg, "Apollo", "productivity", "slides", sleepScript)

	sup := NewSupervisor(cfg)
	sup.Ports().SetProbe(noProbe)

	results := sup.StartCoreServices()
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeStarted, results[0].Outcome)

	launched, err := sup.LaunchApp("Apollo", "productivity", "slides")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:47100", launched.URL)

	health := sup.GetHealthz()
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, 1, health.Metrics.TotalCoreServices)
	assert.Equal(t, 1, health.Metrics.RunningCoreServices)
	assert.Equal(t, 1, health.Metrics.RunningApps)
	assert.Equal(t, 1, health.Metrics.AssignedPorts)

	snap := sup.PortSnapshot()
	assert.Equal(t, map[int]int{47100: launched.App.Pid}, snap.Assigned)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.StartWatchdog(ctx)
	sup.StartWatchdog(ctx)

	core, _ := sup.CoreStatus("backend")
	require.NoError(t, utils.KillProcessGroup(core.Pid))
	assert.Eventually(t, func() bool {
		st, _ := sup.CoreStatus("backend")
		return st.Running && st.Pid != core.Pid
	}, 5*time.Second, 10*time.Millisecond)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	require.NoError(t, sup.Shutdown(shutdownCtx))

	assert.Empty(t, sup.AppsStatus())
	assert.Equal(t, 0, sup.Ports().Count())
	for _, st := range sup.CoreServicesStatus() {
		assert.False(t, st.Running)
	}

	// 看门狗已经停止，不会再拉起核心服务
	time.Sleep(3 * cfg.Watchdog.Interval)
	st, _ := sup.CoreStatus("backend")
	assert.False(t, st.Running)
}

func TestSupervisorWatchdogDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Watchdog.Enabled = false
	sup := NewSupervisor(cfg)

	sup.StartWatchdog(context.Background())
	assert.Nil(t, sup.stopWatchdog)
	require.NoError(t, sup.Shutdown(context.Background()))
}
