package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  address: ":6600"
supervisor:
  apps_dir: myapps
  stop_timeout: 3s
  env:
    - FOO=bar
ports:
  min: 9000
  max: 9009
core_services:
  - name: api
    dir: api
    command: ["python", "server.py", "--port", "{{.Port}}"]
    port: 8000
    artifact: server.py
    env:
      - DEBUG=1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5500", cfg.Server.Address)
	assert.Equal(t, 7000, cfg.Ports.Min)
	assert.Equal(t, 7999, cfg.Ports.Max)
	assert.Equal(t, 10*time.Second, cfg.Supervisor.StopTimeout)
	assert.Equal(t, "start.py", cfg.Apps.Entry)
	assert.Equal(t, "PORT", cfg.Apps.PortEnv)
	assert.True(t, filepath.IsAbs(cfg.Supervisor.Root))
	require.Len(t, cfg.CoreServices, 2)
	assert.Equal(t, "backend", cfg.CoreServices[0].Name)
	assert.Equal(t, "frontend", cfg.CoreServices[1].Name)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.Equal(t, ":6600", cfg.Server.Address)
	assert.Equal(t, 3*time.Second, cfg.Supervisor.StopTimeout)
	assert.Equal(t, []string{"FOO=bar"}, cfg.Supervisor.Env)
	assert.Equal(t, 9000, cfg.Ports.Min)
	assert.Equal(t, 9009, cfg.Ports.Max)
	assert.Equal(t, filepath.Join(cfg.Supervisor.Root, "myapps"), cfg.AppsRoot())

	require.Len(t, cfg.CoreServices, 1)
	svc := cfg.CoreServices[0]
	assert.Equal(t, "api", svc.Name)
	assert.Equal(t, []string{"python", "server.py", "--port", "{{.Port}}"}, svc.Command)
	assert.Equal(t, 8000, svc.Port)
	assert.Equal(t, []string{"DEBUG=1"}, svc.Env)
	assert.Equal(t, filepath.Join(cfg.Supervisor.Root, "api", "server.py"), svc.ArtifactPath(cfg.Supervisor.Root))
}

func TestLoadConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("APOLLO_SERVER_ADDRESS", ":7700")

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.Equal(t, ":7700", cfg.Server.Address)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInvalidPortRangeFallsBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(writeConfig(t, "ports:\n  min: 9000\n  max: 8000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Ports.Min)
	assert.Equal(t, 7999, cfg.Ports.Max)
	assert.Len(t, cfg.CoreServices, 2)
}

func TestReloadConfigNotifiesListeners(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	saved := listeners
	t.Cleanup(func() { listeners = saved })

	path := writeConfig(t, "log:\n  level: info\n")
	require.NoError(t, Init(path))
	assert.Equal(t, "info", App().Log.Level)
	assert.Equal(t, path, ConfigFile())

	var got string
	OnChange(func(cfg *AppConfig) { got = cfg.Log.Level })

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))
	require.NoError(t, ReloadConfig())
	assert.Equal(t, "debug", got)
	assert.Equal(t, "debug", App().Log.Level)
}

func TestServiceWorkDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "svc")
	s := ServiceConfig{Dir: abs}
	assert.Equal(t, abs, s.WorkDir("/ignored"))

	s = ServiceConfig{Dir: "frontend"}
	assert.Equal(t, filepath.Join("/root", "frontend"), s.WorkDir("/root"))
	assert.Empty(t, s.ArtifactPath("/root"))
}
