package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. ":5500")
 * @property {string} mode - Gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address" json:"address"`
	Mode    string `mapstructure:"mode" json:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" or empty for stdout only
 */
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	Path  string `mapstructure:"path" json:"path"`
}

/**
 * Supervisor configuration
 * @property {string} root - Project root, all relative paths are resolved against it
 * @property {string} appsDir - Directory holding <source>/<category>/<folder> app trees
 * @property {time.Duration} stopTimeout - Graceful phase of a two-phase stop
 * @property {time.Duration} killWait - How long to wait for exit after the forced kill
 * @property {[]string} env - Extra KEY=VALUE environment injected into every child
 */
type SupervisorConfig struct {
	Root        string        `mapstructure:"root" json:"root"`
	AppsDir     string        `mapstructure:"apps_dir" json:"appsDir"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" json:"stopTimeout"`
	KillWait    time.Duration `mapstructure:"kill_wait" json:"killWait"`
	Env         []string      `mapstructure:"env" json:"env"` //KEY=VALUE
}

// PortsConfig 应用端口分配范围(闭区间)
type PortsConfig struct {
	Min          int           `mapstructure:"min" json:"min"`
	Max          int           `mapstructure:"max" json:"max"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" json:"probeTimeout"`
}

// WatchdogConfig 核心服务看门狗
type WatchdogConfig struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
	Interval    time.Duration `mapstructure:"interval" json:"interval"`
	SkipStopped bool          `mapstructure:"skip_stopped" json:"skipStopped"` //为true时，被手动停止的服务不会被看门狗拉起
}

// HealthConfig 应用健康检查
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
	Path     string        `mapstructure:"path" json:"path"`
}

/**
 * On-demand app layout
 * @property {string} entry - Entry script inside the app folder
 * @property {string} runtimeUnix - Interpreter path relative to the app folder (unix)
 * @property {string} runtimeWindows - Interpreter path relative to the app folder (windows)
 * @property {string} portEnv - Name of the environment variable carrying the assigned port
 */
type AppsConfig struct {
	Entry          string `mapstructure:"entry" json:"entry"`
	RuntimeUnix    string `mapstructure:"runtime_unix" json:"runtimeUnix"`
	RuntimeWindows string `mapstructure:"runtime_windows" json:"runtimeWindows"`
	PortEnv        string `mapstructure:"port_env" json:"portEnv"`
}

type AppConfig struct {
	Server       ServerConfig     `mapstructure:"server" json:"server"`
	Log          LogConfig        `mapstructure:"log" json:"log"`
	Supervisor   SupervisorConfig `mapstructure:"supervisor" json:"supervisor"`
	Ports        PortsConfig      `mapstructure:"ports" json:"ports"`
	Watchdog     WatchdogConfig   `mapstructure:"watchdog" json:"watchdog"`
	Health       HealthConfig     `mapstructure:"health" json:"health"`
	Apps         AppsConfig       `mapstructure:"apps" json:"apps"`
	CoreServices []ServiceConfig  `mapstructure:"core_services" json:"coreServices"`
}

var (
	Config    AppConfig
	mutex     sync.Mutex
	listeners []func(*AppConfig)
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5500")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "console")
	v.SetDefault("supervisor.root", "")
	v.SetDefault("supervisor.apps_dir", "apps")
	v.SetDefault("supervisor.stop_timeout", 10*time.Second)
	v.SetDefault("supervisor.kill_wait", 5*time.Second)
	v.SetDefault("supervisor.env", []string{"PYTHONIOENCODING=utf-8"})
	v.SetDefault("ports.min", 7000)
	v.SetDefault("ports.max", 7999)
	v.SetDefault("ports.probe_timeout", 200*time.Millisecond)
	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.interval", 10*time.Second)
	v.SetDefault("watchdog.skip_stopped", false)
	v.SetDefault("health.interval", 30*time.Second)
	v.SetDefault("health.timeout", 2*time.Second)
	v.SetDefault("health.path", "/health")
	v.SetDefault("apps.entry", "start.py")
	v.SetDefault("apps.runtime_unix", "venv/bin/python")
	v.SetDefault("apps.runtime_windows", "venv/Scripts/python.exe")
	v.SetDefault("apps.port_env", "PORT")
}

/**
 * Load application configuration
 * @param {string} file - Explicit config file, empty to search ./config.yaml and ~/.apollo-supervisor
 * @returns {*AppConfig} Loaded configuration with defaults applied
 * @returns {error} Returns error when the file exists but cannot be parsed
 * @description
 * - Missing config file is not an error, defaults are used
 * - Environment variables APOLLO_<SECTION>_<KEY> override file values
 * - Relative root is resolved against the working directory
 */
func LoadConfig(file string) (*AppConfig, error) {
	v := viper.GetViper()
	setDefaults(v)
	v.SetEnvPrefix("APOLLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".apollo-supervisor"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return collectConfig(&cfg), nil
}

// Default 不读取任何文件，只返回缺省配置
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)
	var cfg AppConfig
	_ = v.Unmarshal(&cfg)
	return collectConfig(&cfg)
}

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Supervisor.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Supervisor.Root = wd
		}
	}
	if abs, err := filepath.Abs(cfg.Supervisor.Root); err == nil {
		cfg.Supervisor.Root = abs
	}
	if cfg.Ports.Min <= 0 || cfg.Ports.Max < cfg.Ports.Min {
		cfg.Ports.Min, cfg.Ports.Max = 7000, 7999
	}
	if len(cfg.CoreServices) == 0 {
		cfg.CoreServices = defaultCoreServices()
	}
	return cfg
}

/**
 * Initialize global configuration
 * @param {string} file - Config file passed on command line, may be empty
 * @returns {error} Returns error if the config file cannot be read
 */
func Init(file string) error {
	cfg, err := LoadConfig(file)
	if err != nil {
		return err
	}
	mutex.Lock()
	Config = *cfg
	mutex.Unlock()
	return nil
}

// App 返回当前配置的副本
func App() AppConfig {
	mutex.Lock()
	defer mutex.Unlock()
	return Config
}

// ConfigFile 正在使用的配置文件，未使用配置文件时为空
func ConfigFile() string {
	return viper.ConfigFileUsed()
}

// OnChange 注册配置变化回调，ReloadConfig或配置文件被修改时调用
func OnChange(fn func(*AppConfig)) {
	mutex.Lock()
	defer mutex.Unlock()
	listeners = append(listeners, fn)
}

/**
 * Reload configuration from the file currently in use
 * @returns {error} Returns error when the file cannot be parsed, the old config stays in effect
 * @description
 * - Re-reads and re-validates the configuration
 * - Notifies every OnChange listener with the new configuration
 */
func ReloadConfig() error {
	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	collectConfig(&cfg)

	mutex.Lock()
	Config = cfg
	fns := append([]func(*AppConfig){}, listeners...)
	mutex.Unlock()

	for _, fn := range fns {
		fn(&cfg)
	}
	return nil
}

// WatchConfig 监视配置文件，文件修改后自动重新加载
func WatchConfig(onError func(error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := ReloadConfig(); err != nil && onError != nil {
			onError(err)
		}
	})
	viper.WatchConfig()
}
