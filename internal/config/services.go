package config

import (
	"path/filepath"
)

/**
 * Core service configuration
 * @property {string} name - Unique service name
 * @property {string} dir - Working directory, relative to supervisor root
 * @property {[]string} command - argv, command[0] is resolved from PATH
 * @property {int} port - Port the service is expected to listen on
 * @property {string} artifact - File inside dir that must exist before start
 * @property {[]string} env - Extra KEY=VALUE environment for this service only
 */
type ServiceConfig struct {
	Name     string   `mapstructure:"name" json:"name"`
	Dir      string   `mapstructure:"dir" json:"dir"`
	Command  []string `mapstructure:"command" json:"command"`
	Port     int      `mapstructure:"port" json:"port"`
	Artifact string   `mapstructure:"artifact" json:"artifact"`
	Env      []string `mapstructure:"env" json:"env,omitempty"`
}

func defaultCoreServices() []ServiceConfig {
	return []ServiceConfig{
		{
			Name:     "backend",
			Dir:      "backend",
			Command:  []string{"python", "app.py"},
			Port:     5000,
			Artifact: "app.py",
		},
		{
			Name:     "frontend",
			Dir:      "frontend",
			Command:  []string{"npm", "run", "dev"},
			Port:     5173,
			Artifact: "package.json",
		},
	}
}

// WorkDir 服务的工作目录(绝对路径)
func (s *ServiceConfig) WorkDir(root string) string {
	if filepath.IsAbs(s.Dir) {
		return s.Dir
	}
	return filepath.Join(root, s.Dir)
}

// ArtifactPath 启动前必须存在的文件，未配置时返回空
func (s *ServiceConfig) ArtifactPath(root string) string {
	if s.Artifact == "" {
		return ""
	}
	return filepath.Join(s.WorkDir(root), s.Artifact)
}

// AppsRoot 应用根目录(绝对路径)
func (c *AppConfig) AppsRoot() string {
	if filepath.IsAbs(c.Supervisor.AppsDir) {
		return c.Supervisor.AppsDir
	}
	return filepath.Join(c.Supervisor.Root, c.Supervisor.AppsDir)
}
