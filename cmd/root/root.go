package root

import (
	"fmt"

	"apollo-supervisor/internal/config"
	"apollo-supervisor/internal/logger"

	"github.com/spf13/cobra"
)

// ConfigFile 通过--config指定的配置文件
var ConfigFile string

var RootCmd = &cobra.Command{
	Use:   "apollo-supervisor",
	Short: "本地进程监督程序",
	Long:  `apollo-supervisor管理核心服务(后端、前端)以及按需启动的应用，负责端口分配、健康检查和异常重启`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(ConfigFile); err != nil {
			return fmt.Errorf("加载配置失败: %v", err)
		}
		cfg := config.App()
		if cmd.Name() == "server" {
			logger.InitLogger(cfg.Log.Level, cfg.Log.Path, true)
		} else {
			// 客户端命令只输出警告以上的日志，避免干扰表格输出
			logger.InitLogger("warn", "console", false)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "配置文件路径(默认查找./config.yaml和~/.apollo-supervisor/config.yaml)")
}
