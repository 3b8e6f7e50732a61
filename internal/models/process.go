package models

import "time"

type RunStatus string

const (
	// 未运行，或者被用户通过控制接口停止
	StatusStopped RunStatus = "stopped"
	// 已提交启动，尚未确认进程存活
	StatusStarting RunStatus = "starting"
	// 进程存活
	StatusRunning RunStatus = "running"
)

type ProcessDetail struct {
	Title      string    `json:"title"`              //显示用的名字
	Command    string    `json:"command"`            //进程启动命令
	Args       []string  `json:"args"`               //进程参数
	WorkDir    string    `json:"workDir"`            //工作目录
	Pid        int       `json:"pid"`                //进程PID
	Alive      bool      `json:"alive"`              //是否存活
	StartTime  time.Time `json:"startTime"`          //启动时间
	ExitTime   time.Time `json:"exitTime,omitempty"` //退出时间
	ExitCode   int       `json:"exitCode"`           //退出码，未退出时为-1
	ExitReason string    `json:"exitReason,omitempty"`
}
