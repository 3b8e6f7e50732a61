package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu            sync.RWMutex
	defaultLogger *zap.SugaredLogger
	level         = zap.NewAtomicLevelAt(zap.WarnLevel)
)

// GetLogLevelFromString 将字符串转换为日志级别，无法识别时返回warn
func GetLogLevelFromString(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.WarnLevel
	}
}

/**
 * InitLogger 初始化日志系统
 * @param {string} lvl - 日志级别 debug/info/warn/error
 * @param {string} path - 日志文件路径，为空或"console"时只输出到控制台
 * @param {bool} console - 为true时同时输出到stdout(服务器模式)
 * @description
 * - 日志目录不存在时自动创建
 * - 打开日志文件失败时退回到stdout
 * - 级别保存在AtomicLevel中，可以通过SetLevel动态调整
 */
func InitLogger(lvl, path string, console bool) {
	level.SetLevel(GetLogLevelFromString(lvl))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var sinks []zapcore.WriteSyncer
	if path == "" || path == "console" {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	} else {
		if file := openLogFile(path); file != nil {
			sinks = append(sinks, zapcore.AddSync(file))
		} else {
			console = true
		}
		if console {
			sinks = append(sinks, zapcore.Lock(os.Stdout))
		}
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	defaultLogger = l.Sugar()
	mu.Unlock()
}

// openLogFile 打开日志文件(追加模式)，失败返回nil
func openLogFile(path string) *os.File {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "创建日志目录失败: %v\n", err)
			return nil
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开日志文件失败: %v\n", err)
		return nil
	}
	return file
}

// SetLevel 动态调整日志级别
func SetLevel(lvl string) {
	level.SetLevel(GetLogLevelFromString(lvl))
}

// Level 当前日志级别
func Level() string {
	return level.Level().String()
}

// Sync 刷新缓冲区，程序退出前调用
func Sync() {
	if l := get(); l != nil {
		_ = l.Sync()
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func Debug(v ...interface{}) {
	if l := get(); l != nil {
		l.Debug(v...)
	}
}

func Debugf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Debugf(format, v...)
	}
}

func Info(v ...interface{}) {
	if l := get(); l != nil {
		l.Info(v...)
	}
}

func Infof(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Infof(format, v...)
	}
}

func Warn(v ...interface{}) {
	if l := get(); l != nil {
		l.Warn(v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Warnf(format, v...)
	}
}

func Error(v ...interface{}) {
	if l := get(); l != nil {
		l.Error(v...)
	}
}

func Errorf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Errorf(format, v...)
	}
}

// Fatal 输出致命错误日志并退出程序
func Fatal(v ...interface{}) {
	if l := get(); l != nil {
		l.Fatal(v...)
		return
	}
	fmt.Fprintln(os.Stderr, append([]interface{}{"FATAL:"}, v...)...)
	os.Exit(1)
}

// Fatalf 输出格式化致命错误日志并退出程序
func Fatalf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Fatalf(format, v...)
		return
	}
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", v...)
	os.Exit(1)
}
