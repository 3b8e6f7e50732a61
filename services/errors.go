package services

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 配置/文件系统类错误
	ErrorCodeMissingArtifact    ErrorCode = "MISSING_ARTIFACT"
	ErrorCodeCommandNotFound    ErrorCode = "COMMAND_NOT_FOUND"
	ErrorCodeNoWorkingDirectory ErrorCode = "NO_WORKING_DIRECTORY"
	ErrorCodeMissingEntryPoint  ErrorCode = "MISSING_ENTRY_POINT"
	ErrorCodeMissingRuntime     ErrorCode = "MISSING_RUNTIME"

	// 资源类错误
	ErrorCodeNoFreePort ErrorCode = "NO_FREE_PORT"

	// 进程生命周期错误
	ErrorCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	ErrorCodeStopTimeout ErrorCode = "STOP_TIMEOUT"

	// 状态类错误
	ErrorCodeNotRunning     ErrorCode = "NOT_RUNNING"
	ErrorCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// 请求类错误
	ErrorCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrorCodeServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"
)

// ErrorKind 错误大类
type ErrorKind string

const (
	KindConfig            ErrorKind = "ConfigError"
	KindResourceExhausted ErrorKind = "ResourceExhausted"
	KindSpawn             ErrorKind = "SpawnError"
	KindStopTimeout       ErrorKind = "StopTimeout"
	KindStatus            ErrorKind = "StatusError"
	KindRequest           ErrorKind = "RequestError"
)

/**
 * SupervisorError 携带上下文的错误
 * @property {ErrorCode} Code - 错误码
 * @property {string} Message - 错误描述
 * @property {map[string]interface{}} Context - 附加信息(路径、端口、服务名等)
 * @property {error} Cause - 底层错误
 * @property {string} Suggestion - 处理建议
 */
type SupervisorError struct {
	Code       ErrorCode
	Message    string
	Context    map[string]interface{}
	Cause      error
	Suggestion string
}

func (e *SupervisorError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var kv []string
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(kv, ", "))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, "; ")
}

func (e *SupervisorError) Unwrap() error {
	return e.Cause
}

// Kind 错误码所属的大类
func (e *SupervisorError) Kind() ErrorKind {
	switch e.Code {
	case ErrorCodeMissingArtifact, ErrorCodeCommandNotFound, ErrorCodeNoWorkingDirectory,
		ErrorCodeMissingEntryPoint, ErrorCodeMissingRuntime:
		return KindConfig
	case ErrorCodeNoFreePort:
		return KindResourceExhausted
	case ErrorCodeSpawnFailed:
		return KindSpawn
	case ErrorCodeStopTimeout:
		return KindStopTimeout
	case ErrorCodeNotRunning, ErrorCodeAlreadyRunning:
		return KindStatus
	default:
		return KindRequest
	}
}

// HTTPStatus 错误对应的HTTP状态码
func (e *SupervisorError) HTTPStatus() int {
	switch e.Code {
	case ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrorCodeMissingEntryPoint, ErrorCodeNotRunning, ErrorCodeServiceNotFound:
		return http.StatusNotFound
	case ErrorCodeAlreadyRunning:
		return http.StatusConflict
	case ErrorCodeNoFreePort:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewError(code ErrorCode, message string) *SupervisorError {
	return &SupervisorError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

func (e *SupervisorError) WithContext(key string, value interface{}) *SupervisorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *SupervisorError) WithCause(cause error) *SupervisorError {
	e.Cause = cause
	return e
}

func (e *SupervisorError) WithSuggestion(suggestion string) *SupervisorError {
	e.Suggestion = suggestion
	return e
}

// IsErrorCode 判断err链上是否有指定错误码的SupervisorError
func IsErrorCode(err error, code ErrorCode) bool {
	var se *SupervisorError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// AsSupervisorError 取出err链上的SupervisorError
func AsSupervisorError(err error) (*SupervisorError, bool) {
	var se *SupervisorError
	ok := errors.As(err, &se)
	return se, ok
}

func ErrMissingArtifact(name, path string) *SupervisorError {
	return NewError(ErrorCodeMissingArtifact,
		fmt.Sprintf("missing required file for %s at %s", name, path)).
		WithContext("service", name).
		WithContext("path", path)
}

func ErrCommandNotFound(name, command string, cause error) *SupervisorError {
	return NewError(ErrorCodeCommandNotFound,
		fmt.Sprintf("command '%s' not found in PATH", command)).
		WithContext("service", name).
		WithCause(cause).
		WithSuggestion(fmt.Sprintf("install %s or add it to PATH", command))
}

func ErrNoWorkingDirectory(name, dir string) *SupervisorError {
	return NewError(ErrorCodeNoWorkingDirectory,
		fmt.Sprintf("working directory %s does not exist", dir)).
		WithContext("service", name).
		WithContext("dir", dir)
}

func ErrMissingEntryPoint(appPath, entry string) *SupervisorError {
	return NewError(ErrorCodeMissingEntryPoint,
		fmt.Sprintf("no %s found in %s", entry, appPath)).
		WithContext("path", appPath)
}

func ErrMissingRuntime(folder, runtime string) *SupervisorError {
	return NewError(ErrorCodeMissingRuntime,
		fmt.Sprintf("no Python interpreter found in venv for %s", folder)).
		WithContext("runtime", runtime).
		WithSuggestion("create the virtual environment: python -m venv venv")
}

func ErrNoFreePort(min, max int) *SupervisorError {
	return NewError(ErrorCodeNoFreePort, "no free port available").
		WithContext("range", fmt.Sprintf("%d-%d", min, max)).
		WithSuggestion("stop unused apps or widen ports.min/ports.max")
}

func ErrSpawnFailed(name string, cause error) *SupervisorError {
	return NewError(ErrorCodeSpawnFailed,
		fmt.Sprintf("failed to start %s", name)).
		WithCause(cause)
}

func ErrStopTimeout(name string, pid int, cause error) *SupervisorError {
	return NewError(ErrorCodeStopTimeout,
		fmt.Sprintf("%s (PID: %d) did not exit after forced kill", name, pid)).
		WithCause(cause)
}

func ErrNotRunning(name string) *SupervisorError {
	return NewError(ErrorCodeNotRunning, fmt.Sprintf("%s is not running", name))
}

func ErrServiceNotFound(name string) *SupervisorError {
	return NewError(ErrorCodeServiceNotFound, fmt.Sprintf("service [%s] isn't exist", name))
}

func ErrInvalidRequest(message string) *SupervisorError {
	return NewError(ErrorCodeInvalidRequest, message)
}
