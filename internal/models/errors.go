package models

import (
	"errors"
	"fmt"
)

// ErrorKind 提取管道的错误类别
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"        // 连接失败
	KindTimeout       ErrorKind = "timeout"        // 请求超时
	KindHTTP          ErrorKind = "http"           // 非2xx状态码
	KindParse         ErrorKind = "parse"          // HTML解析/解码失败
	KindRenderTimeout ErrorKind = "render_timeout" // 无头浏览器导航或等待超时
	KindBrowser       ErrorKind = "browser"        // 浏览器启动或崩溃
	KindResource      ErrorKind = "resource"       // 系统资源不足,拒绝启动浏览器
	KindOCR           ErrorKind = "ocr"            // OCR服务失败
)

var (
	// ErrRootFetchFailed 根页面无法获取,整个任务失败
	ErrRootFetchFailed = errors.New("根页面抓取失败")

	// ErrNoContent 页面抓取成功但没有可用文本
	ErrNoContent = errors.New("未提取到有效内容")
)

// PipelineError 带类别的管道错误
type PipelineError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Cause      error
}

// NewPipelineError 创建管道错误
func NewPipelineError(kind ErrorKind, url string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, URL: url, Cause: cause}
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 支持errors.Unwrap
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// KindOf 取出错误链中的类别,没有时返回空字符串
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind 判断错误链中是否包含指定类别
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ErrorKindForStatus 把抓取状态映射到错误类别
func ErrorKindForStatus(status FetchStatus) ErrorKind {
	switch status {
	case StatusTimeout:
		return KindTimeout
	case StatusConnectionError:
		return KindNetwork
	case StatusHTTPError:
		return KindHTTP
	case StatusParseError:
		return KindParse
	default:
		return ""
	}
}
