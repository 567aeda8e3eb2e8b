package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig headers.yaml 的结构
type HeaderConfig struct {
	// Headers 自定义HTTP头部,键为头部名称
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// CliHeaders 命令行传入的头部,每项格式为 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}

	return name, value, nil
}

// HeaderProvider 提供抓取时使用的HTTP头部
// 抓取器、分类器和浏览器会话共享同一个提供者,保证对外身份一致
type HeaderProvider interface {
	// GetHeaders 返回合并后的头部(默认 < 配置 < 命令行)
	GetHeaders() (http.Header, error)
}

// StaticHeaders 固定头部的提供者,主要用于测试和服务端默认值
type StaticHeaders http.Header

// GetHeaders 实现 HeaderProvider 接口
func (s StaticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(s).Clone(), nil
}

// ApplyHeaders 把提供者的头部写入请求,provider为nil时不做任何事
func ApplyHeaders(req *http.Request, provider HeaderProvider) error {
	if provider == nil {
		return nil
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		return err
	}
	for name, values := range headers {
		if len(values) > 0 {
			req.Header.Set(name, values[0])
		}
	}
	return nil
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
