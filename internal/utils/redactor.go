package utils

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var (
	// SensitiveKeywords 敏感头部/参数名称关键字
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"cookie",
		"subscription",
	}
)

// HeaderRedactor 敏感信息脱敏器
// 用于日志中的HTTP头部和OCR等带密钥的URL
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitiveHeader 根据名称关键字判断是否敏感
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个值
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	// 足够长的密钥保留首尾4位
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	return "***"
}

// Redact 脱敏整个http.Header,返回安全的字符串map
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 脱敏并格式化为按名称排序的字符串
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}

// RedactURL 脱敏URL查询参数中的密钥
func (hr *HeaderRedactor) RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.RawQuery == "" {
		return rawURL
	}

	query := parsed.Query()
	for name, values := range query {
		if hr.IsSensitiveHeader(name) && len(values) > 0 {
			query.Set(name, hr.RedactHeaderValue(name, values[0]))
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
