package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
)

const (
	// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
	MaxHeaderValueLength = 8192
)

var (
	// ForbiddenHeaders 由HTTP客户端管理的头部,不允许自定义
	ForbiddenHeaders = []string{
		"Host",
		"Content-Length",
		"Transfer-Encoding",
		"Connection",
	}

	// IdentityHeaders 伪装浏览器身份必须存在的头部
	IdentityHeaders = []string{
		"User-Agent",
		"Accept-Language",
	}
)

// HeaderValidator 验证HTTP头部是否符合RFC 7230
type HeaderValidator struct {
	nameRegex        *regexp.Regexp
	valueRegex       *regexp.Regexp
	maxValueLength   int
	forbiddenHeaders map[string]bool
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool)
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}

	return &HeaderValidator{
		nameRegex:        regexp.MustCompile(`^[A-Za-z0-9-]+$`),
		valueRegex:       regexp.MustCompile(`^[\x20-\x7E\t]*$`),
		maxValueLength:   MaxHeaderValueLength,
		forbiddenHeaders: forbidden,
	}
}

// ValidateName 验证头部名称
func (hv *HeaderValidator) ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称不能为空",
		}
	}

	if !hv.nameRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			Suggestion: "使用字母、数字和连字符 (如 'User-Agent', 'Accept-Language')",
		}
	}

	return nil
}

// ValidateValue 验证头部值
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	if len(value) > hv.maxValueLength {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxValueLength),
			Suggestion: fmt.Sprintf("将值缩短至 %d 字节以内", hv.maxValueLength),
		}
	}

	// 韩文等非ASCII值需要调用方自行编码
	if !hv.valueRegex.MatchString(value) {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除控制字符,非ASCII内容请先进行百分号编码",
		}
	}

	return nil
}

// ValidateHeader 验证头部名称+值
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if hv.IsForbidden(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "此头部由HTTP客户端自动管理,不允许自定义",
			Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
		}
	}

	if err := hv.ValidateName(name); err != nil {
		return err
	}

	return hv.ValidateValue(name, value)
}

// IsForbidden 检查头部是否被禁止
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbiddenHeaders[strings.ToLower(name)]
}

// Validate 验证所有头部,返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateIdentity 检查合并后的头部是否足以伪装成桌面浏览器
func (hv *HeaderValidator) ValidateIdentity(headers http.Header) error {
	for _, name := range IdentityHeaders {
		if strings.TrimSpace(headers.Get(name)) == "" {
			return &models.ValidationError{
				Field:      "value",
				HeaderName: name,
				Reason:     "浏览器身份头部不能为空",
				Suggestion: fmt.Sprintf("在 headers.yaml 中为 '%s' 设置非空值或删除该项以使用默认值", name),
			}
		}
	}
	return nil
}
