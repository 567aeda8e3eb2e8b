package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestHeaderValidator_ValidateName(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		expectError bool
	}{
		{"合法名称-字母", "User-Agent", false},
		{"合法名称-数字", "X-Request-ID-123", false},
		{"合法名称-连字符", "Accept-Language", false},
		{"非法名称-空格", "User Agent", true},
		{"非法名称-下划线", "User_Agent", true},
		{"非法名称-空字符串", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateName(tt.headerName)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateValue(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerValue string
		expectError bool
	}{
		{"合法值-语言列表", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7", false},
		{"合法值-空字符串", "", false},
		{"合法值-最大长度", strings.Repeat("a", MaxHeaderValueLength), false},
		{"非法值-超长", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "value\x00with\x01null", true},
		{"非法值-韩文", "채용", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateValue("X-Test", tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-不区分大小写", "content-length", "123", true},
		{"非法名称", "User Agent", "value", true},
		{"非法值", "User-Agent", "value\x00bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateIdentity(t *testing.T) {
	validator := NewHeaderValidator()

	t.Run("完整身份头部", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Mozilla/5.0")
		headers.Set("Accept-Language", "ko-KR")
		if err := validator.ValidateIdentity(headers); err != nil {
			t.Errorf("不应报错: %v", err)
		}
	})

	t.Run("缺少Accept-Language", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Mozilla/5.0")
		if err := validator.ValidateIdentity(headers); err == nil {
			t.Error("缺少Accept-Language应报错")
		}
	})

	t.Run("User-Agent为空白", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "   ")
		headers.Set("Accept-Language", "ko-KR")
		if err := validator.ValidateIdentity(headers); err == nil {
			t.Error("空白User-Agent应报错")
		}
	})
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	t.Run("Bearer令牌", func(t *testing.T) {
		got := redactor.RedactHeaderValue("Authorization", "Bearer secret-token-12345")
		if got != "Bearer ***" {
			t.Errorf("期望 'Bearer ***', 实际 '%s'", got)
		}
	})

	t.Run("OCR订阅密钥保留首尾", func(t *testing.T) {
		got := redactor.RedactHeaderValue("Ocp-Apim-Subscription-Key", "0123456789abcdef")
		if got != "0123***cdef" {
			t.Errorf("期望 '0123***cdef', 实际 '%s'", got)
		}
	})

	t.Run("Cookie完全隐藏短值", func(t *testing.T) {
		got := redactor.RedactHeaderValue("Cookie", "a=1")
		if got != "***" {
			t.Errorf("期望 '***', 实际 '%s'", got)
		}
	})

	t.Run("非敏感头部不脱敏", func(t *testing.T) {
		got := redactor.RedactHeaderValue("Accept-Language", "ko-KR")
		if got != "ko-KR" {
			t.Errorf("非敏感头部被修改: %s", got)
		}
	})

	t.Run("格式化输出有序", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Bot")
		headers.Set("Accept", "*/*")
		got := redactor.RedactToString(headers)
		if got != "Accept: */*, User-Agent: Bot" {
			t.Errorf("输出顺序错误: %s", got)
		}
	})

	t.Run("URL查询参数脱敏", func(t *testing.T) {
		got := redactor.RedactURL("https://ocr.example.com/read?subscription-key=0123456789abcdef&lang=ko")
		if strings.Contains(got, "0123456789abcdef") {
			t.Errorf("密钥未脱敏: %s", got)
		}
		if !strings.Contains(got, "lang=ko") {
			t.Errorf("普通参数被修改: %s", got)
		}
	})
}
