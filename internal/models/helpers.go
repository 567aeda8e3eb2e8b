package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// CanonicalURL 规范化URL用于去重
// 小写scheme和host,去掉片段和查询参数,去掉路径末尾的斜杠
func CanonicalURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}

// SameHost 判断两个URL的主机是否完全一致(含端口)
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Host, ub.Host)
}

// StripFragment 去掉URL中的#片段
func StripFragment(u *url.URL) *url.URL {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return &clean
}

// HashText 计算文本的SHA256
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
