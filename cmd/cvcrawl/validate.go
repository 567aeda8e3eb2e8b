package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
)

// ValidateFlags 验证命令行标志
// 数值参数为-1或0表示沿用配置文件
func ValidateFlags(
	targetURL string,
	maxDepth int,
	maxLinks int,
	maxPages int,
	mode string,
	waitTime time.Duration,
) error {
	// 验证URL
	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	// 验证深度
	if maxDepth < -1 || maxDepth > 5 {
		return fmt.Errorf("爬取深度必须在0-5之间,当前值: %d", maxDepth)
	}

	if maxLinks < 0 || maxLinks > 50 {
		return fmt.Errorf("候选链接数必须在1-50之间,当前值: %d", maxLinks)
	}

	if maxPages < 0 || maxPages > 500 {
		return fmt.Errorf("页面上限必须在1-500之间,当前值: %d", maxPages)
	}

	// 验证等待时间
	if waitTime < 0 || waitTime > time.Minute {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %s", waitTime)
	}

	// 验证模式
	validModes := map[string]bool{
		"":                         true,
		string(models.ModeAuto):    true,
		string(models.ModeStatic):  true,
		string(models.ModeDynamic): true,
	}
	if !validModes[strings.ToLower(mode)] {
		return fmt.Errorf("无效的渲染模式: %s (有效值: auto, static, dynamic)", mode)
	}

	return nil
}

// ValidateURLFile 验证URL文件路径
func ValidateURLFile(path string) error {
	if path == "" {
		return fmt.Errorf("URL文件路径不能为空")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("URL文件不可用: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("URL文件路径是目录: %s", path)
	}
	return nil
}

// NormalizeURL 规范化URL
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	// 如果没有协议,默认使用https
	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
