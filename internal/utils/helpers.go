package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
)

// ReadURLsFromFile 从文件中读取URL列表
// 空行和#开头的注释行会被跳过
func ReadURLsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := models.ValidateURL(line); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		if seen[line] {
			Debugf("跳过重复URL (行 %d): %s", lineNum, line)
			continue
		}
		seen[line] = true

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个URL", len(urls))
	return urls, nil
}

// ExtractDomain 提取URL主机名,用于输出目录
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ReplaceAll(parsed.Host, ":", "_")
}

// Preview 截取文本前n个字符用于日志
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
