package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		depth   int
		links   int
		pages   int
		mode    string
		wait    time.Duration
		wantErr bool
	}{
		{"全部使用默认值", "https://example.com", -1, 0, 0, "", 0, false},
		{"完整参数", "https://example.com", 2, 5, 30, "dynamic", 3 * time.Second, false},
		{"大写模式", "https://example.com", 0, 0, 0, "STATIC", 0, false},
		{"非HTTP协议", "ftp://example.com", -1, 0, 0, "", 0, true},
		{"深度过大", "https://example.com", 6, 0, 0, "", 0, true},
		{"链接数过大", "https://example.com", -1, 51, 0, "", 0, true},
		{"页面数过大", "https://example.com", -1, 0, 501, "", 0, true},
		{"等待时间过长", "https://example.com", -1, 0, 0, "", 2 * time.Minute, true},
		{"无效模式", "https://example.com", -1, 0, 0, "all", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.url, tt.depth, tt.links, tt.pages, tt.mode, tt.wait)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com", "https://example.com"},
		{"  https://example.com/about  ", "https://example.com/about"},
		{"http://example.com", "http://example.com"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.input)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) 返回错误: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, 期望 %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateURLFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "urls.txt")
	if err := os.WriteFile(file, []byte("https://example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateURLFile(file); err != nil {
		t.Errorf("期望文件有效: %v", err)
	}
	if err := ValidateURLFile(""); err == nil {
		t.Error("空路径应返回错误")
	}
	if err := ValidateURLFile(dir); err == nil {
		t.Error("目录应返回错误")
	}
	if err := ValidateURLFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("不存在的文件应返回错误")
	}
}
