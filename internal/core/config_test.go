package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/crawlers"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, config.Crawl.MaxDepth)
	assert.Equal(t, 5, config.Crawl.MaxLinks)
	assert.Equal(t, 30, config.Crawl.MaxPages)
	assert.Equal(t, 20, config.Crawl.MinLineLength)
	assert.Equal(t, models.ModeAuto, config.Crawl.Mode)
	assert.Equal(t, 10*time.Second, config.HTTP.Timeout)
	assert.Equal(t, 3, config.HTTP.MaxAttempts)
	assert.Equal(t, crawlers.DriverRod, config.Browser.Driver)
	assert.Equal(t, "Asia/Seoul", config.Browser.Timezone)
	assert.Equal(t, 10, config.OCR.MaxPolls)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
crawl:
  max_depth: 1
  mode: static
browser:
  driver: chromedp
  wait: 2s
ocr:
  endpoint: https://ocr.example.com
`)
	t.Setenv("CVCRAWL_CRAWL_MAX_PAGES", "12")
	t.Setenv("CVCRAWL_OCR_API_KEY", "secret")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1, config.Crawl.MaxDepth)
	assert.Equal(t, 12, config.Crawl.MaxPages)
	assert.Equal(t, models.ModeStatic, config.Crawl.Mode)
	assert.Equal(t, crawlers.DriverChromedp, config.Browser.Driver)
	assert.Equal(t, 2*time.Second, config.Browser.Wait)
	assert.Equal(t, "secret", config.OCR.APIKey)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "crawl: [unterminated\n"))
	require.Error(t, err)

	var configErr *models.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestConfig_Validate(t *testing.T) {
	base := func(t *testing.T) *Config {
		config, err := LoadConfig(writeConfig(t, "{}\n"))
		require.NoError(t, err)
		return config
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置有效", func(c *Config) {}, false},
		{"深度越界", func(c *Config) { c.Crawl.MaxDepth = 9 }, true},
		{"超时为0", func(c *Config) { c.HTTP.Timeout = 0 }, true},
		{"重试次数过多", func(c *Config) { c.HTTP.MaxAttempts = 11 }, true},
		{"未知浏览器驱动", func(c *Config) { c.Browser.Driver = "selenium" }, true},
		{"等待时间为负", func(c *Config) { c.Browser.Wait = -time.Second }, true},
		{"开启OCR但缺少密钥", func(c *Config) { c.OCR.Enabled = true }, true},
		{"爬取开关不要求密钥", func(c *Config) { c.Crawl.OCREnabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base(t)
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	t.Run("未指定时保留配置", func(t *testing.T) {
		config.MergeCLIFlags(-1, 0, 0, "", false)
		assert.Equal(t, 2, config.Crawl.MaxDepth)
		assert.Equal(t, 5, config.Crawl.MaxLinks)
		assert.Equal(t, models.ModeAuto, config.Crawl.Mode)
		assert.False(t, config.Crawl.OCREnabled)
	})

	t.Run("命令行优先", func(t *testing.T) {
		config.MergeCLIFlags(0, 3, 10, "DYNAMIC", true)
		assert.Equal(t, 0, config.Crawl.MaxDepth)
		assert.Equal(t, 3, config.Crawl.MaxLinks)
		assert.Equal(t, 10, config.Crawl.MaxPages)
		assert.Equal(t, models.ModeDynamic, config.Crawl.Mode)
		assert.True(t, config.Crawl.OCREnabled)
		assert.False(t, config.OCR.Enabled)
		assert.True(t, config.BrowserOptions().CaptureImages)
		assert.NoError(t, config.Validate())
	})
}
