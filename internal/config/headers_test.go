package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("首次运行自动生成配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "configs", "headers.yaml")
		loader := NewHeaderConfigLoader(configPath)

		cfg, err := loader.LoadConfig()
		require.NoError(t, err)
		require.NotNil(t, cfg.Headers)
		assert.Empty(t, cfg.Headers)

		data, err := os.ReadFile(configPath)
		require.NoError(t, err, "配置文件应该被自动生成")
		assert.Equal(t, Template(), string(data))
	})

	t.Run("只读模式不生成文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		loader := NewHeaderConfigLoader(configPath).ReadOnly()

		cfg, err := loader.LoadConfig()
		require.NoError(t, err)
		assert.Empty(t, cfg.Headers)

		_, err = os.Stat(configPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("加载已存在的配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		content := `headers:
  Referer: "https://www.saramin.co.kr/"
  X-Custom: "test value"
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		require.NoError(t, err)

		// viper会将键名转换为小写
		assert.Equal(t, "https://www.saramin.co.kr/", cfg.Headers["referer"])
		assert.Equal(t, "test value", cfg.Headers["x-custom"])
	})

	t.Run("YAML格式错误返回错误", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		bad := `headers:
  User-Agent: "Test Bot
  X-Custom: missing quote
`
		require.NoError(t, os.WriteFile(configPath, []byte(bad), 0644))

		_, err := NewHeaderConfigLoader(configPath).LoadConfig()
		require.Error(t, err)

		var configErr *models.ConfigError
		assert.True(t, errors.As(err, &configErr))
		assert.Equal(t, configPath, configErr.FilePath)
	})

	t.Run("空配置文件处理", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(`headers:`), 0644))

		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		require.NoError(t, err)
		assert.NotNil(t, cfg.Headers, "Headers map应该被初始化为空map")
	})

	t.Run("配置文件大小验证", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		require.NoError(t, os.WriteFile(configPath, make([]byte, MaxConfigFileSize+1), 0644))

		_, err := NewHeaderConfigLoader(configPath).LoadConfig()
		assert.Error(t, err)
	})
}

func TestNewHeaderConfigLoader_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultConfigFile, NewHeaderConfigLoader("").Path())
}
