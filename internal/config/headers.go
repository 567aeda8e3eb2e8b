// Package config 加载 headers.yaml 中的自定义HTTP头部
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// Template 返回内置的配置模板
func Template() string {
	return defaultHeaderTemplate
}

// HeaderConfigLoader 头部配置加载器
type HeaderConfigLoader struct {
	configPath string

	// autoCreate 文件不存在时是否写入模板
	autoCreate bool
}

// NewHeaderConfigLoader 创建配置文件加载器
// 文件不存在时自动生成模板
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &HeaderConfigLoader{
		configPath: configPath,
		autoCreate: true,
	}
}

// ReadOnly 文件不存在时不写入模板,直接使用空配置
// 服务端进程使用,避免在工作目录中产生文件
func (hcl *HeaderConfigLoader) ReadOnly() *HeaderConfigLoader {
	clone := *hcl
	clone.autoCreate = false
	return &clone
}

// Path 配置文件路径
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// EnsureConfigExists 确保配置文件存在,如不存在则自动生成模板
func (hcl *HeaderConfigLoader) EnsureConfigExists() error {
	if _, err := os.Stat(hcl.configPath); os.IsNotExist(err) {
		dir := filepath.Dir(hcl.configPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.configPath, err)
		}
		utils.Infof("📝 已生成HTTP头部配置模板: %s", hcl.configPath)
	}
	return nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", hcl.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// LoadConfig 加载配置文件并解析为HeaderConfig
// 执行流程:
//  1. 确保配置文件存在 (只读模式下不存在则返回空配置)
//  2. 验证文件大小
//  3. 使用Viper解析YAML
//
// 注意: viper会把头部名称转为小写,使用前需经过 http.Header.Set 规范化
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	empty := &models.HeaderConfig{Headers: make(map[string]string)}

	if hcl.autoCreate {
		if err := hcl.EnsureConfigExists(); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(hcl.configPath); os.IsNotExist(err) {
		utils.Debugf("HTTP头部配置不存在,使用默认头部: %s", hcl.configPath)
		return empty, nil
	}

	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程占用时降级为默认头部
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认头部", hcl.configPath)
			return empty, nil
		}

		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    err,
		}
	}

	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	// headers为空时初始化空map
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}
