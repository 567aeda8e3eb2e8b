package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/config"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/crawlers"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
)

// HeaderManager 管理HTTP请求头部的生命周期
// 实现 HeaderProvider 接口,抓取器、分类器共享同一个实例
type HeaderManager struct {
	// defaults 系统默认头部,伪装成桌面版Chrome
	defaults http.Header

	// config 从配置文件加载的头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	// 服务端并发请求会同时触发首次加载
	mu     sync.Mutex
	loaded bool
	merged http.Header
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configFile: headers.yaml路径 (为空则使用默认路径)
//   - cliHeaders: 命令行传递的头部字符串列表,格式 "Name: Value"
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:     DefaultHeaders(),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
		cli:          make(http.Header),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// WithReadOnlyConfig 配置文件不存在时不生成模板
func (hm *HeaderManager) WithReadOnlyConfig() *HeaderManager {
	hm.configLoader = hm.configLoader.ReadOnly()
	return hm
}

// DefaultHeaders 返回系统默认头部
func DefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{crawlers.DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language": []string{crawlers.DefaultAcceptLanguage},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// LoadConfig 加载配置文件
// 如果已加载则跳过
func (hm *HeaderManager) LoadConfig() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.loadLocked()
}

func (hm *HeaderManager) loadLocked() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}

	// map[string]string -> http.Header,同时规范化viper转成小写的名称
	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}

	hm.loaded = true

	if len(headerConfig.Headers) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %v", len(hm.config), hm.redactor.Redact(hm.config))
	}

	return nil
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行 → 合并后的浏览器身份
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.ValidateIdentity(hm.GetMergedHeaders()); err != nil {
		utils.Errorf("浏览器身份头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)

	for name, values := range hm.defaults {
		result[name] = values
	}
	for name, values := range hm.config {
		result[name] = values
	}
	for name, values := range hm.cli {
		result[name] = values
	}

	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
// 首次调用时加载并验证,之后返回缓存结果的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hm.merged != nil {
		return hm.merged.Clone(), nil
	}

	if err := hm.loadLocked(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}

	hm.merged = hm.GetMergedHeaders()
	return hm.merged.Clone(), nil
}
