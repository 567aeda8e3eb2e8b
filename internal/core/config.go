package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/crawlers"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/fetcher"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/ocr"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 CVCRAWL_OCR_API_KEY
const EnvPrefix = "CVCRAWL"

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	HTTP    HTTPConfig         `mapstructure:"http"`
	Browser BrowserConfig      `mapstructure:"browser"`
	OCR     ocr.Config         `mapstructure:"ocr"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
	Server  ServerConfig       `mapstructure:"server"`
}

// HTTPConfig 抓取器和分类器配置
type HTTPConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	ClassifyTimeout    time.Duration `mapstructure:"classify_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// BrowserConfig 无头浏览器和资源检查配置
type BrowserConfig struct {
	crawlers.BrowserOptions `mapstructure:",squash"`

	MinFreeMemoryMB  uint64  `mapstructure:"min_free_memory_mb"`
	CPULoadThreshold float64 `mapstructure:"cpu_load_threshold"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout 单个提取请求的总时限
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".cvcrawl"))
		}
	}

	// 环境变量覆盖: crawl.max_depth -> CVCRAWL_CRAWL_MAX_DEPTH
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	if used := v.ConfigFileUsed(); used != "" {
		utils.Debugf("使用配置文件: %s", used)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	crawl := models.DefaultCrawlConfig()
	v.SetDefault("crawl.max_depth", crawl.MaxDepth)
	v.SetDefault("crawl.max_links", crawl.MaxLinks)
	v.SetDefault("crawl.max_pages", crawl.MaxPages)
	v.SetDefault("crawl.min_line_length", crawl.MinLineLength)
	v.SetDefault("crawl.mode", string(crawl.Mode))
	v.SetDefault("crawl.ocr_enabled", false)

	// 抓取配置默认值
	fetch := fetcher.DefaultConfig()
	v.SetDefault("http.timeout", fetch.Timeout)
	v.SetDefault("http.classify_timeout", crawlers.DefaultClassifyTimeout)
	v.SetDefault("http.max_attempts", fetch.Retry.MaxAttempts)
	v.SetDefault("http.base_delay", fetch.Retry.BaseDelay)
	v.SetDefault("http.max_delay", fetch.Retry.MaxDelay)
	v.SetDefault("http.max_body_bytes", fetch.MaxBodyBytes)
	v.SetDefault("http.insecure_skip_verify", false)

	// 浏览器配置默认值
	browser := crawlers.DefaultBrowserOptions()
	v.SetDefault("browser.driver", browser.Driver)
	v.SetDefault("browser.headless", browser.Headless)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.wait", browser.Wait)
	v.SetDefault("browser.nav_timeout", browser.NavTimeout)
	v.SetDefault("browser.user_agent", browser.UserAgent)
	v.SetDefault("browser.accept_language", browser.AcceptLanguage)
	v.SetDefault("browser.locale", browser.Locale)
	v.SetDefault("browser.timezone", browser.Timezone)
	v.SetDefault("browser.width", browser.Width)
	v.SetDefault("browser.height", browser.Height)
	v.SetDefault("browser.ignore_cert_errors", browser.IgnoreCertErrors)
	v.SetDefault("browser.capture_images", false)
	v.SetDefault("browser.capture_network_log", false)

	monitor := crawlers.DefaultResourceMonitorConfig()
	v.SetDefault("browser.min_free_memory_mb", monitor.MinFreeMemory/(1024*1024))
	v.SetDefault("browser.cpu_load_threshold", monitor.CPULoadThreshold)

	// OCR配置默认值
	ocrDefaults := ocr.DefaultConfig()
	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.endpoint", "")
	v.SetDefault("ocr.submit_path", ocrDefaults.SubmitPath)
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.key_header", ocrDefaults.KeyHeader)
	v.SetDefault("ocr.max_polls", ocrDefaults.MaxPolls)
	v.SetDefault("ocr.poll_interval", ocrDefaults.PollInterval)
	v.SetDefault("ocr.max_images", ocrDefaults.MaxImages)
	v.SetDefault("ocr.timeout", ocrDefaults.Timeout)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")

	// 服务配置默认值
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.request_timeout", 150*time.Second)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout 必须大于0")
	}
	if c.HTTP.MaxAttempts < 1 || c.HTTP.MaxAttempts > 10 {
		return fmt.Errorf("http.max_attempts 必须在1-10之间")
	}
	if _, err := crawlers.NewDriver(c.Browser.Driver); err != nil {
		return fmt.Errorf("browser.driver: %w", err)
	}
	if c.Browser.Wait < 0 {
		return fmt.Errorf("browser.wait 不能为负数")
	}
	if c.OCR.Enabled && (c.OCR.Endpoint == "" || c.OCR.APIKey == "") {
		return fmt.Errorf("ocr.enabled 为true时必须配置 ocr.endpoint 和 ocr.api_key")
	}
	return nil
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	config := utils.DefaultLogConfig()
	if c.Logging.Level != "" {
		config.Level = c.Logging.Level
	}
	if c.Logging.LogDir != "" {
		config.LogDir = c.Logging.LogDir
	}
	if c.Logging.Rotation.MaxSize > 0 {
		config.MaxSize = c.Logging.Rotation.MaxSize
		config.MaxBackups = c.Logging.Rotation.MaxBackups
		config.MaxAge = c.Logging.Rotation.MaxAge
		config.Compress = c.Logging.Rotation.Compress
	}
	return config
}

// FetcherConfig 转换为抓取器配置
func (c *Config) FetcherConfig() fetcher.Config {
	config := fetcher.DefaultConfig()
	config.Timeout = c.HTTP.Timeout
	config.MaxBodyBytes = c.HTTP.MaxBodyBytes
	config.InsecureSkipVerify = c.HTTP.InsecureSkipVerify
	config.Retry.MaxAttempts = c.HTTP.MaxAttempts
	config.Retry.BaseDelay = c.HTTP.BaseDelay
	config.Retry.MaxDelay = c.HTTP.MaxDelay
	return config
}

// BrowserOptions 转换为浏览器配置
// 开启OCR时同时捕获图片请求
func (c *Config) BrowserOptions() crawlers.BrowserOptions {
	opts := c.Browser.BrowserOptions
	if c.Crawl.OCREnabled || c.OCR.Enabled {
		opts.CaptureImages = true
	}
	return opts
}

// ResourceMonitorConfig 转换为资源检查配置
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	config := crawlers.DefaultResourceMonitorConfig()
	if c.Browser.MinFreeMemoryMB > 0 {
		config.MinFreeMemory = c.Browser.MinFreeMemoryMB * 1024 * 1024
	}
	if c.Browser.CPULoadThreshold > 0 {
		config.CPULoadThreshold = c.Browser.CPULoadThreshold
	}
	return config
}

// MergeCLIFlags 合并命令行参数到配置
// 负数表示未指定
func (c *Config) MergeCLIFlags(maxDepth int, maxLinks int, maxPages int, mode string, ocrEnabled bool) {
	// 命令行参数优先于配置文件
	if maxDepth >= 0 {
		c.Crawl.MaxDepth = maxDepth
	}
	if maxLinks > 0 {
		c.Crawl.MaxLinks = maxLinks
	}
	if maxPages > 0 {
		c.Crawl.MaxPages = maxPages
	}
	if mode != "" {
		c.Crawl.Mode = models.CrawlMode(strings.ToLower(mode))
	}
	// --ocr 只打开爬取开关,未配置endpoint时由提取管道告警并跳过
	if ocrEnabled {
		c.Crawl.OCREnabled = true
	}
}
