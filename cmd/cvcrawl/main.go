package main

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/core"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile  string
	headersFile string
	verbose     bool
	logLevel    string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// appConfig 在PersistentPreRunE中加载
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "cvcrawl",
	Short: "招聘公告和企业官网文本提取工具",
	Long: `cvcrawl - 为自我介绍书生成准备素材的网页文本提取工具

支持:
  • 招聘公告抓取 (静态/动态自动判断,图片OCR)
  • 企业官网递归爬取 (关键字白名单/黑名单筛选链接)
  • 批量URL处理
  • HTTP API服务
  • 自定义HTTP请求头

示例:
  # 抓取招聘公告
  cvcrawl job -u https://www.saramin.co.kr/zf_user/jobs/view?rec_idx=123

  # 爬取企业官网并写出语料和报告
  cvcrawl company -u https://www.example.co.kr -o output

  # 启动HTTP服务
  cvcrawl serve --addr :8080

  # 验证配置文件
  cvcrawl --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := config.LogConfig()

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig()
		}
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cvcrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// runValidateConfig 验证应用配置和HTTP头部配置
func runValidateConfig() error {
	utils.Info("🔍 验证应用配置...")
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	utils.Info("🔍 验证HTTP头部配置...")
	headerManager, err := core.NewHeaderManager(headersFile, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	// 显示合并后的头部(脱敏)
	safeHeaders := headerManager.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

// newExtractor 按当前配置创建提取管道
func newExtractor(collector *metrics.Collector) (*core.Extractor, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	headerManager, err := core.NewHeaderManager(headersFile, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if _, err := headerManager.GetHeaders(); err != nil {
		return nil, fmt.Errorf("HTTP头部配置无效: %w", err)
	}
	utils.Debugf("有效HTTP头部: %v", headerManager.GetSafeHeaders())

	return core.NewExtractor(appConfig, headerManager, collector)
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-config", "", "HTTP头部配置文件路径 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 添加子命令
	rootCmd.AddCommand(jobCmd, companyCmd, serveCmd, doctorCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
