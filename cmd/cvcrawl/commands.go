package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/core"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/crawlers"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/ocr"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/server"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/spf13/cobra"
)

// 爬取参数
var (
	targetURL  string
	urlFile    string
	maxDepth   int
	maxLinks   int
	maxPages   int
	mode       string
	ocrEnabled bool
	waitTime   time.Duration
	outputDir  string

	// 批量处理参数
	batchDelay      time.Duration
	continueOnError bool

	// 服务参数
	serveAddr string
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "抓取招聘公告文本",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := prepareCrawl(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		extractor, err := newExtractor(nil)
		if err != nil {
			return err
		}

		if urlFile != "" {
			return runBatch(ctx, extractor, core.KindJob)
		}

		corpus, err := extractor.CrawlJob(ctx, targetURL)
		writeReport(core.KindJob, targetURL, corpus, err)
		if err != nil {
			fmt.Println(core.JobFetchFailedText)
			return fmt.Errorf("抓取失败: %w", err)
		}

		fmt.Println(corpus.Text())
		printStats(corpus.Stats)
		return nil
	},
}

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "递归爬取企业官网文本",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := prepareCrawl(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		extractor, err := newExtractor(nil)
		if err != nil {
			return err
		}

		if urlFile != "" {
			return runBatch(ctx, extractor, core.KindCompany)
		}

		corpus, err := extractor.CrawlCompany(ctx, targetURL)
		writeReport(core.KindCompany, targetURL, corpus, err)
		if err != nil || corpus.Empty() {
			fmt.Println(core.CompanyNotFoundText)
			if err != nil {
				return fmt.Errorf("爬取失败: %w", err)
			}
			return nil
		}

		fmt.Println(corpus.Text())
		printStats(corpus.Stats)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP API服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			appConfig.Server.Addr = serveAddr
		}
		appConfig.MergeCLIFlags(maxDepth, maxLinks, maxPages, mode, ocrEnabled)

		ctx, stop := signalContext()
		defer stop()

		collector := metrics.NewCollector(Version)
		extractor, err := newExtractor(collector)
		if err != nil {
			return err
		}

		return server.New(extractor, appConfig.Server, collector, Version).Run(ctx)
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok := true

		if path, found := crawlers.LookupBrowser(); found {
			utils.Infof("✅ 浏览器: %s", path)
		} else if appConfig.Browser.Bin != "" {
			utils.Infof("✅ 浏览器(配置): %s", appConfig.Browser.Bin)
		} else {
			utils.Warn("⚠️  未找到Chrome/Chromium,动态渲染将回退到静态抓取")
			ok = false
		}

		monitor := crawlers.NewResourceMonitor(appConfig.ResourceMonitorConfig())
		if status, err := monitor.GetMemoryStatus(); err != nil {
			utils.Warnf("⚠️  无法读取系统资源: %v", err)
		} else {
			utils.Infof("内存: 可用 %dMB / 总计 %dMB (压力: %s)",
				status.AvailableMemory/(1024*1024), status.TotalMemory/(1024*1024), status.MemoryPressure)
			utils.Infof("CPU: %.1f%%", status.CPUPercent)
			if status.MemoryPressure == "critical" {
				ok = false
			}
		}

		client := ocr.NewClient(appConfig.OCR, nil)
		switch {
		case client.Configured():
			utils.Infof("✅ OCR: %s", appConfig.OCR.Endpoint)
		case appConfig.OCR.Enabled:
			utils.Warn("⚠️  OCR已开启但未配置endpoint/api_key")
			ok = false
		default:
			utils.Info("OCR: 未开启")
		}

		if err := appConfig.Validate(); err != nil {
			utils.Errorf("❌ 配置无效: %v", err)
			ok = false
		}

		if !ok {
			return fmt.Errorf("环境检查未通过")
		}
		utils.Info("✨ 环境检查通过")
		return nil
	},
}

// prepareCrawl 校验参数并合并到配置
func prepareCrawl() error {
	if targetURL == "" && urlFile == "" {
		return fmt.Errorf("必须指定 --url 或 --url-file")
	}
	if targetURL != "" {
		normalized, err := NormalizeURL(targetURL)
		if err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
		targetURL = normalized
	}
	if err := ValidateFlags(targetURL, maxDepth, maxLinks, maxPages, mode, waitTime); err != nil {
		return err
	}

	appConfig.MergeCLIFlags(maxDepth, maxLinks, maxPages, mode, ocrEnabled)
	if waitTime > 0 {
		appConfig.Browser.Wait = waitTime
	}
	return nil
}

// runBatch 批量处理URL文件
func runBatch(ctx context.Context, extractor *core.Extractor, kind string) error {
	if err := ValidateURLFile(urlFile); err != nil {
		return err
	}
	urls, err := utils.ReadURLsFromFile(urlFile)
	if err != nil {
		return fmt.Errorf("读取URL文件失败: %w", err)
	}

	dir := outputDir
	if dir == "" {
		dir = appConfig.Output.BaseDir
	}

	batchCrawler, err := core.NewBatchCrawler(extractor, kind, dir, batchDelay, continueOnError)
	if err != nil {
		return err
	}

	summary, err := batchCrawler.WithProgress().CrawlBatch(ctx, urls)
	if err != nil {
		return fmt.Errorf("批量爬取失败: %w", err)
	}
	if summary.SuccessCount == 0 && summary.TotalURLs > 0 {
		return fmt.Errorf("所有URL均爬取失败")
	}

	utils.Info("✨ 批量爬取任务完成!")
	return nil
}

// writeReport 指定--output时写出语料和报告
func writeReport(kind, rawURL string, corpus *models.Corpus, crawlErr error) {
	if outputDir == "" {
		return
	}
	reporter := utils.NewReporter(outputDir, utils.ExtractDomain(rawURL))
	if _, err := reporter.GenerateReport(kind, corpus, appConfig.Crawl, crawlErr); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}
	if corpus != nil {
		if err := reporter.SaveNetworkLog(corpus.Network); err != nil {
			utils.Warnf("保存网络日志失败: %v", err)
		}
	}
}

func printStats(stats models.TaskStats) {
	fmt.Fprintln(os.Stderr, "==================================================")
	fmt.Fprintln(os.Stderr, "📊 爬取统计")
	fmt.Fprintln(os.Stderr, "==================================================")
	fmt.Fprintf(os.Stderr, "✅ 访问URL数: %d\n", stats.VisitedURLs)
	fmt.Fprintf(os.Stderr, "✅ 静态页面: %d\n", stats.StaticPages)
	fmt.Fprintf(os.Stderr, "✅ 动态页面: %d\n", stats.DynamicPages)
	fmt.Fprintf(os.Stderr, "🖼️  OCR图片: %d\n", stats.OCRImages)
	fmt.Fprintf(os.Stderr, "❌ 失败页面: %d\n", stats.FailedPages)
	fmt.Fprintf(os.Stderr, "📝 总字符数: %d\n", stats.TotalChars)
	fmt.Fprintf(os.Stderr, "⏱️  总耗时: %.2f秒\n", stats.Duration)
	fmt.Fprintln(os.Stderr, "==================================================")
}

// signalContext Ctrl+C时取消进行中的爬取,已抓取的页面仍会输出
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&targetURL, "url", "u", "", "目标URL (必需,除非使用 --url-file)")
	cmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	cmd.Flags().IntVarP(&maxDepth, "depth", "d", -1, "根页面之外的链接跳数 (0-5,默认使用配置)")
	cmd.Flags().IntVar(&maxLinks, "max-links", 0, "每页跟随的候选链接数 (默认使用配置)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "单次任务页面上限 (默认使用配置)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "渲染模式 (auto|static|dynamic)")
	cmd.Flags().BoolVar(&ocrEnabled, "ocr", false, "识别招聘公告中的图片文字")
	cmd.Flags().DurationVarP(&waitTime, "wait", "w", 0, "动态渲染加载后的等待时间,例如 3s")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录 (写出语料和JSON报告)")

	// 批量处理参数
	cmd.Flags().DurationVar(&batchDelay, "batch-delay", time.Second, "批量处理URL间延迟")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")
}

func init() {
	addCrawlFlags(jobCmd)
	addCrawlFlags(companyCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址 (默认使用配置 server.addr)")
	serveCmd.Flags().IntVarP(&maxDepth, "depth", "d", -1, "根页面之外的链接跳数 (0-5,默认使用配置)")
	serveCmd.Flags().IntVar(&maxLinks, "max-links", 0, "每页跟随的候选链接数 (默认使用配置)")
	serveCmd.Flags().IntVar(&maxPages, "max-pages", 0, "单次任务页面上限 (默认使用配置)")
	serveCmd.Flags().StringVarP(&mode, "mode", "m", "", "渲染模式 (auto|static|dynamic)")
	serveCmd.Flags().BoolVar(&ocrEnabled, "ocr", false, "识别招聘公告中的图片文字")
}
