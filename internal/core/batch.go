package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// 批量任务类型,同时用作报告文件名前缀
const (
	KindJob     = "job"
	KindCompany = "company"
)

// BatchCrawler 批量爬取器
type BatchCrawler struct {
	extractor     *Extractor
	kind          string
	outputDir     string
	batchDelay    time.Duration
	continueOnErr bool
	showProgress  bool
}

// BatchResult 批量爬取结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Stats       models.TaskStats
	Report      *models.CrawlReport
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalPages    int
	TotalChars    int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器
// outputDir为空时不写出语料和报告
func NewBatchCrawler(extractor *Extractor, kind string, outputDir string, batchDelay time.Duration, continueOnErr bool) (*BatchCrawler, error) {
	switch kind {
	case KindJob, KindCompany:
	default:
		return nil, fmt.Errorf("无效的批量任务类型: %s (有效值: job, company)", kind)
	}

	return &BatchCrawler{
		extractor:     extractor,
		kind:          kind,
		outputDir:     outputDir,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}, nil
}

// WithProgress 在终端显示进度条
func (bc *BatchCrawler) WithProgress() *BatchCrawler {
	bc.showProgress = true
	return bc
}

// CrawlBatch 批量爬取URL列表
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量爬取: %d个URL (类型: %s)", len(urls), bc.kind)

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	var bar *progressbar.ProgressBar
	if bc.showProgress {
		bar = utils.NewProgressBar(len(urls), "批量爬取")
	}

	for i, targetURL := range urls {
		if err := ctx.Err(); err != nil {
			utils.Warnf("批量爬取被取消: %v", err)
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := bc.crawlSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)
		if bar != nil {
			bar.Add(1)
		}

		if result.Success {
			summary.SuccessCount++
			summary.TotalPages += result.Stats.StaticPages + result.Stats.DynamicPages
			summary.TotalChars += result.Stats.TotalChars
		} else {
			summary.FailCount++
			utils.Errorf("❌ 爬取失败: %v", result.Error)

			if !bc.continueOnErr {
				utils.Warn("批量爬取中止 (--continue-on-error=false)")
				break
			}
		}

		// 最后一个URL不需要延迟
		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(bc.batchDelay):
			}
		}
	}

	if bar != nil {
		bar.Finish()
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)

	return summary, nil
}

// crawlSingleURL 爬取单个URL并写出报告
func (bc *BatchCrawler) crawlSingleURL(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}

	startTime := time.Now()

	var (
		corpus *models.Corpus
		err    error
	)
	if bc.kind == KindJob {
		corpus, err = bc.extractor.CrawlJob(ctx, targetURL)
	} else {
		corpus, err = bc.extractor.CrawlCompany(ctx, targetURL)
	}
	if err == nil && (corpus == nil || corpus.Empty()) {
		err = fmt.Errorf("%w: %s", models.ErrNoContent, targetURL)
	}

	if corpus != nil {
		result.Stats = corpus.Stats
	}

	if bc.outputDir != "" {
		reporter := utils.NewReporter(bc.outputDir, utils.ExtractDomain(targetURL))
		report, reportErr := reporter.GenerateReport(bc.kind, corpus, bc.extractor.crawlConfig(), err)
		if reportErr != nil {
			utils.Warnf("生成报告失败 [%s]: %v", targetURL, reportErr)
		}
		result.Report = report
		if corpus != nil {
			if netErr := reporter.SaveNetworkLog(corpus.Network); netErr != nil {
				utils.Warnf("保存网络日志失败 [%s]: %v", targetURL, netErr)
			}
		}
	}

	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("爬取失败: %w", err)
		return result
	}

	result.Success = true
	return result
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 总页面数: %d", summary.TotalPages)
	utils.Infof("📝 总字符数: %d", summary.TotalChars)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
