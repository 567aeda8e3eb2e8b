package crawlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
)

// DynamicSource 一次性动态渲染单个页面
type DynamicSource interface {
	Render(ctx context.Context, pageURL string) (*models.PageExtract, error)
}

// ImageReader 识别图片中的文字
// 单张图片失败只体现在对应结果的Err上
type ImageReader interface {
	RecognizeAll(ctx context.Context, imageURLs []string) []models.OcrResult
}

// JobCrawler 抓取单个招聘公告页面
type JobCrawler struct {
	config     models.CrawlConfig
	classifier PageClassifier
	static     StaticSource
	dynamic    DynamicSource
	images     ImageReader
	metrics    *metrics.Collector
}

// NewJobCrawler 创建招聘公告抓取器
// images 为nil或未开启OCR时不识别图片
func NewJobCrawler(config models.CrawlConfig, classifier PageClassifier, static StaticSource, dynamic DynamicSource, images ImageReader, collector *metrics.Collector) *JobCrawler {
	return &JobCrawler{
		config:     config,
		classifier: classifier,
		static:     static,
		dynamic:    dynamic,
		images:     images,
		metrics:    collector,
	}
}

// Crawl 抓取招聘公告并返回只含一个页面的语料
// 页面无法获取时返回ErrRootFetchFailed,页面没有文本时返回ErrNoContent
func (c *JobCrawler) Crawl(ctx context.Context, jobURL string) (*models.Corpus, error) {
	job, err := models.NewCrawlJob(jobURL, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRootFetchFailed, err)
	}
	job.MarkVisited(jobURL, 0)

	utils.Infof("🚀 开始抓取招聘公告: %s", jobURL)

	extract, err := c.render(ctx, jobURL)
	if err != nil {
		job.RecordFailure()
		utils.Errorf("❌ 招聘公告抓取失败: %s: %v", jobURL, err)
		return job.Corpus(), fmt.Errorf("%w: %w", models.ErrRootFetchFailed, err)
	}

	job.AddPage(models.CorpusPage{
		URL:       jobURL,
		Mode:      extract.Mode,
		Text:      extract.Text,
		FetchedAt: time.Now(),
	})
	job.RecordNetwork(extract.Network)

	addendum := c.readImages(ctx, job, extract.ImageURLs)

	corpus := job.Corpus()
	corpus.Addendum = addendum
	c.metrics.ObserveCrawl(len(corpus.Pages))

	if corpus.Empty() {
		utils.Warnf("⚠️  招聘公告没有可用文本: %s", jobURL)
		return corpus, fmt.Errorf("%w: %s", models.ErrNoContent, jobURL)
	}

	utils.Infof("✅ 招聘公告抓取完成: %s (模式: %s, 字符: %d, OCR图片: %d)",
		jobURL, extract.Mode, corpus.Stats.TotalChars, corpus.Stats.OCRImages)
	utils.Debugf("招聘公告文本预览: %s", utils.Preview(corpus.Text(), 200))

	return corpus, nil
}

func (c *JobCrawler) render(ctx context.Context, jobURL string) (*models.PageExtract, error) {
	pageType := models.PageStatic
	switch c.config.Mode {
	case models.ModeStatic:
	case models.ModeDynamic:
		pageType = models.PageDynamic
	default:
		if c.classifier != nil {
			pageType = c.classifier.Classify(ctx, jobURL)
		}
	}
	utils.Debugf("页面类型: %s -> %s", jobURL, pageType)

	if pageType == models.PageDynamic && c.dynamic != nil {
		extract, err := c.dynamic.Render(ctx, jobURL)
		if err == nil {
			return extract, nil
		}
		if extract != nil && extract.Text != "" {
			utils.Warnf("动态渲染超时,使用部分内容 [%s]: %v", jobURL, err)
			return extract, nil
		}
		utils.Warnf("动态渲染失败,回退静态抓取 [%s]: %v", jobURL, err)
	}

	return c.static.RenderURL(ctx, jobURL)
}

// readImages 识别页面图片,返回成功结果按行拼接的文本
func (c *JobCrawler) readImages(ctx context.Context, job *models.CrawlJob, imageURLs []string) string {
	if !c.config.OCREnabled || c.images == nil || len(imageURLs) == 0 {
		return ""
	}

	utils.Infof("🖼️  识别招聘公告图片: %d张", len(imageURLs))

	var texts []string
	for _, result := range c.images.RecognizeAll(ctx, imageURLs) {
		if result.Err != nil || result.Text == "" {
			continue
		}
		texts = append(texts, result.Text)
	}
	job.RecordOCR(len(texts))

	return strings.Join(texts, "\n")
}
