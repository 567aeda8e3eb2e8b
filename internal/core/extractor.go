package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/crawlers"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/fetcher"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/ocr"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
)

const (
	// JobFetchFailedText 招聘公告抓取失败时返回给调用方的文本
	JobFetchFailedText = "(채용 공고 크롤링 실패)"

	// CompanyNotFoundText 企业官网没有可用内容时返回给调用方的文本
	CompanyNotFoundText = "회사 정보를 찾을 수 없습니다."

	// CompanyCrawlFailedText 企业官网爬取中途异常(如请求超时)时返回的文本
	CompanyCrawlFailedText = "(회사 정보 크롤링 실패)"
)

// CorpusCrawler 把一个URL变成语料
type CorpusCrawler interface {
	Crawl(ctx context.Context, rootURL string) (*models.Corpus, error)
}

// Extractor 文本提取管道的入口
// 每次调用都创建独立的爬取状态,可以被多个请求并发使用
type Extractor struct {
	config *Config
	job    CorpusCrawler
	site   CorpusCrawler
}

// NewExtractor 按配置组装抓取器、分类器、渲染器和OCR客户端
func NewExtractor(config *Config, headerProvider models.HeaderProvider, collector *metrics.Collector) (*Extractor, error) {
	if config == nil {
		return nil, fmt.Errorf("配置不能为nil")
	}

	driver, err := crawlers.NewDriver(config.Browser.Driver)
	if err != nil {
		return nil, err
	}

	httpFetcher := fetcher.New(config.FetcherConfig(), headerProvider, collector)
	classifier := crawlers.NewClassifier(config.HTTP.ClassifyTimeout, headerProvider, config.HTTP.InsecureSkipVerify, collector)
	monitor := crawlers.NewResourceMonitor(config.ResourceMonitorConfig())

	browserOpts := config.BrowserOptions()
	if headerProvider != nil {
		// 浏览器与HTTP抓取使用相同的身份
		if headers, err := headerProvider.GetHeaders(); err == nil {
			if ua := headers.Get("User-Agent"); ua != "" {
				browserOpts.UserAgent = ua
			}
			if lang := headers.Get("Accept-Language"); lang != "" {
				browserOpts.AcceptLanguage = lang
			}
		}
	}

	static := crawlers.NewStaticRenderer(httpFetcher, collector)
	dynamic := crawlers.NewDynamicRenderer(browserOpts, driver, monitor, collector)

	var images crawlers.ImageReader
	jobConfig := config.Crawl
	if config.OCR.Enabled || config.Crawl.OCREnabled {
		client := ocr.NewClient(config.OCR, collector)
		if client.Configured() {
			images = client
			jobConfig.OCREnabled = true
		} else {
			utils.Warnf("⚠️  已开启OCR但未配置endpoint/api_key,跳过图片识别")
		}
	}

	// 企业官网语料逐行清洗并丢弃短行
	lineCleaner := crawlers.LineCleaner(config.Crawl.MinLineLength)

	return &Extractor{
		config: config,
		job:    crawlers.NewJobCrawler(jobConfig, classifier, static, dynamic, images, collector),
		site: crawlers.NewSiteCrawler(config.Crawl, classifier,
			static.WithCleaner(lineCleaner), dynamic.WithCleaner(lineCleaner), collector),
	}, nil
}

// newExtractorWith 使用指定的爬取器,测试使用
func newExtractorWith(config *Config, job, site CorpusCrawler) *Extractor {
	return &Extractor{config: config, job: job, site: site}
}

func (e *Extractor) crawlConfig() models.CrawlConfig {
	if e.config == nil {
		return models.DefaultCrawlConfig()
	}
	return e.config.Crawl
}

// CrawlJob 抓取招聘公告,返回语料和类型化错误
func (e *Extractor) CrawlJob(ctx context.Context, jobURL string) (*models.Corpus, error) {
	return e.job.Crawl(ctx, jobURL)
}

// CrawlCompany 递归爬取企业官网,返回语料和类型化错误
func (e *Extractor) CrawlCompany(ctx context.Context, companyURL string) (*models.Corpus, error) {
	return e.site.Crawl(ctx, companyURL)
}

// FetchJobDescription 返回招聘公告文本
// 失败时返回JobFetchFailedText,同时返回原始错误供调用方判断
func (e *Extractor) FetchJobDescription(ctx context.Context, jobURL string) (string, error) {
	corpus, err := e.CrawlJob(ctx, jobURL)
	if err != nil {
		utils.Errorf("❌ 招聘公告抓取失败 [%s]: %v", jobURL, err)
		return JobFetchFailedText, err
	}

	text := corpus.Text()
	utils.Infof("招聘公告抓取成功: %s", utils.Preview(text, 100))
	return text, nil
}

// FetchCompanyInfo 返回企业官网汇总文本
// 根页面失败或没有任何内容时返回CompanyNotFoundText
func (e *Extractor) FetchCompanyInfo(ctx context.Context, companyURL string) (string, error) {
	corpus, err := e.CrawlCompany(ctx, companyURL)
	if err != nil {
		utils.Warnf("企业官网爬取失败 [%s]: %v", companyURL, err)
		return CompanyNotFoundText, err
	}

	if corpus == nil || corpus.Empty() {
		utils.Warnf("企业官网没有可用内容: %s", companyURL)
		return CompanyNotFoundText, fmt.Errorf("%w: %s", models.ErrNoContent, companyURL)
	}

	text := corpus.Text()
	utils.Infof("企业官网爬取结果长度: %d", len([]rune(text)))
	utils.Debugf("企业官网爬取结果预览: %s", utils.Preview(text, 500))
	return text, nil
}

// IsSentinel 判断文本是否为失败时的占位文本
func IsSentinel(text string) bool {
	switch text {
	case "", JobFetchFailedText, CompanyNotFoundText, CompanyCrawlFailedText:
		return true
	}
	return false
}

// ErrorMessage 把管道错误转为可以展示给用户的信息,不包含内部细节
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "요청 시간이 초과되었습니다."
	case errors.Is(err, models.ErrNoContent):
		return "페이지에서 내용을 찾을 수 없습니다."
	}

	switch models.KindOf(err) {
	case models.KindNetwork, models.KindTimeout:
		return "페이지에 연결할 수 없습니다."
	case models.KindHTTP:
		return "페이지가 오류를 반환했습니다."
	case models.KindParse:
		return "페이지를 해석할 수 없습니다."
	case models.KindBrowser, models.KindRenderTimeout, models.KindResource:
		return "페이지를 렌더링할 수 없습니다."
	}
	return "크롤링 중 오류가 발생했습니다."
}
