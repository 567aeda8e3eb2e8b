package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/cvfactory-crawler/internal/metrics"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/models"
	"github.com/RecoveryAshes/cvfactory-crawler/internal/utils"
)

// PageClassifier 判断页面渲染方式
type PageClassifier interface {
	Classify(ctx context.Context, pageURL string) models.PageType
}

// StaticSource 抓取并静态渲染页面
type StaticSource interface {
	RenderURL(ctx context.Context, pageURL string) (*models.PageExtract, error)
}

// SessionOpener 打开动态渲染会话
type SessionOpener interface {
	OpenSession(ctx context.Context) (PageSession, error)
}

// SiteCrawler 递归站点爬取器
// 从根页面出发深度优先跟随候选链接,把各页面文本按发现顺序拼成语料
type SiteCrawler struct {
	config     models.CrawlConfig
	classifier PageClassifier
	static     StaticSource
	dynamic    SessionOpener
	links      *LinkFilter
	metrics    *metrics.Collector
}

// NewSiteCrawler 创建站点爬取器
// dynamic 为nil时所有页面都走静态渲染
func NewSiteCrawler(config models.CrawlConfig, classifier PageClassifier, static StaticSource, dynamic SessionOpener, collector *metrics.Collector) *SiteCrawler {
	return &SiteCrawler{
		config:     config,
		classifier: classifier,
		static:     static,
		dynamic:    dynamic,
		links:      NewLinkFilter(config.MaxLinks),
		metrics:    collector,
	}
}

// WithLinkFilter 替换链接过滤器
func (c *SiteCrawler) WithLinkFilter(filter *LinkFilter) *SiteCrawler {
	c.links = filter
	return c
}

// crawlRun 一次爬取的运行时状态,随递归显式传递
type crawlRun struct {
	job *models.CrawlJob

	// 浏览器会话在第一次需要动态渲染时才启动
	session    PageSession
	sessionErr error
}

func (r *crawlRun) close() {
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			utils.Warnf("关闭浏览器会话失败: %v", err)
		}
		r.session = nil
	}
}

// Crawl 爬取站点并返回语料
// 根页面失败时返回ErrRootFetchFailed,其他页面失败只会让对应分支没有内容
func (c *SiteCrawler) Crawl(ctx context.Context, rootURL string) (*models.Corpus, error) {
	job, err := models.NewCrawlJob(rootURL, c.config.MaxDepth, c.config.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRootFetchFailed, err)
	}

	utils.Infof("🚀 开始站点爬取: %s (最大深度: %d, 页面上限: %d)", rootURL, job.MaxDepth, job.MaxPages)

	run := &crawlRun{job: job}
	defer run.close()

	rootErr := c.visit(ctx, run, rootURL, 0)

	corpus := job.Corpus()
	c.metrics.ObserveCrawl(len(corpus.Pages))

	if rootErr != nil {
		utils.Errorf("❌ 根页面抓取失败: %s: %v", rootURL, rootErr)
		return corpus, fmt.Errorf("%w: %w", models.ErrRootFetchFailed, rootErr)
	}

	if ctx.Err() != nil {
		utils.Warnf("⚠️  爬取被中断,返回已获取的%d个页面: %v", len(corpus.Pages), ctx.Err())
	}

	utils.Infof("✅ 站点爬取完成: %s (页面: %d, 失败: %d, 字符: %d, 耗时: %.2f秒)",
		rootURL, len(corpus.Pages), corpus.Stats.FailedPages, corpus.Stats.TotalChars, corpus.Stats.Duration)

	return corpus, nil
}

// visit 深度优先访问一个页面及其候选链接
// 只有根页面的失败会作为错误返回
func (c *SiteCrawler) visit(ctx context.Context, run *crawlRun, pageURL string, depth int) error {
	job := run.job

	if err := ctx.Err(); err != nil {
		if depth == 0 {
			return err
		}
		return nil
	}
	if depth > job.MaxDepth {
		return nil
	}
	if job.BudgetExhausted() {
		utils.Debugf("页面上限已用尽,跳过: %s", pageURL)
		return nil
	}
	if !job.MarkVisited(pageURL, depth) {
		return nil
	}

	utils.Infof("📄 [深度 %d] %s", depth, pageURL)

	extract, err := c.render(ctx, run, pageURL)
	if err != nil {
		job.RecordFailure()
		if depth == 0 {
			return err
		}
		utils.Warnf("页面抓取失败,跳过该分支 [%s]: %v", pageURL, err)
		return nil
	}

	job.AddPage(models.CorpusPage{
		URL:       pageURL,
		Depth:     depth,
		Mode:      extract.Mode,
		Text:      extract.Text,
		FetchedAt: time.Now(),
	})
	job.RecordNetwork(extract.Network)
	utils.Debugf("页面文本预览 [%s]: %s", pageURL, utils.Preview(extract.Text, 120))

	if depth >= job.MaxDepth {
		return nil
	}

	candidates := c.links.DiscoverLinks(extract, job.RootURL, true)
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		c.visit(ctx, run, candidate.URL, depth+1)
	}

	return nil
}

// render 按分类结果选择渲染方式,动态渲染失败时回退静态抓取
func (c *SiteCrawler) render(ctx context.Context, run *crawlRun, pageURL string) (*models.PageExtract, error) {
	pageType := models.PageStatic
	switch c.config.Mode {
	case models.ModeStatic:
	case models.ModeDynamic:
		pageType = models.PageDynamic
	default:
		if c.classifier != nil {
			pageType = c.classifier.Classify(ctx, pageURL)
		}
	}

	if pageType == models.PageDynamic && c.dynamic != nil {
		extract, err := c.renderDynamic(ctx, run, pageURL)
		if err == nil {
			return extract, nil
		}
		if extract != nil && extract.Text != "" {
			utils.Warnf("动态渲染超时,使用部分内容 [%s]: %v", pageURL, err)
			return extract, nil
		}
		utils.Warnf("动态渲染失败,回退静态抓取 [%s]: %v", pageURL, err)
	}

	return c.static.RenderURL(ctx, pageURL)
}

func (c *SiteCrawler) renderDynamic(ctx context.Context, run *crawlRun, pageURL string) (*models.PageExtract, error) {
	if run.session == nil {
		if run.sessionErr != nil {
			return nil, run.sessionErr
		}
		session, err := c.dynamic.OpenSession(ctx)
		if err != nil {
			// 同一任务内不再重复尝试启动浏览器
			run.sessionErr = err
			return nil, err
		}
		run.session = session
	}
	return run.session.Render(ctx, pageURL)
}
