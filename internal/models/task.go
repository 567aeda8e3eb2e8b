package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
)

// CrawlMode 渲染模式选择
type CrawlMode string

const (
	ModeAuto    CrawlMode = "auto"    // 由分类器决定
	ModeStatic  CrawlMode = "static"  // 强制静态
	ModeDynamic CrawlMode = "dynamic" // 强制动态
)

// TaskStats 任务统计
type TaskStats struct {
	VisitedURLs  int     `json:"visited_urls"`  // 已访问URL数
	StaticPages  int     `json:"static_pages"`  // 静态渲染页面数
	DynamicPages int     `json:"dynamic_pages"` // 动态渲染页面数
	FailedPages  int     `json:"failed_pages"`  // 失败页面数
	OCRImages    int     `json:"ocr_images"`    // OCR识别成功图片数
	TotalChars   int     `json:"total_chars"`   // 语料总字符数
	Duration     float64 `json:"duration"`      // 总耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	MaxDepth      int       `mapstructure:"max_depth" json:"max_depth"`             // 根页面之外允许的链接跳数 (默认:2)
	MaxLinks      int       `mapstructure:"max_links" json:"max_links"`             // 每页跟随的候选链接数 (默认:5)
	MaxPages      int       `mapstructure:"max_pages" json:"max_pages"`             // 单次任务页面上限 (默认:30)
	MinLineLength int       `mapstructure:"min_line_length" json:"min_line_length"` // 站点语料保留行的最小字符数 (默认:20)
	Mode          CrawlMode `mapstructure:"mode" json:"mode"`                       // auto|static|dynamic
	OCREnabled    bool      `mapstructure:"ocr_enabled" json:"ocr_enabled"`         // 是否对捕获的图片执行OCR
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxDepth:      2,
		MaxLinks:      5,
		MaxPages:      30,
		MinLineLength: 20,
		Mode:          ModeAuto,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.MaxDepth < 0 || c.MaxDepth > 5 {
		return fmt.Errorf("深度必须在0-5之间")
	}
	if c.MaxLinks < 1 || c.MaxLinks > 50 {
		return fmt.Errorf("候选链接数必须在1-50之间")
	}
	if c.MaxPages < 1 || c.MaxPages > 500 {
		return fmt.Errorf("页面上限必须在1-500之间")
	}
	if c.MinLineLength < 0 {
		return fmt.Errorf("最小行长度不能为负数")
	}
	switch c.Mode {
	case ModeAuto, ModeStatic, ModeDynamic, "":
	default:
		return fmt.Errorf("无效的渲染模式: %s (有效值: auto, static, dynamic)", c.Mode)
	}
	return nil
}

// CorpusPage 语料中的单个页面
type CorpusPage struct {
	URL       string    `json:"url"`
	Depth     int       `json:"depth"`
	Mode      PageType  `json:"mode"`
	Text      string    `json:"-"`
	Hash      string    `json:"sha256"`
	Chars     int       `json:"chars"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CrawlJob 单次站点爬取的全部状态
// 只属于一次爬取,不跨请求共享,不持久化
type CrawlJob struct {
	ID        string
	RootURL   string
	RootHost  string
	MaxDepth  int
	MaxPages  int
	StartedAt time.Time

	// visited 规范化URL -> 首次访问深度
	visited map[string]int
	pages   []CorpusPage
	network []NetworkEntry
	stats   TaskStats
}

// NewCrawlJob 创建爬取任务
func NewCrawlJob(rootURL string, maxDepth, maxPages int) (*CrawlJob, error) {
	if err := ValidateURL(rootURL); err != nil {
		return nil, err
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("深度不能为负数: %d", maxDepth)
	}

	parsed, _ := url.Parse(rootURL)

	return &CrawlJob{
		ID:        generateID(),
		RootURL:   rootURL,
		RootHost:  strings.ToLower(parsed.Host),
		MaxDepth:  maxDepth,
		MaxPages:  maxPages,
		StartedAt: time.Now(),
		visited:   make(map[string]int),
	}, nil
}

// MarkVisited 标记URL已访问
// 返回false表示该URL此前已被访问过
func (j *CrawlJob) MarkVisited(rawURL string, depth int) bool {
	key := CanonicalURL(rawURL)
	if _, ok := j.visited[key]; ok {
		return false
	}
	j.visited[key] = depth
	j.stats.VisitedURLs++
	return true
}

// IsVisited 检查URL是否已访问
func (j *CrawlJob) IsVisited(rawURL string) bool {
	_, ok := j.visited[CanonicalURL(rawURL)]
	return ok
}

// VisitedCount 已访问URL数
func (j *CrawlJob) VisitedCount() int {
	return len(j.visited)
}

// BudgetExhausted 页面预算是否用尽
func (j *CrawlJob) BudgetExhausted() bool {
	return j.MaxPages > 0 && len(j.visited) >= j.MaxPages
}

// AddPage 按发现顺序追加页面
func (j *CrawlJob) AddPage(page CorpusPage) {
	page.Chars = len([]rune(page.Text))
	page.Hash = HashText(page.Text)
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now()
	}
	j.pages = append(j.pages, page)

	switch page.Mode {
	case PageDynamic:
		j.stats.DynamicPages++
	default:
		j.stats.StaticPages++
	}
	j.stats.TotalChars += page.Chars
}

// RecordFailure 记录失败页面
func (j *CrawlJob) RecordFailure() {
	j.stats.FailedPages++
}

// RecordOCR 记录OCR成功的图片数
func (j *CrawlJob) RecordOCR(n int) {
	j.stats.OCRImages += n
}

// RecordNetwork 追加动态渲染期间的网络记录
func (j *CrawlJob) RecordNetwork(entries []NetworkEntry) {
	j.network = append(j.network, entries...)
}

// Corpus 生成只读语料快照
func (j *CrawlJob) Corpus() *Corpus {
	pages := make([]CorpusPage, len(j.pages))
	copy(pages, j.pages)

	stats := j.stats
	finished := time.Now()
	stats.Duration = finished.Sub(j.StartedAt).Seconds()

	return &Corpus{
		JobID:      j.ID,
		RootURL:    j.RootURL,
		Pages:      pages,
		Network:    append([]NetworkEntry(nil), j.network...),
		Stats:      stats,
		StartedAt:  j.StartedAt,
		FinishedAt: finished,
	}
}

// Corpus 一次提取请求汇总的文本
type Corpus struct {
	JobID      string         `json:"job_id"`
	RootURL    string         `json:"root_url"`
	Pages      []CorpusPage   `json:"pages"`
	Addendum   string         `json:"-"` // OCR等附加文本
	Network    []NetworkEntry `json:"-"` // 动态渲染的网络记录
	Stats      TaskStats      `json:"stats"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Text 按发现顺序拼接所有页面文本,根页面在前
func (c *Corpus) Text() string {
	parts := make([]string, 0, len(c.Pages)+1)
	for _, p := range c.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	if c.Addendum != "" {
		parts = append(parts, c.Addendum)
	}
	return strings.Join(parts, "\n\n")
}

// Empty 语料是否没有任何文本
func (c *Corpus) Empty() bool {
	return strings.TrimSpace(c.Text()) == ""
}
